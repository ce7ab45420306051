// Package audio probes recording files for their playback duration.
package audio

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	mp3 "github.com/hajimehoshi/go-mp3"
	"github.com/rotisserie/eris"
)

// Prober reports the duration of an audio file in seconds. Implementations
// must fail soft at the call site: the scanner treats any error as zero
// duration, which excludes the file.
type Prober interface {
	Duration(path string) (float64, error)
}

// FileProber probes .wav and .mp3 files by parsing their headers/frames.
// Unsupported extensions report zero duration without error.
type FileProber struct{}

// Duration returns the audio duration of path in seconds.
func (FileProber) Duration(path string) (float64, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return wavDuration(path)
	case ".mp3":
		return mp3Duration(path)
	default:
		return 0, nil
	}
}

func wavDuration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, eris.Wrapf(err, "audio: open %s", path)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	d, err := dec.Duration()
	if err != nil {
		return 0, eris.Wrapf(err, "audio: wav duration %s", path)
	}
	return d.Seconds(), nil
}

func mp3Duration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, eris.Wrapf(err, "audio: open %s", path)
	}
	defer f.Close()

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return 0, eris.Wrapf(err, "audio: mp3 decode %s", path)
	}
	// The decoder emits 16-bit stereo PCM: 4 bytes per sample frame.
	rate := dec.SampleRate()
	if rate <= 0 {
		return 0, eris.Errorf("audio: mp3 sample rate %d in %s", rate, path)
	}
	return float64(dec.Length()) / float64(4*rate), nil
}
