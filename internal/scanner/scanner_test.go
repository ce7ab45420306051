package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbx-ops/recsync/internal/model"
)

// fakeProber maps basenames to durations; unknown files error like a
// corrupt recording would.
type fakeProber struct {
	durations map[string]float64
}

func (p fakeProber) Duration(path string) (float64, error) {
	d, ok := p.durations[filepath.Base(path)]
	if !ok {
		return 0, os.ErrInvalid
	}
	return d, nil
}

const (
	uuidA = "a1b2c3d4-e5f6-7890-abcd-ef1234567890"
	uuidB = "b2c3d4e5-f6a7-8901-bcde-f12345678901"
	uuidC = "c3d4e5f6-a7b8-9012-cdef-123456789012"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("RIFFdata"), 0o644))
}

func newTestScanner(t *testing.T, root string, prober fakeProber) *Scanner {
	t.Helper()
	s, err := New(Options{
		Root:        root,
		Domain:      "pbx.example.com",
		Extensions:  []string{".wav", ".mp3"},
		MinDuration: 15,
		Prober:      prober,
	})
	require.NoError(t, err)
	return s
}

func collect(t *testing.T, s *Scanner, w Window) []model.CallRecording {
	t.Helper()
	var got []model.CallRecording
	err := s.Scan(context.Background(), w, func(rec model.CallRecording) error {
		got = append(got, rec)
		return nil
	})
	require.NoError(t, err)
	return got
}

func TestScan_FiltersAndOrder(t *testing.T) {
	root := t.TempDir()
	day := filepath.Join(root, "pbx.example.com", "archive", "2024", "Jan", "15")

	writeFile(t, filepath.Join(day, uuidB+".wav"))
	writeFile(t, filepath.Join(day, uuidA+".wav"))
	writeFile(t, filepath.Join(day, uuidC+".mp3"))
	writeFile(t, filepath.Join(day, "not-a-call-id.wav"))  // bad stem
	writeFile(t, filepath.Join(day, uuidA+".txt"))         // bad extension
	writeFile(t, filepath.Join(day, "short.wav"))          // bad stem anyway

	s := newTestScanner(t, root, fakeProber{durations: map[string]float64{
		uuidA + ".wav": 42,
		uuidB + ".wav": 120,
		uuidC + ".mp3": 3, // below minimum
	}})

	w := Window{
		From: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
	}
	got := collect(t, s, w)

	// Lexical order within the day; the short mp3 and non-candidates are
	// silently excluded.
	require.Len(t, got, 2)
	assert.Equal(t, uuidA, got[0].CallID)
	assert.Equal(t, uuidB, got[1].CallID)
	assert.Equal(t, 42.0, got[0].Duration)
	assert.Equal(t, ".wav", got[0].Ext)
	assert.True(t, filepath.IsAbs(got[0].Path))
	assert.Equal(t, w.From, got[0].Date)
}

func TestScan_DatesAscendingAcrossMonths(t *testing.T) {
	root := t.TempDir()
	jan31 := filepath.Join(root, "pbx.example.com", "archive", "2024", "Jan", "31")
	feb01 := filepath.Join(root, "pbx.example.com", "archive", "2024", "Feb", "01")
	writeFile(t, filepath.Join(feb01, uuidA+".wav"))
	writeFile(t, filepath.Join(jan31, uuidB+".wav"))

	s := newTestScanner(t, root, fakeProber{durations: map[string]float64{
		uuidA + ".wav": 30,
		uuidB + ".wav": 30,
	}})

	got := collect(t, s, Window{
		From: time.Date(2024, 1, 30, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC),
	})

	require.Len(t, got, 2)
	assert.Equal(t, uuidB, got[0].CallID) // Jan 31 before Feb 01
	assert.Equal(t, uuidA, got[1].CallID)
}

func TestScan_MissingDayFolderSkipped(t *testing.T) {
	root := t.TempDir()
	s := newTestScanner(t, root, fakeProber{})

	got := collect(t, s, Window{
		From: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC),
	})
	assert.Empty(t, got)
}

func TestScan_ProbeFailureExcludes(t *testing.T) {
	root := t.TempDir()
	day := filepath.Join(root, "pbx.example.com", "archive", "2024", "Jan", "15")
	writeFile(t, filepath.Join(day, uuidA+".wav"))

	// Prober has no entry for the file, so it errors; the file is treated
	// as zero duration and excluded, not reported.
	s := newTestScanner(t, root, fakeProber{})
	got := collect(t, s, Window{
		From: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
	})
	assert.Empty(t, got)
}

func TestScan_CaseInsensitiveExtension(t *testing.T) {
	root := t.TempDir()
	day := filepath.Join(root, "pbx.example.com", "archive", "2024", "Jan", "15")
	writeFile(t, filepath.Join(day, uuidA+".WAV"))

	s := newTestScanner(t, root, fakeProber{durations: map[string]float64{
		uuidA + ".WAV": 30,
	}})
	got := collect(t, s, Window{
		From: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
	})
	require.Len(t, got, 1)
	assert.Equal(t, ".wav", got[0].Ext)
}

func TestScan_StopsOnCallbackError(t *testing.T) {
	root := t.TempDir()
	day := filepath.Join(root, "pbx.example.com", "archive", "2024", "Jan", "15")
	writeFile(t, filepath.Join(day, uuidA+".wav"))
	writeFile(t, filepath.Join(day, uuidB+".wav"))

	s := newTestScanner(t, root, fakeProber{durations: map[string]float64{
		uuidA + ".wav": 30,
		uuidB + ".wav": 30,
	}})

	seen := 0
	err := s.Scan(context.Background(), Window{
		From: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
	}, func(model.CallRecording) error {
		seen++
		return os.ErrClosed
	})
	require.Error(t, err)
	assert.Equal(t, 1, seen)
}

func TestDayDir(t *testing.T) {
	s := newTestScanner(t, "/recordings", fakeProber{})
	got := s.DayDir(time.Date(2024, 10, 3, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, filepath.Join("/recordings", "pbx.example.com", "archive", "2024", "Oct", "03"), got)
}

// A custom pattern is authoritative: stems it admits are candidates even
// when they are not canonical call identifiers.
func TestScan_CustomPatternAdmitsNonCanonicalStems(t *testing.T) {
	root := t.TempDir()
	day := filepath.Join(root, "pbx.example.com", "archive", "2024", "Jan", "15")
	writeFile(t, filepath.Join(day, "REC-0042.wav"))
	writeFile(t, filepath.Join(day, uuidA+".wav"))

	s, err := New(Options{
		Root:          root,
		Domain:        "pbx.example.com",
		Extensions:    []string{".wav"},
		MinDuration:   15,
		CallIDPattern: `^REC-\d+$`,
		Prober: fakeProber{durations: map[string]float64{
			"REC-0042.wav": 30,
			uuidA + ".wav": 30,
		}},
	})
	require.NoError(t, err)

	var got []model.CallRecording
	require.NoError(t, s.Scan(context.Background(), Window{
		From: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
	}, func(rec model.CallRecording) error {
		got = append(got, rec)
		return nil
	}))

	require.Len(t, got, 1)
	assert.Equal(t, "rec-0042", got[0].CallID)
}

// Passing the default pattern explicitly keeps the canonical-identifier
// cross-check, same as leaving the pattern empty.
func TestScan_ExplicitDefaultPatternStaysStrict(t *testing.T) {
	root := t.TempDir()
	day := filepath.Join(root, "pbx.example.com", "archive", "2024", "Jan", "15")
	writeFile(t, filepath.Join(day, "REC-0042.wav"))

	s, err := New(Options{
		Root:          root,
		Domain:        "pbx.example.com",
		Extensions:    []string{".wav"},
		CallIDPattern: defaultCallIDPattern,
		Prober:        fakeProber{durations: map[string]float64{"REC-0042.wav": 30}},
	})
	require.NoError(t, err)

	seen := 0
	require.NoError(t, s.Scan(context.Background(), Window{
		From: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
	}, func(model.CallRecording) error {
		seen++
		return nil
	}))
	assert.Zero(t, seen)
}

func TestNew_BadPattern(t *testing.T) {
	_, err := New(Options{CallIDPattern: "("})
	require.Error(t, err)
}
