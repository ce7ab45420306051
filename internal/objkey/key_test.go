package objkey

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pbx-ops/recsync/internal/model"
)

func TestBuild_FullIdentity(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	got := Build("DOMAIN", "15551234567", "a1b2c3d4-e5f6-7890-abcd-ef1234567890", "103", &ts, ".wav")
	want := "DOMAIN_CUST_15551234567_GUID_a1b2c3d4-e5f6-7890-abcd-ef1234567890_AGENT_103_DATETIME_2024-01-15T10-00-00.wav"
	assert.Equal(t, want, got)
}

func TestBuild_UnknownParts(t *testing.T) {
	got := Build("pbx.example.com", model.Unknown, "a1b2c3d4-e5f6-7890-abcd-ef1234567890", model.Unknown, nil, ".mp3")
	want := "pbx.example.com_CUST_UNKNOWN_GUID_a1b2c3d4-e5f6-7890-abcd-ef1234567890_AGENT_UNKNOWN_DATETIME_UNKNOWN.mp3"
	assert.Equal(t, want, got)

	// Empty strings render the same as the sentinel.
	got = Build("pbx.example.com", "", "a1b2c3d4-e5f6-7890-abcd-ef1234567890", "", nil, ".mp3")
	assert.Equal(t, want, got)
}

func TestBuild_TimestampUTCAndNonUTCInput(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	ts := time.Date(2024, 1, 15, 5, 0, 0, 0, loc) // 10:00 UTC

	got := Build("d", "5551234567", "id", "103", &ts, ".wav")
	assert.Contains(t, got, "_DATETIME_2024-01-15T10-00-00.wav")
}

// Identical inputs must always yield an identical key.
func TestBuild_Deterministic(t *testing.T) {
	ts := time.Date(2024, 6, 1, 12, 30, 45, 0, time.UTC)
	a := Build("pbx.example.com", "5551234567", "a1b2c3d4-e5f6-7890-abcd-ef1234567890", "201", &ts, ".wav")
	b := Build("pbx.example.com", "5551234567", "a1b2c3d4-e5f6-7890-abcd-ef1234567890", "201", &ts, ".wav")
	assert.Equal(t, a, b)
}

func TestNormalizeDomain(t *testing.T) {
	assert.Equal(t, "pbx.example.com", NormalizeDomain("pbx.example.com"))
	assert.Equal(t, "pbxexample.com", NormalizeDomain("pbx+(ex)ample.com"))
	assert.Equal(t, "my_domain-1", NormalizeDomain("my_domain-1!"))
	assert.Equal(t, "", NormalizeDomain("+ /"))
}

func TestWithPrefix(t *testing.T) {
	assert.Equal(t, "k.wav", WithPrefix("", "k.wav"))
	assert.Equal(t, "recordings/k.wav", WithPrefix("recordings", "k.wav"))
	assert.Equal(t, "a/b/k.wav", WithPrefix("/a/b/", "k.wav"))
}
