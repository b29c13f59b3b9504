package tdms

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParsePathRoot(t *testing.T) {
	group, channel, err := parsePath("/")
	require.NoError(t, err)
	require.Empty(t, group)
	require.Empty(t, channel)
}

func TestParsePathGroupOnly(t *testing.T) {
	group, channel, err := parsePath("/'G'")
	require.NoError(t, err)
	require.Equal(t, "G", group)
	require.Empty(t, channel)
}

func TestParsePathGroupAndChannel(t *testing.T) {
	group, channel, err := parsePath("/'G'/'x'")
	require.NoError(t, err)
	require.Equal(t, "G", group)
	require.Equal(t, "x", channel)
}

func TestParsePathEscapedQuote(t *testing.T) {
	group, channel, err := parsePath("/'Group''s Name'/'x'")
	require.NoError(t, err)
	require.Equal(t, "Group's Name", group)
	require.Equal(t, "x", channel)
}

func TestParsePathRejectsMalformedInput(t *testing.T) {
	cases := []string{
		"",
		"no leading slash",
		"/missing quotes",
		"/'unterminated",
	}

	for _, path := range cases {
		_, _, err := parsePath(path)
		require.ErrorIsf(t, err, ErrInvalidPath, "path %q", path)
	}
}

func TestTimestampAsTimeAppliesLabVIEWEpoch(t *testing.T) {
	// Zero seconds since the LabVIEW epoch is 1904-01-01T00:00:00 UTC, not
	// the Unix epoch.
	ts := Timestamp{Seconds: 0, Fraction: 0}
	got := ts.AsTime().UTC()
	want := time.Date(1904, time.January, 1, 0, 0, 0, 0, time.UTC)
	require.True(t, got.Equal(want), "got %s, want %s", got, want)
}

func TestTimestampAsTimeFractionToNanoseconds(t *testing.T) {
	// Fraction is in units of 2^-64 seconds; half a second should round-trip
	// to 500,000,000ns.
	ts := Timestamp{Seconds: 0, Fraction: 1 << 63}
	got := ts.AsTime().UTC()
	require.Equal(t, 500_000_000, got.Nanosecond())
}
