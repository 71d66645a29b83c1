package clip

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew_AssignsIdentityAndKind(t *testing.T) {
	e := New("https://example.com/docs")

	require.NotEmpty(t, e.ID)
	require.Equal(t, "https://example.com/docs", e.Content)
	require.Equal(t, KindURL, e.Kind)
	require.False(t, e.Timestamp.IsZero())
	require.Equal(t, e.Timestamp, Quantize(e.Timestamp))
}

func TestQuantize_DropsSubMicrosecond(t *testing.T) {
	t0 := time.Date(2026, 2, 3, 4, 5, 6, 123456789, time.UTC)

	q := Quantize(t0)

	require.Equal(t, int64(123456000), int64(q.Nanosecond()))
	require.Equal(t, t0.UnixMicro(), q.UnixMicro())
	// Quantizing twice is a no-op.
	require.True(t, q.Equal(Quantize(q)))
}

func TestEpochSeconds_RoundTripsQuantizedTimes(t *testing.T) {
	t0 := Quantize(time.Date(2026, 2, 3, 4, 5, 6, 123456789, time.UTC))

	sec := EpochSeconds(t0)
	back := TimeFromEpoch(sec)

	require.True(t, t0.Equal(back), "quantized timestamps must survive the float64 wire form")
	require.Equal(t, t0.UnixMicro(), back.UnixMicro())
}

func TestPreview_CollapsesAndTruncates(t *testing.T) {
	e := Entry{Content: "line one\n\tline   two"}
	require.Equal(t, "line one line two", e.Preview(40))

	e = Entry{Content: "abcdefghij"}
	require.Equal(t, "abcd…", e.Preview(5))
}

func TestEqual_SeqIsCompared(t *testing.T) {
	a := Entry{ID: "x", Content: "c", Timestamp: time.UnixMicro(10), Seq: 1}
	b := a
	require.True(t, a.Equal(b))

	b.Seq = 2
	require.False(t, a.Equal(b))
}
