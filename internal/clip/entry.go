// Package clip defines the clipboard entry model shared by the history core,
// the storage backends and the capture pipeline.
package clip

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Entry is a single clipboard history record. ID is assigned once and is the
// only key used to update or remove the entry. Seq is the order-key tie-break
// assigned by the history store on insert; it is persisted so reload ordering
// is stable, but it is not part of the entry's logical identity and must not
// be shown in place of Timestamp.
type Entry struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	Pinned      bool      `json:"isPinned"`
	SourceApp   string    `json:"sourceApp,omitempty"`
	WindowTitle string    `json:"windowTitle,omitempty"`
	BundleID    string    `json:"bundleId,omitempty"`
	ProcessID   int       `json:"processId,omitempty"`
	FromEditor  bool      `json:"isFromEditor"`
	Kind        Kind      `json:"kind"`
	Seq         uint64    `json:"seq"`
}

// New builds a capture candidate with a fresh ID, the current (quantized)
// capture instant and a classified kind. Provenance fields are left for the
// caller to fill in.
func New(content string) Entry {
	return Entry{
		ID:        uuid.NewString(),
		Content:   content,
		Timestamp: Quantize(time.Now()),
		Kind:      Classify(content),
	}
}

// Quantize truncates a timestamp to whole microseconds, the resolution every
// backend can round-trip losslessly. The result carries no monotonic reading.
func Quantize(t time.Time) time.Time {
	return time.UnixMicro(t.UnixMicro())
}

// EpochSeconds renders t as fractional seconds since the Unix epoch, the wire
// form shared by every backend and the capture drop format.
func EpochSeconds(t time.Time) float64 {
	return float64(t.UnixMicro()) / 1e6
}

// TimeFromEpoch converts fractional epoch seconds back to a quantized Time.
func TimeFromEpoch(sec float64) time.Time {
	return time.UnixMicro(int64(math.Round(sec * 1e6)))
}

// Preview returns a single-line rendering of the content truncated to max
// runes, for logs and list output.
func (e Entry) Preview(max int) string {
	s := strings.Join(strings.Fields(e.Content), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 1 {
		return string(r[:max])
	}
	return string(r[:max-1]) + "…"
}

// Equal reports whether two entries carry the same logical state. Seq is
// compared as well: it is part of the persisted record even though it is not
// part of the entry's identity.
func (e Entry) Equal(other Entry) bool {
	return e.ID == other.ID &&
		e.Content == other.Content &&
		e.Timestamp.Equal(other.Timestamp) &&
		e.Pinned == other.Pinned &&
		e.SourceApp == other.SourceApp &&
		e.WindowTitle == other.WindowTitle &&
		e.BundleID == other.BundleID &&
		e.ProcessID == other.ProcessID &&
		e.FromEditor == other.FromEditor &&
		e.Kind == other.Kind &&
		e.Seq == other.Seq
}
