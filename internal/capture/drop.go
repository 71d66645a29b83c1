package capture

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/nissy/kipple-sub002/internal/clip"
)

// drop is the wire form of a spool file. Pin state is deliberately absent:
// captures always enter the history unpinned and pinning happens through the
// store's pin path.
type drop struct {
	Content     string  `json:"content"`
	SourceApp   string  `json:"source_app"`
	WindowTitle string  `json:"window_title"`
	BundleID    string  `json:"bundle_id"`
	ProcessID   int     `json:"process_id"`
	FromEditor  bool    `json:"from_editor"`
	Kind        string  `json:"kind"`
	Timestamp   float64 `json:"timestamp"`
}

func decodeDrop(payload []byte) (drop, error) {
	var d drop
	if err := json.Unmarshal(payload, &d); err != nil {
		return drop{}, fmt.Errorf("decoding drop: %w", err)
	}
	return d, nil
}

// toEntry builds the history entry for a validated drop. Missing kinds are
// classified from the content; a missing timestamp stays zero for the store
// clock to fill.
func (d drop) toEntry() clip.Entry {
	e := clip.Entry{
		ID:          uuid.NewString(),
		Content:     d.Content,
		SourceApp:   d.SourceApp,
		WindowTitle: d.WindowTitle,
		BundleID:    d.BundleID,
		ProcessID:   d.ProcessID,
		FromEditor:  d.FromEditor,
		Kind:        clip.Kind(d.Kind),
	}
	if d.Timestamp > 0 {
		e.Timestamp = clip.TimeFromEpoch(d.Timestamp)
	}
	if e.Kind == "" {
		e.Kind = clip.Classify(d.Content)
	}
	return e
}
