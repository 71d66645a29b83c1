package backend

import (
	"fmt"
	"math"

	"github.com/nissy/kipple-sub002/internal/clip"
)

// record is the backend-agnostic persisted form of an entry. The timestamp is
// epoch seconds as a float64; entries are quantized to whole microseconds
// before they reach a backend, so the float round-trips exactly.
type record struct {
	ID           string  `json:"id" bson:"_id"`
	Content      string  `json:"content" bson:"content"`
	Timestamp    float64 `json:"timestamp" bson:"timestamp"`
	IsPinned     bool    `json:"isPinned" bson:"isPinned"`
	SourceApp    string  `json:"sourceApp,omitempty" bson:"sourceApp,omitempty"`
	WindowTitle  string  `json:"windowTitle,omitempty" bson:"windowTitle,omitempty"`
	BundleID     string  `json:"bundleId,omitempty" bson:"bundleId,omitempty"`
	ProcessID    int     `json:"processId,omitempty" bson:"processId,omitempty"`
	IsFromEditor bool    `json:"isFromEditor" bson:"isFromEditor"`
	Kind         string  `json:"kind" bson:"kind"`
	Seq          uint64  `json:"seq" bson:"seq"`
}

func encodeRecord(e clip.Entry) record {
	return record{
		ID:           e.ID,
		Content:      e.Content,
		Timestamp:    clip.EpochSeconds(e.Timestamp),
		IsPinned:     e.Pinned,
		SourceApp:    e.SourceApp,
		WindowTitle:  e.WindowTitle,
		BundleID:     e.BundleID,
		ProcessID:    e.ProcessID,
		IsFromEditor: e.FromEditor,
		Kind:         string(e.Kind),
		Seq:          e.Seq,
	}
}

func decodeRecord(r record) (clip.Entry, error) {
	if r.ID == "" {
		return clip.Entry{}, fmt.Errorf("record has empty id")
	}
	if math.IsNaN(r.Timestamp) || math.IsInf(r.Timestamp, 0) {
		return clip.Entry{}, fmt.Errorf("record %s has invalid timestamp", r.ID)
	}
	return clip.Entry{
		ID:          r.ID,
		Content:     r.Content,
		Timestamp:   clip.TimeFromEpoch(r.Timestamp),
		Pinned:      r.IsPinned,
		SourceApp:   r.SourceApp,
		WindowTitle: r.WindowTitle,
		BundleID:    r.BundleID,
		ProcessID:   r.ProcessID,
		FromEditor:  r.IsFromEditor,
		Kind:        clip.Kind(r.Kind),
		Seq:         r.Seq,
	}, nil
}

func encodeRecords(entries []clip.Entry) []record {
	out := make([]record, 0, len(entries))
	for _, e := range entries {
		out = append(out, encodeRecord(e))
	}
	return out
}

func decodeRecords(records []record) ([]clip.Entry, error) {
	out := make([]clip.Entry, 0, len(records))
	for _, r := range records {
		e, err := decodeRecord(r)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
