package history

// Event describes one committed mutation of the history. Observers receive
// the ids that changed and the resulting counts, never entry content; the
// notification path stays free of clipboard data.
type Event struct {
	Backend     string   `json:"backend"`
	InsertedIDs []string `json:"inserted_ids,omitempty"`
	UpdatedIDs  []string `json:"updated_ids,omitempty"`
	RemovedIDs  []string `json:"removed_ids,omitempty"`
	Pinned      int      `json:"pinned"`
	Unpinned    int      `json:"unpinned"`
}
