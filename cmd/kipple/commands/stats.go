package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// StatsCmd implements the 'stats' command.
type StatsCmd struct {
	JSON bool `help:"Emit stats as JSON"`
}

type statsOutput struct {
	Backend  string         `json:"backend"`
	Entries  int            `json:"entries"`
	Pinned   int            `json:"pinned"`
	Unpinned int            `json:"unpinned"`
	ByKind   map[string]int `json:"by_kind,omitempty"`
}

func (s *StatsCmd) Run(g *Global, root *CLI) error {
	ctx := context.Background()
	store, _, closer, err := openStore(ctx, root.Config)
	if err != nil {
		return err
	}
	defer closer()

	entries := store.LoadAll()
	byKind := make(map[string]int)
	for _, e := range entries {
		kind := string(e.Kind)
		if kind == "" {
			kind = "plain"
		}
		byKind[kind]++
	}

	out := statsOutput{
		Backend:  store.Backend(),
		Entries:  store.Count(),
		Pinned:   store.CountPinned(),
		Unpinned: store.Count() - store.CountPinned(),
		ByKind:   byKind,
	}
	if s.JSON {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("encode stats: %w", err)
		}
		fmt.Fprintln(g.out(), string(data))
		return nil
	}
	fmt.Fprintf(g.out(), "backend:  %s\n", out.Backend)
	fmt.Fprintf(g.out(), "entries:  %d\n", out.Entries)
	fmt.Fprintf(g.out(), "pinned:   %d\n", out.Pinned)
	fmt.Fprintf(g.out(), "unpinned: %d\n", out.Unpinned)
	kinds := make([]string, 0, len(byKind))
	for k := range byKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(g.out(), "kind %-9s %d\n", k+":", byKind[k])
	}
	return nil
}
