package commands

import (
	"context"
	"encoding/json"
	"fmt"
)

// ListCmd implements the 'list' command.
type ListCmd struct {
	Limit int  `short:"n" help:"Maximum entries to show, 0 for all" default:"20"`
	JSON  bool `help:"Emit entries as JSON"`
}

func (l *ListCmd) Run(g *Global, root *CLI) error {
	ctx := context.Background()
	store, _, closer, err := openStore(ctx, root.Config)
	if err != nil {
		return err
	}
	defer closer()

	entries := store.Load(l.Limit)
	if l.JSON {
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return fmt.Errorf("encode entries: %w", err)
		}
		fmt.Fprintln(g.out(), string(data))
		return nil
	}

	if len(entries) == 0 {
		fmt.Fprintln(g.out(), "history is empty")
		return nil
	}
	fmt.Fprintf(g.out(), "%-3s %-8s %-9s %-19s %s\n", "PIN", "ID", "KIND", "COPIED", "CONTENT")
	for _, e := range entries {
		pin := ""
		if e.Pinned {
			pin = " *"
		}
		fmt.Fprintf(g.out(), "%-3s %-8s %-9s %-19s %s\n",
			pin, shortID(e.ID), e.Kind,
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			e.Preview(60))
	}
	return nil
}
