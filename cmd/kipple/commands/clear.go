package commands

import (
	"context"
	"fmt"
)

// ClearCmd implements the 'clear' command.
type ClearCmd struct {
	KeepPinned bool `help:"Keep pinned entries"`
}

func (c *ClearCmd) Run(g *Global, root *CLI) error {
	ctx := context.Background()
	store, _, closer, err := openStore(ctx, root.Config)
	if err != nil {
		return err
	}
	defer closer()

	before := store.Count()
	if err := store.Clear(ctx, c.KeepPinned); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	fmt.Fprintf(g.out(), "removed %d entries\n", before-store.Count())
	return nil
}
