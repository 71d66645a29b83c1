package commands

import (
	"context"
	"fmt"
)

// DeleteCmd implements the 'delete' command.
type DeleteCmd struct {
	ID string `arg:"" help:"Entry id to delete"`
}

func (d *DeleteCmd) Run(g *Global, root *CLI) error {
	ctx := context.Background()
	store, _, closer, err := openStore(ctx, root.Config)
	if err != nil {
		return err
	}
	defer closer()

	if _, ok := store.Get(d.ID); !ok {
		return fmt.Errorf("no entry with id %s", d.ID)
	}
	if err := store.Delete(ctx, d.ID); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	fmt.Fprintf(g.out(), "deleted %s\n", d.ID)
	return nil
}
