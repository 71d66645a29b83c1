package commands

import (
	"context"
	"fmt"

	"github.com/nissy/kipple-sub002/internal/history"
)

// PinCmd implements the 'pin' command.
type PinCmd struct {
	ID string `arg:"" help:"Entry id to pin"`
}

func (p *PinCmd) Run(g *Global, root *CLI) error {
	return setPin(g, root, p.ID, true)
}

// UnpinCmd implements the 'unpin' command.
type UnpinCmd struct {
	ID string `arg:"" help:"Entry id to unpin"`
}

func (u *UnpinCmd) Run(g *Global, root *CLI) error {
	return setPin(g, root, u.ID, false)
}

func setPin(g *Global, root *CLI, id string, pinned bool) error {
	ctx := context.Background()
	store, cfg, closer, err := openStore(ctx, root.Config)
	if err != nil {
		return err
	}
	defer closer()

	outcome, err := store.SetPinned(ctx, id, pinned)
	if err != nil {
		return fmt.Errorf("update pin state: %w", err)
	}
	switch outcome {
	case history.PinNotFound:
		return fmt.Errorf("no entry with id %s", id)
	case history.PinLimitReached:
		return fmt.Errorf("pin limit reached (%d pinned, max %d)",
			store.CountPinned(), cfg.History.EffectiveMaxPinned())
	}
	if pinned {
		fmt.Fprintf(g.out(), "pinned %s\n", id)
	} else {
		fmt.Fprintf(g.out(), "unpinned %s\n", id)
	}
	return nil
}
