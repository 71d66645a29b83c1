package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nissy/kipple-sub002/internal/backend"
	"github.com/nissy/kipple-sub002/internal/clip"
	"github.com/nissy/kipple-sub002/internal/history"
)

// AddCmd implements the 'add' command.
type AddCmd struct {
	Text   []string `arg:"" optional:"" help:"Entry content; reads stdin when omitted"`
	Pin    bool     `help:"Pin the entry after adding"`
	Kind   string   `help:"Override kind classification (plain|url|code|html|markdown)"`
	Source string   `help:"Source application to record"`
}

func (a *AddCmd) Run(g *Global, root *CLI) error {
	content := strings.Join(a.Text, " ")
	if content == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		content = string(data)
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("nothing to add")
	}

	kind, err := parseKind(a.Kind)
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, _, closer, err := openStore(ctx, root.Config)
	if err != nil {
		return err
	}
	defer closer()

	entry := clip.New(content)
	entry.SourceApp = a.Source
	if kind != "" {
		entry.Kind = kind
	}

	if err := store.ApplyChanges(ctx, backend.ChangeSet{Inserted: []clip.Entry{entry}}); err != nil {
		return fmt.Errorf("add entry: %w", err)
	}

	if a.Pin {
		outcome, err := store.SetPinned(ctx, entry.ID, true)
		if err != nil {
			return fmt.Errorf("pin entry: %w", err)
		}
		if outcome == history.PinLimitReached {
			fmt.Fprintf(g.out(), "added %s (pin limit reached, entry left unpinned)\n", entry.ID)
			return nil
		}
		fmt.Fprintf(g.out(), "added %s (pinned)\n", entry.ID)
		return nil
	}
	fmt.Fprintf(g.out(), "added %s\n", entry.ID)
	return nil
}

func parseKind(s string) (clip.Kind, error) {
	switch clip.Kind(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return "", nil
	case clip.KindPlain:
		return clip.KindPlain, nil
	case clip.KindURL:
		return clip.KindURL, nil
	case clip.KindCode:
		return clip.KindCode, nil
	case clip.KindHTML:
		return clip.KindHTML, nil
	case clip.KindMarkdown:
		return clip.KindMarkdown, nil
	default:
		return "", fmt.Errorf("unknown kind %q", s)
	}
}
