package commands

import (
	"fmt"
	"time"

	"git.home.luguber.info/inful/scampish/internal/build"
	"git.home.luguber.info/inful/scampish/internal/store"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Bucket string `short:"b" help:"Source bucket (overrides store.bucket)"`
	Type   string `name:"type" short:"t" help:"Output target kind, e.g. staging or production (overrides target)"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}

	backend, err := store.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	opts, _, closeAll, err := serviceOptions(cfg, g.Logger)
	if err != nil {
		return err
	}
	defer closeAll()

	svc := build.NewService(cfg, backend, opts...)

	result, err := svc.Run(g.Context, build.Request{
		Input:   cfg.RunInput(b.Bucket, b.Type),
		Trigger: build.TriggerManual,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Published %d pages and %d assets to %s in %s (run %s)\n",
		result.Pages, result.Assets, result.DestBucket, result.Duration.Round(time.Millisecond), result.RunID)
	return nil
}
