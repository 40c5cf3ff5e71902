package commands

import (
	"path/filepath"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"git.home.luguber.info/inful/scampish/internal/build"
	"git.home.luguber.info/inful/scampish/internal/config"
	"git.home.luguber.info/inful/scampish/internal/daemon"
	"git.home.luguber.info/inful/scampish/internal/eventstore"
	"git.home.luguber.info/inful/scampish/internal/metrics"
	"git.home.luguber.info/inful/scampish/internal/store"
)

const historySize = 50

// DaemonCmd implements the 'daemon' command.
type DaemonCmd struct {
	Bucket string `short:"b" help:"Source bucket (overrides store.bucket)"`
	Type   string `name:"type" short:"t" help:"Output target kind (overrides target)"`
}

func (d *DaemonCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	input := cfg.RunInput(d.Bucket, d.Type)

	backend, err := store.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	opts, ledger, closeAll, err := serviceOptions(cfg, g.Logger)
	if err != nil {
		return err
	}
	defer closeAll()

	reg := prom.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	opts = append(opts, build.WithRecorder(metrics.NewPrometheusRecorder(reg)))

	var history *eventstore.RunHistoryProjection
	if ledger != nil {
		history = eventstore.NewRunHistoryProjection(ledger, historySize)
		if err := history.Rebuild(g.Context); err != nil {
			g.Logger.Warn("Failed to load run history", "error", err)
		}
	}

	var watchRoots []string
	if cfg.Daemon.Watch && cfg.Store.Backend == config.StoreBackendFS {
		watchRoots = []string{filepath.Join(cfg.Store.Root, input.SourceBucket)}
	} else if cfg.Daemon.Watch {
		g.Logger.Warn("Watching is only supported by the fs backend", "backend", cfg.Store.Backend)
	}

	dmn, err := daemon.New(cfg, build.NewService(cfg, backend, opts...), daemon.Options{
		Input:      input,
		WatchRoots: watchRoots,
		Registry:   reg,
		History:    history,
		Logger:     g.Logger,
	})
	if err != nil {
		return err
	}
	return dmn.Run(g.Context)
}
