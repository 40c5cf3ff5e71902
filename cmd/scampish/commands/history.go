package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/scampish/internal/eventstore"
	ferrors "git.home.luguber.info/inful/scampish/internal/foundation/errors"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	RunID string `name:"run" help:"Show a single run by ID"`
	Limit int    `help:"Maximum number of runs to list" default:"20"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	if cfg.Ledger.Path == "" {
		return ferrors.ConfigError("no run ledger configured").
			WithContext("key", "ledger.path").
			Build()
	}

	ledger, closeLedger, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer closeLedger()

	projection := eventstore.NewRunHistoryProjection(ledger, h.Limit)
	if err := projection.Rebuild(g.Context); err != nil {
		return err
	}

	var runs []eventstore.RunSummary
	if h.RunID != "" {
		run, ok := projection.Run(h.RunID)
		if !ok {
			return ferrors.NotFoundError("run not found").WithContext("run_id", h.RunID).Build()
		}
		runs = append(runs, run)
	} else {
		if active, ok := projection.Active(); ok {
			runs = append(runs, active)
		}
		runs = append(runs, projection.History()...)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RUN\tSTATUS\tTARGET\tBUCKET\tSTARTED\tDURATION\tPAGES\tASSETS\tERROR")
	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			r.RunID, r.Status, r.Target, r.DestBucket,
			r.StartedAt.Local().Format(time.DateTime), r.Duration.Round(time.Millisecond),
			r.Pages, r.Assets, errorColumn(r))
	}
	return w.Flush()
}

func errorColumn(r eventstore.RunSummary) string {
	if r.ErrorMessage == "" {
		return "-"
	}
	return r.ErrorStage + ": " + r.ErrorMessage
}
