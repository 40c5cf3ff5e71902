package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/scampish/cmd/scampish/commands"
	"git.home.luguber.info/inful/scampish/internal/config"
	ferrors "git.home.luguber.info/inful/scampish/internal/foundation/errors"
	"git.home.luguber.info/inful/scampish/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("scampish"),
		kong.Description("Render a markdown content tree from a content store into a static site."),
		kong.UsageOnError(),
		kong.Vars{
			"version":     version.String(),
			"config_file": config.DefaultFile,
		},
	)

	global := &commands.Global{Logger: slog.Default(), Context: ctx}
	if err := parser.Run(global, cli); err != nil {
		stop()
		ferrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
	}
}
