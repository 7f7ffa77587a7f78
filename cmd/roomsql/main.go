// Command roomsql resolves SQL references against declared entities and
// rewrites statement parameters.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/arkilian/roomsql/internal/app"
	"github.com/arkilian/roomsql/internal/config"
	"github.com/arkilian/roomsql/internal/logging"
)

var (
	version = "dev"
	commit  = "unknown"
)

// CLI defines the command-line interface for roomsql.
type CLI struct {
	// Global flags
	Config   string   `name:"config" short:"c" help:"Path to configuration file (YAML or JSON)" type:"path"`
	Decl     []string `name:"decl" short:"d" help:"Declaration file, directory or glob (repeatable)"`
	LogLevel string   `name:"log-level" help:"Log level: debug, info, warn, error"`

	Schema       SchemaCmd       `cmd:"" help:"Print the current schema or export it"`
	Exports      ExportsGroup    `cmd:"" help:"Stored schema exports"`
	Table        TableCmd        `cmd:"" help:"Resolve a table name"`
	Column       ColumnCmd       `cmd:"" help:"Resolve a column identifier within a table"`
	Refs         RefsCmd         `cmd:"" help:"Resolve every table and column reference of a statement"`
	Rewrite      RewriteCmd      `cmd:"" help:"Rewrite parameters to positional form"`
	Inline       InlineCmd       `cmd:"" help:"Substitute literal values for the parameters of a statement"`
	NeedsBinding NeedsBindingCmd `cmd:"" help:"Report whether a statement contains bind parameters"`
	Exec         ExecCmd         `cmd:"" help:"Run a statement against SQLite"`
	Stats        StatsCmd        `cmd:"" help:"Report the columns a set of statements filter on"`
	Version      VersionCmd      `cmd:"" help:"Print version information"`
}

// env is bound into every command's Run method.
type env struct {
	ctx context.Context
	app *app.App
	out io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "roomsql: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("roomsql"),
		kong.Description("Schema resolution and parameter rewriting for Room-style SQL"),
		kong.Writers(stdout, stderr),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	if err != nil {
		return err
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	if kctx.Command() == "version" {
		return kctx.Run(&env{ctx: ctx, out: stdout})
	}

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	if len(cli.Decl) > 0 {
		cfg.Declarations.Paths = cli.Decl
	}
	if cli.LogLevel != "" {
		cfg.Log.Level = cli.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := a.Stop(context.Background()); err != nil {
			logger.Warn("shutdown failed", zap.Error(err))
		}
	}()

	return kctx.Run(&env{ctx: ctx, app: a, out: stdout})
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(e *env) error {
	fmt.Fprintf(e.out, "roomsql version %s (commit: %s)\n", version, commit)
	return nil
}
