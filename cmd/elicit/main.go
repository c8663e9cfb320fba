package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
)

// version is set by goreleaser at build time.
var version = "dev"

// CLI is the root command model and its global flags.
type CLI struct {
	Dir     string           `short:"C" help:"Directory holding elicit.yml and .env" default:"." type:"existingdir"`
	Verbose bool             `short:"v" help:"Enable debug logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Generate  GenerateCmd  `cmd:"" help:"Run a project's generation pipeline and follow its progress"`
	Status    StatusCmd    `cmd:"" help:"Show the latest recorded run of a project's pipeline"`
	History   HistoryCmd   `cmd:"" help:"List a project's recorded runs, newest first"`
	Export    ExportCmd    `cmd:"" help:"Export generated stories and the run summary"`
	Clusters  ClustersCmd  `cmd:"" help:"Index and show a project's AI story clusters"`
	Project   ProjectCmd   `cmd:"" help:"Create, inspect and configure projects"`
	Blacklist BlacklistCmd `cmd:"" help:"Hide projects from generation and analytics"`
	Analytics AnalyticsCmd `cmd:"" help:"Show backend analytics"`
	Serve     ServeCmd     `cmd:"" help:"Serve the run API with scheduled generation"`
	ServeMCP  ServeMCPCmd  `cmd:"" name:"serve-mcp" help:"Serve the generation tools over MCP"`
}

// AfterApply runs after flag parsing; set up logging once.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("elicit"),
		kong.Description("Multisource requirements elicitation: collect, generate and track user stories."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)
	ctx.FatalIfErrorf(ctx.Run(&cli))
}
