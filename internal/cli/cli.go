package cli

import (
	"errors"
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Serve  *ServeCommand
	Status *StatusCommand
	Report *ReportCommand
	Export *ExportCommand
	Prune  *PruneCommand
	Purge  *PurgeCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	parser, globals, cmds, _ := buildParserWithEnv(version)
	return parser, globals, cmds
}

func buildParserWithEnv(version string) (*goflags.Parser, *GlobalFlags, *commands, *env) {
	var globals GlobalFlags
	e := newEnv(&globals, version)

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "domaintime"
	parser.LongDescription = "Local, private record of how much foreground browsing time goes to each domain."

	cmds := &commands{
		Serve:  &ServeCommand{env: e},
		Status: &StatusCommand{env: e},
		Report: &ReportCommand{env: e},
		Export: &ExportCommand{env: e},
		Prune:  &PruneCommand{env: e},
		Purge:  &PurgeCommand{env: e},
	}

	parser.AddCommand("serve", "Run the tracker daemon", "Run the tracker and its local HTTP daemon until interrupted.", cmds.Serve)
	parser.AddCommand("status", "Show store statistics and the live session", "Show accrued totals, top domains, and the session the daemon is timing.", cmds.Status)
	parser.AddCommand("report", "Show time per domain over a range", "Show per-day rows and per-domain totals for today, all days, or the last N days.", cmds.Report)
	parser.AddCommand("export", "Export a range as CSV", "Write detailed (date, domain, seconds) and aggregate (domain, seconds) CSV files.", cmds.Export)
	parser.AddCommand("prune", "Delete old day buckets", "Delete day buckets older than the retention window.", cmds.Prune)
	parser.AddCommand("purge", "Delete ALL accrued data", "Delete ALL accrued data. Destructive operation with safety prompt.", cmds.Purge)

	return parser, &globals, cmds, e
}

// Run executes the CLI against os.Args.
func Run(version string) error {
	return RunWithArgs(version, os.Args[1:])
}

// RunWithArgs parses args and executes the matched subcommand. A bare help
// request is not an error.
func RunWithArgs(version string, args []string) error {
	if wantsVersion(args) {
		fmt.Printf("domaintime %s\n", version)
		return nil
	}

	parser, _, _ := buildParser(version)
	_, err := parser.ParseArgs(args)

	var flagsErr *goflags.Error
	if errors.As(err, &flagsErr) && flagsErr.Type == goflags.ErrHelp {
		return nil
	}
	return err
}

// wantsVersion reports whether --version appears before any "--". go-flags
// insists on a subcommand, so the flag is handled ahead of parsing.
func wantsVersion(args []string) bool {
	for _, arg := range args {
		switch arg {
		case "--version":
			return true
		case "--":
			return false
		}
	}
	return false
}
