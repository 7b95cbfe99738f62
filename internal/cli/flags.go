package cli

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file" default:""`
	DBPath  string `long:"db-path" description:"Override the database path"`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable verbose output"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// ServeCommand: run the tracker and its local HTTP daemon.
type ServeCommand struct {
	Host     string `long:"host" description:"Override daemon host"`
	Port     int    `long:"port" description:"Override daemon port"`
	LogLevel string `long:"log-level" description:"Override log level"`

	env *env
}

// StatusCommand: show store statistics and the live session.
type StatusCommand struct {
	env *env
}

// ReportCommand: per-day and per-domain time over a range.
type ReportCommand struct {
	Range  string `long:"range" description:"today | all | N (last N days)" default:"today"`
	NoLive bool   `long:"no-live" description:"Do not merge the running session from the daemon"`

	env *env
}

// ExportCommand: write the detailed and aggregate CSV files for a range.
type ExportCommand struct {
	Range  string `long:"range" description:"today | all | N (last N days)" default:"all"`
	OutDir string `long:"out-dir" description:"Directory to write CSV files into" default:"."`

	env *env
}

// PruneCommand: delete day buckets older than the retention window.
type PruneCommand struct {
	OlderThan string `long:"older-than" description:"Override retention period (e.g., 30d, 8w)"`
	DryRun    bool   `long:"dry-run" description:"Show what would be pruned without deleting"`

	env *env
}

// PurgeCommand: delete ALL accrued data with safety confirmation.
type PurgeCommand struct {
	All   bool `long:"all" description:"Required flag to confirm purge intent"`
	Force bool `long:"force" description:"Skip safety confirmation prompt"`

	env *env
}
