package blogapp

// Command is one operator action parsed from the CLI. Each implementation
// carries its own options; Parse builds it and Main routes it to the
// matching App method.
type Command interface {
	// Name returns the CLI subcommand this command was parsed from.
	Name() string
}

// SetupCommand runs schema migration on both stores.
type SetupCommand struct{}

func (c *SetupCommand) Name() string { return "setup" }

// MigrateCommand runs one bulk migration from the primary into the
// secondary and prints the report.
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string { return "migrate" }

// ReconcileCommand repairs divergent entities recorded in the ledger.
type ReconcileCommand struct {
	// Since bounds the sweep to outcomes recorded at or after this RFC3339
	// time. Empty sweeps the full ledger.
	Since string
}

func (c *ReconcileCommand) Name() string { return "reconcile" }

// PhaseCommand shows or changes the migration phase.
type PhaseCommand struct {
	// Action is one of "show", "advance", "rollback".
	Action string

	// Target is the phase name for advance and rollback.
	Target string
}

func (c *PhaseCommand) Name() string { return "phase" }

// StatsCommand prints both stores' entity counts and the ledger summary.
type StatsCommand struct{}

func (c *StatsCommand) Name() string { return "stats" }

// RetireCommand drops the primary's blog tables after cutover.
type RetireCommand struct {
	// Confirm must be the literal string "primary". Destroying a store
	// takes more than a subcommand.
	Confirm string
}

func (c *RetireCommand) Name() string { return "retire" }
