package blogapp

import (
	"flag"
	"fmt"
	"time"
)

// Parse parses CLI arguments into the command to execute and the
// application configuration. Configuration starts from the environment
// (see [LoadConfig]); flags override it. The subcommand and its positional
// arguments follow the flags.
func Parse(args []string) (Command, *Config, error) {
	flagSet := flag.NewFlagSet("blogapp", flag.ContinueOnError)

	var (
		memoryOnly = flagSet.Bool("memory-only", false, "Use two in-memory stores instead of PostgreSQL and SurrealDB")
		phase      = flagSet.String("phase", "", "Override the starting migration phase")
		timeout    = flagSet.Duration("backend-timeout", 0, "Override the per-call backend timeout")
		workers    = flagSet.Int("migrate-workers", 0, "Override the bulk migration worker count")
		pretty     = flagSet.Bool("pretty", false, "Human-readable log output")
		since      = flagSet.String("since", "", "reconcile: only repair divergence recorded at or after this RFC3339 time")
		confirm    = flagSet.String("confirm", "", `retire: must be the literal string "primary"`)
	)

	if err := flagSet.Parse(args); err != nil {
		return nil, nil, err
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		return nil, nil, fmt.Errorf(`subcommand required

Usage: blogapp [flags] <command>

Commands:
  setup      Create or update the schema on both stores
  migrate    Copy all posts and comments from the primary into the secondary
  reconcile  Repair entities the ledger reports divergent
  phase      Show or change the migration phase (show | advance <phase> | rollback <phase>)
  stats      Print both stores' entity counts and the ledger summary
  retire     Drop the primary's blog tables (secondary_only phase, -confirm primary)

Phases, in cutover order:
  dual_write_primary_read    writes to both stores, reads from the primary
  dual_write_secondary_read  writes to both stores, reads from the secondary
  secondary_only             the secondary serves alone

Examples:
  blogapp setup
  blogapp migrate
  blogapp -migrate-workers 8 migrate
  blogapp phase show
  blogapp phase advance dual_write_secondary_read
  blogapp phase rollback dual_write_primary_read
  blogapp -since 2026-08-01T00:00:00Z reconcile
  blogapp -confirm primary retire
  blogapp -memory-only -pretty migrate`)
	}

	cfg, err := LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	if *memoryOnly {
		cfg.MemoryOnly = true
	}
	if *phase != "" {
		cfg.Phase = *phase
	}
	if *timeout > 0 {
		cfg.BackendTimeout = *timeout
	}
	if *workers > 0 {
		cfg.MigrateWorkers = *workers
	}
	if *pretty {
		cfg.PrettyLogs = true
	}

	var cmd Command
	switch rest[0] {
	case "setup":
		cmd = &SetupCommand{}
	case "migrate":
		cmd = &MigrateCommand{}
	case "reconcile":
		cmd = &ReconcileCommand{Since: *since}
	case "phase":
		action := "show"
		if len(rest) > 1 {
			action = rest[1]
		}
		pc := &PhaseCommand{Action: action}
		switch action {
		case "show":
		case "advance", "rollback":
			if len(rest) < 3 {
				return nil, nil, fmt.Errorf("phase %s requires a target phase name", action)
			}
			pc.Target = rest[2]
		default:
			return nil, nil, fmt.Errorf("unknown phase action: %s (must be show, advance or rollback)", action)
		}
		cmd = pc
	case "stats":
		cmd = &StatsCommand{}
	case "retire":
		cmd = &RetireCommand{Confirm: *confirm}
	default:
		return nil, nil, fmt.Errorf("unknown command: %s\n\nValid commands: setup, migrate, reconcile, phase, stats, retire", rest[0])
	}

	return cmd, cfg, nil
}

// ParseTime parses an RFC3339 timestamp, returning fallback when s is empty.
func ParseTime(s string, fallback time.Time) (time.Time, error) {
	if s == "" {
		return fallback, nil
	}
	return time.Parse(time.RFC3339, s)
}
