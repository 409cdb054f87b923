package blogapp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/Youssef-Hossam5/Blog-app/pkg/store/dualwrite"
)

// Main is the CLI entry point: parse arguments, wire the app, run one
// command. Callable from tests without building the binary.
func Main(ctx context.Context, args []string) error {
	cmd, cfg, err := Parse(args)
	if err != nil {
		return err
	}

	log := NewLogger(cfg)
	app, err := New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	defer app.Close()

	switch c := cmd.(type) {
	case *SetupCommand:
		return app.Setup(ctx)

	case *MigrateCommand:
		report, err := app.RunBulkMigration(ctx)
		if report != nil {
			printJSON(report)
		}
		return err

	case *ReconcileCommand:
		since, err := ParseTime(c.Since, time.Time{})
		if err != nil {
			return fmt.Errorf("invalid -since time: %w", err)
		}
		report, err := app.ReconcileDivergent(ctx, since)
		if report != nil {
			printJSON(report)
		}
		return err

	case *PhaseCommand:
		return runPhase(app, c)

	case *StatsCommand:
		stats, err := app.GetStoreStats(ctx)
		if err != nil {
			return err
		}
		ledger, err := app.LedgerStats(ctx)
		if err != nil {
			return err
		}
		printJSON(struct {
			Phase  dualwrite.Phase `json:"phase"`
			Stores *StoreStats     `json:"stores"`
			Ledger any             `json:"ledger"`
		}{app.GetMigrationPhase(), stats, ledger})
		return nil

	case *RetireCommand:
		if c.Confirm != "primary" {
			return fmt.Errorf(`retire drops the primary's blog tables; pass -confirm primary to proceed`)
		}
		return app.RetirePrimary(ctx)

	default:
		return fmt.Errorf("unhandled command: %s", cmd.Name())
	}
}

func runPhase(app *App, c *PhaseCommand) error {
	switch c.Action {
	case "show":
		fmt.Println(app.GetMigrationPhase())
		return nil
	case "advance":
		target, err := dualwrite.ParsePhase(c.Target)
		if err != nil {
			return err
		}
		if err := app.AdvanceMigrationPhase(target); err != nil {
			return err
		}
		fmt.Println(app.GetMigrationPhase())
		return nil
	case "rollback":
		target, err := dualwrite.ParsePhase(c.Target)
		if err != nil {
			return err
		}
		if err := app.RollbackMigrationPhase(target); err != nil {
			return err
		}
		fmt.Println(app.GetMigrationPhase())
		return nil
	default:
		return fmt.Errorf("unknown phase action: %s", c.Action)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
