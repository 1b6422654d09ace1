package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"pos_ledger/internal/config"
)

type migrateCmd struct {
	cfg *config.Config
}

func (*migrateCmd) Name() string { return "migrate" }
func (*migrateCmd) Synopsis() string {
	return "copies the legacy Sales and Transactions tables into monthly partitions"
}
func (*migrateCmd) Usage() string {
	return `pos migrate

  Reads the flat Sales and Transactions tables and appends every row to the
  partition of its date (for example Sales_02_2026), skipping ids the
  partition already holds. Rows with an invalid date are skipped and counted.
  Safe to re-run.
`
}

func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (p *migrateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	deps, cleanup, err := setup(p.cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer cleanup()

	report, err := deps.Migrator.Migrate(ctx)
	for _, t := range report.Tables {
		if t.Missing {
			fmt.Fprintf(os.Stderr, "%s: no legacy table\n", t.Table)
			continue
		}
		fmt.Fprintf(os.Stderr, "%s: read %d, appended %d, already present %d, skipped %d\n",
			t.Table, t.Read, t.Appended, t.Duplicates, t.Skipped)
		for name, n := range t.Partitions {
			fmt.Fprintf(os.Stderr, "  %s +%d\n", name, n)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: migration stopped: %v\nRe-run to continue.\n", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(os.Stderr, "Migration finished: %d rows appended, %d skipped.\n", report.Appended(), report.Skipped())
	return subcommands.ExitSuccess
}
