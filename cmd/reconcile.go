package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"pos_ledger/internal/config"
	"pos_ledger/internal/sales"
)

type reconcileCmd struct {
	cfg *config.Config
	id  string
}

func (*reconcileCmd) Name() string { return "reconcile" }
func (*reconcileCmd) Synopsis() string {
	return "finishes checkouts that stopped after the sale was recorded"
}
func (*reconcileCmd) Usage() string {
	return `pos reconcile [-id <checkout_id>]

  Replays the missing stock adjustments and income transaction of checkouts
  left in the journal as pending or needs_reconciliation. Without -id every
  such checkout is retried.
`
}

func (p *reconcileCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.id, "id", "", "Checkout id to resume. Resumes all pending checkouts by default.")
}

func (p *reconcileCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	deps, cleanup, err := setup(p.cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer cleanup()

	ids := []string{p.id}
	if p.id == "" {
		pending, err := deps.Checkout.Pending(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: could not list checkouts: %v\n", err)
			return subcommands.ExitFailure
		}
		ids = ids[:0]
		for _, rec := range pending {
			ids = append(ids, rec.ID)
		}
	}
	if len(ids) == 0 {
		fmt.Fprintf(os.Stderr, "Nothing to reconcile.\n")
		return subcommands.ExitSuccess
	}

	status := subcommands.ExitSuccess
	for _, id := range ids {
		sale, err := deps.Checkout.Resume(ctx, id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Checkout %s: %v\n", id, err)
			status = subcommands.ExitFailure
			continue
		}
		fmt.Fprintf(os.Stderr, "Checkout %s: sale %s reconciled.\n", id, saleID(sale))
	}
	return status
}

func saleID(s *sales.Sale) string {
	if s == nil {
		return "-"
	}
	return s.ID
}
