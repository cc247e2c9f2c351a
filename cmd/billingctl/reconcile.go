package main

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/google/uuid"
	paymentapp "github.com/rentalops/backend/internal/application/payment"
	"github.com/rentalops/backend/internal/domain/billing"
	"github.com/rentalops/backend/internal/infrastructure/persistence"
	"github.com/spf13/cobra"
	"golang.org/x/text/message"
)

func newReconcileCommand(e *env) *cobra.Command {
	var period string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute paid amounts, statuses and receipts for a project's invoices",
		Long: `Recompute every invoice of a project from its verified payments.
Each invoice is reconciled in its own transaction, so one failure does not
stop the batch. Running it twice changes nothing the second time.`,
		Example: `  billingctl reconcile --project 7c1e...
  billingctl reconcile --project 7c1e... --period 2024-03`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if e.projectID == nil {
				return errors.New("--project is required")
			}
			var filter *billing.BillingPeriod
			if period != "" {
				p, err := billing.ParseBillingPeriod(period)
				if err != nil {
					return err
				}
				filter = &p
			}

			prefix := e.cfg.Billing.InvoiceNumberPrefix
			reconciler := paymentapp.NewReconciliationService(paymentapp.ReconciliationServiceConfig{
				TxScope: persistence.NewGormTransactionScope(e.db.DB, prefix),
				Logger:  e.log,
			})

			report, err := reconciler.RecomputeAll(cmd.Context(), *e.projectID, filter)
			if report != nil {
				writeRepairReport(cmd.OutOrStdout(), newPrinter(), report)
			}
			if err != nil {
				return err
			}
			if len(report.Failed) > 0 {
				return fmt.Errorf("%d invoice(s) could not be reconciled", len(report.Failed))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&period, "period", "", "Only reconcile invoices of this billing period (YYYY-MM)")
	return cmd
}

func writeRepairReport(w io.Writer, p *message.Printer, report *paymentapp.RepairReport) {
	p.Fprintf(w, "Checked:  %d\n", report.Checked)
	p.Fprintf(w, "Repaired: %d\n", report.Changed)
	p.Fprintf(w, "Failed:   %d\n", len(report.Failed))

	ids := make([]uuid.UUID, 0, len(report.Failed))
	for id := range report.Failed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	for _, id := range ids {
		p.Fprintf(w, "  %s: %v\n", id, report.Failed[id])
	}
}
