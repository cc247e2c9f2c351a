package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	reportapp "github.com/rentalops/backend/internal/application/report"
	"github.com/rentalops/backend/internal/domain/report"
	"github.com/rentalops/backend/internal/infrastructure/cache"
	"github.com/rentalops/backend/internal/infrastructure/persistence"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func newSummaryCommand(e *env) *cobra.Command {
	var (
		from   string
		to     string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print collection statistics per billing period",
		Long: `Print invoiced, paid and outstanding totals per billing period, with the
invoices that have no verified payment and those paid more than once over.
Without --project every project is included.`,
		Example: `  billingctl summary --from 2024-01 --to 2024-06
  billingctl summary --project 7c1e... --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc := reportapp.NewSummaryService(reportapp.SummaryServiceConfig{
				Source: persistence.NewGormSnapshotSource(e.db.DB),
				Logger: e.log,
			})
			summary, err := svc.GetSummary(cmd.Context(), reportapp.SummaryQuery{
				ProjectID:   e.projectID,
				StartPeriod: from,
				EndPeriod:   to,
			})
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}
			return writeSummary(cmd.OutOrStdout(), newPrinter(), summary)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "First billing period (YYYY-MM)")
	cmd.Flags().StringVar(&to, "to", "", "Last billing period (YYYY-MM)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the summary as JSON")
	cmd.AddCommand(newInvalidateCommand(e))
	return cmd
}

func newInvalidateCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate",
		Short: "Drop the server's cached collection summaries",
		Long: `Drop cached summaries after invoices change outside the ledger, for example
when the overdue schedule marks invoices OVERDUE. With --project only that
project's summaries and the cross-project ones are dropped; without it every
cached summary is. Requires the Redis cache the server uses.`,
		Example: `  billingctl summary invalidate
  billingctl summary invalidate --project 7c1e...`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if e.cfg.Redis.Host == "" {
				return errors.New("no Redis cache configured; the server keeps summaries in its own memory")
			}
			stores, err := cache.NewStoreFactory(e.cfg.Redis, cache.WithLogger(e.log)).CreateStores()
			if err != nil {
				return err
			}
			defer func() {
				if err := stores.Close(); err != nil {
					e.log.Warn("Error closing cache stores", zap.Error(err))
				}
			}()

			svc := reportapp.NewSummaryService(reportapp.SummaryServiceConfig{
				Source: persistence.NewGormSnapshotSource(e.db.DB),
				Cache:  stores.Summary,
				Logger: e.log,
			})
			if err := svc.Invalidate(cmd.Context(), e.projectID); err != nil {
				return err
			}
			scope := "all projects"
			if e.projectID != nil {
				scope = "project " + e.projectID.String()
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Summary cache invalidated for %s\n", scope)
			return err
		},
	}
}

func newPrinter() *message.Printer {
	return message.NewPrinter(language.English)
}

// money formats an amount with thousands separators and two decimals
func money(p *message.Printer, d decimal.Decimal) string {
	return p.Sprintf("%.2f", d.Round(2).InexactFloat64())
}

func writeSummary(w io.Writer, p *message.Printer, s *report.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	p.Fprintf(tw, "Period\tInvoices\tInvoiced\tPaid\tOutstanding\tOverdue\tRate %%\t\n")
	for _, ps := range s.Periods {
		p.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%.1f\t\n",
			ps.Period, ps.InvoiceCount,
			money(p, ps.TotalInvoiced), money(p, ps.TotalPaid),
			money(p, ps.TotalOutstanding), money(p, ps.OverdueAmount),
			ps.CollectionRate,
		)
	}
	o := s.Overall
	p.Fprintf(tw, "All\t%d\t%s\t%s\t%s\t%s\t%.1f\t\n",
		o.InvoiceCount,
		money(p, o.TotalInvoiced), money(p, o.TotalRevenue),
		money(p, o.TotalOutstanding), money(p, o.OverdueAmount),
		o.AverageCollectionRate,
	)
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, ps := range s.Periods {
		for _, m := range ps.MissingPayments {
			p.Fprintf(w, "missing payment  %s  %s  %s  due %s\n",
				ps.Period, m.InvoiceNumber, money(p, m.TotalAmount), m.DueDate.Format("2006-01-02"))
		}
		for _, d := range ps.PotentialDuplicates {
			p.Fprintf(w, "overpaid         %s  %s  paid %s of %s (+%s)\n",
				ps.Period, d.InvoiceNumber, money(p, d.PaidAmount), money(p, d.TotalAmount), money(p, d.OverpaidBy))
		}
	}
	return nil
}
