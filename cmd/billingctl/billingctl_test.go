package main

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	paymentapp "github.com/rentalops/backend/internal/application/payment"
	"github.com/rentalops/backend/internal/domain/report"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoney_GroupsThousands(t *testing.T) {
	p := newPrinter()
	assert.Equal(t, "1,234,567.50", money(p, decimal.RequireFromString("1234567.5")))
	assert.Equal(t, "0.00", money(p, decimal.Zero))
}

func TestWriteSummary(t *testing.T) {
	s := &report.Summary{
		Periods: []report.PeriodSummary{{
			Period:           "2024-03",
			InvoiceCount:     2,
			TotalInvoiced:    decimal.NewFromInt(17100),
			TotalPaid:        decimal.NewFromInt(8550),
			TotalOutstanding: decimal.NewFromInt(8550),
			OverdueAmount:    decimal.Zero,
			CollectionRate:   50,
			MissingPayments: []report.MissingPayment{{
				InvoiceNumber: "INV-202403-0002",
				TotalAmount:   decimal.NewFromInt(8550),
				DueDate:       time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
			}},
			PotentialDuplicates: []report.PotentialDuplicate{{
				InvoiceNumber: "INV-202403-0001",
				TotalAmount:   decimal.NewFromInt(8550),
				PaidAmount:    decimal.NewFromInt(17100),
				OverpaidBy:    decimal.NewFromInt(8550),
			}},
		}},
		Overall: report.OverallSummary{
			InvoiceCount:          2,
			TotalInvoiced:         decimal.NewFromInt(17100),
			TotalRevenue:          decimal.NewFromInt(8550),
			TotalOutstanding:      decimal.NewFromInt(8550),
			AverageCollectionRate: 50,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, writeSummary(&buf, newPrinter(), s))

	out := buf.String()
	assert.Contains(t, out, "2024-03")
	assert.Contains(t, out, "17,100.00")
	assert.Contains(t, out, "50.0")
	assert.Contains(t, out, "missing payment  2024-03  INV-202403-0002  8,550.00  due 2024-03-05")
	assert.Contains(t, out, "paid 17,100.00 of 8,550.00 (+8,550.00)")
}

func TestWriteRepairReport(t *testing.T) {
	failed := uuid.New()
	var buf bytes.Buffer
	writeRepairReport(&buf, newPrinter(), &paymentapp.RepairReport{
		Checked: 1200,
		Changed: 3,
		Failed:  map[uuid.UUID]error{failed: errors.New("lock timeout")},
	})

	out := buf.String()
	assert.Contains(t, out, "Checked:  1,200")
	assert.Contains(t, out, "Repaired: 3")
	assert.Contains(t, out, failed.String()+": lock timeout")
}

func TestRootCommand_RejectsMalformedProject(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"summary", "--project", "not-a-uuid"})
	root.SetOut(&bytes.Buffer{})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--project")
}

func TestRootCommand_SummaryInvalidateIsRegistered(t *testing.T) {
	root := newRootCommand()

	cmd, _, err := root.Find([]string{"summary", "invalidate"})
	require.NoError(t, err)
	assert.Equal(t, "invalidate", cmd.Name())
	assert.NotNil(t, cmd.RunE)
}
