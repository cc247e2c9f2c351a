// Package report rolls invoices and their verified payments up into per-period collection statistics
// and flags collection anomalies.
package report

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rentalops/backend/internal/domain/billing"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// InvoiceSnapshot is the read-model row the aggregator folds over
type InvoiceSnapshot struct {
	InvoiceID            uuid.UUID
	InvoiceNumber        string
	ProjectID            uuid.UUID
	TenantID             uuid.UUID
	UnitID               uuid.UUID
	Period               billing.BillingPeriod
	DueDate              time.Time
	TotalAmount          decimal.Decimal
	PaidAmount           decimal.Decimal
	Status               billing.InvoiceStatus
	VerifiedPaymentCount int
}

// MissingPayment is an invoice with no verified payment at all
type MissingPayment struct {
	InvoiceID     uuid.UUID             `json:"invoice_id"`
	InvoiceNumber string                `json:"invoice_number"`
	TenantID      uuid.UUID             `json:"tenant_id"`
	UnitID        uuid.UUID             `json:"unit_id"`
	TotalAmount   decimal.Decimal       `json:"total_amount"`
	Status        billing.InvoiceStatus `json:"status"`
	DueDate       time.Time             `json:"due_date"`
}

// PotentialDuplicate is an invoice whose verified payments exceed its total
type PotentialDuplicate struct {
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	TenantID      uuid.UUID       `json:"tenant_id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	OverpaidBy    decimal.Decimal `json:"overpaid_by"`
}

// PeriodSummary holds the statistics of one billing period
type PeriodSummary struct {
	Period              string                        `json:"period"`
	InvoiceCount        int                           `json:"invoice_count"`
	TotalInvoiced       decimal.Decimal               `json:"total_invoiced"`
	TotalPaid           decimal.Decimal               `json:"total_paid"`
	TotalOutstanding    decimal.Decimal               `json:"total_outstanding"`
	OverdueAmount       decimal.Decimal               `json:"overdue_amount"`
	StatusCounts        map[billing.InvoiceStatus]int `json:"status_counts"`
	CollectionRate      float64                       `json:"collection_rate"`
	MissingPayments     []MissingPayment              `json:"missing_payments"`
	PotentialDuplicates []PotentialDuplicate          `json:"potential_duplicates"`
}

// OverallSummary aggregates every period in the selected window
type OverallSummary struct {
	PeriodCount           int             `json:"period_count"`
	InvoiceCount          int             `json:"invoice_count"`
	TotalInvoiced         decimal.Decimal `json:"total_invoiced"`
	TotalRevenue          decimal.Decimal `json:"total_revenue"`
	TotalOutstanding      decimal.Decimal `json:"total_outstanding"`
	OverdueAmount         decimal.Decimal `json:"overdue_amount"`
	OverdueCount          int             `json:"overdue_count"`
	MissingPaymentCount   int             `json:"missing_payment_count"`
	DuplicateCount        int             `json:"duplicate_count"`
	AverageCollectionRate float64         `json:"average_collection_rate"`
}

// Summary is the full aggregator output, periods in ascending order
type Summary struct {
	Periods []PeriodSummary `json:"periods"`
	Overall OverallSummary  `json:"overall"`
}

// CollectionRate returns paid/invoiced as a percentage rounded to one decimal, or 0 when nothing was invoiced
func CollectionRate(paid, invoiced decimal.Decimal) float64 {
	if !invoiced.IsPositive() {
		return 0
	}
	rate, _ := paid.Div(invoiced).Mul(hundred).Round(1).Float64()
	if rate < 0 {
		return 0
	}
	return rate
}

// periodAccumulator collects one period's running totals during the fold
type periodAccumulator struct {
	period        billing.BillingPeriod
	invoiceCount  int
	totalInvoiced decimal.Decimal
	totalPaid     decimal.Decimal
	overdue       decimal.Decimal
	statusCounts  map[billing.InvoiceStatus]int
	missing       []MissingPayment
	duplicates    []PotentialDuplicate
}

func newPeriodAccumulator(p billing.BillingPeriod) *periodAccumulator {
	return &periodAccumulator{
		period:        p,
		totalInvoiced: decimal.Zero,
		totalPaid:     decimal.Zero,
		overdue:       decimal.Zero,
		statusCounts:  make(map[billing.InvoiceStatus]int),
		missing:       []MissingPayment{},
		duplicates:    []PotentialDuplicate{},
	}
}

func (a *periodAccumulator) add(s InvoiceSnapshot) {
	a.invoiceCount++
	a.totalInvoiced = a.totalInvoiced.Add(s.TotalAmount)
	a.totalPaid = a.totalPaid.Add(s.PaidAmount)
	a.statusCounts[s.Status]++

	if s.Status == billing.InvoiceStatusOverdue {
		a.overdue = a.overdue.Add(outstanding(s))
	}
	if s.VerifiedPaymentCount == 0 && s.Status != billing.InvoiceStatusCancelled {
		a.missing = append(a.missing, MissingPayment{
			InvoiceID:     s.InvoiceID,
			InvoiceNumber: s.InvoiceNumber,
			TenantID:      s.TenantID,
			UnitID:        s.UnitID,
			TotalAmount:   s.TotalAmount,
			Status:        s.Status,
			DueDate:       s.DueDate,
		})
	}
	if s.PaidAmount.GreaterThan(s.TotalAmount) {
		a.duplicates = append(a.duplicates, PotentialDuplicate{
			InvoiceID:     s.InvoiceID,
			InvoiceNumber: s.InvoiceNumber,
			TenantID:      s.TenantID,
			TotalAmount:   s.TotalAmount,
			PaidAmount:    s.PaidAmount,
			OverpaidBy:    s.PaidAmount.Sub(s.TotalAmount),
		})
	}
}

func (a *periodAccumulator) summary() PeriodSummary {
	return PeriodSummary{
		Period:              a.period.String(),
		InvoiceCount:        a.invoiceCount,
		TotalInvoiced:       a.totalInvoiced,
		TotalPaid:           a.totalPaid,
		TotalOutstanding:    a.totalInvoiced.Sub(a.totalPaid),
		OverdueAmount:       a.overdue,
		StatusCounts:        a.statusCounts,
		CollectionRate:      CollectionRate(a.totalPaid, a.totalInvoiced),
		MissingPayments:     a.missing,
		PotentialDuplicates: a.duplicates,
	}
}

func outstanding(s InvoiceSnapshot) decimal.Decimal {
	out := s.TotalAmount.Sub(s.PaidAmount)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// Aggregate folds snapshots into per-period summaries and overall statistics in a single pass.
// Periods listed in window are always present, even when no invoice falls in them.
func Aggregate(snapshots []InvoiceSnapshot, window ...billing.BillingPeriod) Summary {
	acc := make(map[billing.BillingPeriod]*periodAccumulator)
	for _, p := range window {
		if _, ok := acc[p]; !ok {
			acc[p] = newPeriodAccumulator(p)
		}
	}

	overdueCount := 0
	for _, s := range snapshots {
		a, ok := acc[s.Period]
		if !ok {
			a = newPeriodAccumulator(s.Period)
			acc[s.Period] = a
		}
		a.add(s)
		if s.Status == billing.InvoiceStatusOverdue {
			overdueCount++
		}
	}

	periods := make([]billing.BillingPeriod, 0, len(acc))
	for p := range acc {
		periods = append(periods, p)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Before(periods[j]) })

	out := Summary{
		Periods: make([]PeriodSummary, 0, len(periods)),
		Overall: OverallSummary{
			TotalInvoiced:    decimal.Zero,
			TotalRevenue:     decimal.Zero,
			TotalOutstanding: decimal.Zero,
			OverdueAmount:    decimal.Zero,
			OverdueCount:     overdueCount,
		},
	}
	rateSum := 0.0
	for _, p := range periods {
		ps := acc[p].summary()
		out.Periods = append(out.Periods, ps)

		o := &out.Overall
		o.PeriodCount++
		o.InvoiceCount += ps.InvoiceCount
		o.TotalInvoiced = o.TotalInvoiced.Add(ps.TotalInvoiced)
		o.TotalRevenue = o.TotalRevenue.Add(ps.TotalPaid)
		o.TotalOutstanding = o.TotalOutstanding.Add(ps.TotalOutstanding)
		o.OverdueAmount = o.OverdueAmount.Add(ps.OverdueAmount)
		o.MissingPaymentCount += len(ps.MissingPayments)
		o.DuplicateCount += len(ps.PotentialDuplicates)
		rateSum += ps.CollectionRate
	}
	out.Overall.AverageCollectionRate = averageRate(rateSum, out.Overall.PeriodCount)
	return out
}

// averageRate is the unweighted mean of the period rates, rounded to one decimal
func averageRate(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	avg, _ := decimal.NewFromFloat(sum / float64(n)).Round(1).Float64()
	return avg
}

// PeriodRange lists every period from start to end inclusive. It returns nil if either bound is zero or start is after end.
func PeriodRange(start, end billing.BillingPeriod) []billing.BillingPeriod {
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return nil
	}
	var out []billing.BillingPeriod
	for p := start; !end.Before(p); p = p.Next() {
		out = append(out, p)
	}
	return out
}
