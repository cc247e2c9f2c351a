package payment

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rentalops/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestPayment(t *testing.T, amount string) *Payment {
	t.Helper()
	p, err := NewPayment(NewPaymentParams{
		ProjectID: uuid.New(),
		InvoiceID: uuid.New(),
		TenantID:  uuid.New(),
		Amount:    dec(amount),
		Method:    MethodBankTransfer,
	})
	require.NoError(t, err)
	return p
}

func TestNewPayment(t *testing.T) {
	p := newTestPayment(t, "8550")

	assert.Equal(t, StatusPending, p.Status)
	assert.NotEqual(t, uuid.Nil, p.ID)
	require.Len(t, p.GetDomainEvents(), 1)
	assert.Equal(t, EventTypePaymentRecorded, p.GetDomainEvents()[0].EventType())
}

func TestNewPayment_UsesPreassignedID(t *testing.T) {
	id := uuid.New()
	p, err := NewPayment(NewPaymentParams{
		ID:        id,
		ProjectID: uuid.New(),
		InvoiceID: uuid.New(),
		Amount:    dec("10"),
		Method:    MethodCash,
	})
	require.NoError(t, err)
	assert.Equal(t, id, p.ID)
}

func TestNewPayment_Validation(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		method Method
		code   string
	}{
		{"zero amount", "0", MethodCash, shared.CodeInvalidAmount},
		{"negative amount", "-1", MethodCash, shared.CodeInvalidAmount},
		{"unknown method", "100", Method("BITCOIN"), shared.CodeInvalidMethod},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPayment(NewPaymentParams{
				ProjectID: uuid.New(),
				InvoiceID: uuid.New(),
				Amount:    dec(tt.amount),
				Method:    tt.method,
			})
			require.Error(t, err)
			assert.Equal(t, tt.code, shared.ErrorCode(err))
		})
	}
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod(" bank_transfer ")
	require.NoError(t, err)
	assert.Equal(t, MethodBankTransfer, m)

	_, err = ParseMethod("barter")
	assert.Equal(t, shared.CodeInvalidMethod, shared.ErrorCode(err))
}

func TestPayment_Verify(t *testing.T) {
	p := newTestPayment(t, "100")

	require.NoError(t, p.Verify(true))
	assert.Equal(t, StatusVerified, p.Status)
	assert.NotNil(t, p.VerifiedAt)
	assert.True(t, p.IsVerified())

	err := p.Verify(true)
	assert.Equal(t, shared.CodeInvalidState, shared.ErrorCode(err))
}

func TestPayment_RejectAfterVerification(t *testing.T) {
	p := newTestPayment(t, "100")
	require.NoError(t, p.Verify(true))

	require.NoError(t, p.Verify(false))
	assert.Equal(t, StatusRejected, p.Status)
	assert.False(t, p.IsVerified())

	assert.Equal(t, shared.CodeInvalidState, shared.ErrorCode(p.Verify(true)))
	assert.Equal(t, shared.CodeInvalidState, shared.ErrorCode(p.Verify(false)))
}

func TestPayment_Reject(t *testing.T) {
	p := newTestPayment(t, "100")
	p.ClearDomainEvents()

	require.NoError(t, p.Verify(false))
	assert.Equal(t, StatusRejected, p.Status)
	require.Len(t, p.GetDomainEvents(), 1)
	assert.Equal(t, EventTypePaymentRejected, p.GetDomainEvents()[0].EventType())
}

func TestPayment_AttachSlip(t *testing.T) {
	p := newTestPayment(t, "100")
	require.NoError(t, p.Verify(true))

	slip, err := p.AttachSlip("slips/p1/a.webp", SourceChatChannel)
	require.NoError(t, err)
	assert.Equal(t, p.ID, slip.PaymentID)
	assert.Equal(t, StatusVerified, p.Status, "attaching evidence must not change verification state")
	assert.Len(t, p.Slips, 1)

	_, err = p.AttachSlip("", SourceManual)
	assert.Error(t, err)
	_, err = p.AttachSlip("k", SlipSource("FAX"))
	assert.Equal(t, "INVALID_SOURCE", shared.ErrorCode(err))
}

func TestPayment_Apply(t *testing.T) {
	amt := func(s string) *decimal.Decimal { d := dec(s); return &d }
	st := func(s VerificationStatus) *VerificationStatus { return &s }
	ref := "TX-1"

	tests := []struct {
		name        string
		verified    bool
		update      Update
		wantAffects bool
		wantCode    string
	}{
		{"reference only", true, Update{TransferReference: &ref}, false, ""},
		{"amount on pending", false, Update{Amount: amt("50")}, false, ""},
		{"amount on verified", true, Update{Amount: amt("50")}, true, ""},
		{"same amount on verified", true, Update{Amount: amt("100")}, false, ""},
		{"pending to verified", false, Update{Status: st(StatusVerified)}, true, ""},
		{"verified to rejected", true, Update{Status: st(StatusRejected)}, true, ""},
		{"pending to rejected", false, Update{Status: st(StatusRejected)}, false, ""},
		{"invalid amount", true, Update{Amount: amt("0")}, false, shared.CodeInvalidAmount},
		{"invalid status", true, Update{Status: st("LOST")}, false, "INVALID_STATUS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPayment(t, "100")
			if tt.verified {
				require.NoError(t, p.Verify(true))
			}

			affects, err := p.Apply(tt.update)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, shared.ErrorCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAffects, affects)
		})
	}
}

func TestPayment_ApplyFollowsReviewTransitions(t *testing.T) {
	st := func(s VerificationStatus) *VerificationStatus { return &s }

	tests := []struct {
		name     string
		reviewed *bool
		next     VerificationStatus
		wantErr  bool
	}{
		{"rejected to verified", boolPtr(false), StatusVerified, true},
		{"rejected to pending", boolPtr(false), StatusPending, true},
		{"rejected unchanged", boolPtr(false), StatusRejected, false},
		{"verified to pending", boolPtr(true), StatusPending, false},
		{"pending to verified", nil, StatusVerified, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPayment(t, "100")
			if tt.reviewed != nil {
				require.NoError(t, p.Verify(*tt.reviewed))
			}
			before := p.Status

			_, err := p.Apply(Update{Status: st(tt.next)})
			if tt.wantErr {
				assert.Equal(t, shared.CodeInvalidState, shared.ErrorCode(err))
				assert.Equal(t, before, p.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.next, p.Status)
		})
	}
}

func TestPayment_RaisesVerified(t *testing.T) {
	amt := func(s string) *decimal.Decimal { d := dec(s); return &d }
	st := func(s VerificationStatus) *VerificationStatus { return &s }

	tests := []struct {
		name     string
		verified bool
		update   Update
		want     bool
	}{
		{"approve pending", false, Update{Status: st(StatusVerified)}, true},
		{"raise verified amount", true, Update{Amount: amt("150")}, true},
		{"lower verified amount", true, Update{Amount: amt("50")}, false},
		{"reject verified", true, Update{Status: st(StatusRejected), Amount: amt("150")}, false},
		{"raise pending amount", false, Update{Amount: amt("150")}, false},
		{"notes only", true, Update{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPayment(t, "100")
			if tt.verified {
				require.NoError(t, p.Verify(true))
			}
			assert.Equal(t, tt.want, p.RaisesVerified(tt.update))
		})
	}
}

func boolPtr(b bool) *bool { return &b }

func TestPayment_ApplyResetToPendingClearsVerifiedAt(t *testing.T) {
	p := newTestPayment(t, "100")
	require.NoError(t, p.Verify(true))
	pending := StatusPending
	paidAt := time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)

	_, err := p.Apply(Update{Status: &pending, PaidAt: &paidAt})
	require.NoError(t, err)
	assert.Nil(t, p.VerifiedAt)
	assert.Equal(t, paidAt, *p.PaidAt)
}

func TestPayment_MarkDeletedCarriesSlipKeys(t *testing.T) {
	p := newTestPayment(t, "100")
	_, err := p.AttachSlip("slips/a.webp", SourceManual)
	require.NoError(t, err)
	p.ClearDomainEvents()

	p.MarkDeleted()

	require.Len(t, p.GetDomainEvents(), 1)
	evt := p.GetDomainEvents()[0].(*PaymentDeletedEvent)
	assert.Equal(t, []string{"slips/a.webp"}, evt.SlipKeys)
}
