package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"subgate/internal/types"
)

func TestPaymentRepository_Create_Success(t *testing.T) {
	dbtx := new(mockDBTX)
	repo := NewPaymentRepository(dbtx)

	dbtx.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	err := repo.Create(context.Background(), &types.Payment{
		ID:         "pay_1",
		ProviderID: "yk_123",
		UserID:     42,
		PlanID:     types.PlanBasic,
		Amount:     999,
		Status:     types.PaymentPending,
		CreatedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
	dbtx.AssertExpectations(t)
}

func TestPaymentRepository_Create_DBError(t *testing.T) {
	dbtx := new(mockDBTX)
	repo := NewPaymentRepository(dbtx)

	dbtx.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("connection refused"))

	err := repo.Create(context.Background(), &types.Payment{ID: "pay_1"})
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeInternalDB, types.CodeOf(err))
}

func TestPaymentRepository_GetByID_NotFound(t *testing.T) {
	dbtx := new(mockDBTX)
	repo := NewPaymentRepository(dbtx)

	dbtx.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	_, err := repo.GetByID(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeNotFoundPayment, types.CodeOf(err))
}

func TestPaymentRepository_GetByID_Success(t *testing.T) {
	dbtx := new(mockDBTX)
	repo := NewPaymentRepository(dbtx)

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	providerID := "yk_123"
	dbtx.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFn: func(dest ...any) error {
			*dest[0].(*string) = "pay_1"
			*dest[1].(**string) = &providerID
			*dest[2].(*int64) = 42
			*dest[3].(*types.PlanID) = types.PlanBasic
			*dest[4].(*int64) = 999
			*dest[5].(*types.PaymentStatus) = types.PaymentPending
			*dest[6].(*time.Time) = created
			return nil
		}})

	p, err := repo.GetByID(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, "pay_1", p.ID)
	assert.Equal(t, "yk_123", p.ProviderID)
	assert.Equal(t, int64(42), p.UserID)
	assert.Equal(t, types.PaymentPending, p.Status)
	assert.Nil(t, p.ConfirmedAt)
	assert.Nil(t, p.AppliedAt)
}

func TestPaymentRepository_MarkSucceeded_WinsTransition(t *testing.T) {
	dbtx := new(mockDBTX)
	repo := NewPaymentRepository(dbtx)

	dbtx.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	won, err := repo.MarkSucceeded(context.Background(), "pay_1", time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, won)
}

func TestPaymentRepository_MarkSucceeded_AlreadyTerminal(t *testing.T) {
	dbtx := new(mockDBTX)
	repo := NewPaymentRepository(dbtx)

	// The status guard rejected the update: the payment was not pending.
	dbtx.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	won, err := repo.MarkSucceeded(context.Background(), "pay_1", time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, won)
}

func TestPaymentRepository_MarkFailed_AlreadyTerminal(t *testing.T) {
	dbtx := new(mockDBTX)
	repo := NewPaymentRepository(dbtx)

	dbtx.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	won, err := repo.MarkFailed(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.False(t, won)
}

func TestPaymentRepository_MarkApplied_ClaimsStamp(t *testing.T) {
	dbtx := new(mockDBTX)
	repo := NewPaymentRepository(dbtx)

	dbtx.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	claimed, err := repo.MarkApplied(context.Background(), "pay_1", time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestPaymentRepository_MarkApplied_AlreadyStamped(t *testing.T) {
	dbtx := new(mockDBTX)
	repo := NewPaymentRepository(dbtx)

	// applied_at was already set: the caller lost the claim and must not run
	// the extension.
	dbtx.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	claimed, err := repo.MarkApplied(context.Background(), "pay_1", time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestPaymentRepository_ListUnapplied(t *testing.T) {
	dbtx := new(mockDBTX)
	repo := NewPaymentRepository(dbtx)

	confirmed := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	rows := &fakeRows{scans: []func(dest ...any) error{
		func(dest ...any) error {
			*dest[0].(*string) = "pay_1"
			*dest[2].(*int64) = 42
			*dest[3].(*types.PlanID) = types.PlanBasic
			*dest[4].(*int64) = 999
			*dest[5].(*types.PaymentStatus) = types.PaymentSucceeded
			*dest[6].(*time.Time) = confirmed
			*dest[7].(**time.Time) = &confirmed
			return nil
		},
	}}

	dbtx.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(rows, nil)

	out, err := repo.ListUnapplied(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "pay_1", out[0].ID)
	assert.Equal(t, types.PaymentSucceeded, out[0].Status)
	assert.Nil(t, out[0].AppliedAt)
}
