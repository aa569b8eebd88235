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

func testSubscription() *types.Subscription {
	return &types.Subscription{
		UserID:        42,
		PlanID:        types.PlanBasic,
		PlanName:      "Базовый тариф",
		Price:         999,
		StartDate:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		Status:        types.SubStatusActive,
		AutoRenewal:   true,
		LastPaymentID: "pay_1",
	}
}

func TestSubscriptionRepository_Get_NotFound(t *testing.T) {
	dbtx := new(mockDBTX)
	repo := NewSubscriptionRepository(dbtx)

	dbtx.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	_, err := repo.Get(context.Background(), 42)
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeNotFoundSubscription, types.CodeOf(err))
}

func TestSubscriptionRepository_Get_DBError(t *testing.T) {
	dbtx := new(mockDBTX)
	repo := NewSubscriptionRepository(dbtx)

	dbtx.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: errors.New("connection refused")})

	_, err := repo.Get(context.Background(), 42)
	require.Error(t, err)
	// A store failure must never read as "no subscription".
	assert.Equal(t, types.ErrCodeInternalDB, types.CodeOf(err))
}

func TestSubscriptionRepository_Insert_Created(t *testing.T) {
	dbtx := new(mockDBTX)
	repo := NewSubscriptionRepository(dbtx)

	dbtx.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	inserted, err := repo.Insert(context.Background(), testSubscription())
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestSubscriptionRepository_Insert_LostRace(t *testing.T) {
	dbtx := new(mockDBTX)
	repo := NewSubscriptionRepository(dbtx)

	dbtx.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 0"), nil)

	inserted, err := repo.Insert(context.Background(), testSubscription())
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestSubscriptionRepository_Replace_GuardHolds(t *testing.T) {
	dbtx := new(mockDBTX)
	repo := NewSubscriptionRepository(dbtx)

	sub := testSubscription()
	dbtx.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	replaced, err := repo.Replace(context.Background(), sub,
		sub.EndDate.AddDate(0, 0, -30), types.SubStatusActive)
	require.NoError(t, err)
	assert.True(t, replaced)
}

func TestSubscriptionRepository_Replace_GuardFails(t *testing.T) {
	dbtx := new(mockDBTX)
	repo := NewSubscriptionRepository(dbtx)

	sub := testSubscription()
	dbtx.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	replaced, err := repo.Replace(context.Background(), sub,
		sub.EndDate, types.SubStatusActive)
	require.NoError(t, err)
	assert.False(t, replaced)
}

func TestSubscriptionRepository_CancelActive_NothingActive(t *testing.T) {
	dbtx := new(mockDBTX)
	repo := NewSubscriptionRepository(dbtx)

	dbtx.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	canceled, err := repo.CancelActive(context.Background(), 42)
	require.NoError(t, err)
	assert.False(t, canceled)
}

func TestSubscriptionRepository_ExpireDue(t *testing.T) {
	dbtx := new(mockDBTX)
	repo := NewSubscriptionRepository(dbtx)

	dbtx.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 3"), nil)

	n, err := repo.ExpireDue(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
