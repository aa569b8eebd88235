package payments

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"subgate/internal/billing"
	"subgate/internal/db"
	"subgate/internal/subscriptions"
	"subgate/internal/types"
)

// PgxExtensionStore implements ExtensionStore over a pgx pool. Each unit is
// one database transaction with the payment repository and the subscription
// lifecycle manager rebound to it, so the applied_at stamp and the window
// write land in the same commit.
type PgxExtensionStore struct {
	pool   *pgxpool.Pool
	plans  billing.Catalog
	logger *slog.Logger
}

// NewPgxExtensionStore creates a PgxExtensionStore.
func NewPgxExtensionStore(pool *pgxpool.Pool, plans billing.Catalog, logger *slog.Logger) *PgxExtensionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PgxExtensionStore{
		pool:   pool,
		plans:  plans,
		logger: logger,
	}
}

// Begin starts an extension transaction. The caller must Commit or Rollback.
func (s *PgxExtensionStore) Begin(ctx context.Context) (ExtensionTx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to begin extension transaction", err)
	}
	return &pgxExtensionTx{
		tx:       tx,
		payments: db.NewPaymentRepository(tx),
		subs:     subscriptions.NewService(db.NewSubscriptionRepository(tx), s.plans, s.logger),
	}, nil
}

type pgxExtensionTx struct {
	tx       pgx.Tx
	payments *db.PaymentRepository
	subs     *subscriptions.Service
}

func (t *pgxExtensionTx) MarkApplied(ctx context.Context, id string, appliedAt time.Time) (bool, error) {
	return t.payments.MarkApplied(ctx, id, appliedAt)
}

func (t *pgxExtensionTx) ApplyPayment(ctx context.Context, userID int64, planID types.PlanID, paymentID string) (*types.Subscription, error) {
	return t.subs.ApplyPayment(ctx, userID, planID, paymentID)
}

func (t *pgxExtensionTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to commit extension transaction", err)
	}
	return nil
}

// Rollback discards the transaction. Safe to call after Commit (no-op).
func (t *pgxExtensionTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to roll back extension transaction", err)
	}
	return nil
}
