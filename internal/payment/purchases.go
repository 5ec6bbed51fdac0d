package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	dbgen "github.com/noah-isme/backend-lavault/internal/db/gen"
)

// Purchase is a paid checkout session.
type Purchase struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	Email     string `json:"email,omitempty"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

// PurchaseRecorder persists purchases. recorded is false when the session was
// already recorded.
type PurchaseRecorder interface {
	RecordPurchase(ctx context.Context, p Purchase) (stored Purchase, recorded bool, err error)
}

// PurchaseNotifier is told about paid purchases. It may be called more than
// once for the same checkout session and must tolerate that.
type PurchaseNotifier interface {
	PurchaseRecorded(ctx context.Context, p Purchase) error
}

// PurchaseQuerier defines the sqlc generated queries used by PGPurchases.
type PurchaseQuerier interface {
	InsertPurchase(ctx context.Context, arg dbgen.InsertPurchaseParams) (dbgen.Purchase, error)
}

// PGPurchases records purchases in Postgres, keyed by checkout session id.
type PGPurchases struct {
	Q PurchaseQuerier
}

func (s PGPurchases) RecordPurchase(ctx context.Context, p Purchase) (Purchase, bool, error) {
	row, err := s.Q.InsertPurchase(ctx, dbgen.InsertPurchaseParams{
		ProjectID:       p.ProjectID,
		UserID:          p.UserID,
		StripeSessionID: p.SessionID,
		Amount:          p.Amount,
		Currency:        p.Currency,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return p, false, nil
		}
		return Purchase{}, false, fmt.Errorf("insert purchase: %w", err)
	}
	if row.ID.Valid {
		p.ID = uuid.UUID(row.ID.Bytes).String()
	}
	return p, true, nil
}
