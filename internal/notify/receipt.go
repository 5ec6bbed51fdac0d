package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-lavault/internal/common"
	"github.com/noah-isme/backend-lavault/internal/lock"
	"github.com/noah-isme/backend-lavault/internal/obs"
	"github.com/noah-isme/backend-lavault/internal/project"
)

const sentMarkerTTL = 30 * 24 * time.Hour

// ReceiptHandler processes purchase receipt tasks.
type ReceiptHandler struct {
	Mail     common.EmailSender
	Projects project.Store
	// Locker guards against concurrent sends and remembers delivered receipts.
	// Without it every delivery attempt sends.
	Locker *lock.Locker
}

// ProcessTask implements asynq.Handler.
func (h ReceiptHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p ReceiptPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		obs.CountReceipt("invalid")
		return fmt.Errorf("decode receipt payload: %v: %w", err, asynq.SkipRetry)
	}
	logger := zerolog.Ctx(ctx).With().Str("purchase_id", p.PurchaseID).Str("session_id", p.SessionID).Logger()
	if strings.TrimSpace(p.Email) == "" {
		obs.CountReceipt("no_recipient")
		logger.Info().Msg("receipt skipped: no recipient")
		return nil
	}
	if h.Mail == nil {
		return errors.New("notify: email sender not configured")
	}

	send := func(ctx context.Context) error {
		if h.alreadySent(ctx, p) {
			obs.CountReceipt("duplicate")
			return nil
		}
		name := h.projectName(ctx, p.ProjectID)
		if err := h.Mail.Send(p.Email, receiptSubject(name), receiptBody(name, p)); err != nil {
			obs.CountReceipt("error")
			return fmt.Errorf("send receipt: %w", err)
		}
		h.markSent(ctx, p)
		obs.CountReceipt("sent")
		logger.Info().Msg("receipt sent")
		return nil
	}

	if h.Locker == nil {
		return send(ctx)
	}
	// ErrLocked means another worker is sending; the retry will see the sent marker.
	return h.Locker.TryWithLock(ctx, "lock:receipt:"+p.SessionID, time.Minute, send)
}

func (h ReceiptHandler) projectName(ctx context.Context, projectID string) string {
	if h.Projects == nil {
		return projectID
	}
	p, err := h.Projects.Get(ctx, projectID)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("project_id", projectID).Msg("receipt project lookup failed")
		return projectID
	}
	return p.Name
}

func sentKey(p ReceiptPayload) string {
	return "receipt:sent:" + p.SessionID
}

func (h ReceiptHandler) alreadySent(ctx context.Context, p ReceiptPayload) bool {
	if h.Locker == nil || h.Locker.R == nil {
		return false
	}
	n, err := h.Locker.R.Exists(ctx, sentKey(p)).Result()
	return err == nil && n > 0
}

func (h ReceiptHandler) markSent(ctx context.Context, p ReceiptPayload) {
	if h.Locker == nil || h.Locker.R == nil {
		return
	}
	if err := h.Locker.R.Set(ctx, sentKey(p), "1", sentMarkerTTL).Err(); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("receipt sent marker not stored")
	}
}
