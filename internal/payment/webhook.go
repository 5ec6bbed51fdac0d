package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/webhook"

	"github.com/noah-isme/backend-lavault/internal/common"
	"github.com/noah-isme/backend-lavault/internal/obs"
)

const maxWebhookBody = 64 << 10

// Webhook handles Stripe event callbacks and records paid checkout sessions.
type Webhook struct {
	Secret    string
	Purchases PurchaseRecorder
	Notifier  PurchaseNotifier
	Replay    *redis.Client
	ReplayTTL time.Duration
}

// Handle verifies the Stripe-Signature header and dispatches the event.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	if strings.TrimSpace(h.Secret) == "" || h.Purchases == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "WEBHOOK_NOT_CONFIGURED", "webhook unavailable", nil)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody+1))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "unable to read payload", nil)
		return
	}
	if len(body) > maxWebhookBody {
		common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "payload too large", nil)
		return
	}
	event, err := webhook.ConstructEventWithOptions(body, r.Header.Get("Stripe-Signature"), h.Secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		obs.CountWebhook("unknown", "invalid_signature")
		common.JSONError(w, http.StatusBadRequest, "INVALID_SIGNATURE", "signature verification failed", nil)
		return
	}

	ctx := r.Context()
	logger := zerolog.Ctx(ctx).With().Str("event_id", event.ID).Str("event_type", string(event.Type)).Logger()
	eventType := string(event.Type)

	if h.Replay != nil {
		fresh, err := h.claim(ctx, event.ID)
		if err != nil {
			logger.Error().Err(err).Msg("webhook replay store failed")
			common.JSONError(w, http.StatusInternalServerError, "REPLAY_STORE_ERROR", "replay store unavailable", nil)
			return
		}
		if !fresh {
			obs.CountWebhook(eventType, "duplicate")
			common.JSON(w, http.StatusOK, map[string]any{"received": true, "duplicate": true})
			return
		}
	}

	result, err := h.dispatch(ctx, event)
	if err != nil {
		h.release(ctx, event.ID)
		obs.CountWebhook(eventType, "error")
		logger.Error().Err(err).Msg("stripe webhook processing failed")
		common.JSONError(w, http.StatusInternalServerError, "WEBHOOK_FAILED", "unable to process event", nil)
		return
	}
	obs.CountWebhook(eventType, result)
	logger.Info().Str("result", result).Msg("stripe webhook processed")
	common.JSON(w, http.StatusOK, map[string]any{"received": true})
}

func (h Webhook) dispatch(ctx context.Context, event stripe.Event) (string, error) {
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		return h.checkoutPaid(ctx, event)
	default:
		return "ignored", nil
	}
}

func (h Webhook) checkoutPaid(ctx context.Context, event stripe.Event) (string, error) {
	if event.Data == nil {
		return "ignored", nil
	}
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return "", fmt.Errorf("decode checkout session: %w", err)
	}
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return "unpaid", nil
	}
	projectID := strings.TrimSpace(sess.Metadata["projectId"])
	userID := strings.TrimSpace(sess.Metadata["userId"])
	if projectID == "" || userID == "" {
		zerolog.Ctx(ctx).Warn().Str("session_id", sess.ID).Msg("checkout session without purchase metadata")
		return "ignored", nil
	}

	p := Purchase{
		ProjectID: projectID,
		UserID:    userID,
		SessionID: sess.ID,
		Email:     sessionEmail(&sess),
		Amount:    sess.AmountTotal,
		Currency:  string(sess.Currency),
	}
	stored, recorded, err := h.Purchases.RecordPurchase(ctx, p)
	if err != nil {
		return "", err
	}
	outcome := "recorded"
	if !recorded {
		outcome = "already_recorded"
	}
	// Redeliveries re-enqueue too: the receipt task is keyed by session.
	if h.Notifier != nil {
		if err := h.Notifier.PurchaseRecorded(ctx, stored); err != nil {
			return "", fmt.Errorf("enqueue purchase receipt: %w", err)
		}
	}
	return outcome, nil
}

func sessionEmail(sess *stripe.CheckoutSession) string {
	if sess.CustomerDetails != nil && sess.CustomerDetails.Email != "" {
		return sess.CustomerDetails.Email
	}
	return sess.CustomerEmail
}

func (h Webhook) replayKey(eventID string) string {
	return "wh:stripe:" + eventID
}

func (h Webhook) claim(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id missing")
	}
	ttl := h.ReplayTTL
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return h.Replay.SetNX(ctx, h.replayKey(eventID), "1", ttl).Result()
}

func (h Webhook) release(ctx context.Context, eventID string) {
	if h.Replay == nil {
		return
	}
	_ = h.Replay.Del(ctx, h.replayKey(eventID)).Err()
}
