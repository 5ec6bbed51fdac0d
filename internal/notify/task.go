package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/backend-lavault/internal/payment"
)

// TypePurchaseReceipt is the asynq task type for purchase receipt emails.
const TypePurchaseReceipt = "purchase:receipt"

// ReceiptPayload is the JSON body of a purchase receipt task.
type ReceiptPayload struct {
	PurchaseID string `json:"purchaseId"`
	ProjectID  string `json:"projectId"`
	UserID     string `json:"userId"`
	SessionID  string `json:"sessionId"`
	Email      string `json:"email"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
}

// NewReceiptTask builds a receipt task for p. The task id is derived from the
// checkout session so a purchase is enqueued at most once.
func NewReceiptTask(p payment.Purchase) (*asynq.Task, error) {
	if p.SessionID == "" {
		return nil, errors.New("notify: purchase session id is required")
	}
	payload, err := json.Marshal(ReceiptPayload{
		PurchaseID: p.ID,
		ProjectID:  p.ProjectID,
		UserID:     p.UserID,
		SessionID:  p.SessionID,
		Email:      p.Email,
		Amount:     p.Amount,
		Currency:   p.Currency,
	})
	if err != nil {
		return nil, fmt.Errorf("notify: encode receipt payload: %w", err)
	}
	return asynq.NewTask(TypePurchaseReceipt, payload,
		asynq.TaskID("receipt:"+p.SessionID),
		asynq.MaxRetry(5),
	), nil
}

// TaskEnqueuer is the subset of *asynq.Client used by Enqueuer.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer schedules receipt tasks for paid purchases.
type Enqueuer struct {
	Client TaskEnqueuer
	Queue  string
}

// PurchaseRecorded implements payment.PurchaseNotifier. A task that already
// exists for the same session is not an error.
func (e Enqueuer) PurchaseRecorded(ctx context.Context, p payment.Purchase) error {
	if e.Client == nil {
		return nil
	}
	task, err := NewReceiptTask(p)
	if err != nil {
		return err
	}
	var opts []asynq.Option
	if e.Queue != "" {
		opts = append(opts, asynq.Queue(e.Queue))
	}
	if _, err := e.Client.EnqueueContext(ctx, task, opts...); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			return nil
		}
		return fmt.Errorf("notify: enqueue receipt: %w", err)
	}
	return nil
}
