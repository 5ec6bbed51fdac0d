package main

import (
	"context"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-lavault/internal/notify"
)

type recordingHandler struct {
	seen   []string
	logged bool
}

func (h *recordingHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	h.seen = append(h.seen, t.Type())
	h.logged = zerolog.Ctx(ctx).GetLevel() != zerolog.Disabled
	return nil
}

func TestRetryDelayGrows(t *testing.T) {
	first := retryDelay(0, nil, nil)
	require.GreaterOrEqual(t, first, 8*time.Second)
	require.LessOrEqual(t, first, 12*time.Second)

	third := retryDelay(2, nil, nil)
	require.GreaterOrEqual(t, third, 32*time.Second)
	require.LessOrEqual(t, third, 48*time.Second)
}

func TestMuxRoutesReceiptTasks(t *testing.T) {
	h := &recordingHandler{}
	mux := newMux(zerolog.New(zerolog.NewTestWriter(t)), h)

	require.NoError(t, mux.ProcessTask(context.Background(), asynq.NewTask(notify.TypePurchaseReceipt, []byte(`{}`))))
	require.Equal(t, []string{notify.TypePurchaseReceipt}, h.seen)
	require.True(t, h.logged)

	require.Error(t, mux.ProcessTask(context.Background(), asynq.NewTask("unknown:type", nil)))
}
