package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/custodia-labs/changelens/internal/core/domain"
	"github.com/custodia-labs/changelens/internal/core/ports/driven"
	"github.com/custodia-labs/changelens/internal/core/ports/driving"
	"github.com/custodia-labs/changelens/internal/logger"
)

// TypeExplainChange is the asynq task type for one explanation.
const TypeExplainChange = "explain:change"

const (
	explainMaxRetry = 3
	explainTimeout  = 5 * time.Minute
)

// ExplainChangePayload is the body of a TypeExplainChange task.
type ExplainChangePayload struct {
	ChangeID string `json:"change_id"`
}

// NewExplainTask builds the task for changeID.
func NewExplainTask(changeID string) (*asynq.Task, error) {
	if changeID == "" {
		return nil, fmt.Errorf("%w: empty change id", domain.ErrInvalidInput)
	}
	data, err := json.Marshal(ExplainChangePayload{ChangeID: changeID})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(TypeExplainChange, data), nil
}

// Ensure Asynq implements the interface.
var _ driven.ExplanationDispatcher = (*Asynq)(nil)

// Asynq enqueues explanations on Redis. A worker started with RunWorker
// consumes them.
type Asynq struct {
	client *asynq.Client
}

// NewAsynq connects a dispatcher to the Redis server at addr.
func NewAsynq(addr string) *Asynq {
	return &Asynq{
		client: asynq.NewClient(asynq.RedisClientOpt{Addr: addr}),
	}
}

// Dispatch enqueues the explanation of changeID.
func (d *Asynq) Dispatch(ctx context.Context, changeID string) error {
	task, err := NewExplainTask(changeID)
	if err != nil {
		return err
	}
	if _, err := d.client.EnqueueContext(ctx, task,
		asynq.MaxRetry(explainMaxRetry),
		asynq.Timeout(explainTimeout),
	); err != nil {
		return fmt.Errorf("enqueue %s: %w", TypeExplainChange, err)
	}
	return nil
}

// Close releases the Redis connection.
func (d *Asynq) Close() error {
	return d.client.Close()
}

// ExplainHandler processes TypeExplainChange tasks.
type ExplainHandler struct {
	explainer driving.ExplanationService
}

// NewExplainHandler creates a task handler backed by explainer.
func NewExplainHandler(explainer driving.ExplanationService) *ExplainHandler {
	return &ExplainHandler{explainer: explainer}
}

// ProcessTask implements asynq.Handler.
func (h *ExplainHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ExplainChangePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}
	if payload.ChangeID == "" {
		return fmt.Errorf("%w: empty change id: %w", domain.ErrInvalidInput, asynq.SkipRetry)
	}

	err := h.explainer.ExplainByID(ctx, payload.ChangeID)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}

// NewServeMux registers the explanation handler on a new mux.
func NewServeMux(explainer driving.ExplanationService) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeExplainChange, NewExplainHandler(explainer))
	return mux
}

// RunWorker consumes explanation tasks from the Redis server at addr until
// ctx is cancelled.
func RunWorker(ctx context.Context, addr string, concurrency int, explainer driving.ExplanationService) error {
	if concurrency <= 0 {
		concurrency = domain.DefaultWorkerConcurrency
	}
	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: addr},
		asynq.Config{Concurrency: concurrency},
	)

	logger.Info("Starting explanation worker on %s (concurrency %d)", addr, concurrency)
	if err := srv.Start(NewServeMux(explainer)); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}

	<-ctx.Done()
	srv.Shutdown()
	return nil
}
