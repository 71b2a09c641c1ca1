package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/changelens/internal/core/ports/driven"
	"github.com/custodia-labs/changelens/internal/core/ports/driving"
	"github.com/custodia-labs/changelens/internal/logger"
)

// Ensure Goroutine implements the interface.
var _ driven.ExplanationDispatcher = (*Goroutine)(nil)

// Goroutine explains each change record on its own goroutine. The
// explanation outlives the context of the run that dispatched it.
type Goroutine struct {
	explainer driving.ExplanationService

	// sem caps concurrent explanations; nil means unbounded.
	sem chan struct{}
	wg  sync.WaitGroup
}

// NewGoroutine creates an in-process dispatcher. maxInFlight caps the
// number of explanations running at once; zero means unbounded.
func NewGoroutine(explainer driving.ExplanationService, maxInFlight int) *Goroutine {
	d := &Goroutine{explainer: explainer}
	if maxInFlight > 0 {
		d.sem = make(chan struct{}, maxInFlight)
	}
	return d
}

// Dispatch starts the explanation of changeID and returns immediately.
func (d *Goroutine) Dispatch(ctx context.Context, changeID string) error {
	if changeID == "" {
		return fmt.Errorf("dispatch: empty change id")
	}
	ctx = context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if d.sem != nil {
			d.sem <- struct{}{}
			defer func() { <-d.sem }()
		}
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Explanation of %s panicked: %v", changeID, r)
			}
		}()

		if err := d.explainer.ExplainByID(ctx, changeID); err != nil {
			logger.Warn("Explanation of %s failed: %v", changeID, err)
		}
	}()
	return nil
}

// Drain waits for in-flight explanations to finish or for ctx to end.
// Explanations still running when ctx ends keep an unset status and are
// picked up by the next backfill.
func (d *Goroutine) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
