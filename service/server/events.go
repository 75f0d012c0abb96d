package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/brojonat/blinks/service/actions"
	natspkg "github.com/brojonat/blinks/service/nats"
)

const publishTimeout = 2 * time.Second

// eventSink publishes action events off the request path. A nil sink or a sink without a
// publisher drops events.
type eventSink struct {
	publisher natspkg.Publisher
	logger    *slog.Logger
	wg        sync.WaitGroup
}

func newEventSink(publisher natspkg.Publisher, logger *slog.Logger) *eventSink {
	return &eventSink{publisher: publisher, logger: logger}
}

// publish reports a built transaction in the background. Failures are logged and never
// reach the caller.
func (e *eventSink) publish(ctx context.Context, res *actions.Result) {
	if e == nil || e.publisher == nil {
		return
	}
	event := natspkg.FromResult(res)
	ctx = context.WithoutCancel(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		ctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()

		if err := e.publisher.PublishAction(ctx, event); err != nil {
			e.logger.Warn("failed to publish action event",
				"action", res.Action,
				"account", res.Account.String(),
				"error", err,
			)
		}
	}()
}

// wait blocks until in-flight publishes finish or ctx is done.
func (e *eventSink) wait(ctx context.Context) error {
	if e == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
