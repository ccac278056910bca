package device

import (
	"context"
	"time"
)

// pollMargin is added to the server-provided interval so that no attempt arrives early.
const pollMargin = 200 * time.Millisecond

type poller interface {
	Wait() error
	Cancel()
}

type pollerFactory func(context.Context, time.Duration) (context.Context, poller)

func newPoller(ctx context.Context, interval time.Duration) (context.Context, poller) {
	c, cancel := context.WithCancel(ctx)
	return c, &intervalPoller{
		ctx:        c,
		interval:   interval,
		cancelFunc: cancel,
	}
}

// intervalPoller spaces attempts a fixed interval apart. It has no deadline of its own, unlike a poller
// bounded by the device code's expires_in: polling ends only when the server hands out a token, answers
// with a non-200 status, or ctx is done.
type intervalPoller struct {
	ctx        context.Context
	interval   time.Duration
	cancelFunc func()
}

func (p intervalPoller) Wait() error {
	t := time.NewTimer(p.interval)
	select {
	case <-p.ctx.Done():
		t.Stop()
		return p.ctx.Err()
	case <-t.C:
		return nil
	}
}

func (p intervalPoller) Cancel() {
	p.cancelFunc()
}
