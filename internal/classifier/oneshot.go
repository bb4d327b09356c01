package classifier

import (
	"context"
	"sync"

	"github.com/mealsnap/mealsnap-go/internal/logger"
)

// oneShot turns a callback into a value that can be awaited once. Later fires are dropped.
type oneShot struct {
	once sync.Once
	ch   chan Result
	log  logger.Logger
}

func newOneShot(log logger.Logger) *oneShot {
	return &oneShot{ch: make(chan Result, 1), log: log}
}

func (o *oneShot) fire(r Result) {
	fired := false
	o.once.Do(func() {
		o.ch <- r
		fired = true
	})
	if !fired && o.log != nil {
		o.log.Debug("ignoring repeated classification callback")
	}
}

func (o *oneShot) wait(ctx context.Context) (Result, error) {
	select {
	case r := <-o.ch:
		return r, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
