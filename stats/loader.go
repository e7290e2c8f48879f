package stats

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrSuperseded is returned to a load whose result arrived after a newer
// load had started.
var ErrSuperseded = errors.New("statistics request superseded")

type Query struct {
	Range Range
	Token string
}

// Source fetches per-product statistic records.
type Source interface {
	ProductStatistics(ctx context.Context, q Query) ([]Record, error)
}

// Loader fences loads for one screen: starting a load cancels the one in
// flight, and only the newest generation may deliver a result.
type Loader struct {
	source  Source
	timeout time.Duration

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

func NewLoader(source Source, timeout time.Duration) *Loader {
	return &Loader{source: source, timeout: timeout}
}

func (l *Loader) Load(ctx context.Context, q Query) ([]Record, error) {
	if err := q.Range.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel, gen := l.begin(ctx)
	defer l.finish(gen, cancel)

	records, err := l.source.ProductStatistics(ctx, q)
	if l.current() != gen {
		return nil, ErrSuperseded
	}
	if err != nil {
		return nil, fmt.Errorf("load statistics: %w", err)
	}
	return records, nil
}

// Cancel aborts any load in flight.
func (l *Loader) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}

func (l *Loader) begin(parent context.Context) (context.Context, context.CancelFunc, uint64) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if l.timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, l.timeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
	}
	l.gen++
	l.cancel = cancel
	return ctx, cancel, l.gen
}

func (l *Loader) current() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gen
}

func (l *Loader) finish(gen uint64, cancel context.CancelFunc) {
	cancel()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen == gen {
		l.cancel = nil
	}
}
