package reload

import (
	"errors"
	"log/slog"

	"go.uber.org/atomic"

	"github.com/PinkeshGjr/PIRService/metrics"
	"github.com/PinkeshGjr/PIRService/pirdb"
)

// ErrNoGeneration is returned before the first publication.
var ErrNoGeneration = errors.New("reload: no generation published")

// Publisher holds the current database generation behind an atomic
// pointer. Queries borrow whatever generation is current when they
// start and keep it for their whole lifetime; publishing never blocks
// readers and never invalidates an in-flight query.
type Publisher struct {
	current atomic.Pointer[pirdb.Generation]
	log     *slog.Logger
}

// NewPublisher creates a publisher with no current generation.
func NewPublisher(log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{log: log}
}

// Current borrows the current generation. The caller must Release it
// when done. Returns ErrNoGeneration before the first publication.
func (p *Publisher) Current() (*pirdb.Generation, error) {
	gen := p.current.Load()
	if gen == nil {
		return nil, ErrNoGeneration
	}
	gen.Borrow()
	// A publish between Load and Borrow may have retired gen already;
	// its data stays valid until the paired Release.
	return gen, nil
}

// Ready reports whether a generation has been published.
func (p *Publisher) Ready() bool {
	return p.current.Load() != nil
}

// Publish makes a prepared generation current and retires its
// predecessor. The predecessor is destroyed once its last borrowed
// reference is released, never while a query is using it.
func (p *Publisher) Publish(gen *pirdb.Generation) {
	prev := p.current.Swap(gen)
	metrics.GenerationPublished()
	p.log.Info("published generation",
		"generation", gen.ID,
		"params", gen.ParamsID,
		"shards", gen.NumShards,
	)
	if prev != nil {
		p.log.Info("retiring generation", "generation", prev.ID, "borrows", prev.Borrows())
		prev.Retire()
	}
}
