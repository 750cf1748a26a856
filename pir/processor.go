package pir

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"

	"github.com/PinkeshGjr/PIRService/he"
	"github.com/PinkeshGjr/PIRService/pirdb"
)

// ProcessorConfig carries the dependencies of a query processor.
type ProcessorConfig struct {
	Manager *he.Manager
	Log     *slog.Logger

	// MaxWorkers bounds concurrent homomorphic evaluations; zero means
	// one per available CPU.
	MaxWorkers int

	// KeyCacheSize bounds the parsed evaluation-key cache; zero selects
	// the default.
	KeyCacheSize int

	// EvalTimeout bounds a single evaluation once admitted to a worker;
	// zero disables the internal bound and relies on the request context.
	EvalTimeout time.Duration
}

// Processor evaluates encrypted queries against a borrowed generation.
// It validates everything it can before touching ciphertext and bounds
// both worker admission and evaluation time by the request context.
type Processor struct {
	manager  *he.Manager
	log      *slog.Logger
	workers  chan struct{}
	keyCache *keyCache
	timeout  time.Duration

	// onEvaluate, if set, runs immediately before homomorphic work
	// starts. Tests use it to assert that rejected queries never reach
	// the evaluation stage.
	onEvaluate func(genID string)
}

// NewProcessor creates a query processor.
func NewProcessor(cfg ProcessorConfig) *Processor {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	workers := cfg.MaxWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Processor{
		manager:  cfg.Manager,
		log:      cfg.Log,
		workers:  make(chan struct{}, workers),
		keyCache: newKeyCache(cfg.KeyCacheSize),
		timeout:  cfg.EvalTimeout,
	}
}

// SetEvaluateHook registers a callback invoked when a query enters
// homomorphic evaluation. Intended for tests; not safe to change while
// queries are in flight.
func (p *Processor) SetEvaluateHook(fn func(genID string)) {
	p.onEvaluate = fn
}

type evalResult struct {
	ct  *rlwe.Ciphertext
	err error
}

// Evaluate runs one query against a generation the caller has borrowed.
// Validation failures are classified before any ciphertext is parsed;
// by the time homomorphic work starts the query is fully vetted.
func (p *Processor) Evaluate(ctx context.Context, gen *pirdb.Generation, q *Query) (*Response, error) {
	if q.GenerationID != gen.ID {
		return nil, Errorf(CodeProtocol, "query targets generation %s, current is %s", q.GenerationID, gen.ID)
	}
	if err := p.manager.ValidateCompatibility(q.ParamsID, gen.ParamsID); err != nil {
		return nil, WrapError(CodeParamMismatch, "scheme validation", err)
	}
	scheme, ok := p.manager.Get(gen.ParamsID)
	if !ok {
		return nil, Errorf(CodeParamMismatch, "parameter set %s not loaded", gen.ParamsID)
	}
	if q.Shard < 0 || q.Shard >= gen.NumShards {
		return nil, Errorf(CodeProtocol, "shard %d out of range [0, %d)", q.Shard, gen.NumShards)
	}

	engine := he.NewEngine(scheme)

	evk, err := p.keyCache.get(engine, q.EvalKeys)
	if err != nil {
		return nil, WrapError(CodeProtocol, "evaluation keys", err)
	}
	selector, err := engine.ExpandSelector(q.Selector)
	if err != nil {
		return nil, WrapError(CodeProtocol, "selector", err)
	}
	shard, err := gen.Packed(q.Shard)
	if err != nil {
		return nil, WrapError(CodeCompute, "shard lookup", err)
	}

	// Admission: wait for a worker slot, but never past the deadline.
	if err := ctx.Err(); err != nil {
		return nil, WrapError(CodeTimeout, "deadline expired before evaluation", err)
	}
	select {
	case p.workers <- struct{}{}:
	case <-ctx.Done():
		return nil, WrapError(CodeTimeout, "waiting for evaluation worker", ctx.Err())
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	resultCh := make(chan evalResult, 1)
	go func() {
		defer func() { <-p.workers }()
		if p.onEvaluate != nil {
			p.onEvaluate(gen.ID)
		}
		ct, err := engine.Select(evk, selector, shard, gen.SlotsPerEntry, gen.EntriesPerShard)
		resultCh <- evalResult{ct: ct, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			return nil, WrapError(CodeCompute, "homomorphic evaluation", res.err)
		}
		raw, err := res.ct.MarshalBinary()
		if err != nil {
			return nil, WrapError(CodeCompute, "response serialization", err)
		}
		return &Response{GenerationID: gen.ID, Ciphertext: raw}, nil
	case <-ctx.Done():
		// The worker finishes on its own and frees its slot; the
		// abandoned result is dropped.
		p.log.Warn("abandoning slow evaluation", "generation", gen.ID, "shard", q.Shard)
		return nil, WrapError(CodeTimeout, "evaluation deadline", ctx.Err())
	}
}
