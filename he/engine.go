package he

import (
	"encoding"
	"errors"
	"fmt"
	"math"
	"math/bits"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/bgv"
)

// Engine evaluates encrypted selectors against packed plaintext shards.
// It is the only surface through which the query path performs
// homomorphic operations; the server side never decrypts anything.
//
// An Engine is bound to a single Scheme and is safe for concurrent use:
// every evaluation allocates its own lattigo evaluator because the
// underlying evaluators carry scratch buffers.
type Engine struct {
	scheme *Scheme
}

// NewEngine creates an evaluation engine for a loaded scheme.
func NewEngine(scheme *Scheme) *Engine {
	return &Engine{scheme: scheme}
}

// Scheme returns the scheme this engine evaluates under.
func (e *Engine) Scheme() *Scheme {
	return e.scheme
}

// safeUnmarshal guards lattigo deserialization, which panics on some
// malformed length prefixes instead of returning an error. Payloads
// come straight off the wire, so a panic here must become an error.
func safeUnmarshal(dst encoding.BinaryUnmarshaler, raw []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("he: malformed payload: %v", r)
		}
	}()
	return dst.UnmarshalBinary(raw)
}

// maxSelectorBytes bounds an accepted selector payload: two
// polynomials of N coefficients per modulus, with headroom for
// serialization metadata.
func (e *Engine) maxSelectorBytes() int {
	return 4 * len(e.scheme.literal.LogQ) * e.scheme.params.N() * 8
}

// ExpandSelector deserializes and shape-checks a client selector
// ciphertext. The selector is the encrypted one-hot encoding of the
// targeted slot range; its content is never inspected.
func (e *Engine) ExpandSelector(raw []byte) (*rlwe.Ciphertext, error) {
	if len(raw) == 0 {
		return nil, errors.New("he: empty selector ciphertext")
	}
	if max := e.maxSelectorBytes(); len(raw) > max {
		return nil, fmt.Errorf("he: selector of %d bytes exceeds limit %d", len(raw), max)
	}
	ct := rlwe.NewCiphertext(e.scheme.params, 1, e.scheme.params.MaxLevel())
	if err := safeUnmarshal(ct, raw); err != nil {
		return nil, fmt.Errorf("he: undecodable selector ciphertext: %w", err)
	}
	if ct.Degree() != 1 {
		return nil, fmt.Errorf("he: selector has degree %d, want 1", ct.Degree())
	}
	return ct, nil
}

// ParseEvaluationKeys deserializes the client-supplied evaluation key
// set required for selector accumulation.
func (e *Engine) ParseEvaluationKeys(raw []byte) (*rlwe.MemEvaluationKeySet, error) {
	if len(raw) == 0 {
		return nil, errors.New("he: missing evaluation keys")
	}
	evk := &rlwe.MemEvaluationKeySet{}
	if err := safeUnmarshal(evk, raw); err != nil {
		return nil, fmt.Errorf("he: undecodable evaluation keys: %w", err)
	}
	return evk, nil
}

// EncodeShard packs a shard's slot vector into a BGV plaintext at the
// maximum level. Used by the encoder offline and by the generation
// loader; never on the per-query path.
func (e *Engine) EncodeShard(slots []uint64) (*rlwe.Plaintext, error) {
	if len(slots) > e.scheme.params.MaxSlots() {
		return nil, fmt.Errorf("he: shard of %d slots exceeds ring capacity %d",
			len(slots), e.scheme.params.MaxSlots())
	}
	pt := bgv.NewPlaintext(e.scheme.params, e.scheme.params.MaxLevel())
	if err := bgv.NewEncoder(e.scheme.params).Encode(slots, pt); err != nil {
		return nil, fmt.Errorf("he: shard encoding failed: %w", err)
	}
	return pt, nil
}

// Select multiplies the expanded selector against a packed shard and
// accumulates the per-slot products so the targeted entry lands in the
// first entrySlots slots of the result. The work performed depends only
// on the shard geometry, never on which slot the selector targets.
func (e *Engine) Select(evk rlwe.EvaluationKeySet, selector *rlwe.Ciphertext, shard *rlwe.Plaintext, entrySlots, entriesPerShard int) (*rlwe.Ciphertext, error) {
	eval := bgv.NewEvaluator(e.scheme.params, evk)

	product, err := eval.MulNew(selector, shard)
	if err != nil {
		return nil, fmt.Errorf("he: selector multiplication failed: %w", err)
	}

	out := bgv.NewCiphertext(e.scheme.params, product.Degree(), product.Level())
	if err := eval.InnerSum(product, entrySlots, entriesPerShard, out); err != nil {
		return nil, fmt.Errorf("he: selector accumulation failed: %w", err)
	}
	return out, nil
}

// foldMarginBits is the modulus headroom the plaintext multiplication
// plus rotation chain consumes at the supported ring degrees. A chain
// without it cannot decrypt the fold at all.
const foldMarginBits = 32

// FailureBound returns an upper bound on the probability that
// decrypting a correctly computed response yields the wrong value.
// It is derived from the headroom between the ciphertext modulus
// chain and the plaintext modulus: spare bits beyond the circuit's
// consumption shrink the noise tail exponentially. A chain with no
// spare bits gets no correctness claim.
func (e *Engine) FailureBound() float64 {
	logQ := 0
	for _, qi := range e.scheme.literal.LogQ {
		logQ += qi
	}
	spare := logQ - bits.Len64(e.scheme.params.PlaintextModulus()) - foldMarginBits
	if spare <= 0 {
		return 1
	}
	if spare > 128 {
		spare = 128
	}
	return math.Exp2(-float64(spare))
}
