package pirdb

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"go.uber.org/atomic"
	"golang.org/x/crypto/sha3"

	"github.com/PinkeshGjr/PIRService/he"
)

// Generation is an immutable, versioned snapshot of the encoded
// database. Exactly one generation is current at a time; queries that
// started against an older generation keep it borrowed until they
// complete.
type Generation struct {
	// ID is the content digest of the generation; it identifies the
	// snapshot on the wire and in log lines.
	ID string

	// ParamsID names the scheme the shards were packed for.
	ParamsID string

	// ParamsBlob is the JSON parameter literal the generation was
	// encoded under, carried so a reloader can bring up the scheme
	// without out-of-band coordination.
	ParamsBlob []byte

	// Seed keys the value-to-(shard,slot) placement hash and the
	// load-hiding mask. Fresh per generation.
	Seed []byte

	NumShards       int
	EntriesPerShard int
	SlotsPerEntry   int

	// Shards holds one masked byte plane per shard, one byte per
	// plaintext slot.
	Shards [][]byte

	packed []*rlwe.Plaintext

	borrows  atomic.Int64
	retired  atomic.Bool
	released atomic.Bool

	// onRelease, if set, runs once when the generation is both retired
	// and unborrowed.
	onRelease func()
}

// digest computes the generation ID from its immutable content.
func (g *Generation) digest() string {
	h := sha3.New256()
	h.Write([]byte(g.ParamsID))
	h.Write(g.Seed)
	var geo [24]byte
	binary.BigEndian.PutUint64(geo[0:], uint64(g.NumShards))
	binary.BigEndian.PutUint64(geo[8:], uint64(g.EntriesPerShard))
	binary.BigEndian.PutUint64(geo[16:], uint64(g.SlotsPerEntry))
	h.Write(geo[:])
	for _, plane := range g.Shards {
		h.Write(plane)
	}
	return hex.EncodeToString(h.Sum(nil)[:12])
}

// Prepare packs every shard plane into a BGV plaintext under the given
// engine. It must be called once before the generation is published;
// the per-query path only reads the packed form.
func (g *Generation) Prepare(engine *he.Engine) error {
	if engine.Scheme().ID() != g.ParamsID {
		return fmt.Errorf("pirdb: generation %s was encoded for params %s, engine holds %s",
			g.ID, g.ParamsID, engine.Scheme().ID())
	}
	packed := make([]*rlwe.Plaintext, len(g.Shards))
	for i, plane := range g.Shards {
		slots := make([]uint64, len(plane))
		for j, b := range plane {
			slots[j] = uint64(b)
		}
		pt, err := engine.EncodeShard(slots)
		if err != nil {
			return fmt.Errorf("pirdb: packing shard %d of generation %s: %w", i, g.ID, err)
		}
		packed[i] = pt
	}
	g.packed = packed
	return nil
}

// Packed returns the packed plaintext for a shard. Prepare must have
// succeeded first.
func (g *Generation) Packed(shard int) (*rlwe.Plaintext, error) {
	if g.packed == nil {
		return nil, fmt.Errorf("pirdb: generation %s is not prepared", g.ID)
	}
	if shard < 0 || shard >= len(g.packed) {
		return nil, fmt.Errorf("pirdb: shard %d out of range", shard)
	}
	return g.packed[shard], nil
}

// Borrow takes a reference that keeps the generation alive for an
// in-flight query. Every Borrow must be paired with a Release.
func (g *Generation) Borrow() {
	g.borrows.Inc()
}

// Release drops a borrowed reference. The last release of a retired
// generation triggers its release hook.
func (g *Generation) Release() {
	if g.borrows.Dec() == 0 && g.retired.Load() {
		g.finalize()
	}
}

// Retire marks the generation as superseded. It is destroyed once the
// borrow count drains to zero; callers never block on in-flight
// queries.
func (g *Generation) Retire() {
	g.retired.Store(true)
	if g.borrows.Load() == 0 {
		g.finalize()
	}
}

// Borrows reports the current number of borrowed references.
func (g *Generation) Borrows() int64 {
	return g.borrows.Load()
}

// SetReleaseHook registers a callback to run once the generation is
// retired and unborrowed. Must be set before publication.
func (g *Generation) SetReleaseHook(fn func()) {
	g.onRelease = fn
}

func (g *Generation) finalize() {
	if g.released.CompareAndSwap(false, true) && g.onRelease != nil {
		g.onRelease()
	}
}
