package pirdb

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/sha3"

	"github.com/PinkeshGjr/PIRService/he"
)

const (
	// DefaultSlotsPerEntry is the width of an entry tag in plaintext
	// slots (one byte per slot).
	DefaultSlotsPerEntry = 16

	// DefaultMaxSeedRetries bounds how many fresh seeds the encoder
	// tries before declaring the entry set too dense for the layout.
	DefaultMaxSeedRetries = 32

	seedLen = 32
)

// Layout describes the shard geometry of a generation.
type Layout struct {
	// NumShards is the number of fixed-capacity partitions.
	NumShards int

	// SlotsPerEntry is the tag width in slots.
	SlotsPerEntry int

	// MaxSeedRetries bounds the collision-retry loop; zero selects the
	// default.
	MaxSeedRetries int
}

func (l Layout) withDefaults() Layout {
	if l.SlotsPerEntry == 0 {
		l.SlotsPerEntry = DefaultSlotsPerEntry
	}
	if l.MaxSeedRetries == 0 {
		l.MaxSeedRetries = DefaultMaxSeedRetries
	}
	return l
}

// EncodingError is fatal: the entry set cannot be packed into the
// configured capacity. It is never recoverable by retrying with the
// same layout.
type EncodingError struct {
	Attempts int
	Entries  int
	Capacity int
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("pirdb: could not place %d entries into capacity %d after %d seeds; entry set too dense for layout",
		e.Entries, e.Capacity, e.Attempts)
}

// Place maps an entry value to its (shard, slot) pair under a
// generation seed. The mapping is deterministic per seed; clients run
// the same computation to build their selectors.
func Place(seed []byte, value string, numShards, entriesPerShard int) (shard, slot int) {
	h := sha3.New256()
	h.Write(seed)
	h.Write([]byte(value))
	digest := h.Sum(nil)
	shard = int(binary.BigEndian.Uint32(digest[0:4]) % uint32(numShards))
	slot = int(binary.BigEndian.Uint32(digest[4:8]) % uint32(entriesPerShard))
	return shard, slot
}

// Tag computes the membership tag stored for an entry: the leading
// bytes of the value's digest. A client compares the decrypted slot
// bytes against this to decide present/absent.
func Tag(value string, slotsPerEntry int) []byte {
	digest := sha3.Sum256([]byte(value))
	tag := make([]byte, slotsPerEntry)
	copy(tag, digest[:])
	return tag
}

// Encode builds a Generation from an entry set, drawing fresh seeds
// until placement succeeds or the retry bound is exceeded.
func Encode(entries []string, layout Layout, scheme *he.Scheme) (*Generation, error) {
	layout = layout.withDefaults()

	for attempt := 0; attempt < layout.MaxSeedRetries; attempt++ {
		seed := make([]byte, seedLen)
		if _, err := rand.Read(seed); err != nil {
			return nil, fmt.Errorf("pirdb: seed generation failed: %w", err)
		}
		gen, err := EncodeWithSeed(entries, seed, layout, scheme)
		if err == nil {
			return gen, nil
		}
		if _, dense := err.(*errSlotCollision); !dense {
			return nil, err
		}
	}

	entriesPerShard := scheme.UsableSlots() / layout.SlotsPerEntry
	return nil, &EncodingError{
		Attempts: layout.MaxSeedRetries,
		Entries:  len(entries),
		Capacity: layout.NumShards * entriesPerShard,
	}
}

// errSlotCollision reports a single-seed placement failure; the outer
// retry loop converts a run of them into a fatal EncodingError.
type errSlotCollision struct {
	shard, slot int
}

func (e *errSlotCollision) Error() string {
	return fmt.Sprintf("pirdb: slot collision in shard %d", e.shard)
}

// EncodeWithSeed builds a Generation under a caller-provided seed. The
// result is fully deterministic given (entries, seed, layout). Used by
// Encode and by tests that need reproducible generations.
func EncodeWithSeed(entries []string, seed []byte, layout Layout, scheme *he.Scheme) (*Generation, error) {
	layout = layout.withDefaults()

	if layout.NumShards <= 0 {
		return nil, fmt.Errorf("pirdb: layout needs at least one shard")
	}
	if len(seed) != seedLen {
		return nil, fmt.Errorf("pirdb: seed must be %d bytes, got %d", seedLen, len(seed))
	}

	entriesPerShard := scheme.UsableSlots() / layout.SlotsPerEntry
	if entriesPerShard == 0 {
		return nil, fmt.Errorf("pirdb: slots-per-entry %d exceeds usable slot count %d",
			layout.SlotsPerEntry, scheme.UsableSlots())
	}
	if len(entries) > layout.NumShards*entriesPerShard {
		return nil, &EncodingError{
			Attempts: 1,
			Entries:  len(entries),
			Capacity: layout.NumShards * entriesPerShard,
		}
	}

	planeLen := scheme.Params().MaxSlots()
	planes := make([][]byte, layout.NumShards)
	occupied := make([][]bool, layout.NumShards)
	for i := range planes {
		planes[i] = make([]byte, planeLen)
		occupied[i] = make([]bool, entriesPerShard)
	}

	for _, value := range entries {
		shard, slot := Place(seed, value, layout.NumShards, entriesPerShard)
		if occupied[shard][slot] {
			return nil, &errSlotCollision{shard: shard, slot: slot}
		}
		occupied[shard][slot] = true
		copy(planes[shard][slot*layout.SlotsPerEntry:], Tag(value, layout.SlotsPerEntry))
	}

	// Load hiding: the mask covers occupied and empty slots alike, so
	// shard occupancy is not observable from the encoded planes.
	seedCopy := append([]byte(nil), seed...)
	for i := range planes {
		maskPlane(planes[i], seedCopy, i)
	}

	paramsBlob, err := scheme.MarshalLiteral()
	if err != nil {
		return nil, fmt.Errorf("pirdb: serializing scheme literal: %w", err)
	}

	gen := &Generation{
		ParamsID:        scheme.ID(),
		ParamsBlob:      paramsBlob,
		Seed:            seedCopy,
		NumShards:       layout.NumShards,
		EntriesPerShard: entriesPerShard,
		SlotsPerEntry:   layout.SlotsPerEntry,
		Shards:          planes,
	}
	gen.ID = gen.digest()
	return gen, nil
}
