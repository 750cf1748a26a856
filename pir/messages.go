package pir

import (
	"github.com/PinkeshGjr/PIRService/pirdb"
)

// Query is the client-constructed encrypted selector plus the database
// and scheme versions it was built against. The selector is the BGV
// encryption of a one-hot slot encoding; the server never learns which
// slot it targets.
type Query struct {
	GenerationID string `json:"generation_id"`
	ParamsID     string `json:"params_id"`
	Shard        int    `json:"shard"`
	Selector     []byte `json:"selector"`
	EvalKeys     []byte `json:"eval_keys"`
}

// Response carries the encrypted evaluation result. Its size depends
// only on the scheme parameters, never on the targeted slot.
type Response struct {
	GenerationID string `json:"generation_id"`
	Ciphertext   []byte `json:"ciphertext"`
}

// GenerationInfo is the public metadata a client needs to target a
// generation: the placement seed and shard geometry, but none of the
// encoded content.
type GenerationInfo struct {
	ID              string `json:"id"`
	ParamsID        string `json:"params_id"`
	Seed            []byte `json:"seed"`
	NumShards       int    `json:"num_shards"`
	EntriesPerShard int    `json:"entries_per_shard"`
	SlotsPerEntry   int    `json:"slots_per_entry"`
}

// InfoOf extracts the client-visible metadata of a generation.
func InfoOf(g *pirdb.Generation) GenerationInfo {
	return GenerationInfo{
		ID:              g.ID,
		ParamsID:        g.ParamsID,
		Seed:            g.Seed,
		NumShards:       g.NumShards,
		EntriesPerShard: g.EntriesPerShard,
		SlotsPerEntry:   g.SlotsPerEntry,
	}
}
