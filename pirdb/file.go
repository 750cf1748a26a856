package pirdb

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ugorji/go/codec"
)

// FileExt is the extension the encoder writes and the reloader watches.
const FileExt = ".pirdb"

const fileVersion = 1

// codecHandle returns the binc handle used for generation files.
func codecHandle() codec.Handle {
	h := codec.BincHandle{}
	h.StructToArray = true
	h.OptimumSize = true
	return &h
}

// fileRecord is the serialized form of a Generation; runtime state
// (packed plaintexts, borrow counts) is rebuilt on load.
type fileRecord struct {
	Version         int
	ID              string
	ParamsID        string
	ParamsBlob      []byte
	Seed            []byte
	NumShards       int
	EntriesPerShard int
	SlotsPerEntry   int
	Shards          [][]byte
}

// WriteFile persists a generation. The write goes through a temporary
// file and a rename so watchers never observe a partial generation.
func WriteFile(path string, gen *Generation) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".pirdb-*")
	if err != nil {
		return fmt.Errorf("pirdb: creating generation file: %w", err)
	}
	defer os.Remove(tmp.Name())

	rec := fileRecord{
		Version:         fileVersion,
		ID:              gen.ID,
		ParamsID:        gen.ParamsID,
		ParamsBlob:      gen.ParamsBlob,
		Seed:            gen.Seed,
		NumShards:       gen.NumShards,
		EntriesPerShard: gen.EntriesPerShard,
		SlotsPerEntry:   gen.SlotsPerEntry,
		Shards:          gen.Shards,
	}

	enc := codec.NewEncoder(tmp, codecHandle())
	if err := enc.Encode(rec); err != nil {
		tmp.Close()
		return fmt.Errorf("pirdb: encoding generation file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("pirdb: flushing generation file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("pirdb: publishing generation file: %w", err)
	}
	return nil
}

// ReadFile loads a generation from disk and verifies its content
// digest, so a corrupted or truncated file is rejected rather than
// served.
func ReadFile(path string) (*Generation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pirdb: opening generation file: %w", err)
	}
	defer f.Close()

	var rec fileRecord
	dec := codec.NewDecoder(f, codecHandle())
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("pirdb: decoding generation file %s: %w", filepath.Base(path), err)
	}
	if rec.Version != fileVersion {
		return nil, fmt.Errorf("pirdb: unsupported generation file version %d", rec.Version)
	}

	gen := &Generation{
		ID:              rec.ID,
		ParamsID:        rec.ParamsID,
		ParamsBlob:      rec.ParamsBlob,
		Seed:            rec.Seed,
		NumShards:       rec.NumShards,
		EntriesPerShard: rec.EntriesPerShard,
		SlotsPerEntry:   rec.SlotsPerEntry,
		Shards:          rec.Shards,
	}
	if got := gen.digest(); got != rec.ID {
		return nil, fmt.Errorf("pirdb: generation file %s failed digest check", filepath.Base(path))
	}
	return gen, nil
}
