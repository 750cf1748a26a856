package pirdb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileRoundTrip(t *testing.T) {
	scheme := compactScheme(t)
	gen, err := Encode(testEntries(16), Layout{NumShards: 4}, scheme)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "gen-"+gen.ID+FileExt)
	require.NoError(t, WriteFile(path, gen))

	loaded, err := ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, gen.ID, loaded.ID)
	assert.Equal(t, gen.ParamsID, loaded.ParamsID)
	assert.Equal(t, gen.ParamsBlob, loaded.ParamsBlob)
	assert.Equal(t, gen.Seed, loaded.Seed)
	assert.Equal(t, gen.NumShards, loaded.NumShards)
	assert.Equal(t, gen.EntriesPerShard, loaded.EntriesPerShard)
	assert.Equal(t, gen.SlotsPerEntry, loaded.SlotsPerEntry)
	assert.Equal(t, gen.Shards, loaded.Shards)
}

func TestReadFileRejectsCorruption(t *testing.T) {
	scheme := compactScheme(t)
	gen, err := Encode(testEntries(8), Layout{NumShards: 2}, scheme)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "gen"+FileExt)
	require.NoError(t, WriteFile(path, gen))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	// Flip a byte near the end, inside the shard planes.
	data[len(data)-10] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = ReadFile(path)
	assert.Error(t, err)
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "absent"+FileExt))
	assert.Error(t, err)
}
