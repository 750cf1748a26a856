package pirdb

import (
	"crypto/aes"
	"encoding/binary"

	"github.com/lukechampine/fastxor"
	"golang.org/x/crypto/sha3"
)

// shardMask derives the load-hiding keystream for one shard. The mask
// is XORed over the whole slot byte plane, so an encoded shard is
// indistinguishable from one with any other occupancy. Deriving it from
// the generation seed keeps encoding deterministic for a fixed seed.
func shardMask(seed []byte, shard, n int) []byte {
	keyInput := make([]byte, len(seed)+8)
	copy(keyInput, seed)
	binary.BigEndian.PutUint64(keyInput[len(seed):], uint64(shard))
	key := sha3.Sum256(keyInput)

	block, err := aes.NewCipher(key[:16])
	if err != nil {
		panic(err.Error())
	}

	nBlocks := (n + aes.BlockSize - 1) / aes.BlockSize
	stream := make([]byte, nBlocks*aes.BlockSize)
	ctr := make([]byte, aes.BlockSize)
	for b := 0; b < nBlocks; b++ {
		binary.BigEndian.PutUint64(ctr[8:], uint64(b))
		block.Encrypt(stream[b*aes.BlockSize:(b+1)*aes.BlockSize], ctr)
	}
	return stream[:n]
}

// maskPlane XORs the shard mask into a tag plane in place.
func maskPlane(plane []byte, seed []byte, shard int) {
	mask := shardMask(seed, shard, len(plane))
	fastxor.Bytes(plane, plane, mask)
}

// MaskByte returns the mask byte for one slot of one shard. Clients use
// it to unmask a decrypted response value before comparing tags.
func MaskByte(seed []byte, shard, slot int) byte {
	blockIdx := slot / aes.BlockSize
	within := slot % aes.BlockSize

	keyInput := make([]byte, len(seed)+8)
	copy(keyInput, seed)
	binary.BigEndian.PutUint64(keyInput[len(seed):], uint64(shard))
	key := sha3.Sum256(keyInput)

	block, err := aes.NewCipher(key[:16])
	if err != nil {
		panic(err.Error())
	}
	ctr := make([]byte, aes.BlockSize)
	binary.BigEndian.PutUint64(ctr[8:], uint64(blockIdx))
	out := make([]byte, aes.BlockSize)
	block.Encrypt(out, ctr)
	return out[within]
}
