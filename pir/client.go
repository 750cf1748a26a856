package pir

import (
	"bytes"
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/bgv"

	"github.com/PinkeshGjr/PIRService/he"
	"github.com/PinkeshGjr/PIRService/pirdb"
)

// Client builds encrypted queries and decodes responses. It holds the
// secret key material that never leaves the querier; the server only
// ever sees the public evaluation keys and ciphertexts.
type Client struct {
	scheme    *he.Scheme
	sk        *rlwe.SecretKey
	encoder   *bgv.Encoder
	encryptor *rlwe.Encryptor
	decryptor *rlwe.Decryptor

	// evalKeys caches the serialized key set per shard geometry; all
	// generations with the same geometry reuse it.
	evalKeys map[[2]int][]byte
}

// NewClient generates a fresh keypair under a scheme.
func NewClient(scheme *he.Scheme) (*Client, error) {
	params := scheme.Params()
	kgen := rlwe.NewKeyGenerator(params)
	sk, pk := kgen.GenKeyPairNew()
	return &Client{
		scheme:    scheme,
		sk:        sk,
		encoder:   bgv.NewEncoder(params),
		encryptor: rlwe.NewEncryptor(params, pk),
		decryptor: rlwe.NewDecryptor(params, sk),
		evalKeys:  make(map[[2]int][]byte),
	}, nil
}

// evaluationKeys returns the serialized Galois key set for a shard
// geometry, generating it on first use.
func (c *Client) evaluationKeys(slotsPerEntry, entriesPerShard int) ([]byte, error) {
	geo := [2]int{slotsPerEntry, entriesPerShard}
	if raw, ok := c.evalKeys[geo]; ok {
		return raw, nil
	}

	params := c.scheme.Params()
	kgen := rlwe.NewKeyGenerator(params)
	galEls := c.scheme.GaloisElements(slotsPerEntry, entriesPerShard)
	gks := kgen.GenGaloisKeysNew(galEls, c.sk)
	evk := rlwe.NewMemEvaluationKeySet(nil, gks...)

	raw, err := evk.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("pir: serializing evaluation keys: %w", err)
	}
	c.evalKeys[geo] = raw
	return raw, nil
}

// BuildQuery constructs the encrypted query for one value against a
// generation. The selector encrypts a one-hot marking of the value's
// slot range; nothing about the value itself is sent.
func (c *Client) BuildQuery(info GenerationInfo, value string) (*Query, error) {
	if info.ParamsID != c.scheme.ID() {
		return nil, fmt.Errorf("pir: generation %s uses params %s, client holds %s",
			info.ID, info.ParamsID, c.scheme.ID())
	}

	shard, slot := pirdb.Place(info.Seed, value, info.NumShards, info.EntriesPerShard)

	params := c.scheme.Params()
	selector := make([]uint64, params.MaxSlots())
	for i := 0; i < info.SlotsPerEntry; i++ {
		selector[slot*info.SlotsPerEntry+i] = 1
	}

	pt := bgv.NewPlaintext(params, params.MaxLevel())
	if err := c.encoder.Encode(selector, pt); err != nil {
		return nil, fmt.Errorf("pir: encoding selector: %w", err)
	}
	ct, err := c.encryptor.EncryptNew(pt)
	if err != nil {
		return nil, fmt.Errorf("pir: encrypting selector: %w", err)
	}
	rawSelector, err := ct.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("pir: serializing selector: %w", err)
	}

	rawKeys, err := c.evaluationKeys(info.SlotsPerEntry, info.EntriesPerShard)
	if err != nil {
		return nil, err
	}

	return &Query{
		GenerationID: info.ID,
		ParamsID:     info.ParamsID,
		Shard:        shard,
		Selector:     rawSelector,
		EvalKeys:     rawKeys,
	}, nil
}

// Decode decrypts a response and decides membership of the queried
// value. The accumulated entry lands in the leading slots; after
// unmasking, a byte-for-byte match against the value's tag means the
// value is in the set.
func (c *Client) Decode(info GenerationInfo, value string, resp *Response) (bool, error) {
	if resp.GenerationID != info.ID {
		return false, fmt.Errorf("pir: response is for generation %s, expected %s",
			resp.GenerationID, info.ID)
	}

	params := c.scheme.Params()
	ct := rlwe.NewCiphertext(params, 1, params.MaxLevel())
	if err := ct.UnmarshalBinary(resp.Ciphertext); err != nil {
		return false, fmt.Errorf("pir: undecodable response ciphertext: %w", err)
	}

	pt := c.decryptor.DecryptNew(ct)
	slots := make([]uint64, params.MaxSlots())
	if err := c.encoder.Decode(pt, slots); err != nil {
		return false, fmt.Errorf("pir: decoding response: %w", err)
	}

	shard, slot := pirdb.Place(info.Seed, value, info.NumShards, info.EntriesPerShard)
	got := make([]byte, info.SlotsPerEntry)
	for i := range got {
		masked := byte(slots[i])
		got[i] = masked ^ pirdb.MaskByte(info.Seed, shard, slot*info.SlotsPerEntry+i)
	}

	return bytes.Equal(got, pirdb.Tag(value, info.SlotsPerEntry)), nil
}
