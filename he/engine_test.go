package he

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/bgv"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	scheme, err := NewManager().LoadLiteral(mustLiteral(t, ProfileCompact))
	require.NoError(t, err)
	return NewEngine(scheme)
}

func TestExpandSelectorRejectsGarbage(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.ExpandSelector(nil)
	assert.Error(t, err)

	_, err = engine.ExpandSelector([]byte("not a ciphertext"))
	assert.Error(t, err)

	// A length prefix promising more data than any valid ciphertext
	// must come back as an error, not a panic.
	huge := make([]byte, 256)
	for i := range huge {
		huge[i] = 0xff
	}
	_, err = engine.ExpandSelector(huge)
	assert.Error(t, err)

	_, err = engine.ExpandSelector(make([]byte, engine.maxSelectorBytes()+1))
	assert.Error(t, err)
}

func TestParseEvaluationKeysRejectsGarbage(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.ParseEvaluationKeys(nil)
	assert.Error(t, err)

	_, err = engine.ParseEvaluationKeys([]byte{0x01, 0x02})
	assert.Error(t, err)

	huge := make([]byte, 256)
	for i := range huge {
		huge[i] = 0xff
	}
	_, err = engine.ParseEvaluationKeys(huge)
	assert.Error(t, err)
}

// TestProfileSelectRoundTrip runs the full select-and-fold circuit
// under every built-in profile and checks the decrypted result. This
// is the guard against a profile change starving the noise budget.
func TestProfileSelectRoundTrip(t *testing.T) {
	for _, profile := range []Profile{ProfileCompact, ProfileBalanced, ProfileLarge} {
		profile := profile
		t.Run(string(profile), func(t *testing.T) {
			scheme, err := NewManager().LoadLiteral(mustLiteral(t, profile))
			require.NoError(t, err)
			engine := NewEngine(scheme)
			params := scheme.Params()

			const entrySlots = 4
			entriesPerShard := scheme.UsableSlots() / entrySlots
			target := entriesPerShard / 3

			shard := make([]uint64, params.MaxSlots())
			for i := 0; i < entriesPerShard; i++ {
				for j := 0; j < entrySlots; j++ {
					shard[i*entrySlots+j] = uint64((i + j) % 251)
				}
			}
			want := []uint64{201, 119, 7, 54}
			copy(shard[target*entrySlots:], want)

			pt, err := engine.EncodeShard(shard)
			require.NoError(t, err)

			kgen := rlwe.NewKeyGenerator(params)
			sk, pk := kgen.GenKeyPairNew()
			gks := kgen.GenGaloisKeysNew(scheme.GaloisElements(entrySlots, entriesPerShard), sk)
			evk := rlwe.NewMemEvaluationKeySet(nil, gks...)

			selector := make([]uint64, params.MaxSlots())
			for j := 0; j < entrySlots; j++ {
				selector[target*entrySlots+j] = 1
			}
			selPt := bgv.NewPlaintext(params, params.MaxLevel())
			require.NoError(t, bgv.NewEncoder(params).Encode(selector, selPt))
			selCt, err := rlwe.NewEncryptor(params, pk).EncryptNew(selPt)
			require.NoError(t, err)

			out, err := engine.Select(evk, selCt, pt, entrySlots, entriesPerShard)
			require.NoError(t, err)

			decoded := make([]uint64, params.MaxSlots())
			decPt := rlwe.NewDecryptor(params, sk).DecryptNew(out)
			require.NoError(t, bgv.NewEncoder(params).Decode(decPt, decoded))
			assert.Equal(t, want, decoded[:entrySlots],
				"fold must land the targeted entry in the leading slots")
		})
	}
}

func TestEncodeShard(t *testing.T) {
	engine := newTestEngine(t)
	maxSlots := engine.Scheme().Params().MaxSlots()

	slots := make([]uint64, maxSlots)
	for i := range slots {
		slots[i] = uint64(i % 256)
	}
	pt, err := engine.EncodeShard(slots)
	require.NoError(t, err)
	assert.NotNil(t, pt)

	_, err = engine.EncodeShard(make([]uint64, maxSlots+1))
	assert.Error(t, err)
}

func TestFailureBound(t *testing.T) {
	engine := newTestEngine(t)
	bound := engine.FailureBound()
	assert.Greater(t, bound, 0.0)
	assert.LessOrEqual(t, bound, math.Exp2(-40))

	// A single-prime chain leaves the fold no headroom; such a scheme
	// gets no correctness claim at all.
	starved, err := NewManager().LoadLiteral(bgv.ParametersLiteral{
		LogN:             12,
		LogQ:             []int{45},
		LogP:             []int{45},
		PlaintextModulus: 40961,
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, NewEngine(starved).FailureBound())
}
