package he

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/tuneinsight/lattigo/v6/schemes/bgv"
	"golang.org/x/crypto/sha3"
)

// Supported ring dimension range. Below 2^12 the parameters offer no
// meaningful security margin; above 2^15 a single query becomes too
// expensive to serve interactively.
const (
	minLogN = 12
	maxLogN = 15
)

// ErrParamMismatch is returned when a client query was built against a
// parameter set the server has not loaded.
var ErrParamMismatch = errors.New("he: incompatible scheme parameters")

// Scheme is an immutable handle to a loaded BGV parameter set.
// All queries and database generations reference a Scheme by its ID.
type Scheme struct {
	id      string
	params  bgv.Parameters
	literal bgv.ParametersLiteral
}

// ID returns the deterministic identifier of this parameter set.
// Clients and servers derive the same ID from the same literal, so the
// ID doubles as the wire-level compatibility token.
func (s *Scheme) ID() string {
	return s.id
}

// Params returns the underlying BGV parameters.
func (s *Scheme) Params() bgv.Parameters {
	return s.params
}

// MarshalLiteral returns the JSON encoding of the parameter literal
// this scheme was loaded from, suitable for Manager.Load.
func (s *Scheme) MarshalLiteral() ([]byte, error) {
	return json.Marshal(s.literal)
}

// UsableSlots returns the number of plaintext slots available for
// database packing. Only the first row of the slot matrix is used so
// that selector accumulation needs no row-swap evaluation key.
func (s *Scheme) UsableSlots() int {
	return s.params.MaxSlots() / 2
}

// GaloisElements returns the Galois elements a client must generate
// evaluation keys for so the server can accumulate a selected entry of
// entrySlots slots out of entriesPerShard entries.
func (s *Scheme) GaloisElements(entrySlots, entriesPerShard int) []uint64 {
	return s.params.GaloisElementsForInnerSum(entrySlots, entriesPerShard)
}

// ParamsID derives the scheme identifier for a parameter literal.
func ParamsID(lit bgv.ParametersLiteral) string {
	canonical := fmt.Sprintf("bgv/logn=%d/logq=%v/logp=%v/t=%d",
		lit.LogN, lit.LogQ, lit.LogP, lit.PlaintextModulus)
	digest := sha3.Sum256([]byte(canonical))
	return hex.EncodeToString(digest[:8])
}

// Manager loads and retains scheme handles for the generations the
// service knows about. Loading happens at encoder/startup time; lookups
// afterwards are read-only.
type Manager struct {
	mu      sync.RWMutex
	schemes map[string]*Scheme
}

// NewManager creates an empty parameter manager.
func NewManager() *Manager {
	return &Manager{schemes: make(map[string]*Scheme)}
}

// Load parses a JSON-encoded BGV parameter literal, validates it, and
// retains the resulting scheme. Malformed or internally inconsistent
// parameter sets are rejected before any cryptographic operation is
// attempted; callers treat a Load failure at startup as fatal.
func (m *Manager) Load(paramsBlob []byte) (*Scheme, error) {
	var lit bgv.ParametersLiteral
	if err := json.Unmarshal(paramsBlob, &lit); err != nil {
		return nil, fmt.Errorf("he: malformed parameter blob: %w", err)
	}
	return m.LoadLiteral(lit)
}

// LoadLiteral validates and retains a parameter literal directly.
func (m *Manager) LoadLiteral(lit bgv.ParametersLiteral) (*Scheme, error) {
	if lit.LogN < minLogN || lit.LogN > maxLogN {
		return nil, fmt.Errorf("he: LogN %d outside supported range [%d, %d]", lit.LogN, minLogN, maxLogN)
	}

	// Batching requires an NTT-friendly plaintext modulus.
	ringDegree := uint64(1) << lit.LogN
	if lit.PlaintextModulus == 0 || lit.PlaintextModulus%(2*ringDegree) != 1 {
		return nil, fmt.Errorf("he: plaintext modulus %d is not congruent to 1 mod 2N", lit.PlaintextModulus)
	}

	params, err := bgv.NewParametersFromLiteral(lit)
	if err != nil {
		return nil, fmt.Errorf("he: inconsistent parameter set: %w", err)
	}

	scheme := &Scheme{
		id:      ParamsID(lit),
		params:  params,
		literal: lit,
	}

	m.mu.Lock()
	m.schemes[scheme.id] = scheme
	m.mu.Unlock()

	return scheme, nil
}

// Get returns the scheme handle for an ID, if loaded.
func (m *Manager) Get(id string) (*Scheme, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.schemes[id]
	return s, ok
}

// ValidateCompatibility checks that a client-declared parameter ID is
// compatible with a server-side scheme. Both must name the same loaded
// parameter set.
func (m *Manager) ValidateCompatibility(clientParamsID, serverParamsID string) error {
	if clientParamsID != serverParamsID {
		return fmt.Errorf("%w: client declared %q, server holds %q",
			ErrParamMismatch, clientParamsID, serverParamsID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.schemes[serverParamsID]; !ok {
		return fmt.Errorf("%w: parameter set %q is not loaded", ErrParamMismatch, serverParamsID)
	}
	return nil
}

// Profile names a built-in parameter set usable by the offline encoder.
type Profile string

const (
	// ProfileCompact trades database capacity for the smallest
	// ciphertexts; intended for tests and small blocklists.
	ProfileCompact Profile = "compact"

	// ProfileBalanced is the default serving profile.
	ProfileBalanced Profile = "balanced"

	// ProfileLarge doubles the ring degree for large entry sets.
	ProfileLarge Profile = "large"
)

// ProfileLiteral returns the parameter literal for a named profile.
func ProfileLiteral(p Profile) (bgv.ParametersLiteral, error) {
	switch p {
	case ProfileCompact:
		return bgv.ParametersLiteral{
			LogN:             12,
			LogQ:             []int{50, 40},
			LogP:             []int{45},
			PlaintextModulus: 40961,
		}, nil
	case ProfileBalanced:
		return bgv.ParametersLiteral{
			LogN:             13,
			LogQ:             []int{50, 40},
			LogP:             []int{54},
			PlaintextModulus: 65537,
		}, nil
	case ProfileLarge:
		return bgv.ParametersLiteral{
			LogN:             14,
			LogQ:             []int{54, 54},
			LogP:             []int{54},
			PlaintextModulus: 65537,
		}, nil
	default:
		return bgv.ParametersLiteral{}, fmt.Errorf("he: unknown parameter profile %q", p)
	}
}
