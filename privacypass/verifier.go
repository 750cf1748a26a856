package privacypass

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Verification failure modes. The HTTP layer maps all of them to the
// same generic unauthorized response; the distinctions exist for logs
// and metrics.
var (
	ErrMissingToken  = errors.New("privacypass: no token presented")
	ErrUnknownIssuer = errors.New("privacypass: token names an untrusted issuer key")
	ErrBadSignature  = errors.New("privacypass: token signature invalid")
	ErrDoubleSpend   = errors.New("privacypass: token already spent")
)

// DefaultTokenTTL is how long a spent nonce is remembered. It must be
// at least as long as the issuer key rotation period.
const DefaultTokenTTL = 24 * time.Hour

// VerifierConfig configures a redemption verifier.
type VerifierConfig struct {
	// Keys maps issuer key IDs to trusted verification keys.
	Keys map[string]PublicKey

	// Open disables verification entirely. It must be set explicitly;
	// an empty key set with Open unset is a configuration error.
	Open bool

	// TokenTTL bounds spent-nonce retention; zero selects the default.
	TokenTTL time.Duration

	Log *slog.Logger
}

// Verifier authorizes query requests by redeeming single-use tokens.
type Verifier struct {
	keys  map[string]PublicKey
	open  bool
	ttl   time.Duration
	spent *SpentTokenSet
	log   *slog.Logger

	// now is stubbed in expiry tests.
	now func() time.Time

	closeOnce sync.Once
	done      chan struct{}
}

// NewVerifier creates a verifier. Either at least one trusted key or
// explicit open mode is required.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	if !cfg.Open && len(cfg.Keys) == 0 {
		return nil, errors.New("privacypass: no trusted issuer keys and open mode not requested")
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	keys := make(map[string]PublicKey, len(cfg.Keys))
	for id, pk := range cfg.Keys {
		keys[id] = pk
	}
	if cfg.Open {
		cfg.Log.Warn("token verification DISABLED; serving in open mode")
	}
	return &Verifier{
		keys:  keys,
		open:  cfg.Open,
		ttl:   cfg.TokenTTL,
		spent: NewSpentTokenSet(),
		log:   cfg.Log,
		now:   time.Now,
		done:  make(chan struct{}),
	}, nil
}

// Open reports whether the verifier admits requests without tokens.
func (v *Verifier) Open() bool {
	return v.open
}

// Authorize redeems the token presented with a request. In open mode it
// always succeeds. Otherwise the token must decode, carry a trusted key
// ID, verify, and be fresh; the freshness check is atomic, so exactly
// one of two concurrent redemptions of the same token succeeds.
func (v *Verifier) Authorize(encoded string) error {
	if v.open {
		return nil
	}
	if encoded == "" {
		return ErrMissingToken
	}

	token, err := DecodeToken(encoded)
	if err != nil {
		return err
	}
	pk, ok := v.keys[token.IssuerKeyID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownIssuer, token.IssuerKeyID)
	}
	if !ed25519.Verify(ed25519.PublicKey(pk), signedPayload(token.Nonce), token.Signature) {
		return ErrBadSignature
	}
	// Spent entries are scoped per issuer key.
	if !v.spent.InsertIfAbsent(token.IssuerKeyID+":"+string(token.Nonce), v.now()) {
		return ErrDoubleSpend
	}
	return nil
}

// SpentCount reports the number of remembered nonces.
func (v *Verifier) SpentCount() int {
	return v.spent.Len()
}

// StartSweeper expires old nonces in the background until Close.
func (v *Verifier) StartSweeper(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if dropped := v.spent.ExpireOlderThan(v.now().Add(-v.ttl)); dropped > 0 {
					v.log.Debug("expired spent tokens", "count", dropped)
				}
			case <-v.done:
				return
			}
		}
	}()
}

// Close stops the background sweeper.
func (v *Verifier) Close() {
	v.closeOnce.Do(func() { close(v.done) })
}
