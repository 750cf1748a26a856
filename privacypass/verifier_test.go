package privacypass

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIssuerAndVerifier(t *testing.T) (*Issuer, *Verifier) {
	t.Helper()
	pk, sk, err := GenerateKeyPair()
	require.NoError(t, err)
	issuer, err := NewIssuer(sk)
	require.NoError(t, err)
	verifier, err := NewVerifier(VerifierConfig{
		Keys: map[string]PublicKey{pk.KeyID(): pk},
	})
	require.NoError(t, err)
	return issuer, verifier
}

func issueEncoded(t *testing.T, issuer *Issuer) string {
	t.Helper()
	token, err := issuer.Issue()
	require.NoError(t, err)
	encoded, err := token.Encode()
	require.NoError(t, err)
	return encoded
}

func TestTokenRoundTrip(t *testing.T) {
	issuer, _ := newTestIssuerAndVerifier(t)

	token, err := issuer.Issue()
	require.NoError(t, err)
	encoded, err := token.Encode()
	require.NoError(t, err)

	decoded, err := DecodeToken(encoded)
	require.NoError(t, err)
	assert.Equal(t, token.IssuerKeyID, decoded.IssuerKeyID)
	assert.Equal(t, token.Nonce, decoded.Nonce)
	assert.Equal(t, token.Signature, decoded.Signature)
}

func TestDecodeTokenRejectsGarbage(t *testing.T) {
	_, err := DecodeToken("not base64!!!")
	assert.Error(t, err)

	_, err = DecodeToken("c2hvcnQ=")
	assert.Error(t, err)
}

func TestAuthorizeOnce(t *testing.T) {
	issuer, verifier := newTestIssuerAndVerifier(t)
	encoded := issueEncoded(t, issuer)

	require.NoError(t, verifier.Authorize(encoded))
	assert.ErrorIs(t, verifier.Authorize(encoded), ErrDoubleSpend)
}

func TestAuthorizeMissingToken(t *testing.T) {
	_, verifier := newTestIssuerAndVerifier(t)
	assert.ErrorIs(t, verifier.Authorize(""), ErrMissingToken)
}

func TestAuthorizeUnknownIssuer(t *testing.T) {
	_, verifier := newTestIssuerAndVerifier(t)

	_, otherSK, err := GenerateKeyPair()
	require.NoError(t, err)
	otherIssuer, err := NewIssuer(otherSK)
	require.NoError(t, err)

	err = verifier.Authorize(issueEncoded(t, otherIssuer))
	assert.ErrorIs(t, err, ErrUnknownIssuer)
}

func TestAuthorizeBadSignature(t *testing.T) {
	issuer, verifier := newTestIssuerAndVerifier(t)

	token, err := issuer.Issue()
	require.NoError(t, err)
	token.Signature[0] ^= 0xff
	encoded, err := token.Encode()
	require.NoError(t, err)

	assert.ErrorIs(t, verifier.Authorize(encoded), ErrBadSignature)
}

func TestConcurrentRedemptionAdmitsOne(t *testing.T) {
	issuer, verifier := newTestIssuerAndVerifier(t)
	encoded := issueEncoded(t, issuer)

	const attempts = 32
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- verifier.Authorize(encoded)
		}()
	}
	wg.Wait()
	close(results)

	admitted := 0
	for err := range results {
		if err == nil {
			admitted++
		} else {
			assert.ErrorIs(t, err, ErrDoubleSpend)
		}
	}
	assert.Equal(t, 1, admitted)
}

func TestOpenMode(t *testing.T) {
	verifier, err := NewVerifier(VerifierConfig{Open: true})
	require.NoError(t, err)

	assert.NoError(t, verifier.Authorize(""))
	assert.NoError(t, verifier.Authorize("anything"))
}

func TestClosedModeRequiresKeys(t *testing.T) {
	_, err := NewVerifier(VerifierConfig{})
	assert.Error(t, err)
}

func TestSpentTokenExpiry(t *testing.T) {
	spent := NewSpentTokenSet()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	require.True(t, spent.InsertIfAbsent("a", base))
	require.True(t, spent.InsertIfAbsent("b", base.Add(2*time.Hour)))
	require.False(t, spent.InsertIfAbsent("a", base.Add(3*time.Hour)))

	dropped := spent.ExpireOlderThan(base.Add(time.Hour))
	assert.Equal(t, 1, dropped)
	assert.Equal(t, 1, spent.Len())

	// An expired nonce is spendable again; key rotation on the same
	// horizon is what rules out replay in production.
	assert.True(t, spent.InsertIfAbsent("a", base.Add(4*time.Hour)))
}

func TestVerifierExpiryWindow(t *testing.T) {
	issuer, verifier := newTestIssuerAndVerifier(t)

	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	verifier.now = func() time.Time { return now }

	require.NoError(t, verifier.Authorize(issueEncoded(t, issuer)))
	require.NoError(t, verifier.Authorize(issueEncoded(t, issuer)))
	assert.Equal(t, 2, verifier.SpentCount())

	now = now.Add(verifier.ttl + time.Minute)
	verifier.spent.ExpireOlderThan(now.Add(-verifier.ttl))
	assert.Equal(t, 0, verifier.SpentCount())
}

func TestKeyID(t *testing.T) {
	pk, sk, err := GenerateKeyPair()
	require.NoError(t, err)

	issuer, err := NewIssuer(sk)
	require.NoError(t, err)
	assert.Equal(t, pk.KeyID(), issuer.KeyID())
	assert.Len(t, pk.KeyID(), 16)
}

func TestPublicKeyFromString(t *testing.T) {
	pk, _, err := GenerateKeyPair()
	require.NoError(t, err)

	parsed, err := NewPublicKeyFromString(pk.String())
	require.NoError(t, err)
	assert.Equal(t, pk.Bytes(), parsed.Bytes())

	_, err = NewPublicKeyFromString("zz")
	assert.Error(t, err)
	_, err = NewPublicKeyFromString("abcd")
	assert.Error(t, err)
}
