package privacypass

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

// signContext domain-separates token signatures from any other use of
// the issuer key.
const signContext = "pir-blocklist-redemption-v1"

const (
	keyIDLen = 8
	nonceLen = 32

	tokenLen = keyIDLen + nonceLen + ed25519.SignatureSize
)

// Token is a single-use authorization credential: an issuer key
// identifier, a random nonce, and the issuer's signature over the
// nonce. Nothing in it identifies the bearer.
type Token struct {
	IssuerKeyID string
	Nonce       []byte
	Signature   []byte
}

// signedPayload is the byte string the issuer signs.
func signedPayload(nonce []byte) []byte {
	payload := make([]byte, 0, len(signContext)+nonceLen)
	payload = append(payload, signContext...)
	payload = append(payload, nonce...)
	return payload
}

// Encode serializes the token to the base64 header form.
func (t *Token) Encode() (string, error) {
	keyID, err := hex.DecodeString(t.IssuerKeyID)
	if err != nil || len(keyID) != keyIDLen {
		return "", errors.New("privacypass: malformed issuer key ID")
	}
	if len(t.Nonce) != nonceLen || len(t.Signature) != ed25519.SignatureSize {
		return "", errors.New("privacypass: malformed token fields")
	}
	raw := make([]byte, 0, tokenLen)
	raw = append(raw, keyID...)
	raw = append(raw, t.Nonce...)
	raw = append(raw, t.Signature...)
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeToken parses the base64 header form of a token.
func DecodeToken(encoded string) (*Token, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("privacypass: undecodable token: %w", err)
	}
	if len(raw) != tokenLen {
		return nil, fmt.Errorf("privacypass: token is %d bytes, want %d", len(raw), tokenLen)
	}
	return &Token{
		IssuerKeyID: hex.EncodeToString(raw[:keyIDLen]),
		Nonce:       raw[keyIDLen : keyIDLen+nonceLen],
		Signature:   raw[keyIDLen+nonceLen:],
	}, nil
}

// Issuer mints tokens. It lives in the issuance service and in test
// fixtures; the redemption service only holds public keys.
type Issuer struct {
	sk    PrivateKey
	keyID string
}

// NewIssuer creates an issuer from a signing key.
func NewIssuer(sk PrivateKey) (*Issuer, error) {
	pk, err := sk.PublicKey()
	if err != nil {
		return nil, err
	}
	return &Issuer{sk: sk, keyID: pk.KeyID()}, nil
}

// KeyID returns the identifier tokens minted by this issuer carry.
func (i *Issuer) KeyID() string {
	return i.keyID
}

// Issue mints a fresh single-use token.
func (i *Issuer) Issue() (*Token, error) {
	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("privacypass: nonce generation failed: %w", err)
	}
	sig := ed25519.Sign(ed25519.PrivateKey(i.sk), signedPayload(nonce))
	return &Token{
		IssuerKeyID: i.keyID,
		Nonce:       nonce,
		Signature:   sig,
	}, nil
}
