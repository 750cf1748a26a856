package privacypass

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/sha3"
)

// PublicKey is an issuer verification key. The redeemer holds one per
// trusted issuer and selects it by key ID during verification.
// The implementation uses Ed25519 public keys.
type PublicKey []byte

// NewPublicKeyFromString creates a PublicKey from a hex-encoded string,
// the form keys take in configuration files.
func NewPublicKeyFromString(data string) (PublicKey, error) {
	rawBytes, err := hex.DecodeString(data)
	if err != nil {
		return nil, err
	}
	if len(rawBytes) != ed25519.PublicKeySize {
		return nil, errors.New("privacypass: invalid public key size")
	}
	return PublicKey(rawBytes), nil
}

// Bytes returns the public key as a byte slice.
func (pk PublicKey) Bytes() []byte {
	return pk
}

// String returns a hex-encoded string representation of the public key.
func (pk PublicKey) String() string {
	return hex.EncodeToString(pk)
}

// KeyID returns the short identifier tokens carry to select this key.
func (pk PublicKey) KeyID() string {
	digest := sha3.Sum256(pk)
	return hex.EncodeToString(digest[:8])
}

// PrivateKey is an issuer signing key. Only the issuer holds it; the
// redemption service never sees private key material.
type PrivateKey []byte

// Bytes returns the private key as a byte slice. This method should be
// used carefully as it exposes sensitive key material.
func (sk PrivateKey) Bytes() []byte {
	return sk
}

// PublicKey derives the verification key corresponding to this signing
// key. For Ed25519, the public key is contained within the private key
// structure.
func (sk PrivateKey) PublicKey() (PublicKey, error) {
	if len(sk) != ed25519.PrivateKeySize {
		return nil, errors.New("privacypass: invalid private key size")
	}
	return PublicKey(sk[32:]), nil
}

// GenerateKeyPair generates a new Ed25519 issuer key pair.
func GenerateKeyPair() (PublicKey, PrivateKey, error) {
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return PublicKey(publicKey), PrivateKey(privateKey), nil
}
