// Package testutil provides shared fixtures for package tests: scheme
// handles, encoded generations, and issued tokens.
package testutil

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/PinkeshGjr/PIRService/he"
	"github.com/PinkeshGjr/PIRService/pirdb"
	"github.com/PinkeshGjr/PIRService/privacypass"
)

// NewCompactScheme loads the compact parameter profile into a fresh
// manager. Tests use the smallest profile to keep key generation and
// evaluation fast.
func NewCompactScheme(t *testing.T) (*he.Manager, *he.Scheme) {
	t.Helper()
	lit, err := he.ProfileLiteral(he.ProfileCompact)
	require.NoError(t, err)
	manager := he.NewManager()
	scheme, err := manager.LoadLiteral(lit)
	require.NoError(t, err)
	return manager, scheme
}

// Entries generates a deterministic entry set.
func Entries(count int) []string {
	entries := make([]string, count)
	for i := range entries {
		entries[i] = fmt.Sprintf("blocked-domain-%03d.example", i)
	}
	return entries
}

// NewGeneration encodes and prepares a generation over a deterministic
// entry set.
func NewGeneration(t *testing.T, scheme *he.Scheme, numShards, numEntries int) *pirdb.Generation {
	t.Helper()
	gen, err := pirdb.Encode(Entries(numEntries), pirdb.Layout{NumShards: numShards}, scheme)
	require.NoError(t, err)
	require.NoError(t, gen.Prepare(he.NewEngine(scheme)))
	return gen
}

// NewIssuer creates a token issuer with a fresh key pair and returns it
// with its public key.
func NewIssuer(t *testing.T) (*privacypass.Issuer, privacypass.PublicKey) {
	t.Helper()
	pk, sk, err := privacypass.GenerateKeyPair()
	require.NoError(t, err)
	issuer, err := privacypass.NewIssuer(sk)
	require.NoError(t, err)
	return issuer, pk
}

// IssueEncoded mints one token and returns its header encoding.
func IssueEncoded(t *testing.T, issuer *privacypass.Issuer) string {
	t.Helper()
	token, err := issuer.Issue()
	require.NoError(t, err)
	encoded, err := token.Encode()
	require.NoError(t, err)
	return encoded
}
