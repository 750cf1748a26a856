// Package privacypass implements redeemer-side verification of
// single-use authorization tokens, plus the issuer used by tooling and
// tests. A token proves the bearer obtained authorization without
// identifying them; the redemption path only checks the signature and
// that the token has not been spent before.
package privacypass
