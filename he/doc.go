// Package he owns the homomorphic-encryption scheme configuration and
// exposes the evaluation capabilities the rest of the service needs.
//
// The scheme internals (ring arithmetic, modulus chains) are delegated
// to lattigo's BGV implementation; nothing outside this package touches
// polynomial math directly. A Scheme is loaded once per database
// generation and is read-only afterwards.
package he
