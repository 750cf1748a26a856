// Package pir implements the online query protocol: wire messages, the
// request error taxonomy, the server-side query processor, and the
// client-side query builder used by tests and tooling.
//
// Query evaluation is stateless: it reads a borrowed, immutable
// database generation and performs a fixed amount of homomorphic work
// regardless of which entry the encrypted selector targets.
package pir
