// Package pirdb builds and holds the encoded blocklist database.
//
// The offline encoder transforms a plaintext entry set into sharded,
// HE-packable slot planes; the result is an immutable Generation that
// the query path borrows by reference count. Generation files written
// by the encoder are the only persisted state of the service.
package pirdb
