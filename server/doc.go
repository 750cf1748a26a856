// Package server exposes the query service over HTTP: the query and
// metadata endpoints plus the operational surface (health, readiness,
// drain, metrics).
package server
