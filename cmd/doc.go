// Package cmd provides the service CLI commands.
//
// # Commands
//
// server: Runs the query service. Loads the newest database generation
// from the generation directory, watches it for new generations, and
// serves the query API.
//
//	go run ./cmd/server --config=server.yaml
//	go run ./cmd/server --generations=./generations --open
//
// encoder: Builds a database generation from an entry list and writes
// it atomically into the generation directory.
//
//	go run ./cmd/encoder --in=blocklist.txt --out=./generations --shards=16
//
// issuer: Generates issuer key pairs and mints single-use authorization
// tokens.
//
//	go run ./cmd/issuer --keygen
//	go run ./cmd/issuer --key=<hex> --count=10
//
// # Configuration
//
// The server command supports a YAML configuration file via the
// --config flag. Command-line flags override config file values.
//
// Example server configuration:
//
//	listen_addr: ":8080"
//	metrics_addr: ":9090"
//	generation_dir: "./generations"
//	query_timeout: 30s
//	issuer_keys:
//	  - "4f2c..."
//	open_mode: false
//	token_ttl: 24h
package cmd
