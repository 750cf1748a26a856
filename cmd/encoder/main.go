// Command encoder builds a database generation from an entry list and
// publishes it into the generation directory the server watches.
//
// Entries are read one per line. The output file is written atomically,
// so a watching server only ever sees complete generations.
//
// # Usage
//
//	go run ./cmd/encoder --in=blocklist.txt --out=./generations --shards=16
package main

import (
	"bufio"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/PinkeshGjr/PIRService/cmd/common"
	"github.com/PinkeshGjr/PIRService/he"
	"github.com/PinkeshGjr/PIRService/pirdb"
)

func main() {
	var (
		inPath        = flag.String("in", "", "Entry list, one value per line")
		outDir        = flag.String("out", "generations", "Generation directory")
		profile       = flag.String("profile", string(he.ProfileBalanced), "Parameter profile: compact, balanced, or large")
		numShards     = flag.Int("shards", 16, "Number of database shards")
		slotsPerEntry = flag.Int("slots-per-entry", pirdb.DefaultSlotsPerEntry, "Tag width in plaintext slots")
		seedHex       = flag.String("seed", "", "Placement seed (hex, random if empty)")
		logJSON       = flag.Bool("log-json", false, "Log in JSON format")
	)
	flag.Parse()

	log := common.NewLogger(*logJSON, false)

	if *inPath == "" {
		log.Error("--in is required")
		os.Exit(1)
	}

	entries, err := readEntries(*inPath)
	if err != nil {
		log.Error("Reading entries", "err", err)
		os.Exit(1)
	}
	log.Info("Read entry set", "entries", len(entries), "path", *inPath)

	lit, err := he.ProfileLiteral(he.Profile(*profile))
	if err != nil {
		log.Error("Parameter profile error", "err", err)
		os.Exit(1)
	}
	scheme, err := he.NewManager().LoadLiteral(lit)
	if err != nil {
		log.Error("Parameter validation error", "err", err)
		os.Exit(1)
	}

	layout := pirdb.Layout{
		NumShards:     *numShards,
		SlotsPerEntry: *slotsPerEntry,
	}

	var gen *pirdb.Generation
	if *seedHex != "" {
		seed, err := hex.DecodeString(*seedHex)
		if err != nil {
			log.Error("Invalid seed", "err", err)
			os.Exit(1)
		}
		gen, err = pirdb.EncodeWithSeed(entries, seed, layout, scheme)
		if err != nil {
			fatalEncoding(log, err)
		}
	} else {
		gen, err = pirdb.Encode(entries, layout, scheme)
		if err != nil {
			fatalEncoding(log, err)
		}
	}

	outPath := filepath.Join(*outDir, fmt.Sprintf("gen-%s%s", gen.ID, pirdb.FileExt))
	if err := pirdb.WriteFile(outPath, gen); err != nil {
		log.Error("Writing generation file", "err", err)
		os.Exit(1)
	}

	log.Info("Published generation",
		"generation", gen.ID,
		"params", gen.ParamsID,
		"shards", gen.NumShards,
		"capacity", gen.NumShards*gen.EntriesPerShard,
		"path", outPath,
	)
}

func fatalEncoding(log *slog.Logger, err error) {
	var encErr *pirdb.EncodingError
	if errors.As(err, &encErr) {
		log.Error("Entry set exceeds layout capacity; increase shards or ring size",
			"entries", encErr.Entries, "capacity", encErr.Capacity, "attempts", encErr.Attempts)
	} else {
		log.Error("Encoding failed", "err", err)
	}
	os.Exit(1)
}

func readEntries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []string
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		entries = append(entries, line)
	}
	return entries, scanner.Err()
}
