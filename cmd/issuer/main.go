// Command issuer manages authorization token issuance. It can generate
// issuer key pairs and mint batches of single-use tokens for testing
// and manual operation.
//
// # Usage
//
//	go run ./cmd/issuer --keygen
//	go run ./cmd/issuer --key=<hex> --count=10
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/PinkeshGjr/PIRService/cmd/common"
	"github.com/PinkeshGjr/PIRService/privacypass"
)

func main() {
	var (
		keygen = flag.Bool("keygen", false, "Generate a new issuer key pair and exit")
		keyHex = flag.String("key", "", "Issuer signing key (hex)")
		count  = flag.Int("count", 1, "Number of tokens to mint")
	)
	flag.Parse()

	if *keygen {
		pk, sk, err := privacypass.GenerateKeyPair()
		if err != nil {
			fmt.Printf("Key generation error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("key id:      %s\n", pk.KeyID())
		fmt.Printf("public key:  %s\n", pk.String())
		fmt.Printf("signing key: %s\n", hex.EncodeToString(sk.Bytes()))
		return
	}

	sk, err := common.LoadOrGenerateIssuerKey(*keyHex)
	if err != nil {
		fmt.Printf("Signing key error: %v\n", err)
		os.Exit(1)
	}

	issuer, err := privacypass.NewIssuer(sk)
	if err != nil {
		fmt.Printf("Issuer error: %v\n", err)
		os.Exit(1)
	}
	if *keyHex == "" {
		pk, _ := sk.PublicKey()
		fmt.Fprintf(os.Stderr, "generated issuer key %s (public %s)\n", issuer.KeyID(), pk.String())
	}

	for i := 0; i < *count; i++ {
		token, err := issuer.Issue()
		if err != nil {
			fmt.Printf("Issue error: %v\n", err)
			os.Exit(1)
		}
		encoded, err := token.Encode()
		if err != nil {
			fmt.Printf("Encode error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(encoded)
	}
}
