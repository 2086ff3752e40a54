//go:build ignore

// sign-claim.go - Signs a claim digest with an issuer claim-signer key
//
// Usage:
//   go run scripts/sign-claim.go -key <hex-privkey> -subject <identity-addr> -topic 1 -data "kyc passed"
//
// Produces the prefixed-hash signature the identity API expects in the
// claim's signature field. The signing key must hold claim-signer purpose
// on the issuer's identity for the claim to validate.

package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/harborfin/compliance-middleware/pkg/issuer"
)

func main() {
	var (
		keyHex  = flag.String("key", "", "hex-encoded secp256k1 private key")
		subject = flag.String("subject", "", "identity address the claim is about")
		topic   = flag.Uint64("topic", 0, "claim topic")
		data    = flag.String("data", "", "claim data")
	)
	flag.Parse()

	if *keyHex == "" || *subject == "" || *topic == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if !common.IsHexAddress(*subject) {
		log.Fatalf("invalid subject address: %s", *subject)
	}

	key, err := crypto.HexToECDSA(*keyHex)
	if err != nil {
		log.Fatalf("invalid private key: %v", err)
	}

	digest := issuer.ClaimDigest(common.HexToAddress(*subject), *topic, []byte(*data))
	prefixed := crypto.Keccak256Hash([]byte("\x19Ethereum Signed Message:\n32"), digest[:])
	sig, err := crypto.Sign(prefixed.Bytes(), key)
	if err != nil {
		log.Fatalf("failed to sign digest: %v", err)
	}

	fmt.Printf("signer:    %s\n", crypto.PubkeyToAddress(key.PublicKey).Hex())
	fmt.Printf("digest:    %s\n", hexutil.Encode(digest[:]))
	fmt.Printf("signature: %s\n", hexutil.Encode(sig))
}
