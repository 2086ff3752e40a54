// Package registry implements the identity registry: wallet-to-identity
// bindings with investor countries, and the verification algorithm that
// decides whether a wallet's identity satisfies every required claim topic.
package registry

import "github.com/ethereum/go-ethereum/common"

// Binding links a wallet address to an identity and a numeric country code
// (ISO 3166-1). A wallet has at most one binding; a wallet without a binding
// is always unverified.
type Binding struct {
	Wallet   common.Address
	Identity common.Address
	Country  uint16
}
