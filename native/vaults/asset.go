package vaults

import (
	"fmt"
	"math/big"
	"strings"
)

// AssetKind discriminates the closed set of balance variants handled by the
// exchange.
type AssetKind uint8

const (
	// AssetNative is an amount of the chain's native coin, identified by
	// its denomination string.
	AssetNative AssetKind = iota
	// AssetToken is an amount of a fungible token identified by the
	// issuing contract address.
	AssetToken
	// AssetNFT is a single non-fungible item identified by the issuing
	// contract address and a token id. It carries no quantity.
	AssetNFT
)

// Valid reports whether the kind value is within the supported range.
func (k AssetKind) Valid() bool {
	switch k {
	case AssetNative, AssetToken, AssetNFT:
		return true
	default:
		return false
	}
}

func (k AssetKind) String() string {
	switch k {
	case AssetNative:
		return "native"
	case AssetToken:
		return "token"
	case AssetNFT:
		return "nft"
	default:
		return fmt.Sprintf("assetkind(%d)", uint8(k))
	}
}

// Balance is the tagged representation of escrowed value. Exactly one
// variant is populated: Denom+Amount for native coin, Issuer+Amount for a
// fungible token, Issuer+TokenID for an NFT. Kind matching is required
// before any arithmetic or comparison.
type Balance struct {
	Kind    AssetKind
	Denom   string
	Issuer  [20]byte
	Amount  *big.Int
	TokenID string
}

// NativeBalance builds a native-coin balance.
func NativeBalance(denom string, amount *big.Int) Balance {
	return Balance{Kind: AssetNative, Denom: denom, Amount: cloneBigInt(amount)}
}

// TokenBalance builds a fungible-token balance.
func TokenBalance(issuer [20]byte, amount *big.Int) Balance {
	return Balance{Kind: AssetToken, Issuer: issuer, Amount: cloneBigInt(amount)}
}

// NFTBalance builds a balance denoting a single non-fungible item.
func NFTBalance(issuer [20]byte, tokenID string) Balance {
	return Balance{Kind: AssetNFT, Issuer: issuer, TokenID: strings.TrimSpace(tokenID)}
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// Clone returns a deep copy so callers can mutate the result without
// affecting stored records.
func (b Balance) Clone() Balance {
	clone := b
	clone.Amount = cloneBigInt(b.Amount)
	return clone
}

// IsZero reports whether the balance carries no value: a zero quantity for
// native/token variants or an absent item for the NFT variant.
func (b Balance) IsZero() bool {
	switch b.Kind {
	case AssetNFT:
		return b.TokenID == ""
	default:
		return b.Amount == nil || b.Amount.Sign() == 0
	}
}

// sameClass reports whether two balances denote the same kind of value and
// may therefore be combined or compared.
func (b Balance) sameClass(o Balance) bool {
	if b.Kind != o.Kind {
		return false
	}
	switch b.Kind {
	case AssetNative:
		return b.Denom == o.Denom
	default:
		return b.Issuer == o.Issuer
	}
}

// Equal reports full value equality, including the quantity or item id.
func (b Balance) Equal(o Balance) bool {
	if !b.sameClass(o) {
		return false
	}
	if b.Kind == AssetNFT {
		return b.TokenID == o.TokenID
	}
	return cloneBigInt(b.Amount).Cmp(cloneBigInt(o.Amount)) == 0
}

// Add combines two balances of the same class and returns the sum. It fails
// with ErrAssetMismatch when the kinds, denominations or issuers diverge and
// with ErrDuplicateNFT when both sides already denote a present item.
func (b Balance) Add(o Balance) (Balance, error) {
	if b.Kind == AssetNFT && o.Kind == AssetNFT && !b.IsZero() && !o.IsZero() {
		return Balance{}, ErrDuplicateNFT
	}
	if !b.sameClass(o) {
		return Balance{}, ErrAssetMismatch
	}
	if b.Kind == AssetNFT {
		if b.IsZero() {
			return o.Clone(), nil
		}
		return b.Clone(), nil
	}
	sum := b.Clone()
	sum.Amount = new(big.Int).Add(cloneBigInt(b.Amount), cloneBigInt(o.Amount))
	return sum, nil
}

// Covers reports whether the balance meets or exceeds the ask. Fungible
// variants compare quantity within the same class; the NFT variant requires
// an exact identifier match.
func (b Balance) Covers(ask Balance) bool {
	if !b.sameClass(ask) {
		return false
	}
	if b.Kind == AssetNFT {
		return b.TokenID != "" && b.TokenID == ask.TokenID
	}
	return cloneBigInt(b.Amount).Cmp(cloneBigInt(ask.Amount)) >= 0
}

// SanitizeBalance validates and normalises a balance: canonical denom
// trimming, non-nil and non-negative amount, and a token id for NFT
// variants when one is present. The input value is not mutated.
func SanitizeBalance(b Balance) (Balance, error) {
	if !b.Kind.Valid() {
		return Balance{}, fmt.Errorf("invalid asset kind: %d", b.Kind)
	}
	clone := b.Clone()
	switch clone.Kind {
	case AssetNative:
		clone.Denom = strings.TrimSpace(clone.Denom)
		if clone.Denom == "" {
			return Balance{}, fmt.Errorf("native balance requires a denomination")
		}
	case AssetNFT:
		clone.TokenID = strings.TrimSpace(clone.TokenID)
		clone.Amount = big.NewInt(0)
	}
	if clone.Amount.Sign() < 0 {
		return Balance{}, fmt.Errorf("balance amount must be non-negative")
	}
	return clone, nil
}
