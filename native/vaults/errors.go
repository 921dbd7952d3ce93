package vaults

import "errors"

// Failure taxonomy for the exchange engine. Every operation fails fast with
// one of these sentinels and leaves the ledgers untouched; the RPC layer
// maps them onto caller-visible error codes.
var (
	ErrListingNotFound = errors.New("vaults: listing not found")
	ErrBucketNotFound  = errors.New("vaults: bucket not found")
	ErrConfigNotFound  = errors.New("vaults: config not found")

	ErrUnauthorized = errors.New("vaults: caller is not the owner")

	ErrNotOpen          = errors.New("vaults: record is not open")
	ErrAlreadyFinalized = errors.New("vaults: listing already finalized")
	ErrNotFinalized     = errors.New("vaults: listing not finalized")
	ErrNotExpired       = errors.New("vaults: finalization deadline not reached")
	ErrNotPurchasable   = errors.New("vaults: listing not purchasable")
	ErrNotPurchased     = errors.New("vaults: bucket holds no purchased asset")

	ErrAssetMismatch    = errors.New("vaults: asset kind or denomination mismatch")
	ErrDuplicateNFT     = errors.New("vaults: balance already holds an nft")
	ErrNFTAlreadyListed = errors.New("vaults: nft listing cannot accept additional funds")
	ErrNFTAlreadyHeld   = errors.New("vaults: nft bucket cannot accept additional funds")

	ErrInsufficientFunds = errors.New("vaults: bucket balance below ask")
	ErrEmptyBalance      = errors.New("vaults: balance must not be empty")
	ErrNotWhitelisted    = errors.New("vaults: buyer is not whitelisted")
	ErrBucketExists      = errors.New("vaults: bucket id already in use")
	ErrListingExists     = errors.New("vaults: listing id already in use")
)
