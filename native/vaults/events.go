package vaults

import (
	"encoding/hex"
	"strconv"

	"github.com/Reecepbcups/juno-vaults/core/types"
)

const (
	EventTypeListingCreated    = "vaults.listing.created"
	EventTypeListingFunded     = "vaults.listing.funded"
	EventTypeListingAskChanged = "vaults.listing.ask_changed"
	EventTypeListingWhitelist  = "vaults.listing.whitelist_changed"
	EventTypeListingRemoved    = "vaults.listing.removed"
	EventTypeListingFinalized  = "vaults.listing.finalized"
	EventTypeListingRefunded   = "vaults.listing.refunded"
	EventTypeListingSold       = "vaults.listing.sold"
	EventTypeBucketCreated     = "vaults.bucket.created"
	EventTypeBucketFunded      = "vaults.bucket.funded"
	EventTypeBucketRemoved     = "vaults.bucket.removed"
	EventTypePurchaseWithdrawn = "vaults.bucket.withdrawn"
)

// NewListingCreatedEvent returns the canonical payload for a new listing.
func NewListingCreatedEvent(l *Listing) *types.Event {
	return newListingEvent(EventTypeListingCreated, l)
}

// NewFundsAddedEvent returns the payload emitted when a seller tops up the
// sale asset.
func NewFundsAddedEvent(l *Listing) *types.Event {
	return newListingEvent(EventTypeListingFunded, l)
}

// NewAskChangedEvent returns the payload emitted when the ask is replaced.
func NewAskChangedEvent(l *Listing) *types.Event {
	return newListingEvent(EventTypeListingAskChanged, l)
}

// NewWhitelistChangedEvent returns the payload emitted when the whitelisted
// buyer is set or cleared.
func NewWhitelistChangedEvent(l *Listing) *types.Event {
	return newListingEvent(EventTypeListingWhitelist, l)
}

// NewListingRemovedEvent returns the payload emitted when the seller removes
// an open listing.
func NewListingRemovedEvent(l *Listing) *types.Event {
	return newListingEvent(EventTypeListingRemoved, l)
}

// NewListingFinalizedEvent returns the payload emitted when the expiration
// countdown starts.
func NewListingFinalizedEvent(l *Listing) *types.Event {
	return newListingEvent(EventTypeListingFinalized, l)
}

// NewListingRefundedEvent returns the payload emitted when an expired
// listing is refunded to the seller.
func NewListingRefundedEvent(l *Listing) *types.Event {
	return newListingEvent(EventTypeListingRefunded, l)
}

// NewListingSoldEvent returns the payload emitted when a bucket is matched
// against a listing.
func NewListingSoldEvent(l *Listing, b *Bucket) *types.Event {
	evt := newListingEvent(EventTypeListingSold, l)
	if b != nil {
		evt.Attributes["buyer"] = hex.EncodeToString(b.Owner[:])
		evt.Attributes["bucketId"] = b.ID
	}
	return evt
}

// NewBucketCreatedEvent returns the canonical payload for a new bucket.
func NewBucketCreatedEvent(b *Bucket) *types.Event {
	return newBucketEvent(EventTypeBucketCreated, b)
}

// NewBucketFundedEvent returns the payload emitted when the owner tops up a
// bucket.
func NewBucketFundedEvent(b *Bucket) *types.Event {
	return newBucketEvent(EventTypeBucketFunded, b)
}

// NewBucketRemovedEvent returns the payload emitted when an open bucket is
// withdrawn by its owner.
func NewBucketRemovedEvent(b *Bucket) *types.Event {
	return newBucketEvent(EventTypeBucketRemoved, b)
}

// NewPurchaseWithdrawnEvent returns the payload emitted when a consumed
// bucket's purchased asset is released.
func NewPurchaseWithdrawnEvent(b *Bucket) *types.Event {
	return newBucketEvent(EventTypePurchaseWithdrawn, b)
}

func balanceAttrs(attrs map[string]string, prefix string, b Balance) {
	attrs[prefix+"Kind"] = b.Kind.String()
	switch b.Kind {
	case AssetNative:
		attrs[prefix+"Denom"] = b.Denom
		attrs[prefix+"Amount"] = cloneBigInt(b.Amount).String()
	case AssetToken:
		attrs[prefix+"Issuer"] = hex.EncodeToString(b.Issuer[:])
		attrs[prefix+"Amount"] = cloneBigInt(b.Amount).String()
	case AssetNFT:
		attrs[prefix+"Issuer"] = hex.EncodeToString(b.Issuer[:])
		attrs[prefix+"TokenId"] = b.TokenID
	}
}

func newListingEvent(eventType string, l *Listing) *types.Event {
	attrs := make(map[string]string)
	if l == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	sanitized, err := SanitizeListing(l)
	if err != nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["id"] = sanitized.ID
	attrs["seller"] = hex.EncodeToString(sanitized.Seller[:])
	attrs["status"] = sanitized.Status.String()
	attrs["createdAt"] = strconv.FormatInt(sanitized.CreatedAt, 10)
	balanceAttrs(attrs, "sale", sanitized.Sale)
	balanceAttrs(attrs, "ask", sanitized.Ask)
	if sanitized.Whitelist != nil {
		attrs["whitelist"] = hex.EncodeToString(sanitized.Whitelist[:])
	}
	if sanitized.Deadline > 0 {
		attrs["deadline"] = strconv.FormatInt(sanitized.Deadline, 10)
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func newBucketEvent(eventType string, b *Bucket) *types.Event {
	attrs := make(map[string]string)
	if b == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	sanitized, err := SanitizeBucket(b)
	if err != nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["id"] = sanitized.ID
	attrs["owner"] = hex.EncodeToString(sanitized.Owner[:])
	attrs["status"] = sanitized.Status.String()
	attrs["createdAt"] = strconv.FormatInt(sanitized.CreatedAt, 10)
	balanceAttrs(attrs, "funds", sanitized.Funds)
	if sanitized.Status == BucketConsumed {
		balanceAttrs(attrs, "purchased", sanitized.Purchased)
		attrs["listingId"] = sanitized.PurchasedFrom
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
