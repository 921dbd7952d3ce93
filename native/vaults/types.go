package vaults

import (
	"fmt"
	"strings"
)

// ListingStatus represents the stored lifecycle states of a listing. A
// closed listing has no status of its own: the record is deleted.
type ListingStatus uint8

const (
	ListingOpen ListingStatus = iota
	ListingFinalized
)

// Valid reports whether the status value is within the supported range.
func (s ListingStatus) Valid() bool {
	switch s {
	case ListingOpen, ListingFinalized:
		return true
	default:
		return false
	}
}

func (s ListingStatus) String() string {
	switch s {
	case ListingOpen:
		return "open"
	case ListingFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("listingstatus(%d)", uint8(s))
	}
}

// Listing is a seller's escrowed asset offered at a stated ask, optionally
// restricted to a single buyer and optionally time-limited once finalized.
// The seller is immutable; Sale accumulates same-kind deposits while the
// listing is open.
type Listing struct {
	ID        string
	Seller    [20]byte
	Sale      Balance
	Ask       Balance
	Whitelist *[20]byte
	Deadline  int64
	CreatedAt int64
	Status    ListingStatus
}

// Clone returns a deep copy of the listing so callers can safely mutate the
// copy without affecting the stored instance.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	clone.Sale = l.Sale.Clone()
	clone.Ask = l.Ask.Clone()
	if l.Whitelist != nil {
		wl := *l.Whitelist
		clone.Whitelist = &wl
	}
	return &clone
}

// SanitizeListing validates and normalises the supplied listing, returning a
// cloned instance. The function does not mutate the original value.
func SanitizeListing(l *Listing) (*Listing, error) {
	if l == nil {
		return nil, fmt.Errorf("nil listing")
	}
	clone := l.Clone()
	clone.ID = strings.TrimSpace(clone.ID)
	if clone.ID == "" {
		return nil, fmt.Errorf("listing id required")
	}
	sale, err := SanitizeBalance(clone.Sale)
	if err != nil {
		return nil, fmt.Errorf("listing sale: %w", err)
	}
	clone.Sale = sale
	ask, err := SanitizeBalance(clone.Ask)
	if err != nil {
		return nil, fmt.Errorf("listing ask: %w", err)
	}
	clone.Ask = ask
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("invalid listing status: %d", clone.Status)
	}
	if clone.Status == ListingFinalized && clone.Deadline <= 0 {
		return nil, fmt.Errorf("finalized listing requires a deadline")
	}
	return clone, nil
}

// BucketStatus represents the stored lifecycle states of a bucket. A
// removed or withdrawn bucket has no status of its own: the record is
// deleted.
type BucketStatus uint8

const (
	BucketOpen BucketStatus = iota
	BucketConsumed
)

// Valid reports whether the status value is within the supported range.
func (s BucketStatus) Valid() bool {
	switch s {
	case BucketOpen, BucketConsumed:
		return true
	default:
		return false
	}
}

func (s BucketStatus) String() string {
	switch s {
	case BucketOpen:
		return "open"
	case BucketConsumed:
		return "consumed"
	default:
		return fmt.Sprintf("bucketstatus(%d)", uint8(s))
	}
}

// Bucket is a buyer's pre-funded escrow balance, scoped by owner so two
// owners may reuse the same identifier without collision. Once matched
// against a listing the bucket is consumed: its funds have moved to the
// seller and Purchased holds the listing's asset pending withdrawal.
type Bucket struct {
	ID            string
	Owner         [20]byte
	Funds         Balance
	Purchased     Balance
	PurchasedFrom string
	CreatedAt     int64
	Status        BucketStatus
}

// Clone returns a deep copy of the bucket.
func (b *Bucket) Clone() *Bucket {
	if b == nil {
		return nil
	}
	clone := *b
	clone.Funds = b.Funds.Clone()
	clone.Purchased = b.Purchased.Clone()
	return &clone
}

// SanitizeBucket validates and normalises the supplied bucket, returning a
// cloned instance. The function does not mutate the original value.
func SanitizeBucket(b *Bucket) (*Bucket, error) {
	if b == nil {
		return nil, fmt.Errorf("nil bucket")
	}
	clone := b.Clone()
	clone.ID = strings.TrimSpace(clone.ID)
	if clone.ID == "" {
		return nil, fmt.Errorf("bucket id required")
	}
	funds, err := SanitizeBalance(clone.Funds)
	if err != nil {
		return nil, fmt.Errorf("bucket funds: %w", err)
	}
	clone.Funds = funds
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("invalid bucket status: %d", clone.Status)
	}
	if clone.Status == BucketConsumed {
		purchased, err := SanitizeBalance(clone.Purchased)
		if err != nil {
			return nil, fmt.Errorf("bucket purchased: %w", err)
		}
		clone.Purchased = purchased
	}
	return clone, nil
}

// Config is the singleton exchange configuration. The admin address is set
// once at bootstrap and read-only afterwards.
type Config struct {
	Admin [20]byte
}

// Transfer is a custody-release effect produced by an engine operation: the
// literal instruction to move the asset to an external address. The adapter
// layer executes the effects after the operation commits.
type Transfer struct {
	To    [20]byte
	Asset Balance
}
