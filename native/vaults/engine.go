package vaults

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Reecepbcups/juno-vaults/core/events"
	"github.com/Reecepbcups/juno-vaults/core/types"
)

var errNilState = errors.New("vaults engine: state not configured")

// engineState is the persistence surface the engine requires. Implementations
// must provide read-your-writes consistency within a single operation.
type engineState interface {
	ListingPut(*Listing) error
	ListingGet(id string) (*Listing, bool, error)
	ListingDelete(id string) error
	BucketPut(*Bucket) error
	BucketGet(owner [20]byte, id string) (*Bucket, bool, error)
	BucketDelete(owner [20]byte, id string) error
}

type vaultEvent struct {
	evt *types.Event
}

func (e vaultEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e vaultEvent) Event() *types.Event { return e.evt }

// Engine wires the listing and bucket ledgers with external state and event
// emitters. Every operation is all-or-nothing: validation happens before any
// ledger write, so a failed call leaves both ledgers untouched.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
	newIDFn func() string
}

// NewEngine creates an exchange engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
		newIDFn: uuid.NewString,
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily
// intended for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetIDFunc overrides the listing identifier allocator. Primarily intended
// for tests to produce deterministic ids.
func (e *Engine) SetIDFunc(newID func() string) {
	if newID == nil {
		e.newIDFn = uuid.NewString
		return
	}
	e.newIDFn = newID
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(vaultEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) loadListing(id string) (*Listing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	listing, ok, err := e.state.ListingGet(strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrListingNotFound
	}
	return listing, nil
}

func (e *Engine) loadBucket(owner [20]byte, id string) (*Bucket, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	bucket, ok, err := e.state.BucketGet(owner, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrBucketNotFound
	}
	return bucket, nil
}

// CreateListing escrows the deposit under a new listing owned by the seller.
// The identifier is caller-supplied when non-empty, otherwise allocated.
// Native, token and NFT deposits all converge on this single creation rule.
func (e *Engine) CreateListing(seller [20]byte, deposit, ask Balance, whitelist *[20]byte, id string) (*Listing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	sale, err := SanitizeBalance(deposit)
	if err != nil {
		return nil, err
	}
	if sale.IsZero() {
		return nil, ErrEmptyBalance
	}
	wantAsk, err := SanitizeBalance(ask)
	if err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		id = e.newIDFn()
	} else {
		if _, ok, getErr := e.state.ListingGet(id); getErr != nil {
			return nil, getErr
		} else if ok {
			return nil, ErrListingExists
		}
	}
	listing := &Listing{
		ID:        id,
		Seller:    seller,
		Sale:      sale,
		Ask:       wantAsk,
		CreatedAt: e.now(),
		Status:    ListingOpen,
	}
	if whitelist != nil {
		wl := *whitelist
		listing.Whitelist = &wl
	}
	if err := e.state.ListingPut(listing); err != nil {
		return nil, err
	}
	e.emit(NewListingCreatedEvent(listing))
	return listing.Clone(), nil
}

// AddFundsToSale increases the escrowed sale asset of an open listing.
// Top-ups are seller-only so third parties cannot silently change a
// listing's economics, and NFT listings always hold exactly one item.
func (e *Engine) AddFundsToSale(id string, depositor [20]byte, amount Balance) (*Listing, error) {
	listing, err := e.loadListing(id)
	if err != nil {
		return nil, err
	}
	if listing.Seller != depositor {
		return nil, ErrUnauthorized
	}
	if listing.Status != ListingOpen {
		return nil, ErrNotOpen
	}
	if listing.Sale.Kind == AssetNFT {
		return nil, ErrNFTAlreadyListed
	}
	added, err := SanitizeBalance(amount)
	if err != nil {
		return nil, err
	}
	if added.IsZero() {
		return nil, ErrEmptyBalance
	}
	sum, err := listing.Sale.Add(added)
	if err != nil {
		return nil, err
	}
	listing.Sale = sum
	if err := e.state.ListingPut(listing); err != nil {
		return nil, err
	}
	e.emit(NewFundsAddedEvent(listing))
	return listing.Clone(), nil
}

// ChangeAsk replaces the ask of an open listing. Seller-only.
func (e *Engine) ChangeAsk(id string, caller [20]byte, newAsk Balance) (*Listing, error) {
	listing, err := e.loadListing(id)
	if err != nil {
		return nil, err
	}
	if listing.Seller != caller {
		return nil, ErrUnauthorized
	}
	if listing.Status != ListingOpen {
		return nil, ErrNotOpen
	}
	ask, err := SanitizeBalance(newAsk)
	if err != nil {
		return nil, err
	}
	listing.Ask = ask
	if err := e.state.ListingPut(listing); err != nil {
		return nil, err
	}
	e.emit(NewAskChangedEvent(listing))
	return listing.Clone(), nil
}

// SetWhitelistedBuyer restricts an open listing to a single buyer, or clears
// the restriction when buyer is nil. Seller-only.
func (e *Engine) SetWhitelistedBuyer(id string, caller [20]byte, buyer *[20]byte) (*Listing, error) {
	listing, err := e.loadListing(id)
	if err != nil {
		return nil, err
	}
	if listing.Seller != caller {
		return nil, ErrUnauthorized
	}
	if listing.Status != ListingOpen {
		return nil, ErrNotOpen
	}
	if buyer == nil {
		listing.Whitelist = nil
	} else {
		wl := *buyer
		listing.Whitelist = &wl
	}
	if err := e.state.ListingPut(listing); err != nil {
		return nil, err
	}
	e.emit(NewWhitelistChangedEvent(listing))
	return listing.Clone(), nil
}

// RemoveListing deletes an open listing and returns the escrowed asset to
// the seller. Seller-only.
func (e *Engine) RemoveListing(id string, caller [20]byte) ([]Transfer, error) {
	listing, err := e.loadListing(id)
	if err != nil {
		return nil, err
	}
	if listing.Seller != caller {
		return nil, ErrUnauthorized
	}
	if listing.Status != ListingOpen {
		return nil, ErrNotOpen
	}
	if err := e.state.ListingDelete(listing.ID); err != nil {
		return nil, err
	}
	e.emit(NewListingRemovedEvent(listing))
	return []Transfer{{To: listing.Seller, Asset: listing.Sale.Clone()}}, nil
}

// Finalize starts the expiration countdown on an open listing: after
// now+seconds the listing can no longer be purchased and becomes refundable
// to the seller. A listing must be finalized before it can expire, which
// prevents instant refund-griefing. Seller-only.
func (e *Engine) Finalize(id string, caller [20]byte, seconds int64) (*Listing, error) {
	listing, err := e.loadListing(id)
	if err != nil {
		return nil, err
	}
	if listing.Seller != caller {
		return nil, ErrUnauthorized
	}
	if listing.Status != ListingOpen {
		return nil, ErrAlreadyFinalized
	}
	if seconds <= 0 {
		return nil, fmt.Errorf("vaults: finalize window must be positive")
	}
	listing.Status = ListingFinalized
	listing.Deadline = e.now() + seconds
	if err := e.state.ListingPut(listing); err != nil {
		return nil, err
	}
	e.emit(NewListingFinalizedEvent(listing))
	return listing.Clone(), nil
}

// RefundExpired returns the escrowed asset of a finalized, expired listing
// to the seller and deletes the record. The deadline is inclusive for
// refunds and exclusive for purchases. Seller-only.
func (e *Engine) RefundExpired(id string, caller [20]byte, now int64) ([]Transfer, error) {
	listing, err := e.loadListing(id)
	if err != nil {
		return nil, err
	}
	if listing.Seller != caller {
		return nil, ErrUnauthorized
	}
	if listing.Status != ListingFinalized {
		return nil, ErrNotFinalized
	}
	if now < listing.Deadline {
		return nil, ErrNotExpired
	}
	if err := e.state.ListingDelete(listing.ID); err != nil {
		return nil, err
	}
	e.emit(NewListingRefundedEvent(listing))
	return []Transfer{{To: listing.Seller, Asset: listing.Sale.Clone()}}, nil
}

// CreateBucket escrows the deposit under a new bucket scoped to the owner.
func (e *Engine) CreateBucket(owner [20]byte, id string, deposit Balance) (*Bucket, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("vaults: bucket id required")
	}
	funds, err := SanitizeBalance(deposit)
	if err != nil {
		return nil, err
	}
	if funds.IsZero() {
		return nil, ErrEmptyBalance
	}
	if _, ok, getErr := e.state.BucketGet(owner, id); getErr != nil {
		return nil, getErr
	} else if ok {
		return nil, ErrBucketExists
	}
	bucket := &Bucket{
		ID:        id,
		Owner:     owner,
		Funds:     funds,
		CreatedAt: e.now(),
		Status:    BucketOpen,
	}
	if err := e.state.BucketPut(bucket); err != nil {
		return nil, err
	}
	e.emit(NewBucketCreatedEvent(bucket))
	return bucket.Clone(), nil
}

// AddToBucket increases the escrowed balance of an open bucket. NFT buckets
// always hold exactly one item.
func (e *Engine) AddToBucket(owner [20]byte, id string, amount Balance) (*Bucket, error) {
	bucket, err := e.loadBucket(owner, id)
	if err != nil {
		return nil, err
	}
	if bucket.Status != BucketOpen {
		return nil, ErrNotOpen
	}
	if bucket.Funds.Kind == AssetNFT {
		return nil, ErrNFTAlreadyHeld
	}
	added, err := SanitizeBalance(amount)
	if err != nil {
		return nil, err
	}
	if added.IsZero() {
		return nil, ErrEmptyBalance
	}
	sum, err := bucket.Funds.Add(added)
	if err != nil {
		return nil, err
	}
	bucket.Funds = sum
	if err := e.state.BucketPut(bucket); err != nil {
		return nil, err
	}
	e.emit(NewBucketFundedEvent(bucket))
	return bucket.Clone(), nil
}

// RemoveBucket deletes an open bucket and returns the full escrow to the
// owner.
func (e *Engine) RemoveBucket(owner [20]byte, id string) ([]Transfer, error) {
	bucket, err := e.loadBucket(owner, id)
	if err != nil {
		return nil, err
	}
	if bucket.Status != BucketOpen {
		return nil, ErrNotOpen
	}
	if err := e.state.BucketDelete(bucket.Owner, bucket.ID); err != nil {
		return nil, err
	}
	e.emit(NewBucketRemovedEvent(bucket))
	return []Transfer{{To: bucket.Owner, Asset: bucket.Funds.Clone()}}, nil
}

// WithdrawPurchased releases the purchased asset of a consumed bucket to its
// owner and deletes the record.
func (e *Engine) WithdrawPurchased(owner [20]byte, id string) ([]Transfer, error) {
	bucket, err := e.loadBucket(owner, id)
	if err != nil {
		return nil, err
	}
	if bucket.Status != BucketConsumed {
		return nil, ErrNotPurchased
	}
	if err := e.state.BucketDelete(bucket.Owner, bucket.ID); err != nil {
		return nil, err
	}
	e.emit(NewPurchaseWithdrawnEvent(bucket))
	return []Transfer{{To: bucket.Owner, Asset: bucket.Purchased.Clone()}}, nil
}

// BuyListing atomically matches the buyer's bucket against a listing.
// Preconditions are checked in order and the first failure wins. On success
// the full bucket balance moves wholesale to the seller (surplus over the
// ask is not refunded), the listing's sale asset becomes the bucket's
// purchased asset pending withdrawal, the listing record is deleted and the
// bucket transitions to consumed.
func (e *Engine) BuyListing(buyer [20]byte, listingID, bucketID string, now int64) ([]Transfer, error) {
	listing, err := e.loadListing(listingID)
	if err != nil {
		return nil, err
	}
	if listing.Status == ListingFinalized && now >= listing.Deadline {
		return nil, ErrNotPurchasable
	}
	if listing.Whitelist != nil && *listing.Whitelist != buyer {
		return nil, ErrNotWhitelisted
	}
	bucket, err := e.loadBucket(buyer, bucketID)
	if err != nil {
		return nil, err
	}
	if bucket.Status != BucketOpen {
		return nil, ErrNotOpen
	}
	if !bucket.Funds.Covers(listing.Ask) {
		return nil, ErrInsufficientFunds
	}

	proceeds := bucket.Funds.Clone()
	bucket.Funds = Balance{Kind: proceeds.Kind, Denom: proceeds.Denom, Issuer: proceeds.Issuer}
	bucket.Purchased = listing.Sale.Clone()
	bucket.PurchasedFrom = listing.ID
	bucket.Status = BucketConsumed
	if err := e.state.BucketPut(bucket); err != nil {
		return nil, err
	}
	if err := e.state.ListingDelete(listing.ID); err != nil {
		return nil, err
	}
	e.emit(NewListingSoldEvent(listing, bucket))
	return []Transfer{{To: listing.Seller, Asset: proceeds}}, nil
}
