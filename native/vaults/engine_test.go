package vaults

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/Reecepbcups/juno-vaults/core/events"
)

type mockState struct {
	listings map[string]*Listing
	buckets  map[string]*Bucket
}

func newMockState() *mockState {
	return &mockState{
		listings: make(map[string]*Listing),
		buckets:  make(map[string]*Bucket),
	}
}

func bucketKeyFor(owner [20]byte, id string) string {
	return fmt.Sprintf("%x/%s", owner, id)
}

func (m *mockState) ListingPut(l *Listing) error {
	sanitized, err := SanitizeListing(l)
	if err != nil {
		return err
	}
	m.listings[sanitized.ID] = sanitized
	return nil
}

func (m *mockState) ListingGet(id string) (*Listing, bool, error) {
	listing, ok := m.listings[id]
	if !ok {
		return nil, false, nil
	}
	return listing.Clone(), true, nil
}

func (m *mockState) ListingDelete(id string) error {
	delete(m.listings, id)
	return nil
}

func (m *mockState) BucketPut(b *Bucket) error {
	sanitized, err := SanitizeBucket(b)
	if err != nil {
		return err
	}
	m.buckets[bucketKeyFor(sanitized.Owner, sanitized.ID)] = sanitized
	return nil
}

func (m *mockState) BucketGet(owner [20]byte, id string) (*Bucket, bool, error) {
	bucket, ok := m.buckets[bucketKeyFor(owner, id)]
	if !ok {
		return nil, false, nil
	}
	return bucket.Clone(), true, nil
}

func (m *mockState) BucketDelete(owner [20]byte, id string) error {
	delete(m.buckets, bucketKeyFor(owner, id))
	return nil
}

type captureEmitter struct {
	types []string
}

func (c *captureEmitter) Emit(evt events.Event) {
	c.types = append(c.types, evt.EventType())
}

const testNow int64 = 1_700_000_000

func newTestEngine(t *testing.T) (*Engine, *mockState, *captureEmitter) {
	t.Helper()
	state := newMockState()
	emitter := &captureEmitter{}
	engine := NewEngine()
	engine.SetState(state)
	engine.SetEmitter(emitter)
	engine.SetNowFunc(func() int64 { return testNow })
	seq := 0
	engine.SetIDFunc(func() string {
		seq++
		return fmt.Sprintf("listing-%d", seq)
	})
	return engine, state, emitter
}

func addr(b byte) [20]byte {
	var out [20]byte
	out[0] = b
	return out
}

func TestCreateListing(t *testing.T) {
	engine, state, emitter := newTestEngine(t)
	seller := addr(1)

	listing, err := engine.CreateListing(seller, NativeBalance("ujuno", big.NewInt(100)), NativeBalance("uatom", big.NewInt(50)), nil, "")
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	if listing.ID != "listing-1" {
		t.Fatalf("expected allocated id, got %q", listing.ID)
	}
	if listing.Status != ListingOpen {
		t.Fatalf("expected open status, got %v", listing.Status)
	}
	if listing.CreatedAt != testNow {
		t.Fatalf("expected createdAt %d, got %d", testNow, listing.CreatedAt)
	}
	if _, ok := state.listings["listing-1"]; !ok {
		t.Fatal("listing not persisted")
	}
	if len(emitter.types) != 1 || emitter.types[0] != EventTypeListingCreated {
		t.Fatalf("unexpected events: %v", emitter.types)
	}
}

func TestCreateListingRejectsEmptyDeposit(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	_, err := engine.CreateListing(addr(1), NativeBalance("ujuno", big.NewInt(0)), NativeBalance("uatom", big.NewInt(1)), nil, "")
	if !errors.Is(err, ErrEmptyBalance) {
		t.Fatalf("expected ErrEmptyBalance, got %v", err)
	}
}

func TestCreateListingDuplicateID(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	seller := addr(1)
	if _, err := engine.CreateListing(seller, NativeBalance("ujuno", big.NewInt(1)), NativeBalance("uatom", big.NewInt(1)), nil, "dup"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := engine.CreateListing(seller, NativeBalance("ujuno", big.NewInt(1)), NativeBalance("uatom", big.NewInt(1)), nil, "dup")
	if !errors.Is(err, ErrListingExists) {
		t.Fatalf("expected ErrListingExists, got %v", err)
	}
}

func TestAddFundsToSale(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	seller := addr(1)
	listing, err := engine.CreateListing(seller, NativeBalance("ujuno", big.NewInt(100)), NativeBalance("uatom", big.NewInt(1)), nil, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := engine.AddFundsToSale(listing.ID, seller, NativeBalance("ujuno", big.NewInt(50)))
	if err != nil {
		t.Fatalf("add funds: %v", err)
	}
	if updated.Sale.Amount.Cmp(big.NewInt(150)) != 0 {
		t.Fatalf("expected 150, got %s", updated.Sale.Amount)
	}
	if state.listings[listing.ID].Sale.Amount.Cmp(big.NewInt(150)) != 0 {
		t.Fatal("stored listing not updated")
	}

	if _, err := engine.AddFundsToSale(listing.ID, addr(2), NativeBalance("ujuno", big.NewInt(1))); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-seller, got %v", err)
	}
	if _, err := engine.AddFundsToSale(listing.ID, seller, NativeBalance("uatom", big.NewInt(1))); !errors.Is(err, ErrAssetMismatch) {
		t.Fatalf("expected ErrAssetMismatch, got %v", err)
	}
}

func TestAddFundsToNFTListing(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	seller := addr(1)
	listing, err := engine.CreateListing(seller, NFTBalance(issuerA, "7"), NativeBalance("ujuno", big.NewInt(1)), nil, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := engine.AddFundsToSale(listing.ID, seller, NFTBalance(issuerA, "8")); !errors.Is(err, ErrNFTAlreadyListed) {
		t.Fatalf("expected ErrNFTAlreadyListed, got %v", err)
	}
}

func TestChangeAskAndWhitelist(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	seller := addr(1)
	buyer := addr(2)
	listing, err := engine.CreateListing(seller, NativeBalance("ujuno", big.NewInt(10)), NativeBalance("uatom", big.NewInt(5)), nil, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := engine.ChangeAsk(listing.ID, seller, TokenBalance(issuerA, big.NewInt(3)))
	if err != nil {
		t.Fatalf("change ask: %v", err)
	}
	if updated.Ask.Kind != AssetToken {
		t.Fatalf("expected token ask, got %v", updated.Ask.Kind)
	}

	updated, err = engine.SetWhitelistedBuyer(listing.ID, seller, &buyer)
	if err != nil {
		t.Fatalf("set whitelist: %v", err)
	}
	if updated.Whitelist == nil || *updated.Whitelist != buyer {
		t.Fatal("whitelist not applied")
	}

	updated, err = engine.SetWhitelistedBuyer(listing.ID, seller, nil)
	if err != nil {
		t.Fatalf("clear whitelist: %v", err)
	}
	if updated.Whitelist != nil {
		t.Fatal("whitelist not cleared")
	}

	if _, err := engine.ChangeAsk(listing.ID, buyer, NativeBalance("ujuno", big.NewInt(1))); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestWhitelistLockedAfterFinalize(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	seller := addr(1)
	buyer := addr(2)
	listing, err := engine.CreateListing(seller, NativeBalance("ujuno", big.NewInt(10)), NativeBalance("uatom", big.NewInt(5)), nil, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := engine.Finalize(listing.ID, seller, 600); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if _, err := engine.SetWhitelistedBuyer(listing.ID, seller, &buyer); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen, got %v", err)
	}
	if _, err := engine.ChangeAsk(listing.ID, seller, NativeBalance("ujuno", big.NewInt(1))); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen, got %v", err)
	}
}

func TestRemoveListing(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	seller := addr(1)
	listing, err := engine.CreateListing(seller, NativeBalance("ujuno", big.NewInt(100)), NativeBalance("uatom", big.NewInt(1)), nil, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := engine.RemoveListing(listing.ID, addr(2)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	transfers, err := engine.RemoveListing(listing.ID, seller)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(transfers) != 1 || transfers[0].To != seller {
		t.Fatalf("unexpected transfers: %+v", transfers)
	}
	if transfers[0].Asset.Amount.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected full escrow returned, got %s", transfers[0].Asset.Amount)
	}
	if _, ok := state.listings[listing.ID]; ok {
		t.Fatal("listing record not deleted")
	}

	if _, err := engine.RemoveListing(listing.ID, seller); !errors.Is(err, ErrListingNotFound) {
		t.Fatalf("expected ErrListingNotFound on repeat, got %v", err)
	}
}

func TestFinalizeAndRefund(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	seller := addr(1)
	listing, err := engine.CreateListing(seller, NativeBalance("ujuno", big.NewInt(100)), NativeBalance("uatom", big.NewInt(1)), nil, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := engine.RefundExpired(listing.ID, seller, testNow); !errors.Is(err, ErrNotFinalized) {
		t.Fatalf("expected ErrNotFinalized before finalize, got %v", err)
	}

	finalized, err := engine.Finalize(listing.ID, seller, 600)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if finalized.Deadline != testNow+600 {
		t.Fatalf("expected deadline %d, got %d", testNow+600, finalized.Deadline)
	}

	if _, err := engine.Finalize(listing.ID, seller, 600); !errors.Is(err, ErrAlreadyFinalized) {
		t.Fatalf("expected ErrAlreadyFinalized on repeat, got %v", err)
	}

	if _, err := engine.RefundExpired(listing.ID, seller, finalized.Deadline-1); !errors.Is(err, ErrNotExpired) {
		t.Fatalf("expected ErrNotExpired before deadline, got %v", err)
	}

	// The deadline itself is refundable.
	transfers, err := engine.RefundExpired(listing.ID, seller, finalized.Deadline)
	if err != nil {
		t.Fatalf("refund at deadline: %v", err)
	}
	if len(transfers) != 1 || transfers[0].To != seller {
		t.Fatalf("unexpected transfers: %+v", transfers)
	}
	if _, ok := state.listings[listing.ID]; ok {
		t.Fatal("listing record not deleted after refund")
	}
}

func TestCreateBucket(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	owner := addr(3)

	bucket, err := engine.CreateBucket(owner, "b1", NativeBalance("uatom", big.NewInt(50)))
	if err != nil {
		t.Fatalf("create bucket: %v", err)
	}
	if bucket.Status != BucketOpen {
		t.Fatalf("expected open bucket, got %v", bucket.Status)
	}
	if _, ok := state.buckets[bucketKeyFor(owner, "b1")]; !ok {
		t.Fatal("bucket not persisted")
	}

	if _, err := engine.CreateBucket(owner, "b1", NativeBalance("uatom", big.NewInt(1))); !errors.Is(err, ErrBucketExists) {
		t.Fatalf("expected ErrBucketExists, got %v", err)
	}
	if _, err := engine.CreateBucket(owner, "", NativeBalance("uatom", big.NewInt(1))); err == nil {
		t.Fatal("expected error for empty bucket id")
	}
	if _, err := engine.CreateBucket(owner, "b2", NativeBalance("uatom", big.NewInt(0))); !errors.Is(err, ErrEmptyBalance) {
		t.Fatalf("expected ErrEmptyBalance, got %v", err)
	}

	// Same id under a different owner does not collide.
	if _, err := engine.CreateBucket(addr(4), "b1", NativeBalance("uatom", big.NewInt(1))); err != nil {
		t.Fatalf("same id different owner: %v", err)
	}
}

func TestAddToBucket(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	owner := addr(3)
	if _, err := engine.CreateBucket(owner, "b1", NativeBalance("uatom", big.NewInt(50))); err != nil {
		t.Fatalf("create: %v", err)
	}

	bucket, err := engine.AddToBucket(owner, "b1", NativeBalance("uatom", big.NewInt(25)))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if bucket.Funds.Amount.Cmp(big.NewInt(75)) != 0 {
		t.Fatalf("expected 75, got %s", bucket.Funds.Amount)
	}

	if _, err := engine.AddToBucket(owner, "b1", NativeBalance("ujuno", big.NewInt(1))); !errors.Is(err, ErrAssetMismatch) {
		t.Fatalf("expected ErrAssetMismatch, got %v", err)
	}
	if _, err := engine.AddToBucket(owner, "missing", NativeBalance("uatom", big.NewInt(1))); !errors.Is(err, ErrBucketNotFound) {
		t.Fatalf("expected ErrBucketNotFound, got %v", err)
	}

	if _, err := engine.CreateBucket(owner, "nft", NFTBalance(issuerA, "1")); err != nil {
		t.Fatalf("create nft bucket: %v", err)
	}
	if _, err := engine.AddToBucket(owner, "nft", NFTBalance(issuerA, "2")); !errors.Is(err, ErrNFTAlreadyHeld) {
		t.Fatalf("expected ErrNFTAlreadyHeld, got %v", err)
	}
}

func TestRemoveBucket(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	owner := addr(3)
	if _, err := engine.CreateBucket(owner, "b1", NativeBalance("uatom", big.NewInt(50))); err != nil {
		t.Fatalf("create: %v", err)
	}

	transfers, err := engine.RemoveBucket(owner, "b1")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(transfers) != 1 || transfers[0].To != owner {
		t.Fatalf("unexpected transfers: %+v", transfers)
	}
	if transfers[0].Asset.Amount.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("expected full escrow, got %s", transfers[0].Asset.Amount)
	}
	if _, ok := state.buckets[bucketKeyFor(owner, "b1")]; ok {
		t.Fatal("bucket record not deleted")
	}
	if _, err := engine.RemoveBucket(owner, "b1"); !errors.Is(err, ErrBucketNotFound) {
		t.Fatalf("expected ErrBucketNotFound on repeat, got %v", err)
	}
}

// Scenario: native coin sale purchased from a pre-funded bucket with surplus.
// The full bucket balance moves to the seller and the surplus is not
// refunded.
func TestBuyListingNativeWithSurplus(t *testing.T) {
	engine, state, emitter := newTestEngine(t)
	seller := addr(1)
	buyer := addr(2)

	listing, err := engine.CreateListing(seller, NativeBalance("ujuno", big.NewInt(100)), NativeBalance("uatom", big.NewInt(40)), nil, "")
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	if _, err := engine.CreateBucket(buyer, "b1", NativeBalance("uatom", big.NewInt(55))); err != nil {
		t.Fatalf("create bucket: %v", err)
	}

	transfers, err := engine.BuyListing(buyer, listing.ID, "b1", testNow)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if len(transfers) != 1 || transfers[0].To != seller {
		t.Fatalf("unexpected transfers: %+v", transfers)
	}
	if transfers[0].Asset.Amount.Cmp(big.NewInt(55)) != 0 {
		t.Fatalf("expected full bucket balance 55 to seller, got %s", transfers[0].Asset.Amount)
	}

	if _, ok := state.listings[listing.ID]; ok {
		t.Fatal("listing record not deleted after sale")
	}
	bucket := state.buckets[bucketKeyFor(buyer, "b1")]
	if bucket == nil {
		t.Fatal("bucket record missing")
	}
	if bucket.Status != BucketConsumed {
		t.Fatalf("expected consumed bucket, got %v", bucket.Status)
	}
	if !bucket.Funds.IsZero() {
		t.Fatalf("expected drained funds, got %s", bucket.Funds.Amount)
	}
	if bucket.Purchased.Amount.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected purchased 100, got %s", bucket.Purchased.Amount)
	}
	if bucket.PurchasedFrom != listing.ID {
		t.Fatalf("expected provenance %q, got %q", listing.ID, bucket.PurchasedFrom)
	}

	last := emitter.types[len(emitter.types)-1]
	if last != EventTypeListingSold {
		t.Fatalf("expected sold event, got %q", last)
	}

	withdrawn, err := engine.WithdrawPurchased(buyer, "b1")
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if withdrawn[0].To != buyer || withdrawn[0].Asset.Amount.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("unexpected withdrawal: %+v", withdrawn)
	}
	if _, ok := state.buckets[bucketKeyFor(buyer, "b1")]; ok {
		t.Fatal("bucket record not deleted after withdrawal")
	}
}

// Scenario: NFT swapped for fungible tokens.
func TestBuyListingNFTForTokens(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	seller := addr(1)
	buyer := addr(2)

	listing, err := engine.CreateListing(seller, NFTBalance(issuerA, "77"), TokenBalance(issuerB, big.NewInt(500)), nil, "")
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	if _, err := engine.CreateBucket(buyer, "b1", TokenBalance(issuerB, big.NewInt(500))); err != nil {
		t.Fatalf("create bucket: %v", err)
	}

	transfers, err := engine.BuyListing(buyer, listing.ID, "b1", testNow)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if transfers[0].Asset.Amount.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("expected 500 tokens to seller, got %s", transfers[0].Asset.Amount)
	}

	bucket := state.buckets[bucketKeyFor(buyer, "b1")]
	if bucket.Purchased.Kind != AssetNFT || bucket.Purchased.TokenID != "77" {
		t.Fatalf("expected nft 77 purchased, got %+v", bucket.Purchased)
	}
}

func TestBuyListingPreconditions(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	seller := addr(1)
	buyer := addr(2)
	stranger := addr(3)

	listing, err := engine.CreateListing(seller, NativeBalance("ujuno", big.NewInt(100)), NativeBalance("uatom", big.NewInt(40)), &buyer, "")
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	if _, err := engine.CreateBucket(buyer, "b1", NativeBalance("uatom", big.NewInt(39))); err != nil {
		t.Fatalf("create bucket: %v", err)
	}
	if _, err := engine.CreateBucket(stranger, "b1", NativeBalance("uatom", big.NewInt(100))); err != nil {
		t.Fatalf("create stranger bucket: %v", err)
	}

	if _, err := engine.BuyListing(buyer, "missing", "b1", testNow); !errors.Is(err, ErrListingNotFound) {
		t.Fatalf("expected ErrListingNotFound, got %v", err)
	}
	if _, err := engine.BuyListing(stranger, listing.ID, "b1", testNow); !errors.Is(err, ErrNotWhitelisted) {
		t.Fatalf("expected ErrNotWhitelisted, got %v", err)
	}
	if _, err := engine.BuyListing(buyer, listing.ID, "missing", testNow); !errors.Is(err, ErrBucketNotFound) {
		t.Fatalf("expected ErrBucketNotFound, got %v", err)
	}
	if _, err := engine.BuyListing(buyer, listing.ID, "b1", testNow); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

// Scenario: finalized listing with a deadline. Purchasable strictly before
// the deadline, not at or after it.
func TestBuyListingDeadlineBoundary(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	seller := addr(1)
	buyer := addr(2)

	listing, err := engine.CreateListing(seller, NativeBalance("ujuno", big.NewInt(100)), NativeBalance("uatom", big.NewInt(40)), nil, "")
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	finalized, err := engine.Finalize(listing.ID, seller, 600)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if _, err := engine.CreateBucket(buyer, "b1", NativeBalance("uatom", big.NewInt(40))); err != nil {
		t.Fatalf("create bucket: %v", err)
	}

	if _, err := engine.BuyListing(buyer, listing.ID, "b1", finalized.Deadline); !errors.Is(err, ErrNotPurchasable) {
		t.Fatalf("expected ErrNotPurchasable at deadline, got %v", err)
	}
	if _, err := engine.BuyListing(buyer, listing.ID, "b1", finalized.Deadline+1); !errors.Is(err, ErrNotPurchasable) {
		t.Fatalf("expected ErrNotPurchasable after deadline, got %v", err)
	}
	if _, err := engine.BuyListing(buyer, listing.ID, "b1", finalized.Deadline-1); err != nil {
		t.Fatalf("expected purchase before deadline to succeed, got %v", err)
	}
}

func TestBuyListingNoDoubleMatch(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	seller := addr(1)
	alice := addr(2)
	bob := addr(3)

	listing, err := engine.CreateListing(seller, NativeBalance("ujuno", big.NewInt(100)), NativeBalance("uatom", big.NewInt(40)), nil, "")
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	if _, err := engine.CreateBucket(alice, "b1", NativeBalance("uatom", big.NewInt(40))); err != nil {
		t.Fatalf("alice bucket: %v", err)
	}
	if _, err := engine.CreateBucket(bob, "b1", NativeBalance("uatom", big.NewInt(40))); err != nil {
		t.Fatalf("bob bucket: %v", err)
	}

	if _, err := engine.BuyListing(alice, listing.ID, "b1", testNow); err != nil {
		t.Fatalf("first buy: %v", err)
	}
	if _, err := engine.BuyListing(bob, listing.ID, "b1", testNow); !errors.Is(err, ErrListingNotFound) {
		t.Fatalf("expected ErrListingNotFound for second buy, got %v", err)
	}
}

func TestConsumedBucketIsTerminalForFunding(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	seller := addr(1)
	buyer := addr(2)

	listing, err := engine.CreateListing(seller, NativeBalance("ujuno", big.NewInt(10)), NativeBalance("uatom", big.NewInt(5)), nil, "")
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	if _, err := engine.CreateBucket(buyer, "b1", NativeBalance("uatom", big.NewInt(5))); err != nil {
		t.Fatalf("create bucket: %v", err)
	}
	if _, err := engine.BuyListing(buyer, listing.ID, "b1", testNow); err != nil {
		t.Fatalf("buy: %v", err)
	}

	if _, err := engine.AddToBucket(buyer, "b1", NativeBalance("uatom", big.NewInt(1))); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen funding consumed bucket, got %v", err)
	}
	if _, err := engine.RemoveBucket(buyer, "b1"); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen removing consumed bucket, got %v", err)
	}
	if _, err := engine.BuyListing(buyer, listing.ID, "b1", testNow); !errors.Is(err, ErrListingNotFound) {
		t.Fatalf("expected ErrListingNotFound reusing consumed bucket, got %v", err)
	}
}

func TestWithdrawPurchasedRequiresConsumed(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	owner := addr(2)
	if _, err := engine.CreateBucket(owner, "b1", NativeBalance("uatom", big.NewInt(5))); err != nil {
		t.Fatalf("create bucket: %v", err)
	}
	if _, err := engine.WithdrawPurchased(owner, "b1"); !errors.Is(err, ErrNotPurchased) {
		t.Fatalf("expected ErrNotPurchased, got %v", err)
	}
	if _, err := engine.WithdrawPurchased(owner, "missing"); !errors.Is(err, ErrBucketNotFound) {
		t.Fatalf("expected ErrBucketNotFound, got %v", err)
	}
}

// Every unit escrowed must leave the system exactly once: either through a
// returned transfer or by remaining in a stored record. A full listing
// lifecycle with a purchase and withdrawal conserves the total.
func TestValueConservation(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	seller := addr(1)
	buyer := addr(2)

	const saleAmount, bucketAmount = 100, 55

	listing, err := engine.CreateListing(seller, NativeBalance("ujuno", big.NewInt(saleAmount)), NativeBalance("uatom", big.NewInt(40)), nil, "")
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	if _, err := engine.CreateBucket(buyer, "b1", NativeBalance("uatom", big.NewInt(bucketAmount))); err != nil {
		t.Fatalf("create bucket: %v", err)
	}

	released := make(map[string]*big.Int)
	record := func(transfers []Transfer) {
		for _, tr := range transfers {
			key := tr.Asset.Kind.String() + "/" + tr.Asset.Denom
			if released[key] == nil {
				released[key] = big.NewInt(0)
			}
			released[key].Add(released[key], cloneBigInt(tr.Asset.Amount))
		}
	}

	transfers, err := engine.BuyListing(buyer, listing.ID, "b1", testNow)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	record(transfers)

	transfers, err = engine.WithdrawPurchased(buyer, "b1")
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	record(transfers)

	if len(state.listings) != 0 || len(state.buckets) != 0 {
		t.Fatal("expected empty ledgers after full lifecycle")
	}
	if released["native/uatom"].Cmp(big.NewInt(bucketAmount)) != 0 {
		t.Fatalf("uatom released %s, want %d", released["native/uatom"], bucketAmount)
	}
	if released["native/ujuno"].Cmp(big.NewInt(saleAmount)) != 0 {
		t.Fatalf("ujuno released %s, want %d", released["native/ujuno"], saleAmount)
	}
}
