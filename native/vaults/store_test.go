package vaults

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Reecepbcups/juno-vaults/core/state"
	"github.com/Reecepbcups/juno-vaults/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(state.NewManager(storage.NewMemDB()))
}

func TestStoreListingRoundTrip(t *testing.T) {
	store := newTestStore(t)
	seller := addr(1)
	buyer := addr(2)

	listing := &Listing{
		ID:        "l1",
		Seller:    seller,
		Sale:      NativeBalance("ujuno", big.NewInt(100)),
		Ask:       TokenBalance(issuerA, big.NewInt(40)),
		Whitelist: &buyer,
		CreatedAt: testNow,
		Status:    ListingOpen,
	}
	require.NoError(t, store.ListingPut(listing))

	loaded, ok, err := store.ListingGet("l1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "l1", loaded.ID)
	require.Equal(t, seller, loaded.Seller)
	require.True(t, loaded.Sale.Equal(listing.Sale))
	require.True(t, loaded.Ask.Equal(listing.Ask))
	require.NotNil(t, loaded.Whitelist)
	require.Equal(t, buyer, *loaded.Whitelist)
	require.Equal(t, testNow, loaded.CreatedAt)
	require.Equal(t, ListingOpen, loaded.Status)
}

func TestStoreListingFinalizedRoundTrip(t *testing.T) {
	store := newTestStore(t)
	listing := &Listing{
		ID:        "l1",
		Seller:    addr(1),
		Sale:      NFTBalance(issuerA, "77"),
		Ask:       NativeBalance("ujuno", big.NewInt(9)),
		Deadline:  testNow + 600,
		CreatedAt: testNow,
		Status:    ListingFinalized,
	}
	require.NoError(t, store.ListingPut(listing))

	loaded, ok, err := store.ListingGet("l1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, ListingFinalized, loaded.Status)
	require.Equal(t, testNow+600, loaded.Deadline)
	require.Equal(t, "77", loaded.Sale.TokenID)
}

func TestStoreListingIndexes(t *testing.T) {
	store := newTestStore(t)
	alice := addr(1)
	bob := addr(2)
	buyer := addr(3)

	put := func(id string, seller [20]byte, whitelist *[20]byte) {
		require.NoError(t, store.ListingPut(&Listing{
			ID:        id,
			Seller:    seller,
			Sale:      NativeBalance("ujuno", big.NewInt(1)),
			Ask:       NativeBalance("uatom", big.NewInt(1)),
			Whitelist: whitelist,
			CreatedAt: testNow,
			Status:    ListingOpen,
		}))
	}
	put("b-listing", bob, nil)
	put("a-listing", alice, &buyer)
	put("c-listing", alice, nil)

	ids, err := store.ListingIDs()
	require.NoError(t, err)
	require.Equal(t, []string{"a-listing", "b-listing", "c-listing"}, ids)

	aliceIDs, err := store.ListingIDsByOwner(alice)
	require.NoError(t, err)
	require.Equal(t, []string{"a-listing", "c-listing"}, aliceIDs)

	wlIDs, err := store.ListingIDsByWhitelist(buyer)
	require.NoError(t, err)
	require.Equal(t, []string{"a-listing"}, wlIDs)

	// Clearing the whitelist drops the index entry.
	put("a-listing", alice, nil)
	wlIDs, err = store.ListingIDsByWhitelist(buyer)
	require.NoError(t, err)
	require.Empty(t, wlIDs)

	require.NoError(t, store.ListingDelete("a-listing"))
	ids, err = store.ListingIDs()
	require.NoError(t, err)
	require.Equal(t, []string{"b-listing", "c-listing"}, ids)
	aliceIDs, err = store.ListingIDsByOwner(alice)
	require.NoError(t, err)
	require.Equal(t, []string{"c-listing"}, aliceIDs)
}

func TestStoreBucketRoundTrip(t *testing.T) {
	store := newTestStore(t)
	owner := addr(4)

	bucket := &Bucket{
		ID:        "b1",
		Owner:     owner,
		Funds:     TokenBalance(issuerB, big.NewInt(500)),
		CreatedAt: testNow,
		Status:    BucketOpen,
	}
	require.NoError(t, store.BucketPut(bucket))

	loaded, ok, err := store.BucketGet(owner, "b1")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, loaded.Funds.Equal(bucket.Funds))
	require.Equal(t, BucketOpen, loaded.Status)

	// Identifiers are scoped per owner.
	_, ok, err = store.BucketGet(addr(5), "b1")
	require.NoError(t, err)
	require.False(t, ok)

	consumed := loaded.Clone()
	consumed.Funds = Balance{Kind: AssetToken, Issuer: issuerB}
	consumed.Purchased = NFTBalance(issuerA, "9")
	consumed.PurchasedFrom = "l1"
	consumed.Status = BucketConsumed
	require.NoError(t, store.BucketPut(consumed))

	loaded, ok, err = store.BucketGet(owner, "b1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, BucketConsumed, loaded.Status)
	require.Equal(t, "9", loaded.Purchased.TokenID)
	require.Equal(t, "l1", loaded.PurchasedFrom)

	ids, err := store.BucketIDsByOwner(owner)
	require.NoError(t, err)
	require.Equal(t, []string{"b1"}, ids)

	require.NoError(t, store.BucketDelete(owner, "b1"))
	_, ok, err = store.BucketGet(owner, "b1")
	require.NoError(t, err)
	require.False(t, ok)
	ids, err = store.BucketIDsByOwner(owner)
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestStoreConfigRoundTrip(t *testing.T) {
	store := newTestStore(t)

	_, ok, err := store.ConfigGet()
	require.NoError(t, err)
	require.False(t, ok)

	admin := addr(9)
	require.NoError(t, store.ConfigPut(&Config{Admin: admin}))

	cfg, ok, err := store.ConfigGet()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, admin, cfg.Admin)

	got, err := store.Admin()
	require.NoError(t, err)
	require.Equal(t, admin, got)
}

// Listing ids are caller-supplied, so ids spelled like store-internal keys
// must behave as ordinary records and never clobber the secondary indexes.
func TestStoreListingIDsCannotCollideWithIndexKeys(t *testing.T) {
	store := newTestStore(t)
	seller := addr(1)
	hexAddr := fmt.Sprintf("%x", seller)

	reserved := []string{
		"index",
		"owner/" + hexAddr,
		"whitelist/" + hexAddr,
	}
	for _, id := range reserved {
		putOpenListing(t, store, id, seller)
	}
	putOpenListing(t, store, "honest", seller)

	ids, err := store.ListingIDs()
	require.NoError(t, err)
	require.ElementsMatch(t, append(reserved, "honest"), ids)

	for _, id := range append(reserved, "honest") {
		loaded, ok, getErr := store.ListingGet(id)
		require.NoError(t, getErr)
		require.True(t, ok, "listing %q", id)
		require.Equal(t, id, loaded.ID)
	}

	ownerIDs, err := store.ListingIDsByOwner(seller)
	require.NoError(t, err)
	require.Len(t, ownerIDs, 4)

	require.NoError(t, store.ListingDelete("index"))
	ids, err = store.ListingIDs()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"owner/" + hexAddr, "whitelist/" + hexAddr, "honest"}, ids)
}

func TestStoreRejectsInvalidListing(t *testing.T) {
	store := newTestStore(t)
	err := store.ListingPut(&Listing{
		Seller: addr(1),
		Sale:   NativeBalance("ujuno", big.NewInt(1)),
		Ask:    NativeBalance("uatom", big.NewInt(1)),
		Status: ListingOpen,
	})
	require.Error(t, err)
}
