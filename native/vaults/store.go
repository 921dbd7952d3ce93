package vaults

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
)

// Storage is the raw persistence surface backing the Store. The concrete
// implementation lives in core/state and provides read-your-writes
// consistency within one operation.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

// Record keys and index keys live in disjoint namespaces: listing ids are
// caller-supplied, so a record key must never be able to spell an index key.
var (
	configKey          = []byte("vaults/config")
	listingPrefix      = "vaults/listing/record/"
	listingIndexKey    = []byte("vaults/listing/index")
	bucketPrefix       = "vaults/bucket/record/"
	bucketIndexPrefix  = "vaults/bucket/index/"
	ownerIndexPrefix   = "vaults/listing/owner/"
	whitelistIdxPrefix = "vaults/listing/whitelist/"
)

func listingKey(id string) []byte {
	return []byte(listingPrefix + id)
}

func bucketKey(owner [20]byte, id string) []byte {
	return []byte(bucketPrefix + fmt.Sprintf("%x/", owner) + id)
}

func bucketIndexKey(owner [20]byte) []byte {
	return []byte(bucketIndexPrefix + fmt.Sprintf("%x", owner))
}

func ownerIndexKey(owner [20]byte) []byte {
	return []byte(ownerIndexPrefix + fmt.Sprintf("%x", owner))
}

func whitelistIndexKey(buyer [20]byte) []byte {
	return []byte(whitelistIdxPrefix + fmt.Sprintf("%x", buyer))
}

// Stored record layouts. RLP has no signed integers, nil pointers or big
// ints, so quantities are persisted as decimal strings and timestamps as
// uint64 seconds.

type storedBalance struct {
	Kind    uint8
	Denom   string
	Issuer  []byte
	Amount  string
	TokenID string
}

type storedListing struct {
	ID        string
	Seller    []byte
	Sale      storedBalance
	Ask       storedBalance
	Whitelist []byte
	Deadline  uint64
	CreatedAt uint64
	Status    uint8
}

type storedBucket struct {
	ID            string
	Owner         []byte
	Funds         storedBalance
	Purchased     storedBalance
	PurchasedFrom string
	CreatedAt     uint64
	Status        uint8
}

type storedConfig struct {
	Admin []byte
}

func toStoredBalance(b Balance) storedBalance {
	return storedBalance{
		Kind:    uint8(b.Kind),
		Denom:   b.Denom,
		Issuer:  append([]byte(nil), b.Issuer[:]...),
		Amount:  cloneBigInt(b.Amount).String(),
		TokenID: b.TokenID,
	}
}

func fromStoredBalance(s storedBalance) (Balance, error) {
	amount, ok := new(big.Int).SetString(s.Amount, 10)
	if !ok {
		return Balance{}, fmt.Errorf("vaults: corrupt stored amount %q", s.Amount)
	}
	b := Balance{
		Kind:    AssetKind(s.Kind),
		Denom:   s.Denom,
		Amount:  amount,
		TokenID: s.TokenID,
	}
	copy(b.Issuer[:], s.Issuer)
	if !b.Kind.Valid() {
		return Balance{}, fmt.Errorf("vaults: corrupt stored asset kind %d", s.Kind)
	}
	return b, nil
}

func toStoredListing(l *Listing) *storedListing {
	stored := &storedListing{
		ID:        l.ID,
		Seller:    append([]byte(nil), l.Seller[:]...),
		Sale:      toStoredBalance(l.Sale),
		Ask:       toStoredBalance(l.Ask),
		Deadline:  uint64(l.Deadline),
		CreatedAt: uint64(l.CreatedAt),
		Status:    uint8(l.Status),
	}
	if l.Whitelist != nil {
		stored.Whitelist = append([]byte(nil), l.Whitelist[:]...)
	}
	return stored
}

func fromStoredListing(s *storedListing) (*Listing, error) {
	sale, err := fromStoredBalance(s.Sale)
	if err != nil {
		return nil, err
	}
	ask, err := fromStoredBalance(s.Ask)
	if err != nil {
		return nil, err
	}
	listing := &Listing{
		ID:        s.ID,
		Sale:      sale,
		Ask:       ask,
		Deadline:  int64(s.Deadline),
		CreatedAt: int64(s.CreatedAt),
		Status:    ListingStatus(s.Status),
	}
	copy(listing.Seller[:], s.Seller)
	if len(s.Whitelist) == 20 {
		var wl [20]byte
		copy(wl[:], s.Whitelist)
		listing.Whitelist = &wl
	}
	return SanitizeListing(listing)
}

func toStoredBucket(b *Bucket) *storedBucket {
	return &storedBucket{
		ID:            b.ID,
		Owner:         append([]byte(nil), b.Owner[:]...),
		Funds:         toStoredBalance(b.Funds),
		Purchased:     toStoredBalance(b.Purchased),
		PurchasedFrom: b.PurchasedFrom,
		CreatedAt:     uint64(b.CreatedAt),
		Status:        uint8(b.Status),
	}
}

func fromStoredBucket(s *storedBucket) (*Bucket, error) {
	funds, err := fromStoredBalance(s.Funds)
	if err != nil {
		return nil, err
	}
	purchased, err := fromStoredBalance(s.Purchased)
	if err != nil {
		return nil, err
	}
	bucket := &Bucket{
		ID:            s.ID,
		Funds:         funds,
		Purchased:     purchased,
		PurchasedFrom: s.PurchasedFrom,
		CreatedAt:     int64(s.CreatedAt),
		Status:        BucketStatus(s.Status),
	}
	copy(bucket.Owner[:], s.Owner)
	return SanitizeBucket(bucket)
}

// Store persists listing and bucket records plus the secondary indexes the
// list queries need.
type Store struct {
	store Storage
}

// NewStore constructs a Store backed by the provided storage.
func NewStore(store Storage) *Store {
	return &Store{store: store}
}

// ConfigPut writes the singleton exchange configuration.
func (s *Store) ConfigPut(cfg *Config) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("vaults: store not initialised")
	}
	if cfg == nil {
		return fmt.Errorf("vaults: nil config")
	}
	return s.store.KVPut(configKey, &storedConfig{Admin: append([]byte(nil), cfg.Admin[:]...)})
}

// ConfigGet loads the singleton exchange configuration.
func (s *Store) ConfigGet() (*Config, bool, error) {
	if s == nil || s.store == nil {
		return nil, false, fmt.Errorf("vaults: store not initialised")
	}
	var stored storedConfig
	ok, err := s.store.KVGet(configKey, &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	cfg := &Config{}
	copy(cfg.Admin[:], stored.Admin)
	return cfg, true, nil
}

func (s *Store) indexGet(key []byte) ([]string, error) {
	var entries []string
	if _, err := s.store.KVGet(key, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) indexAdd(key []byte, entry string) error {
	entries, err := s.indexGet(key)
	if err != nil {
		return err
	}
	for _, existing := range entries {
		if existing == entry {
			return nil
		}
	}
	entries = append(entries, entry)
	sort.Strings(entries)
	return s.store.KVPut(key, entries)
}

func (s *Store) indexRemove(key []byte, entry string) error {
	entries, err := s.indexGet(key)
	if err != nil {
		return err
	}
	filtered := entries[:0]
	for _, existing := range entries {
		if existing != entry {
			filtered = append(filtered, existing)
		}
	}
	if len(filtered) == len(entries) {
		return nil
	}
	if len(filtered) == 0 {
		return s.store.KVDelete(key)
	}
	return s.store.KVPut(key, filtered)
}

// ListingPut sanitises and persists a listing, keeping the global, per-owner
// and per-whitelisted-buyer indexes in sync.
func (s *Store) ListingPut(l *Listing) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("vaults: store not initialised")
	}
	sanitized, err := SanitizeListing(l)
	if err != nil {
		return err
	}
	previous, ok, err := s.ListingGet(sanitized.ID)
	if err != nil {
		return err
	}
	if err := s.store.KVPut(listingKey(sanitized.ID), toStoredListing(sanitized)); err != nil {
		return err
	}
	if err := s.indexAdd(listingIndexKey, sanitized.ID); err != nil {
		return err
	}
	if err := s.indexAdd(ownerIndexKey(sanitized.Seller), sanitized.ID); err != nil {
		return err
	}
	if ok && previous.Whitelist != nil {
		if sanitized.Whitelist == nil || *previous.Whitelist != *sanitized.Whitelist {
			if err := s.indexRemove(whitelistIndexKey(*previous.Whitelist), sanitized.ID); err != nil {
				return err
			}
		}
	}
	if sanitized.Whitelist != nil {
		return s.indexAdd(whitelistIndexKey(*sanitized.Whitelist), sanitized.ID)
	}
	return nil
}

// ListingGet loads a listing by identifier.
func (s *Store) ListingGet(id string) (*Listing, bool, error) {
	if s == nil || s.store == nil {
		return nil, false, fmt.Errorf("vaults: store not initialised")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, false, nil
	}
	var stored storedListing
	ok, err := s.store.KVGet(listingKey(id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	listing, err := fromStoredListing(&stored)
	if err != nil {
		return nil, false, err
	}
	return listing, true, nil
}

// ListingDelete removes a listing record and its index entries.
func (s *Store) ListingDelete(id string) error {
	listing, ok, err := s.ListingGet(id)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := s.store.KVDelete(listingKey(listing.ID)); err != nil {
		return err
	}
	if err := s.indexRemove(listingIndexKey, listing.ID); err != nil {
		return err
	}
	if err := s.indexRemove(ownerIndexKey(listing.Seller), listing.ID); err != nil {
		return err
	}
	if listing.Whitelist != nil {
		return s.indexRemove(whitelistIndexKey(*listing.Whitelist), listing.ID)
	}
	return nil
}

// ListingIDs returns every stored listing identifier in sorted order.
func (s *Store) ListingIDs() ([]string, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("vaults: store not initialised")
	}
	return s.indexGet(listingIndexKey)
}

// ListingIDsByOwner returns the identifiers of the owner's listings.
func (s *Store) ListingIDsByOwner(owner [20]byte) ([]string, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("vaults: store not initialised")
	}
	return s.indexGet(ownerIndexKey(owner))
}

// ListingIDsByWhitelist returns the identifiers of listings restricted to
// the given buyer.
func (s *Store) ListingIDsByWhitelist(buyer [20]byte) ([]string, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("vaults: store not initialised")
	}
	return s.indexGet(whitelistIndexKey(buyer))
}

// BucketPut sanitises and persists a bucket, keeping the owner index in
// sync.
func (s *Store) BucketPut(b *Bucket) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("vaults: store not initialised")
	}
	sanitized, err := SanitizeBucket(b)
	if err != nil {
		return err
	}
	if err := s.store.KVPut(bucketKey(sanitized.Owner, sanitized.ID), toStoredBucket(sanitized)); err != nil {
		return err
	}
	return s.indexAdd(bucketIndexKey(sanitized.Owner), sanitized.ID)
}

// BucketGet loads a bucket by owner and identifier.
func (s *Store) BucketGet(owner [20]byte, id string) (*Bucket, bool, error) {
	if s == nil || s.store == nil {
		return nil, false, fmt.Errorf("vaults: store not initialised")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, false, nil
	}
	var stored storedBucket
	ok, err := s.store.KVGet(bucketKey(owner, id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	bucket, err := fromStoredBucket(&stored)
	if err != nil {
		return nil, false, err
	}
	return bucket, true, nil
}

// BucketDelete removes a bucket record and its index entry.
func (s *Store) BucketDelete(owner [20]byte, id string) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("vaults: store not initialised")
	}
	id = strings.TrimSpace(id)
	if err := s.store.KVDelete(bucketKey(owner, id)); err != nil {
		return err
	}
	return s.indexRemove(bucketIndexKey(owner), id)
}

// BucketIDsByOwner returns the identifiers of the owner's buckets.
func (s *Store) BucketIDsByOwner(owner [20]byte) ([]string, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("vaults: store not initialised")
	}
	return s.indexGet(bucketIndexKey(owner))
}
