package vaults

// QueryPageSize is the fixed number of records returned by the paged list
// queries. Pages are 1-based; page 0 is treated as page 1.
const QueryPageSize = 20

func paginate(ids []string, page int) []string {
	if page < 1 {
		page = 1
	}
	start := (page - 1) * QueryPageSize
	if start >= len(ids) {
		return nil
	}
	end := start + QueryPageSize
	if end > len(ids) {
		end = len(ids)
	}
	return ids[start:end]
}

func (s *Store) listingsByIDs(ids []string) ([]*Listing, error) {
	listings := make([]*Listing, 0, len(ids))
	for _, id := range ids {
		listing, ok, err := s.ListingGet(id)
		if err != nil {
			return nil, err
		}
		if !ok {
			// Index entries are cleaned up with the record; a miss here
			// means a stale index and is skipped rather than fatal.
			continue
		}
		listings = append(listings, listing)
	}
	return listings, nil
}

// Admin returns the configured admin address.
func (s *Store) Admin() ([20]byte, error) {
	cfg, ok, err := s.ConfigGet()
	if err != nil {
		return [20]byte{}, err
	}
	if !ok {
		return [20]byte{}, ErrConfigNotFound
	}
	return cfg.Admin, nil
}

// ListingsByOwner returns every listing owned by the given seller.
func (s *Store) ListingsByOwner(owner [20]byte) ([]*Listing, error) {
	ids, err := s.ListingIDsByOwner(owner)
	if err != nil {
		return nil, err
	}
	return s.listingsByIDs(ids)
}

// AllListings returns one page of all stored listings in identifier order.
func (s *Store) AllListings(page int) ([]*Listing, error) {
	ids, err := s.ListingIDs()
	if err != nil {
		return nil, err
	}
	return s.listingsByIDs(paginate(ids, page))
}

// MarketListings returns one page of listings currently available for
// purchase: open listings plus finalized listings whose deadline has not
// passed at the supplied time.
func (s *Store) MarketListings(now int64, page int) ([]*Listing, error) {
	ids, err := s.ListingIDs()
	if err != nil {
		return nil, err
	}
	all, err := s.listingsByIDs(ids)
	if err != nil {
		return nil, err
	}
	available := make([]*Listing, 0, len(all))
	for _, listing := range all {
		if listing.Status == ListingFinalized && now >= listing.Deadline {
			continue
		}
		available = append(available, listing)
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * QueryPageSize
	if start >= len(available) {
		return nil, nil
	}
	end := start + QueryPageSize
	if end > len(available) {
		end = len(available)
	}
	return available[start:end], nil
}

// WhitelistedListings returns every listing restricted to the given buyer.
func (s *Store) WhitelistedListings(buyer [20]byte) ([]*Listing, error) {
	ids, err := s.ListingIDsByWhitelist(buyer)
	if err != nil {
		return nil, err
	}
	return s.listingsByIDs(ids)
}

// BucketsByOwner returns every bucket owned by the given address.
func (s *Store) BucketsByOwner(owner [20]byte) ([]*Bucket, error) {
	ids, err := s.BucketIDsByOwner(owner)
	if err != nil {
		return nil, err
	}
	buckets := make([]*Bucket, 0, len(ids))
	for _, id := range ids {
		bucket, ok, err := s.BucketGet(owner, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		buckets = append(buckets, bucket)
	}
	return buckets, nil
}
