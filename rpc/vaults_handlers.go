package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/Reecepbcups/juno-vaults/crypto"
	"github.com/Reecepbcups/juno-vaults/native/vaults"
)

const (
	codeVaultsInvalidParams = -32021
	codeVaultsNotFound      = -32022
	codeVaultsForbidden     = -32023
	codeVaultsConflict      = -32024
	codeVaultsInternal      = -32025
)

type balanceParam struct {
	Kind    string `json:"kind"`
	Denom   string `json:"denom,omitempty"`
	Issuer  string `json:"issuer,omitempty"`
	Amount  string `json:"amount,omitempty"`
	TokenID string `json:"tokenId,omitempty"`
}

type createListingParams struct {
	Seller    string       `json:"seller"`
	Deposit   balanceParam `json:"deposit"`
	Ask       balanceParam `json:"ask"`
	Whitelist string       `json:"whitelist,omitempty"`
	ID        string       `json:"id,omitempty"`
}

type listingActorParams struct {
	ID     string `json:"id"`
	Caller string `json:"caller"`
}

type addFundsParams struct {
	ID     string       `json:"id"`
	Caller string       `json:"caller"`
	Amount balanceParam `json:"amount"`
}

type changeAskParams struct {
	ID     string       `json:"id"`
	Caller string       `json:"caller"`
	Ask    balanceParam `json:"ask"`
}

type setWhitelistParams struct {
	ID     string `json:"id"`
	Caller string `json:"caller"`
	Buyer  string `json:"buyer,omitempty"`
}

type finalizeParams struct {
	ID      string `json:"id"`
	Caller  string `json:"caller"`
	Seconds int64  `json:"seconds"`
}

type bucketParams struct {
	Owner string `json:"owner"`
	ID    string `json:"id"`
}

type createBucketParams struct {
	Owner   string       `json:"owner"`
	ID      string       `json:"id"`
	Deposit balanceParam `json:"deposit"`
}

type addToBucketParams struct {
	Owner  string       `json:"owner"`
	ID     string       `json:"id"`
	Amount balanceParam `json:"amount"`
}

type buyListingParams struct {
	Buyer     string `json:"buyer"`
	ListingID string `json:"listingId"`
	BucketID  string `json:"bucketId"`
}

type idParams struct {
	ID string `json:"id"`
}

type ownerParams struct {
	Owner string `json:"owner"`
}

type pageParams struct {
	Page int `json:"page,omitempty"`
}

type balanceJSON struct {
	Kind    string `json:"kind"`
	Denom   string `json:"denom,omitempty"`
	Issuer  string `json:"issuer,omitempty"`
	Amount  string `json:"amount,omitempty"`
	TokenID string `json:"tokenId,omitempty"`
}

type listingJSON struct {
	ID        string      `json:"id"`
	Seller    string      `json:"seller"`
	Sale      balanceJSON `json:"sale"`
	Ask       balanceJSON `json:"ask"`
	Whitelist *string     `json:"whitelist,omitempty"`
	Deadline  int64       `json:"deadline,omitempty"`
	CreatedAt int64       `json:"createdAt"`
	Status    string      `json:"status"`
}

type bucketJSON struct {
	ID            string       `json:"id"`
	Owner         string       `json:"owner"`
	Funds         balanceJSON  `json:"funds"`
	Purchased     *balanceJSON `json:"purchased,omitempty"`
	PurchasedFrom string       `json:"purchasedFrom,omitempty"`
	CreatedAt     int64        `json:"createdAt"`
	Status        string       `json:"status"`
}

type transferJSON struct {
	To    string      `json:"to"`
	Asset balanceJSON `json:"asset"`
}

type transfersResult struct {
	Transfers []transferJSON `json:"transfers"`
}

func parseBech32Address(addr string) ([20]byte, error) {
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		return [20]byte{}, fmt.Errorf("address required")
	}
	decoded, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return [20]byte{}, err
	}
	var out [20]byte
	copy(out[:], decoded.Bytes())
	return out, nil
}

func formatAddress(addr [20]byte) string {
	return crypto.NewAddress(crypto.JunoPrefix, addr[:]).String()
}

func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}

func parseBalance(p balanceParam) (vaults.Balance, error) {
	kind := strings.ToLower(strings.TrimSpace(p.Kind))
	amount, err := parseAmount(p.Amount)
	if err != nil {
		return vaults.Balance{}, err
	}
	switch kind {
	case "native":
		denom := strings.TrimSpace(p.Denom)
		if denom == "" {
			return vaults.Balance{}, fmt.Errorf("native balance requires denom")
		}
		return vaults.NativeBalance(denom, amount), nil
	case "token":
		issuer, err := parseBech32Address(p.Issuer)
		if err != nil {
			return vaults.Balance{}, fmt.Errorf("token issuer: %w", err)
		}
		return vaults.TokenBalance(issuer, amount), nil
	case "nft":
		issuer, err := parseBech32Address(p.Issuer)
		if err != nil {
			return vaults.Balance{}, fmt.Errorf("nft issuer: %w", err)
		}
		return vaults.NFTBalance(issuer, strings.TrimSpace(p.TokenID)), nil
	default:
		return vaults.Balance{}, fmt.Errorf("unknown balance kind %q", p.Kind)
	}
}

func formatBalance(b vaults.Balance) balanceJSON {
	out := balanceJSON{Kind: b.Kind.String()}
	switch b.Kind {
	case vaults.AssetNative:
		out.Denom = b.Denom
		if b.Amount != nil {
			out.Amount = b.Amount.String()
		} else {
			out.Amount = "0"
		}
	case vaults.AssetToken:
		out.Issuer = formatAddress(b.Issuer)
		if b.Amount != nil {
			out.Amount = b.Amount.String()
		} else {
			out.Amount = "0"
		}
	case vaults.AssetNFT:
		out.Issuer = formatAddress(b.Issuer)
		out.TokenID = b.TokenID
	}
	return out
}

func formatListing(l *vaults.Listing) listingJSON {
	out := listingJSON{
		ID:        l.ID,
		Seller:    formatAddress(l.Seller),
		Sale:      formatBalance(l.Sale),
		Ask:       formatBalance(l.Ask),
		Deadline:  l.Deadline,
		CreatedAt: l.CreatedAt,
		Status:    l.Status.String(),
	}
	if l.Whitelist != nil {
		wl := formatAddress(*l.Whitelist)
		out.Whitelist = &wl
	}
	return out
}

func formatListings(listings []*vaults.Listing) []listingJSON {
	out := make([]listingJSON, 0, len(listings))
	for _, l := range listings {
		out = append(out, formatListing(l))
	}
	return out
}

func formatBucket(b *vaults.Bucket) bucketJSON {
	out := bucketJSON{
		ID:        b.ID,
		Owner:     formatAddress(b.Owner),
		Funds:     formatBalance(b.Funds),
		CreatedAt: b.CreatedAt,
		Status:    b.Status.String(),
	}
	if b.Status == vaults.BucketConsumed {
		purchased := formatBalance(b.Purchased)
		out.Purchased = &purchased
		out.PurchasedFrom = b.PurchasedFrom
	}
	return out
}

func formatTransfers(transfers []vaults.Transfer) transfersResult {
	out := make([]transferJSON, 0, len(transfers))
	for _, t := range transfers {
		out = append(out, transferJSON{To: formatAddress(t.To), Asset: formatBalance(t.Asset)})
	}
	return transfersResult{Transfers: out}
}

func decodeSingleParam(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

func writeVaultsError(w http.ResponseWriter, id interface{}, err error) {
	if err == nil {
		return
	}
	status := http.StatusInternalServerError
	code := codeVaultsInternal
	message := "internal_error"
	switch {
	case errors.Is(err, vaults.ErrListingNotFound),
		errors.Is(err, vaults.ErrBucketNotFound),
		errors.Is(err, vaults.ErrConfigNotFound):
		status = http.StatusNotFound
		code = codeVaultsNotFound
		message = "not_found"
	case errors.Is(err, vaults.ErrUnauthorized),
		errors.Is(err, vaults.ErrNotWhitelisted):
		status = http.StatusForbidden
		code = codeVaultsForbidden
		message = "forbidden"
	case errors.Is(err, vaults.ErrNotOpen),
		errors.Is(err, vaults.ErrAlreadyFinalized),
		errors.Is(err, vaults.ErrNotFinalized),
		errors.Is(err, vaults.ErrNotExpired),
		errors.Is(err, vaults.ErrNotPurchasable),
		errors.Is(err, vaults.ErrNotPurchased),
		errors.Is(err, vaults.ErrListingExists),
		errors.Is(err, vaults.ErrBucketExists),
		errors.Is(err, vaults.ErrInsufficientFunds),
		errors.Is(err, vaults.ErrNFTAlreadyListed),
		errors.Is(err, vaults.ErrNFTAlreadyHeld),
		errors.Is(err, vaults.ErrDuplicateNFT):
		status = http.StatusConflict
		code = codeVaultsConflict
		message = "conflict"
	case errors.Is(err, vaults.ErrAssetMismatch),
		errors.Is(err, vaults.ErrEmptyBalance):
		status = http.StatusBadRequest
		code = codeVaultsInvalidParams
		message = "invalid_params"
	}
	writeError(w, status, id, code, message, err.Error())
}

func (s *Server) handleCreateListing(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params createListingParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", err.Error())
		return
	}
	seller, err := parseBech32Address(params.Seller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", err.Error())
		return
	}
	deposit, err := parseBalance(params.Deposit)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", err.Error())
		return
	}
	ask, err := parseBalance(params.Ask)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", err.Error())
		return
	}
	var whitelistPtr *[20]byte
	if strings.TrimSpace(params.Whitelist) != "" {
		whitelist, parseErr := parseBech32Address(params.Whitelist)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", parseErr.Error())
			return
		}
		whitelistPtr = &whitelist
	}
	listing, err := s.engine.CreateListing(seller, deposit, ask, whitelistPtr, params.ID)
	if err != nil {
		writeVaultsError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatListing(listing))
}

func (s *Server) handleAddFunds(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params addFundsParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parseBalance(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", err.Error())
		return
	}
	listing, err := s.engine.AddFundsToSale(params.ID, caller, amount)
	if err != nil {
		writeVaultsError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatListing(listing))
}

func (s *Server) handleChangeAsk(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params changeAskParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", err.Error())
		return
	}
	ask, err := parseBalance(params.Ask)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", err.Error())
		return
	}
	listing, err := s.engine.ChangeAsk(params.ID, caller, ask)
	if err != nil {
		writeVaultsError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatListing(listing))
}

func (s *Server) handleSetWhitelistedBuyer(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params setWhitelistParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", err.Error())
		return
	}
	var buyerPtr *[20]byte
	if strings.TrimSpace(params.Buyer) != "" {
		buyer, parseErr := parseBech32Address(params.Buyer)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", parseErr.Error())
			return
		}
		buyerPtr = &buyer
	}
	listing, err := s.engine.SetWhitelistedBuyer(params.ID, caller, buyerPtr)
	if err != nil {
		writeVaultsError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatListing(listing))
}

func (s *Server) handleRemoveListing(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params listingActorParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", err.Error())
		return
	}
	transfers, err := s.engine.RemoveListing(params.ID, caller)
	if err != nil {
		writeVaultsError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatTransfers(transfers))
}

func (s *Server) handleFinalizeListing(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params finalizeParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", err.Error())
		return
	}
	if params.Seconds <= 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", "seconds must be > 0")
		return
	}
	listing, err := s.engine.Finalize(params.ID, caller, params.Seconds)
	if err != nil {
		writeVaultsError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatListing(listing))
}

func (s *Server) handleRefundExpired(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params listingActorParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", err.Error())
		return
	}
	transfers, err := s.engine.RefundExpired(params.ID, caller, s.nowFn())
	if err != nil {
		writeVaultsError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatTransfers(transfers))
}

func (s *Server) handleCreateBucket(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params createBucketParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", err.Error())
		return
	}
	owner, err := parseBech32Address(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", err.Error())
		return
	}
	deposit, err := parseBalance(params.Deposit)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", err.Error())
		return
	}
	bucket, err := s.engine.CreateBucket(owner, params.ID, deposit)
	if err != nil {
		writeVaultsError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatBucket(bucket))
}

func (s *Server) handleAddToBucket(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params addToBucketParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", err.Error())
		return
	}
	owner, err := parseBech32Address(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parseBalance(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", err.Error())
		return
	}
	bucket, err := s.engine.AddToBucket(owner, params.ID, amount)
	if err != nil {
		writeVaultsError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatBucket(bucket))
}

func (s *Server) handleRemoveBucket(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params bucketParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", err.Error())
		return
	}
	owner, err := parseBech32Address(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", err.Error())
		return
	}
	transfers, err := s.engine.RemoveBucket(owner, params.ID)
	if err != nil {
		writeVaultsError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatTransfers(transfers))
}

func (s *Server) handleWithdrawPurchased(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params bucketParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", err.Error())
		return
	}
	owner, err := parseBech32Address(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", err.Error())
		return
	}
	transfers, err := s.engine.WithdrawPurchased(owner, params.ID)
	if err != nil {
		writeVaultsError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatTransfers(transfers))
}

func (s *Server) handleBuyListing(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params buyListingParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", err.Error())
		return
	}
	buyer, err := parseBech32Address(params.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", err.Error())
		return
	}
	transfers, err := s.engine.BuyListing(buyer, params.ListingID, params.BucketID, s.nowFn())
	if err != nil {
		writeVaultsError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatTransfers(transfers))
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params idParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", err.Error())
		return
	}
	listing, ok, err := s.store.ListingGet(strings.TrimSpace(params.ID))
	if err != nil {
		writeVaultsError(w, req.ID, err)
		return
	}
	if !ok {
		writeVaultsError(w, req.ID, vaults.ErrListingNotFound)
		return
	}
	writeResult(w, req.ID, formatListing(listing))
}

func (s *Server) handleGetBucket(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params bucketParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", err.Error())
		return
	}
	owner, err := parseBech32Address(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", err.Error())
		return
	}
	bucket, ok, err := s.store.BucketGet(owner, strings.TrimSpace(params.ID))
	if err != nil {
		writeVaultsError(w, req.ID, err)
		return
	}
	if !ok {
		writeVaultsError(w, req.ID, vaults.ErrBucketNotFound)
		return
	}
	writeResult(w, req.ID, formatBucket(bucket))
}

func (s *Server) handleListListings(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	page, err := parsePageParam(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", err.Error())
		return
	}
	listings, err := s.store.AllListings(page)
	if err != nil {
		writeVaultsError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatListings(listings))
}

func (s *Server) handleMarketListings(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	page, err := parsePageParam(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", err.Error())
		return
	}
	listings, err := s.store.MarketListings(s.nowFn(), page)
	if err != nil {
		writeVaultsError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatListings(listings))
}

func (s *Server) handleListingsByOwner(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params ownerParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", err.Error())
		return
	}
	owner, err := parseBech32Address(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", err.Error())
		return
	}
	listings, err := s.store.ListingsByOwner(owner)
	if err != nil {
		writeVaultsError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatListings(listings))
}

func (s *Server) handleWhitelistedListings(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params ownerParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", err.Error())
		return
	}
	buyer, err := parseBech32Address(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", err.Error())
		return
	}
	listings, err := s.store.WhitelistedListings(buyer)
	if err != nil {
		writeVaultsError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatListings(listings))
}

func (s *Server) handleBucketsByOwner(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params ownerParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", err.Error())
		return
	}
	owner, err := parseBech32Address(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeVaultsInvalidParams, "invalid_params", err.Error())
		return
	}
	buckets, err := s.store.BucketsByOwner(owner)
	if err != nil {
		writeVaultsError(w, req.ID, err)
		return
	}
	out := make([]bucketJSON, 0, len(buckets))
	for _, bucket := range buckets {
		out = append(out, formatBucket(bucket))
	}
	writeResult(w, req.ID, out)
}

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	admin, err := s.store.Admin()
	if err != nil {
		writeVaultsError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"admin": formatAddress(admin)})
}

func parsePageParam(req *RPCRequest) (int, error) {
	if len(req.Params) == 0 {
		return 1, nil
	}
	if len(req.Params) != 1 {
		return 0, fmt.Errorf("at most one parameter object expected")
	}
	var params pageParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		return 0, err
	}
	if params.Page < 0 {
		return 0, fmt.Errorf("page must not be negative")
	}
	if params.Page == 0 {
		return 1, nil
	}
	return params.Page, nil
}
