package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"

	"growspace/core/types"
	"growspace/native/growspace"
)

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid payload: %v", err))
		return false
	}
	return true
}

// authorize ensures the authenticated principal is id. Requests pass
// unchecked when authentication is disabled.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, id types.Identity) bool {
	if !s.auth.Enabled() {
		return true
	}
	principal, ok := PrincipalFromContext(r.Context())
	if !ok || principal != id {
		writeJSONError(w, http.StatusForbidden, "principal does not match request identity")
		return false
	}
	return true
}

func uintParam(r *http.Request, name string) (uint64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return value, nil
}

func identityParam(r *http.Request, name string) (types.Identity, error) {
	return types.ParseIdentity(chi.URLParam(r, name))
}

func (s *Server) handleAppendVote(w http.ResponseWriter, r *http.Request) {
	var body AppendVoteBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Submitter.IsZero() {
		writeJSONError(w, http.StatusBadRequest, "submitter required")
		return
	}
	if !s.authorize(w, r, body.Submitter) {
		return
	}
	// Rent is debited from the payer, so it must be the caller too.
	if body.Payer != nil && !body.Payer.IsZero() && !s.authorize(w, r, *body.Payer) {
		return
	}
	res, err := s.node.AppendVote(r.Context(), body.request())
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appendVoteResponse(res))
}

func (s *Server) handleCreateLedger(w http.ResponseWriter, r *http.Request) {
	var body CreateLedgerBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Payer.IsZero() {
		writeJSONError(w, http.StatusBadRequest, "payer required")
		return
	}
	if !s.authorize(w, r, body.Payer) {
		return
	}
	record, err := s.node.InitializeLedgerRecord(r.Context(), body.LedgerID, body.Payer)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ledgerJSON(record))
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var body ClaimBody
	if !decodeBody(w, r, &body) {
		return
	}
	caller := body.Owner
	if s.auth.Enabled() {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, "missing principal")
			return
		}
		caller = principal
	}
	res, err := s.node.ClaimReward(r.Context(), growspace.ClaimRequest{
		Caller: caller,
		Owner:  body.Owner,
		Period: body.Period,
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ClaimResponse{
		Owner:    body.Owner,
		Period:   res.Period,
		Redeemed: res.Redeemed,
		Reward:   amountString(res.Reward),
	})
}

func (s *Server) handleInitializeTreasury(w http.ResponseWriter, r *http.Request) {
	var body InitializeTreasuryBody
	if !decodeBody(w, r, &body) {
		return
	}
	amount, err := uint256.FromDecimal(strings.TrimSpace(body.Amount))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid amount %q", body.Amount))
		return
	}
	treasury, err := s.node.InitializeTreasury(r.Context(), body.Admin, amount)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, treasuryJSON(treasury))
}

func (s *Server) handleTreasury(w http.ResponseWriter, r *http.Request) {
	treasury, err := s.node.Treasury()
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, treasuryJSON(treasury))
}

func (s *Server) handlePeriod(w http.ResponseWriter, r *http.Request) {
	period, err := uintParam(r, "period")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	counter, err := s.node.PeriodCounter(period)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	out := PeriodCounterJSON{
		Period:   counter.Period,
		Credit:   counter.Credit,
		Debit:    counter.Debit,
		Redeemed: counter.Redeemed,
	}
	treasury, err := s.node.Treasury()
	switch {
	case err == nil:
		out.Closed = treasury.Closed(period)
	case !errors.Is(err, growspace.ErrTreasuryMissing):
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	id, err := identityParam(r, "identity")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	period, err := uintParam(r, "period")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	acc, ok, err := s.node.UserAccount(id, period)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	if !ok {
		writeJSONError(w, http.StatusNotFound, "account not found")
		return
	}
	writeJSON(w, http.StatusOK, accountJSON(acc))
}

func (s *Server) handleLedgerIDs(w http.ResponseWriter, r *http.Request) {
	ids, err := s.node.LedgerIDs()
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	if ids == nil {
		ids = []uint64{}
	}
	writeJSON(w, http.StatusOK, map[string][]uint64{"ledgers": ids})
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	record, err := s.node.Ledger(id)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ledgerJSON(record))
}

func (s *Server) handleBlock(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	blockID, err := uintParam(r, "block")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	record, err := s.node.Ledger(id)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	block, ok := record.Block(blockID)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "block not found")
		return
	}
	writeJSON(w, http.StatusOK, blockJSON(block))
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	id, err := identityParam(r, "identity")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	balance, err := s.node.Balance(id)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceJSON{Identity: id, Balance: amountString(balance)})
}
