package rpc

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/holiman/uint256"

	"growspace/core"
	"growspace/native/growspace"
)

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// statusFor maps a ledger error to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, growspace.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, growspace.ErrTreasuryMissing), errors.Is(err, growspace.ErrLedgerMissing):
		return http.StatusNotFound
	case errors.Is(err, growspace.ErrTreasuryExists), errors.Is(err, growspace.ErrLedgerExists),
		errors.Is(err, growspace.ErrPeriodNotClosed):
		return http.StatusConflict
	case errors.Is(err, growspace.ErrNoRedeemableCredit), errors.Is(err, growspace.ErrArithmetic),
		errors.Is(err, growspace.ErrMalformedDigest):
		return http.StatusUnprocessableEntity
	case errors.Is(err, growspace.ErrFunding):
		return http.StatusPaymentRequired
	case errors.Is(err, growspace.ErrGrowth):
		return http.StatusInsufficientStorage
	case errors.Is(err, core.ErrNodeClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeLedgerError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: message, Reason: core.Outcome(err)})
}

func amountString(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
