package growspace

import "errors"

var (
	// ErrUnauthorized is returned when the caller is not the identity bound to
	// the account being redeemed.
	ErrUnauthorized = errors.New("growspace: caller does not own account")
	// ErrPeriodNotClosed is returned when claiming a period that is still open.
	ErrPeriodNotClosed = errors.New("growspace: period not closed")
	// ErrNoRedeemableCredit is returned when an account holds no credit beyond
	// what it already redeemed.
	ErrNoRedeemableCredit = errors.New("growspace: no redeemable credit")
	// ErrFunding is returned when a payer or the treasury cannot cover a transfer.
	ErrFunding = errors.New("growspace: insufficient funds")
	// ErrGrowth is returned when a ledger record cannot be resized.
	ErrGrowth = errors.New("growspace: record growth rejected")
	// ErrMalformedDigest is reserved for digest validation. Digests are
	// normalised to fingerprints so it is never returned today.
	ErrMalformedDigest = errors.New("growspace: malformed digest")
	// ErrArithmetic is returned when a counter or balance would overflow or
	// underflow.
	ErrArithmetic = errors.New("growspace: arithmetic overflow")

	ErrTreasuryMissing = errors.New("growspace: treasury not initialised")
	ErrTreasuryExists  = errors.New("growspace: treasury already initialised")
	ErrLedgerMissing   = errors.New("growspace: ledger record not found")
	ErrLedgerExists    = errors.New("growspace: ledger record already exists")
)
