package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrEntryNotFound     = errors.New("ledger entry not found")
	ErrBetNotFound       = errors.New("bet not found")
	ErrEventNotFound     = errors.New("event not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrInvalidCurrency   = errors.New("invalid currency")
	ErrCurrencyMismatch  = errors.New("currency mismatch")
	ErrInvalidAccount    = errors.New("invalid ledger account")
	ErrSameAccount       = errors.New("debit and credit account are the same")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrVersionConflict   = errors.New("optimistic lock conflict")

	// ErrValidation marks bet-limit and slip validation failures. The concrete
	// error usually carries the full rule breakdown.
	ErrValidation = errors.New("validation failed")

	// State conflicts. Callers can treat these as "already processed".
	ErrAlreadySettled  = errors.New("already settled")
	ErrAlreadyReversed = errors.New("entry already reversed")
	ErrBetNotPending   = errors.New("bet is not pending")
	ErrEntryNotPending = errors.New("entry is not pending")
	ErrEventClosed     = errors.New("event is not open for settlement")
)

// IsStateConflict groups the idempotency-guard errors.
func IsStateConflict(err error) bool {
	return errors.Is(err, ErrAlreadySettled) ||
		errors.Is(err, ErrAlreadyReversed) ||
		errors.Is(err, ErrBetNotPending) ||
		errors.Is(err, ErrEntryNotPending) ||
		errors.Is(err, ErrEventClosed)
}

// IsNotFound groups the missing-resource errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrWalletNotFound) ||
		errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrBetNotFound) ||
		errors.Is(err, ErrEventNotFound)
}
