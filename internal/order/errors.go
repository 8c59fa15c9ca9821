package order

import "errors"

var (
	// Not-found class: surfaced to the caller, never retried.
	ErrRaffleNotFound = errors.New("raffle not found")
	ErrOrderNotFound  = errors.New("order not found")
	ErrUserNotFound   = errors.New("user not found")
	ErrQuotaNotFound  = errors.New("quota not found")

	// Invalid-state class: indicates a logic or race bug worth alerting on.
	ErrOrderNotEligible        = errors.New("order not found or not eligible for payment confirmation")
	ErrCannotAlterAwardedQuota = errors.New("cannot change the number of a quota bound to a prize")

	// Transient: another worker holds the confirmation lock. Safe to retry
	// once the lock is released or its TTL runs out.
	ErrConfirmationInProgress = errors.New("payment confirmation already in progress for this order")

	// Conflict during a manual adjustment is a hard error; during allocation
	// the same condition is an expected retry signal.
	ErrQuotaNumberTaken = errors.New("quota number already in use")

	// Validation class: rejected before any persistence.
	ErrNoPriceTierMatched = errors.New("no price tier matches the requested quantity")
	ErrQuantityOutOfRange = errors.New("quantity outside the raffle purchase bounds")
	ErrRaffleSoldOut      = errors.New("not enough unallocated numbers left in the raffle")
	ErrRaffleFinished     = errors.New("raffle draw has already concluded")
)
