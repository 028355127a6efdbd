package store

import "errors"

// Sentinel errors shared across packages. Expected failures are returned as
// values, never raised through panics, so callers can branch on them.
var (
	// ErrInsufficientBalance means available funds do not cover a debit or
	// lock request. No partial mutation occurs.
	ErrInsufficientBalance = errors.New("insufficient available balance")

	// ErrInsufficientLocked means the locked portion does not cover an
	// unlock request.
	ErrInsufficientLocked = errors.New("insufficient locked balance")

	// ErrLockBusy means the per-user lock could not be acquired within the
	// timeout. The operation had no effect and is safe to retry.
	ErrLockBusy = errors.New("user lock busy")

	// ErrDuplicateDeposit means a deposit with the same (tx id, output
	// index) has already been recorded.
	ErrDuplicateDeposit = errors.New("duplicate deposit")

	// ErrConcurrentModification means the optimistic version check on a
	// balance row failed.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrNoRoute means no provider produced a usable quote for the pair.
	ErrNoRoute = errors.New("no route available for asset pair")

	// ErrNotPending means a settlement transition was attempted on a swap or
	// withdrawal that is not in the state the transition requires.
	ErrNotPending = errors.New("settlement is not pending")

	// ErrNonCustodialMode means a signing or key-bearing operation was
	// attempted while the deployment runs non-custodial. Always fatal to the
	// call.
	ErrNonCustodialMode = errors.New("operation forbidden in non-custodial mode")

	// ErrSigningRejected wraps a signing backend failure. Funds reserved for
	// the withdrawal stay locked pending follow-up.
	ErrSigningRejected = errors.New("signing backend rejected request")

	// ErrKeyNotFound means the signing backend has no key for the given id.
	ErrKeyNotFound = errors.New("signing key not found")

	// ErrUserNotFound means no user matches the given id, chat id or
	// deposit address.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidAddress means the chain handler refused the destination
	// address.
	ErrInvalidAddress = errors.New("invalid destination address")

	// ErrUnsupportedAsset means no chain handler or wallet provider is
	// registered for the asset.
	ErrUnsupportedAsset = errors.New("unsupported asset")
)

// Kind is a machine-readable error classification for transports.
type Kind string

const (
	KindInsufficientBalance Kind = "insufficient_balance"
	KindBusy                Kind = "busy"
	KindDuplicate           Kind = "duplicate"
	KindNoRoute             Kind = "no_route"
	KindForbidden           Kind = "forbidden"
	KindSigning             Kind = "signing"
	KindNotFound            Kind = "not_found"
	KindInvalidInput        Kind = "invalid_input"
	KindInternal            Kind = "internal"
)

// KindOf maps an error to its transport-facing kind.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientBalance), errors.Is(err, ErrInsufficientLocked):
		return KindInsufficientBalance
	case errors.Is(err, ErrLockBusy), errors.Is(err, ErrConcurrentModification):
		return KindBusy
	case errors.Is(err, ErrDuplicateDeposit):
		return KindDuplicate
	case errors.Is(err, ErrNoRoute):
		return KindNoRoute
	case errors.Is(err, ErrNonCustodialMode):
		return KindForbidden
	case errors.Is(err, ErrSigningRejected), errors.Is(err, ErrKeyNotFound):
		return KindSigning
	case errors.Is(err, ErrUserNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidAddress), errors.Is(err, ErrUnsupportedAsset), errors.Is(err, ErrNotPending):
		return KindInvalidInput
	default:
		return KindInternal
	}
}

// Retryable reports whether the caller may safely retry the operation.
// Nothing partially mutates the ledger, so every failure is safe to retry;
// this reports whether a retry has a chance of succeeding without operator
// intervention.
func Retryable(err error) bool {
	k := KindOf(err)
	return k == KindBusy || k == KindInternal
}
