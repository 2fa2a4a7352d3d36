package sale

import "errors"

var (
	errNilState = errors.New("sale engine: state not configured")

	// ErrZeroAmount rejects contributions with a non-positive amount.
	ErrZeroAmount = errors.New("sale: amount must be positive")
	// ErrWindowClosed rejects contributions outside [StartTime, EndTime].
	ErrWindowClosed = errors.New("sale: contribution window closed")
	// ErrNotWhitelisted rejects contributions from parties outside the
	// allow-list while gating is enabled.
	ErrNotWhitelisted = errors.New("sale: party not whitelisted")
	// ErrBelowMinimum rejects contributions whose cumulative total would
	// stay below the per-party minimum.
	ErrBelowMinimum = errors.New("sale: contribution below per-party minimum")
	// ErrAboveMaximum rejects contributions whose cumulative total would
	// exceed the per-party maximum.
	ErrAboveMaximum = errors.New("sale: contribution above per-party maximum")
	// ErrHardCapExceeded rejects contributions that would push the total
	// raised past the hard cap.
	ErrHardCapExceeded = errors.New("sale: hard cap exceeded")
	// ErrInsufficientBalance rejects contributions the party cannot cover.
	ErrInsufficientBalance = errors.New("sale: insufficient balance")

	// ErrNotOperator rejects operator-only operations from other callers.
	ErrNotOperator = errors.New("sale: caller is not the operator")

	// ErrAlreadyFinalized rejects a second finalization attempt.
	ErrAlreadyFinalized = errors.New("sale: already finalized")
	// ErrSaleStillOpen rejects finalization while the window is open and
	// the hard cap has not been reached.
	ErrSaleStillOpen = errors.New("sale: still open")
	// ErrNotFinalized rejects settlement before finalization committed.
	ErrNotFinalized = errors.New("sale: not finalized")
	// ErrSoftCapNotMet rejects claims after a failed sale.
	ErrSoftCapNotMet = errors.New("sale: soft cap not met")
	// ErrSoftCapMet rejects refunds after a successful sale.
	ErrSoftCapMet = errors.New("sale: soft cap met")
	// ErrNothingToClaim rejects claims for parties with a zeroed entry.
	ErrNothingToClaim = errors.New("sale: nothing to claim")
	// ErrNothingToRefund rejects refunds for parties with a zeroed entry.
	ErrNothingToRefund = errors.New("sale: nothing to refund")
	// ErrZeroAllocation rejects claims whose contribution is below the
	// rate's granularity and would round to zero tokens.
	ErrZeroAllocation = errors.New("sale: allocation rounds to zero")

	// ErrSettlementFailed reports that both the mint and the transfer
	// settlement attempts failed; the ledger entry was restored.
	ErrSettlementFailed = errors.New("sale: settlement failed")
	// ErrRefundTransferFailed reports a failed refund value transfer; the
	// ledger entry was restored.
	ErrRefundTransferFailed = errors.New("sale: refund transfer failed")
	// ErrTransferFailed reports a failed funds withdrawal; the vault
	// balance is untouched.
	ErrTransferFailed = errors.New("sale: transfer failed")
	// ErrInvalidDestination rejects withdrawals to the zero address.
	ErrInvalidDestination = errors.New("sale: invalid destination")
	// ErrAmountExceedsBalance rejects emergency withdrawals above the
	// current vault balance.
	ErrAmountExceedsBalance = errors.New("sale: amount exceeds vault balance")
	// ErrUnknownAsset rejects emergency withdrawals of an asset the engine
	// has no collaborator for.
	ErrUnknownAsset = errors.New("sale: unknown asset")
)
