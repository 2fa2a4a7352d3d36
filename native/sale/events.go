package sale

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"crowdsale/core/types"
)

const (
	EventTypeContribution = "sale.contribution"
	EventTypeFinalized    = "sale.finalized"
	EventTypeClaimed      = "sale.claimed"
	EventTypeRefunded     = "sale.refunded"
	EventTypeWhitelist    = "sale.whitelist"
	EventTypeEmergency    = "sale.emergency_withdrawal"
)

// NewContributionEvent returns the canonical payload emitted when a
// contribution is recorded.
func NewContributionEvent(party [20]byte, amount, total *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeContribution,
		Attributes: map[string]string{
			"party":       hex.EncodeToString(party[:]),
			"amount":      cloneBigInt(amount).String(),
			"totalRaised": cloneBigInt(total).String(),
		},
	}
}

// NewFinalizedEvent returns the canonical payload emitted by the one-shot
// finalization transition.
func NewFinalizedEvent(success bool, totalRaised *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeFinalized,
		Attributes: map[string]string{
			"success":     strconv.FormatBool(success),
			"totalRaised": cloneBigInt(totalRaised).String(),
		},
	}
}

// NewClaimedEvent returns the canonical payload emitted when a claim settles.
func NewClaimedEvent(party [20]byte, tokenAmount *big.Int, mode SettlementMode) *types.Event {
	return &types.Event{
		Type: EventTypeClaimed,
		Attributes: map[string]string{
			"party":       hex.EncodeToString(party[:]),
			"tokenAmount": cloneBigInt(tokenAmount).String(),
			"mode":        mode.String(),
		},
	}
}

// NewRefundedEvent returns the canonical payload emitted when a refund
// settles.
func NewRefundedEvent(party [20]byte, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeRefunded,
		Attributes: map[string]string{
			"party":  hex.EncodeToString(party[:]),
			"amount": cloneBigInt(amount).String(),
		},
	}
}

// NewWhitelistEvent returns the per-party payload emitted by whitelist
// updates.
func NewWhitelistEvent(party [20]byte, allowed bool) *types.Event {
	return &types.Event{
		Type: EventTypeWhitelist,
		Attributes: map[string]string{
			"party":   hex.EncodeToString(party[:]),
			"allowed": strconv.FormatBool(allowed),
		},
	}
}

// NewEmergencyEvent returns the payload emitted by the operator escape
// hatch. Asset is empty for base-currency withdrawals.
func NewEmergencyEvent(destination [20]byte, amount *big.Int, asset string) *types.Event {
	attrs := map[string]string{
		"destination": hex.EncodeToString(destination[:]),
		"amount":      cloneBigInt(amount).String(),
	}
	if asset != "" {
		attrs["asset"] = asset
	}
	return &types.Event{Type: EventTypeEmergency, Attributes: attrs}
}
