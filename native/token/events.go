package token

import (
	"encoding/hex"
	"math/big"

	"crowdsale/core/types"
)

const (
	EventTypeMint     = "token.mint"
	EventTypeBurn     = "token.burn"
	EventTypeTransfer = "token.transfer"
)

type tokenEvent struct {
	evt *types.Event
}

func (e tokenEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e tokenEvent) Event() *types.Event { return e.evt }

func amountString(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}

// NewMintEvent returns the canonical payload emitted when new units are
// minted.
func NewMintEvent(to [20]byte, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeMint,
		Attributes: map[string]string{
			"to":     hex.EncodeToString(to[:]),
			"amount": amountString(amount),
		},
	}
}

// NewBurnEvent returns the canonical payload emitted when units are burned.
func NewBurnEvent(from [20]byte, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeBurn,
		Attributes: map[string]string{
			"from":   hex.EncodeToString(from[:]),
			"amount": amountString(amount),
		},
	}
}

// NewTransferEvent returns the canonical payload emitted on transfers.
func NewTransferEvent(from, to [20]byte, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeTransfer,
		Attributes: map[string]string{
			"from":   hex.EncodeToString(from[:]),
			"to":     hex.EncodeToString(to[:]),
			"amount": amountString(amount),
		},
	}
}
