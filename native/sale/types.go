package sale

import "math/big"

// Status is the derived lifecycle phase of a sale.
type Status uint8

const (
	StatusPending Status = iota
	StatusOpen
	StatusAwaitingFinalization
	StatusFinalizedSuccess
	StatusFinalizedFailure
)

// String returns the canonical lowercase name used in events and RPC
// responses.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusOpen:
		return "open"
	case StatusAwaitingFinalization:
		return "awaiting_finalization"
	case StatusFinalizedSuccess:
		return "finalized_success"
	case StatusFinalizedFailure:
		return "finalized_failure"
	default:
		return "unknown"
	}
}

// Record is the mutable portion of the sale persisted alongside the
// contribution ledger. Finalized transitions false to true exactly once;
// Succeeded is only meaningful once Finalized is set.
type Record struct {
	TotalRaised *big.Int
	Finalized   bool
	Succeeded   bool
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return &Record{TotalRaised: big.NewInt(0)}
	}
	clone := *r
	clone.TotalRaised = cloneBigInt(r.TotalRaised)
	return &clone
}

// Normalize replaces a nil total with zero so arithmetic is nil-safe.
func (r *Record) Normalize() *Record {
	if r == nil {
		return &Record{TotalRaised: big.NewInt(0)}
	}
	if r.TotalRaised == nil {
		r.TotalRaised = big.NewInt(0)
	}
	return r
}

// Snapshot is a read-only view of the sale returned to queries.
type Snapshot struct {
	Params           *Params
	TotalRaised      *big.Int
	Finalized        bool
	Succeeded        bool
	WhitelistEnabled bool
	Status           Status
}

// statusAt derives the lifecycle phase from the record, the parameters and
// the supplied clock reading.
func statusAt(params *Params, record *Record, now int64) Status {
	record = record.Normalize()
	if record.Finalized {
		if record.Succeeded {
			return StatusFinalizedSuccess
		}
		return StatusFinalizedFailure
	}
	if now < params.StartTime {
		return StatusPending
	}
	if now > params.EndTime || record.TotalRaised.Cmp(params.HardCap) >= 0 {
		return StatusAwaitingFinalization
	}
	return StatusOpen
}
