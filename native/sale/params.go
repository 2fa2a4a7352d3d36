package sale

import (
	"errors"
	"fmt"
	"math/big"
)

// RateScale is the fixed-point denominator for Params.Rate. A rate of
// 2 * RateScale allocates two token units per contributed base unit.
var RateScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// ErrInvalidParams wraps every constructor-time configuration failure. No
// engine instance is created when validation fails.
var ErrInvalidParams = errors.New("sale: invalid parameters")

// Params captures the immutable configuration of a sale: the contribution
// window, the caps, the per-party bounds and the allocation rate. All
// monetary fields are base-currency wei; Rate is scaled by RateScale.
type Params struct {
	StartTime       int64
	EndTime         int64
	SoftCap         *big.Int
	HardCap         *big.Int
	MinContribution *big.Int
	MaxContribution *big.Int
	Rate            *big.Int
	Operator        [20]byte
}

// Validate checks the structural constraints on the parameters. Every
// violation is reported wrapped in ErrInvalidParams.
func (p *Params) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: nil params", ErrInvalidParams)
	}
	if p.StartTime >= p.EndTime {
		return fmt.Errorf("%w: start time %d must precede end time %d", ErrInvalidParams, p.StartTime, p.EndTime)
	}
	if p.SoftCap == nil || p.SoftCap.Sign() <= 0 {
		return fmt.Errorf("%w: soft cap must be positive", ErrInvalidParams)
	}
	if p.HardCap == nil || p.HardCap.Sign() <= 0 {
		return fmt.Errorf("%w: hard cap must be positive", ErrInvalidParams)
	}
	if p.SoftCap.Cmp(p.HardCap) > 0 {
		return fmt.Errorf("%w: soft cap %s exceeds hard cap %s", ErrInvalidParams, p.SoftCap, p.HardCap)
	}
	if p.MinContribution == nil || p.MinContribution.Sign() <= 0 {
		return fmt.Errorf("%w: minimum contribution must be positive", ErrInvalidParams)
	}
	if p.MaxContribution == nil || p.MaxContribution.Sign() <= 0 {
		return fmt.Errorf("%w: maximum contribution must be positive", ErrInvalidParams)
	}
	if p.MinContribution.Cmp(p.MaxContribution) > 0 {
		return fmt.Errorf("%w: minimum contribution %s exceeds maximum %s", ErrInvalidParams, p.MinContribution, p.MaxContribution)
	}
	if p.Rate == nil || p.Rate.Sign() <= 0 {
		return fmt.Errorf("%w: rate must be positive", ErrInvalidParams)
	}
	if p.Operator == ([20]byte{}) {
		return fmt.Errorf("%w: operator address required", ErrInvalidParams)
	}
	return nil
}

// Clone returns a deep copy so callers can hold the parameters without
// aliasing the engine's copy.
func (p *Params) Clone() *Params {
	if p == nil {
		return nil
	}
	clone := *p
	clone.SoftCap = cloneBigInt(p.SoftCap)
	clone.HardCap = cloneBigInt(p.HardCap)
	clone.MinContribution = cloneBigInt(p.MinContribution)
	clone.MaxContribution = cloneBigInt(p.MaxContribution)
	clone.Rate = cloneBigInt(p.Rate)
	return &clone
}

// TokenAllocation computes floor(contribution * Rate / RateScale), the token
// amount owed for the supplied contribution.
func (p *Params) TokenAllocation(contribution *big.Int) *big.Int {
	if p == nil || p.Rate == nil || contribution == nil {
		return big.NewInt(0)
	}
	allocation := new(big.Int).Mul(contribution, p.Rate)
	return allocation.Div(allocation, RateScale)
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
