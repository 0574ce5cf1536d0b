// Package tier maps donation amounts to display tiers.
package tier

import (
	"fmt"
	"math"

	"github.com/mrtongx0/donation-relay/internal/config"
)

// Tier is a configured amount bracket. A nil Max means the bracket is open-ended.
type Tier struct {
	Min      float64
	Max      *float64
	Title    string
	ImageURL string
}

// Contains reports whether amount falls inside the inclusive bracket
func (t Tier) Contains(amount float64) bool {
	if amount < t.Min {
		return false
	}
	return t.Max == nil || amount <= *t.Max
}

// Resolver picks the first tier whose bracket contains an amount
type Resolver struct {
	tiers    []Tier
	fallback Tier
}

// NewResolver creates a resolver over tiers in evaluation order
func NewResolver(tiers []Tier, fallback Tier) *Resolver {
	ordered := make([]Tier, len(tiers))
	copy(ordered, tiers)
	return &Resolver{tiers: ordered, fallback: fallback}
}

// NewResolverFromConfig builds a resolver from the configured brackets
func NewResolverFromConfig(tiers []config.TierConfig, fallback config.TierConfig) *Resolver {
	converted := make([]Tier, 0, len(tiers))
	for _, t := range tiers {
		converted = append(converted, fromConfig(t))
	}
	return NewResolver(converted, fromConfig(fallback))
}

func fromConfig(t config.TierConfig) Tier {
	var upper *float64
	if t.Max != nil {
		v := *t.Max
		upper = &v
	}
	return Tier{Min: t.Min, Max: upper, Title: t.Title, ImageURL: t.Image}
}

// Resolve returns the first matching tier, or the fallback tier. Amounts that
// are not finite or are negative are treated as zero.
func (r *Resolver) Resolve(amount float64) Tier {
	amount = Normalize(amount)
	for _, t := range r.tiers {
		if t.Contains(amount) {
			return t
		}
	}
	return r.fallback
}

// Tiers returns the configured brackets in evaluation order
func (r *Resolver) Tiers() []Tier {
	out := make([]Tier, len(r.tiers))
	copy(out, r.tiers)
	return out
}

// Validate reports brackets whose upper bound lies below the lower bound
func (r *Resolver) Validate() error {
	for i, t := range r.tiers {
		if t.Max != nil && *t.Max < t.Min {
			return fmt.Errorf("tier %d (%q): max %v below min %v", i, t.Title, *t.Max, t.Min)
		}
	}
	return nil
}

// Normalize maps invalid amounts to zero
func Normalize(amount float64) float64 {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
		return 0
	}
	return amount
}
