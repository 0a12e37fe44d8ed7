package length

import (
	"errors"
	"fmt"
	"strings"
)

// AggregationDelta widens the max bound of the second pass over joined
// partial summaries.
const AggregationDelta = 20

// ErrUnknownTier is returned by Parse for names outside the enumeration.
var ErrUnknownTier = errors.New("unknown length tier")

type Tier string

const (
	Small  Tier = "small"
	Medium Tier = "medium"
	Large  Tier = "large"

	DefaultTier = Medium
)

// Tiers lists the known tiers from shortest to longest.
func Tiers() []Tier {
	return []Tier{Small, Medium, Large}
}

func (t Tier) Known() bool {
	_, ok := defaultBounds[t]
	return ok
}

// Title returns the display form, e.g. "Medium".
func (t Tier) Title() string {
	s := string(t)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Parse normalizes case and surrounding whitespace.
func Parse(name string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(name)))
	if !t.Known() {
		return "", fmt.Errorf("%w: %q", ErrUnknownTier, name)
	}
	return t, nil
}

// Bounds are output-length limits in model tokens, Min < Max.
type Bounds struct {
	Min int
	Max int
}

//nolint:gochecknoglobals // Lookup table meant to be immutable.
var defaultBounds = map[Tier]Bounds{
	Small:  {Min: 20, Max: 60},
	Medium: {Min: 40, Max: 120},
	Large:  {Min: 80, Max: 200},
}

// Resolution is the outcome of resolving a requested tier.
type Resolution struct {
	Requested Tier
	Tier      Tier
	// FellBack is set when Requested was unknown and DefaultTier was used.
	FellBack bool
	// Pass bounds every first-pass chunk summary.
	Pass Bounds
	// Aggregation bounds the second pass of multi-chunk documents.
	Aggregation Bounds
}

// Policy maps tiers to bounds clamped to the model's output capacity.
type Policy struct {
	maxOutputTokens int
}

// NewPolicy returns a policy for a model that emits at most maxOutputTokens.
// Zero or negative capacity disables clamping.
func NewPolicy(maxOutputTokens int) Policy {
	return Policy{maxOutputTokens: maxOutputTokens}
}

func (p Policy) Resolve(t Tier) Resolution {
	res := Resolution{Requested: t, Tier: t}

	base, ok := defaultBounds[t]
	if !ok {
		res.Tier = DefaultTier
		res.FellBack = true
		base = defaultBounds[DefaultTier]
	}

	res.Pass = p.clamp(base)
	res.Aggregation = p.clamp(Bounds{Min: base.Min, Max: base.Max + AggregationDelta})

	return res
}

func (p Policy) clamp(b Bounds) Bounds {
	if p.maxOutputTokens <= 0 || b.Max <= p.maxOutputTokens {
		return b
	}

	b.Max = p.maxOutputTokens
	if b.Min >= b.Max {
		b.Min = b.Max / 2
	}
	return b
}
