package scanning

import "diecastscan/internal/catalog"

// Outcome classifies how a resolved entry's variant list is handled
type Outcome int

const (
	// OutcomeNoVariants means the entry resolved but carries no variants;
	// the cycle completes with no insertion
	OutcomeNoVariants Outcome = iota
	// OutcomeAutoResolved means exactly one variant exists and is selected
	// without user involvement
	OutcomeAutoResolved
	// OutcomeAwaitingChoice means several variants share the code and the
	// user must pick one
	OutcomeAwaitingChoice
)

// Select is the disambiguation decision over an entry's variant list. The
// returned variant is only non-nil for OutcomeAutoResolved.
func Select(variants []catalog.Variant) (Outcome, *catalog.Variant) {
	switch len(variants) {
	case 0:
		return OutcomeNoVariants, nil
	case 1:
		return OutcomeAutoResolved, &variants[0]
	default:
		return OutcomeAwaitingChoice, nil
	}
}
