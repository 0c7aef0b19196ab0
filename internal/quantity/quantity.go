// Package quantity combines heterogeneous shopping quantities into the
// fewest possible display amounts without mixing incompatible units.
package quantity

import "math"

// Unit is one of the closed set of shopping units recognized by the planner.
type Unit string

const (
	UnitGram       Unit = "g"
	UnitKilogram   Unit = "kg"
	UnitCentiliter Unit = "cl"
	UnitDeciliter  Unit = "dL"
	UnitLiter      Unit = "L"
	UnitPiece      Unit = "pcs"
	UnitBottle     Unit = "bottles"
	UnitPack       Unit = "packs"
)

// Entry is a single contribution to an aggregation. Quantity is optional;
// a nil or non-positive quantity contributes nothing. An entry with a
// quantity but no unit counts as bare pieces.
type Entry struct {
	Quantity *float64
	Unit     Unit
}

// Amount is a total expressed in a single display unit.
type Amount struct {
	Total float64 `json:"total"`
	Unit  Unit    `json:"unit"`
}

// Kind discriminates the three possible aggregation outcomes.
type Kind string

const (
	// KindAbsent means no entry carried a usable quantity.
	KindAbsent Kind = "absent"
	// KindSingle means everything reduced to one unit family and one display unit.
	KindSingle Kind = "single"
	// KindBreakdown means incompatible families or count units were present.
	KindBreakdown Kind = "breakdown"
)

// Result is the outcome of aggregating a list of entries.
type Result struct {
	Kind      Kind     `json:"kind"`
	Single    *Amount  `json:"single,omitempty"`
	Breakdown []Amount `json:"breakdown,omitempty"`
}

// Absent reports whether no usable quantity was found.
func (r Result) Absent() bool {
	return r.Kind == KindAbsent
}

// massToGrams maps mass units to their factor in grams.
var massToGrams = map[Unit]float64{
	UnitGram:     1,
	UnitKilogram: 1000,
}

// volumeToCl maps volume units to their factor in centiliters.
var volumeToCl = map[Unit]float64{
	UnitCentiliter: 1,
	UnitDeciliter:  10,
	UnitLiter:      100,
}

// Aggregate sums a list of entries family by family. Mass is summed in
// grams, volume in centiliters, and each count unit keeps its own bucket
// because a bottle is not interchangeable with a pack. Entries with a
// missing or non-positive quantity are excluded rather than treated as
// zero, so a list with no usable quantity yields an absent result instead
// of a misleading zero.
func Aggregate(entries []Entry) Result {
	var (
		grams    float64
		massSeen bool
		cl       float64
		volSeen  bool
	)
	// Count buckets keep first-seen order.
	countOrder := []Unit{}
	countTotals := map[Unit]float64{}

	for _, e := range entries {
		if e.Quantity == nil || *e.Quantity <= 0 {
			continue
		}
		q := *e.Quantity

		if factor, ok := massToGrams[e.Unit]; ok {
			grams += q * factor
			massSeen = true
			continue
		}
		if factor, ok := volumeToCl[e.Unit]; ok {
			cl += q * factor
			volSeen = true
			continue
		}

		// Everything else is a count. Unitless quantities fold into pcs;
		// an unrecognized unit stays its own bucket so nothing is merged
		// across units we do not understand.
		unit := e.Unit
		if unit == "" {
			unit = UnitPiece
		}
		if _, ok := countTotals[unit]; !ok {
			countOrder = append(countOrder, unit)
		}
		countTotals[unit] += q
	}

	amounts := make([]Amount, 0, 2+len(countOrder))
	if massSeen {
		amounts = append(amounts, displayMass(grams))
	}
	if volSeen {
		amounts = append(amounts, displayVolume(cl))
	}
	for _, unit := range countOrder {
		amounts = append(amounts, Amount{Total: countTotals[unit], Unit: unit})
	}

	switch len(amounts) {
	case 0:
		return Result{Kind: KindAbsent}
	case 1:
		return Result{Kind: KindSingle, Single: &amounts[0]}
	default:
		return Result{Kind: KindBreakdown, Breakdown: amounts}
	}
}

// displayMass picks kilograms once the total reaches 1000 grams.
func displayMass(grams float64) Amount {
	if grams >= 1000 {
		return Amount{Total: round2(grams / 1000), Unit: UnitKilogram}
	}
	return Amount{Total: round2(grams), Unit: UnitGram}
}

// displayVolume prefers liters above a liter, whole deciliters when the
// total divides evenly, and centiliters otherwise.
func displayVolume(cl float64) Amount {
	if cl >= 100 {
		return Amount{Total: round2(cl / 100), Unit: UnitLiter}
	}
	if cl >= 10 && math.Mod(cl, 10) == 0 {
		return Amount{Total: cl / 10, Unit: UnitDeciliter}
	}
	return Amount{Total: round2(cl), Unit: UnitCentiliter}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
