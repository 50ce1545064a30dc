// Package leveling maps cumulative XP to levels on questboard's tiered curve.
//
// The curve is defined by the marginal XP cost of advancing from one level to
// the next. Costs are grouped into tiers:
//
//	0->1      50
//	1->2      100
//	2->10     200 per level
//	10->20    500 per level
//	20->30    1000 per level
//	30->50    5000 per level
//	50->90    10000 per level
//	90->100   50000 per level
//	100+      100000 per level
//
// LevelOf and ThresholdFor are exact inverses at tier boundaries:
// LevelOf(ThresholdFor(L)) == L for every L >= 0.
package leveling

import "math"

// tier is a run of levels that share the same marginal cost.
// Levels in [from, to) cost perLevel XP each to leave. to == 0 means unbounded.
type tier struct {
	from     int
	to       int
	perLevel int64
}

var tiers = []tier{
	{from: 0, to: 1, perLevel: 50},
	{from: 1, to: 2, perLevel: 100},
	{from: 2, to: 10, perLevel: 200},
	{from: 10, to: 20, perLevel: 500},
	{from: 20, to: 30, perLevel: 1000},
	{from: 30, to: 50, perLevel: 5000},
	{from: 50, to: 90, perLevel: 10000},
	{from: 90, to: 100, perLevel: 50000},
	{from: 100, to: 0, perLevel: 100000},
}

// CostOf returns the XP needed to advance from level to level+1.
// Negative levels are treated as level 0.
func CostOf(level int) int64 {
	if level < 0 {
		level = 0
	}
	for _, t := range tiers {
		if t.to == 0 || level < t.to {
			return t.perLevel
		}
	}
	return tiers[len(tiers)-1].perLevel
}

// LevelOf returns the level reached with totalXP cumulative experience.
// Whole tiers are consumed before moving on, so the cost is O(len(tiers))
// regardless of how large totalXP is.
func LevelOf(totalXP int64) int {
	if totalXP <= 0 {
		return 0
	}
	remaining := totalXP
	level := 0
	for _, t := range tiers {
		if t.to == 0 {
			return clampLevel(int64(level) + remaining/t.perLevel)
		}
		span := int64(t.to - t.from)
		tierCost := span * t.perLevel
		if remaining < tierCost {
			return level + int(remaining/t.perLevel)
		}
		remaining -= tierCost
		level = t.to
	}
	return level
}

// ThresholdFor returns the cumulative XP at which level is first reached.
// The result saturates at math.MaxInt64 for levels whose threshold would overflow.
func ThresholdFor(level int) int64 {
	if level <= 0 {
		return 0
	}
	var total int64
	for _, t := range tiers {
		upper := t.to
		if upper == 0 || level < upper {
			upper = level
		}
		if upper <= t.from {
			break
		}
		levels := int64(upper - t.from)
		if levels > (math.MaxInt64-total)/t.perLevel {
			return math.MaxInt64
		}
		total += levels * t.perLevel
		if upper == level {
			break
		}
	}
	return total
}

func clampLevel(level int64) int {
	if level > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(level)
}
