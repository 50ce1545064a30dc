package leveling

import "math"

// Progress describes where a total XP value sits within its level.
type Progress struct {
	Level         int     `json:"level"`
	TotalXP       int64   `json:"total_xp"`
	LevelFloor    int64   `json:"level_floor"`
	NextThreshold int64   `json:"next_threshold"`
	IntoLevel     int64   `json:"into_level"`
	NeededForNext int64   `json:"needed_for_next"`
	Percent       float64 `json:"percent"`
}

// ProgressOf computes level progress for totalXP.
func ProgressOf(totalXP int64) Progress {
	if totalXP < 0 {
		totalXP = 0
	}
	level := LevelOf(totalXP)
	floor := ThresholdFor(level)
	next := ThresholdFor(level + 1)

	p := Progress{
		Level:         level,
		TotalXP:       totalXP,
		LevelFloor:    floor,
		NextThreshold: next,
		IntoLevel:     totalXP - floor,
		NeededForNext: next - totalXP,
	}
	if span := next - floor; span > 0 {
		p.Percent = math.Round(float64(p.IntoLevel)/float64(span)*10000) / 100
	}
	return p
}

// Row is one line of the leveling table.
type Row struct {
	Level     int   `json:"level"`
	Threshold int64 `json:"threshold"`
	Cost      int64 `json:"cost"`
}

// Table returns rows for levels 0 through maxLevel inclusive.
func Table(maxLevel int) []Row {
	if maxLevel < 0 {
		return nil
	}
	rows := make([]Row, 0, maxLevel+1)
	for l := 0; l <= maxLevel; l++ {
		rows = append(rows, Row{Level: l, Threshold: ThresholdFor(l), Cost: CostOf(l)})
	}
	return rows
}
