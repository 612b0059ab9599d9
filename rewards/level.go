// Package rewards holds the gamification rules: the level curve, the badge
// catalog and the badge unlock engine. Everything here is pure and does no I/O.
package rewards

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is returned for negative points or non-positive levels.
var ErrInvalidInput = errors.New("invalid input")

// tier describes a stretch of the level curve where every level costs the same.
type tier struct {
	floorPoints int // first point value in the tier
	floorLevel  int // level reached at floorPoints
	cost        int // points per level inside the tier
}

// levelTiers must stay sorted by floorPoints.
var levelTiers = []tier{
	{floorPoints: 0, floorLevel: 1, cost: 200},
	{floorPoints: 1000, floorLevel: 5, cost: 800},
	{floorPoints: 5000, floorLevel: 10, cost: 2000},
	{floorPoints: 15000, floorLevel: 15, cost: 7000},
	{floorPoints: 50000, floorLevel: 20, cost: 10000},
}

// LevelFor maps cumulative points to a level. Level 1 starts at 0 points.
func LevelFor(points int) (int, error) {
	if points < 0 {
		return 0, fmt.Errorf("%w: points must be non-negative, got %d", ErrInvalidInput, points)
	}
	t := levelTiers[0]
	for _, candidate := range levelTiers[1:] {
		if points < candidate.floorPoints {
			break
		}
		t = candidate
	}
	return t.floorLevel + (points-t.floorPoints)/t.cost, nil
}

// NextLevelThreshold returns the minimum cumulative points needed to reach level+1.
// Level 5 straddles the first two tiers: it starts at 800 and ends at 1799.
func NextLevelThreshold(level int) (int, error) {
	if level < 1 {
		return 0, fmt.Errorf("%w: level must be positive, got %d", ErrInvalidInput, level)
	}
	switch {
	case level < 5:
		return level * 200, nil
	case level < 10:
		return 1000 + (level-4)*800, nil
	case level < 15:
		return 5000 + (level-9)*2000, nil
	case level < 20:
		return 15000 + (level-14)*7000, nil
	default:
		return 50000 + (level-19)*10000, nil
	}
}

// Progress is the level view shown to a user.
type Progress struct {
	Level             int `json:"level"`
	NextLevelPoints   int `json:"next_level_points"`
	PointsToNextLevel int `json:"points_to_next_level"`
}

// ProgressFor combines LevelFor and NextLevelThreshold. Negative totals, which
// the ledger does not prevent, are clamped to zero.
func ProgressFor(totalPoints int) Progress {
	pts := totalPoints
	if pts < 0 {
		pts = 0
	}
	level, _ := LevelFor(pts)
	next, _ := NextLevelThreshold(level)
	return Progress{
		Level:             level,
		NextLevelPoints:   next,
		PointsToNextLevel: next - totalPoints,
	}
}
