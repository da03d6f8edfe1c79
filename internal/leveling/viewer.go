// Package leveling computes viewer and streamer levels from accumulated
// points and streamed hours.
package leveling

import (
	"sort"

	"github.com/mathivegas/unistream-client/internal/domain"
)

// Progress locates a viewer inside a streamer's level ladder.
type Progress struct {
	Level int
	// LevelName is the label of the reached rung, empty when the ladder is.
	LevelName string
	// PointsIntoLevel counts points earned past the reached rung's
	// threshold; PointsForNext is the width of the band up to the next
	// rung. Both are zero at the top.
	PointsIntoLevel int
	PointsForNext   int
	AtMax           bool
}

// ViewerProgress resolves points against a streamer's thresholds. The ladder
// may arrive unsorted; rungs are ranked by required points. Points below the
// first rung map to that rung with no progress shown.
func ViewerProgress(thresholds []domain.LevelThreshold, points int) Progress {
	if len(thresholds) == 0 {
		return Progress{AtMax: true}
	}

	ladder := make([]domain.LevelThreshold, len(thresholds))
	copy(ladder, thresholds)
	sort.Slice(ladder, func(i, j int) bool {
		return ladder[i].RequiredPoints < ladder[j].RequiredPoints
	})

	reached := 0
	for i, rung := range ladder {
		if points >= rung.RequiredPoints {
			reached = i
		}
	}

	current := ladder[reached]
	p := Progress{
		Level:     current.LevelNumber,
		LevelName: current.LevelName,
	}
	if reached == len(ladder)-1 {
		p.AtMax = true
		return p
	}

	next := ladder[reached+1]
	p.PointsIntoLevel = points - current.RequiredPoints
	if p.PointsIntoLevel < 0 {
		p.PointsIntoLevel = 0
	}
	p.PointsForNext = next.RequiredPoints - current.RequiredPoints
	return p
}
