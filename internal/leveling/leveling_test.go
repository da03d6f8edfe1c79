package leveling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mathivegas/unistream-client/internal/domain"
)

func ladder() []domain.LevelThreshold {
	return []domain.LevelThreshold{
		{LevelNumber: 1, LevelName: "Newcomer", RequiredPoints: 0},
		{LevelNumber: 2, LevelName: "Regular", RequiredPoints: 50},
		{LevelNumber: 3, LevelName: "Superfan", RequiredPoints: 150},
	}
}

func TestViewerProgress(t *testing.T) {
	tests := []struct {
		name   string
		points int
		want   Progress
	}{
		{
			name:   "zero points sits on first rung",
			points: 0,
			want:   Progress{Level: 1, LevelName: "Newcomer", PointsIntoLevel: 0, PointsForNext: 50},
		},
		{
			name:   "mid band counts from the reached rung",
			points: 60,
			want:   Progress{Level: 2, LevelName: "Regular", PointsIntoLevel: 10, PointsForNext: 100},
		},
		{
			name:   "exact threshold lands on the rung",
			points: 50,
			want:   Progress{Level: 2, LevelName: "Regular", PointsIntoLevel: 0, PointsForNext: 100},
		},
		{
			name:   "top rung reports max",
			points: 150,
			want:   Progress{Level: 3, LevelName: "Superfan", AtMax: true},
		},
		{
			name:   "beyond the top stays at max",
			points: 9000,
			want:   Progress{Level: 3, LevelName: "Superfan", AtMax: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ViewerProgress(ladder(), tt.points))
		})
	}
}

func TestViewerProgressUnsortedLadder(t *testing.T) {
	shuffled := []domain.LevelThreshold{
		{LevelNumber: 3, LevelName: "Superfan", RequiredPoints: 150},
		{LevelNumber: 1, LevelName: "Newcomer", RequiredPoints: 0},
		{LevelNumber: 2, LevelName: "Regular", RequiredPoints: 50},
	}
	got := ViewerProgress(shuffled, 60)
	assert.Equal(t, 2, got.Level)
	assert.Equal(t, 10, got.PointsIntoLevel)
}

func TestViewerProgressEmptyLadder(t *testing.T) {
	got := ViewerProgress(nil, 120)
	assert.True(t, got.AtMax)
	assert.Zero(t, got.Level)
}

func TestScaledSessionHours(t *testing.T) {
	// Ten real seconds at x360 is one streamed hour.
	got := ScaledSessionHours(10*time.Second, 360)
	assert.InDelta(t, 1.0, got, 1e-9)

	// Acceleration of 1 is real time.
	assert.InDelta(t, 0.5, ScaledSessionHours(30*time.Minute, 1), 1e-9)

	// Nonsense acceleration falls back to real time.
	assert.InDelta(t, 1.0, ScaledSessionHours(time.Hour, 0), 1e-9)
}

func TestStreamerLevel(t *testing.T) {
	tests := []struct {
		name          string
		base          int
		prior         float64
		session       float64
		hoursPerLevel float64
		want          int
	}{
		{name: "no boundary crossed", base: 1, prior: 1.0, session: 2.0, hoursPerLevel: 5, want: 1},
		{name: "one boundary crossed", base: 1, prior: 4.0, session: 2.0, hoursPerLevel: 5, want: 2},
		{name: "boundary crossed by a sliver", base: 2, prior: 4.9, session: 0.2, hoursPerLevel: 5, want: 3},
		{name: "several boundaries in one session", base: 1, prior: 0, session: 12.0, hoursPerLevel: 5, want: 3},
		{name: "exactly on a boundary", base: 1, prior: 3.0, session: 2.0, hoursPerLevel: 5, want: 2},
		{name: "zero hours per level is inert", base: 4, prior: 10, session: 10, hoursPerLevel: 0, want: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StreamerLevel(tt.base, tt.prior, tt.session, tt.hoursPerLevel)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStreamerLevelMonotonicAcrossSplits(t *testing.T) {
	// The same total hours must land on the same level however the
	// sessions split them.
	whole := StreamerLevel(1, 0, 11, 5)

	level := 1
	prior := 0.0
	for _, session := range []float64{2.5, 2.5, 3.0, 3.0} {
		level = StreamerLevel(level, prior, session, 5)
		prior += session
	}
	assert.Equal(t, whole, level)
}

func TestDetectorFiresOncePerIncrease(t *testing.T) {
	var fired []int
	d := NewDetector(func(level int) { fired = append(fired, level) })

	d.Observe(2) // primes, no event
	d.Observe(2)
	d.Observe(3)
	d.Observe(3)
	d.Observe(5)

	assert.Equal(t, []int{3, 5}, fired)
}

func TestDetectorDropRearmsSilently(t *testing.T) {
	var fired []int
	d := NewDetector(func(level int) { fired = append(fired, level) })

	d.Observe(4)
	d.Observe(1) // switched to a streamer where the viewer is lower
	assert.Empty(t, fired)

	d.Observe(2)
	assert.Equal(t, []int{2}, fired)
}

func TestDetectorReset(t *testing.T) {
	var fired []int
	d := NewDetector(func(level int) { fired = append(fired, level) })

	d.Observe(2)
	d.Observe(3)
	d.Reset()
	d.Observe(7) // primes again, no event

	assert.Equal(t, []int{3}, fired)
}
