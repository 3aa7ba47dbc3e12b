package division

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldtime-dev/rotation-engine/internal/types"
)

func checkRoster(n int) []types.Player {
	players := make([]types.Player, n)
	for i := range players {
		players[i] = types.Player{
			ID:           fmt.Sprintf("p%d", i+1),
			Name:         fmt.Sprintf("Player %d", i+1),
			SkillRanking: i%5 + 1,
		}
	}
	return players
}

// statsWithGap fabricates post-solve play percentages: extra players at the
// high bound, the rest at the low bound.
func statsWithGap(players []types.Player, highPct, lowPct, highCount int) map[string]types.PlayerStats {
	out := make(map[string]types.PlayerStats, len(players))
	for i, p := range players {
		pct := lowPct
		if i < highCount {
			pct = highPct
		}
		out[p.ID] = types.PlayerStats{PlayerID: p.ID, PlayerName: p.Name, PlayPercentage: pct}
	}
	return out
}

func TestCheckSuggestsFinerDivisions(t *testing.T) {
	players := checkRoster(10)
	config := types.GameConfig{FieldSize: 8, Periods: 4, RotationsPerPeriod: 1}

	suggestion := Check(CheckInput{
		CurrentDivisions: []int{1, 1, 1, 1},
		Players:          players,
		Config:           config,
		PlayerStats:      statsWithGap(players, 100, 75, 2),
	})

	require.NotNil(t, suggestion)
	assert.InDelta(t, 25, suggestion.CurrentGap, 1e-9)
	assert.InDelta(t, 100, suggestion.CurrentMaxPercent, 1e-9)
	assert.InDelta(t, 75, suggestion.CurrentMinPercent, 1e-9)
	assert.Equal(t, 2, suggestion.CurrentExtraCount)

	require.NotEmpty(t, suggestion.Options)
	// Fewest extra rotations first.
	assert.Equal(t, []int{2, 1, 1, 1}, suggestion.Options[0].PeriodDivisions)
	for _, opt := range suggestion.Options {
		assert.GreaterOrEqual(t, opt.GapImprovement, MinGapImprovementPP)
	}
}

func TestCheckSmallGapReturnsNil(t *testing.T) {
	players := checkRoster(10)
	config := types.GameConfig{FieldSize: 8, Periods: 4, RotationsPerPeriod: 1}

	suggestion := Check(CheckInput{
		CurrentDivisions: []int{1, 1, 1, 1},
		Players:          players,
		Config:           config,
		PlayerStats:      statsWithGap(players, 80, 80, 3),
	})
	assert.Nil(t, suggestion)
}

func TestCheckNoBenchSlotsReturnsNil(t *testing.T) {
	players := checkRoster(8)
	config := types.GameConfig{FieldSize: 8, Periods: 4, RotationsPerPeriod: 1}

	suggestion := Check(CheckInput{
		CurrentDivisions: []int{1, 1, 1, 1},
		Players:          players,
		Config:           config,
		PlayerStats:      statsWithGap(players, 100, 100, 8),
	})
	assert.Nil(t, suggestion)
}

func TestCheckLocksStartedPeriodsInLiveGames(t *testing.T) {
	players := checkRoster(10)
	config := types.GameConfig{FieldSize: 8, Periods: 4, RotationsPerPeriod: 1}

	suggestion := Check(CheckInput{
		CurrentDivisions:     []int{1, 1, 1, 1},
		Players:              players,
		Config:               config,
		PlayerStats:          statsWithGap(players, 100, 75, 2),
		CurrentRotationIndex: 1,
	})

	require.NotNil(t, suggestion)
	for _, opt := range suggestion.Options {
		assert.Equal(t, 1, opt.PeriodDivisions[0], "played period redivided: %v", opt.PeriodDivisions)
		assert.Equal(t, 1, opt.PeriodDivisions[1], "current period redivided: %v", opt.PeriodDivisions)
	}
}

func TestCheckGoalieInfeasibleCandidatesDropped(t *testing.T) {
	// Nobody can play goalie, so every candidate fails the cheap
	// feasibility check and no suggestion survives.
	players := checkRoster(10)
	config := types.GameConfig{
		FieldSize:          8,
		Periods:            4,
		RotationsPerPeriod: 1,
		UseGoalie:          true,
	}

	suggestion := Check(CheckInput{
		CurrentDivisions: []int{1, 1, 1, 1},
		Players:          players,
		Config:           config,
		PlayerStats:      statsWithGap(players, 100, 75, 2),
	})
	assert.Nil(t, suggestion)
}
