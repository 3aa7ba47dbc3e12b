// Package stats derives player and team statistics from rotation schedules.
package stats

import (
	"math"
	"time"

	"github.com/fieldtime-dev/rotation-engine/internal/types"
)

// StrengthStats is the aggregate of per-rotation team strength values.
type StrengthStats struct {
	Avg      float64
	Variance float64
	Min      int
	Max      int
}

// RotationStrength sums the skill of every on-field and goalie player.
func RotationStrength(rotation *types.Rotation, players []types.Player) int {
	byID := make(map[string]types.Player, len(players))
	for _, p := range players {
		byID[p.ID] = p
	}
	strength := 0
	for playerID, assignment := range rotation.Assignments {
		if assignment == types.AssignmentField || assignment == types.AssignmentGoalie {
			if p, ok := byID[playerID]; ok {
				strength += p.SkillRanking
			}
		}
	}
	return strength
}

// ComputeStrengthStats returns min/max/avg and population variance.
func ComputeStrengthStats(strengths []int) StrengthStats {
	if len(strengths) == 0 {
		return StrengthStats{}
	}
	sum := 0
	min := strengths[0]
	max := strengths[0]
	for _, s := range strengths {
		sum += s
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	avg := float64(sum) / float64(len(strengths))
	variance := 0.0
	for _, s := range strengths {
		variance += math.Pow(float64(s)-avg, 2)
	}
	variance /= float64(len(strengths))
	return StrengthStats{Avg: avg, Variance: variance, Min: min, Max: max}
}

// CalculatePlayerStats computes per-player play counts and weighted play
// percentage. Rotation weight is 1/N where N is the number of rotations in
// the rotation's period, so splitting a period does not change its share of
// game time.
func CalculatePlayerStats(rotations []*types.Rotation, players []types.Player) map[string]types.PlayerStats {
	periodRotationCounts := make(map[int]int)
	for _, rotation := range rotations {
		periodRotationCounts[rotation.PeriodIndex]++
	}

	result := make(map[string]types.PlayerStats, len(players))
	for _, player := range players {
		var played, benched, goalie int
		var playedWeight, totalWeight float64
		var benchStreak, maxBenchStreak int

		for _, rotation := range rotations {
			assignment, ok := rotation.Assignments[player.ID]
			if !ok {
				continue
			}
			periodCount := periodRotationCounts[rotation.PeriodIndex]
			if periodCount < 1 {
				periodCount = 1
			}
			weight := 1 / float64(periodCount)
			totalWeight += weight

			if assignment == types.AssignmentBench {
				benched++
				benchStreak++
				if benchStreak > maxBenchStreak {
					maxBenchStreak = benchStreak
				}
				continue
			}
			benchStreak = 0
			if assignment == types.AssignmentGoalie {
				goalie++
			}
			played++
			playedWeight += weight
		}

		playPercentage := 0
		if totalWeight > 0 {
			playPercentage = int(math.Round(playedWeight / totalWeight * 100))
		}
		result[player.ID] = types.PlayerStats{
			PlayerID:            player.ID,
			PlayerName:          player.Name,
			RotationsPlayed:     played,
			RotationsBenched:    benched,
			RotationsGoalie:     goalie,
			TotalRotations:      len(rotations),
			PlayPercentage:      playPercentage,
			MaxConsecutiveBench: maxBenchStreak,
		}
	}
	return result
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

// AssembleSchedule wraps rotations into a RotationSchedule with recomputed
// per-player and aggregate statistics. Team strength on each rotation is
// recalculated from the roster.
func AssembleSchedule(rotations []*types.Rotation, players []types.Player) *types.RotationSchedule {
	strengths := make([]int, len(rotations))
	for i, rotation := range rotations {
		rotation.TeamStrength = RotationStrength(rotation, players)
		strengths[i] = rotation.TeamStrength
	}
	agg := ComputeStrengthStats(strengths)
	return &types.RotationSchedule{
		Rotations:   rotations,
		PlayerStats: CalculatePlayerStats(rotations, players),
		OverallStats: types.OverallStats{
			StrengthVariance: agg.Variance,
			MinStrength:      agg.Min,
			MaxStrength:      agg.Max,
			AvgStrength:      roundTenth(agg.Avg),
			Violations:       []string{},
			IsValid:          true,
		},
		GeneratedAt: time.Now().UnixMilli(),
	}
}

func cloneRotation(r *types.Rotation) *types.Rotation {
	out := &types.Rotation{
		Index:        r.Index,
		PeriodIndex:  r.PeriodIndex,
		TeamStrength: r.TeamStrength,
		Assignments:  make(map[string]types.Assignment, len(r.Assignments)),
		Violations:   append([]string(nil), r.Violations...),
	}
	for id, a := range r.Assignments {
		out.Assignments[id] = a
	}
	if r.FieldPositions != nil {
		out.FieldPositions = make(map[string]types.SubPosition, len(r.FieldPositions))
		for id, pos := range r.FieldPositions {
			out.FieldPositions[id] = pos
		}
	}
	return out
}

func swapRotation(r *types.Rotation, playerA, playerB string) *types.Rotation {
	out := cloneRotation(r)
	out.Assignments[playerA], out.Assignments[playerB] = out.Assignments[playerB], out.Assignments[playerA]

	if out.FieldPositions != nil {
		posA, hasA := out.FieldPositions[playerA]
		posB, hasB := out.FieldPositions[playerB]
		switch {
		case hasA && hasB:
			out.FieldPositions[playerA], out.FieldPositions[playerB] = posB, posA
		case hasA:
			out.FieldPositions[playerB] = posA
			delete(out.FieldPositions, playerA)
		case hasB:
			out.FieldPositions[playerA] = posB
			delete(out.FieldPositions, playerB)
		}
	}
	return out
}

// PreviewSwap returns a new schedule with two players' roles exchanged in a
// single rotation, with all statistics recomputed.
func PreviewSwap(schedule *types.RotationSchedule, rotationIndex int, playerA, playerB string, players []types.Player) *types.RotationSchedule {
	rotations := make([]*types.Rotation, len(schedule.Rotations))
	for i, r := range schedule.Rotations {
		if i == rotationIndex {
			rotations[i] = swapRotation(r, playerA, playerB)
		} else {
			rotations[i] = cloneRotation(r)
		}
	}
	out := AssembleSchedule(rotations, players)
	out.GeneratedAt = schedule.GeneratedAt
	return out
}

// PreviewSwapRange exchanges two players' roles in every rotation from
// fromRotationIndex onward.
func PreviewSwapRange(schedule *types.RotationSchedule, fromRotationIndex int, playerA, playerB string, players []types.Player) *types.RotationSchedule {
	rotations := make([]*types.Rotation, len(schedule.Rotations))
	for i, r := range schedule.Rotations {
		if i >= fromRotationIndex {
			rotations[i] = swapRotation(r, playerA, playerB)
		} else {
			rotations[i] = cloneRotation(r)
		}
	}
	out := AssembleSchedule(rotations, players)
	out.GeneratedAt = schedule.GeneratedAt
	return out
}
