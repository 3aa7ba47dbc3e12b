package solver

import (
	"fmt"
	"math"

	"github.com/fieldtime-dev/rotation-engine/internal/mip"
	"github.com/fieldtime-dev/rotation-engine/internal/types"
)

// softOverrideWeight is the tiny objective tiebreaker for soft bench/field
// preferences. Small enough to never outweigh any real objective term.
const softOverrideWeight = 1e-4

// builtModel pairs an integer program with the bench-variable indices needed
// to extract the solution.
type builtModel struct {
	model     *mip.Model
	benchVars [][]int
	players   []types.Player
}

func gcd(a, b int) int {
	x, y := a, b
	if x < 0 {
		x = -x
	}
	if y < 0 {
		y = -y
	}
	for y != 0 {
		x, y = y, x%y
	}
	if x == 0 {
		return 1
	}
	return x
}

func lcm(a, b int) int {
	return a / gcd(a, b) * b
}

// weightScale finds an integer factor that turns every rotation weight into
// an integer. Fractional coefficients in core constraints are a numerical
// stability hazard for larger models.
func weightScale(rotationWeights []float64) int {
	const epsilon = 1e-9
	const maxDenominator = 64
	scale := 1
	for _, weight := range rotationWeights {
		if math.IsInf(weight, 0) || math.IsNaN(weight) {
			continue
		}
		denominator := 1
		for candidate := 1; candidate <= maxDenominator; candidate++ {
			scaled := weight * float64(candidate)
			if math.Abs(scaled-math.Round(scaled)) < epsilon {
				denominator = candidate
				break
			}
		}
		scale = lcm(scale, denominator)
	}
	if scale < 1 {
		return 1
	}
	return scale
}

func scaleValue(value float64, scale int) float64 {
	const epsilon = 1e-9
	scaled := value * float64(scale)
	rounded := math.Round(scaled)
	if math.Abs(scaled-rounded) < epsilon {
		return rounded
	}
	return scaled
}

// buildMIPModel formulates the schedule as a single-phase integer program
// with a weighted objective hierarchy:
//
//	primary:   play-time gap (playMax - playMin)
//	secondary: prefer benching lower-skill players (when skillBalance on)
//	tertiary:  rotation-weighted team strength deviation
//	tiebreak:  soft override penalties
//
// GAP_WEIGHT and SKILL_WEIGHT are strict upper bounds on all lower-priority
// terms, so the hierarchy holds exactly without a second solve phase.
func buildMIPModel(ctx *Context, prepared *PreparedConstraints) *builtModel {
	players := ctx.Players
	config := ctx.Config
	totalRotations := ctx.TotalRotations
	benchSlotsPerRotation := ctx.BenchSlotsPerRotation

	scale := weightScale(prepared.RotationWeights)
	scaledWeights := make([]float64, totalRotations)
	for r, w := range prepared.RotationWeights {
		scaledWeights[r] = scaleValue(w, scale)
	}
	scaledTotalWeight := scaleValue(prepared.TotalRotationWeight, scale)

	model := mip.NewModel()

	// b[i][r] = 1 when player i is benched in rotation r.
	benchVars := make([][]int, len(players))
	for i := range players {
		benchVars[i] = make([]int, totalRotations)
		for r := 0; r < totalRotations; r++ {
			benchVars[i][r] = model.AddBinaryVar(fmt.Sprintf("b_%d_%d", i, r))
		}
	}

	playMax := model.AddVar("playMax", 0, scaledTotalWeight)
	playMin := model.AddVar("playMin", 0, scaledTotalWeight)

	// Bench capacity per rotation.
	for r := 0; r < totalRotations; r++ {
		terms := make([]mip.Term, len(players))
		for i := range players {
			terms[i] = mip.Term{Coeff: 1, Var: benchVars[i][r]}
		}
		model.AddConstr(terms, mip.Equal, float64(benchSlotsPerRotation))
	}

	// Pinned assignments.
	for i, p := range players {
		for r := range prepared.CannotBench[p.ID] {
			model.AddConstr([]mip.Term{{Coeff: 1, Var: benchVars[i][r]}}, mip.Equal, 0)
		}
		for r := range prepared.MustBench[p.ID] {
			model.AddConstr([]mip.Term{{Coeff: 1, Var: benchVars[i][r]}}, mip.Equal, 1)
		}
	}

	// No consecutive bench: sliding window of size K+1, with one unit of
	// slack per adjacent pair inside the same period so splitting a period
	// never tightens the rest rule.
	if config.NoConsecutiveBench {
		k := config.MaxConsecutiveBench
		rotationPeriod := make([]int, 0, totalRotations)
		for p, division := range prepared.PeriodDivisions {
			for d := 0; d < division; d++ {
				rotationPeriod = append(rotationPeriod, p)
			}
		}
		for i := range players {
			for r := 0; r <= totalRotations-k-1; r++ {
				slack := 0
				for j := 0; j < k; j++ {
					if rotationPeriod[r+j] == rotationPeriod[r+j+1] {
						slack++
					}
				}
				window := make([]mip.Term, k+1)
				for j := 0; j <= k; j++ {
					window[j] = mip.Term{Coeff: 1, Var: benchVars[i][r+j]}
				}
				model.AddConstr(window, mip.LessEq, float64(k+slack))
			}
		}
	}

	// Weighted bench ceiling per player.
	if config.EnforceMinPlayTime {
		for i, p := range players {
			maxBW, ok := prepared.MaxBenchWeightByPlayer[p.ID]
			if !ok {
				maxBW = prepared.TotalRotationWeight * (1 - config.MinPlayPercentage/100)
			}
			terms := make([]mip.Term, totalRotations)
			for r := 0; r < totalRotations; r++ {
				terms[r] = mip.Term{Coeff: scaledWeights[r], Var: benchVars[i][r]}
			}
			model.AddConstr(terms, mip.LessEq, scaleValue(maxBW, scale))
		}
	}

	// playMax >= benchWeight[i], playMin <= benchWeight[i].
	for i := range players {
		up := make([]mip.Term, 0, totalRotations+1)
		up = append(up, mip.Term{Coeff: 1, Var: playMax})
		down := make([]mip.Term, 0, totalRotations+1)
		down = append(down, mip.Term{Coeff: 1, Var: playMin})
		for r := 0; r < totalRotations; r++ {
			up = append(up, mip.Term{Coeff: -scaledWeights[r], Var: benchVars[i][r]})
			down = append(down, mip.Term{Coeff: -scaledWeights[r], Var: benchVars[i][r]})
		}
		model.AddConstr(up, mip.GreaterEq, 0)
		model.AddConstr(down, mip.LessEq, 0)
	}

	var objective []mip.Term

	if config.SkillBalance {
		// Strict upper bounds used to stack objective priorities.
		maxDeviation := float64(benchSlotsPerRotation) * 5 * scaledTotalWeight
		maxSkillPenalty := float64(totalRotations * benchSlotsPerRotation * 5)
		skillWeight := maxDeviation + 1
		gapWeight := maxSkillPenalty*skillWeight + maxDeviation + 1

		objective = append(objective,
			mip.Term{Coeff: gapWeight, Var: playMax},
			mip.Term{Coeff: -gapWeight, Var: playMin},
		)
		for i, p := range players {
			coeff := skillWeight * float64(p.SkillRanking)
			for r := 0; r < totalRotations; r++ {
				objective = append(objective, mip.Term{Coeff: coeff, Var: benchVars[i][r]})
			}
		}

		totalStrength := 0
		for _, p := range players {
			totalStrength += p.SkillRanking
		}
		targetStrength := float64(totalStrength) * (1 - float64(benchSlotsPerRotation)/float64(len(players)))

		for r := 0; r < totalRotations; r++ {
			dev := model.AddVar(fmt.Sprintf("dev_%d", r), 0, float64(totalStrength))

			// dev[r] >= targetStrength - strength[r]
			pos := make([]mip.Term, 0, len(players)+1)
			pos = append(pos, mip.Term{Coeff: 1, Var: dev})
			// dev[r] >= strength[r] - targetStrength
			neg := make([]mip.Term, 0, len(players)+1)
			neg = append(neg, mip.Term{Coeff: 1, Var: dev})
			for i, p := range players {
				pos = append(pos, mip.Term{Coeff: -float64(p.SkillRanking), Var: benchVars[i][r]})
				neg = append(neg, mip.Term{Coeff: float64(p.SkillRanking), Var: benchVars[i][r]})
			}
			model.AddConstr(pos, mip.GreaterEq, targetStrength-float64(totalStrength))
			model.AddConstr(neg, mip.GreaterEq, float64(totalStrength)-targetStrength)

			objective = append(objective, mip.Term{Coeff: scaledWeights[r], Var: dev})
		}
	} else {
		objective = append(objective,
			mip.Term{Coeff: 1, Var: playMax},
			mip.Term{Coeff: -1, Var: playMin},
		)
	}

	objective = append(objective, softOverridePenalties(prepared.SoftOverrides, players, benchVars, totalRotations)...)
	model.SetObjective(objective)

	return &builtModel{model: model, benchVars: benchVars, players: players}
}

// softOverridePenalties encodes soft locks as tiny objective terms: benching
// against a bench preference is rewarded, benching against a field/goalie
// preference is penalized.
func softOverridePenalties(
	softOverrides []types.ManualOverride,
	players []types.Player,
	benchVars [][]int,
	totalRotations int,
) []mip.Term {
	indexByID := make(map[string]int, len(players))
	for i, p := range players {
		indexByID[p.ID] = i
	}

	var terms []mip.Term
	for _, o := range softOverrides {
		i, ok := indexByID[o.PlayerID]
		if !ok || o.RotationIndex < 0 || o.RotationIndex >= totalRotations {
			continue
		}
		switch o.Assignment {
		case types.AssignmentBench:
			terms = append(terms, mip.Term{Coeff: -softOverrideWeight, Var: benchVars[i][o.RotationIndex]})
		case types.AssignmentField, types.AssignmentGoalie:
			terms = append(terms, mip.Term{Coeff: softOverrideWeight, Var: benchVars[i][o.RotationIndex]})
		}
	}
	return terms
}
