package solver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fieldtime-dev/rotation-engine/internal/layout"
	"github.com/fieldtime-dev/rotation-engine/internal/types"
)

// PreparedConstraints is the normalized constraint model extracted from a
// Context. Both solving strategies consume it; neither re-derives anything
// from the raw overrides.
type PreparedConstraints struct {
	// GoalieMap assigns the resolved goalie per rotation index. Empty when
	// goalie usage is disabled.
	GoalieMap map[int]string

	// CannotBench / MustBench hold per-player rotation-index sets derived
	// from goalie duty, hard locks, and goalie rest.
	CannotBench map[string]map[int]bool
	MustBench   map[string]map[int]bool

	// HardPositionLocks and SoftPositionPrefs key by rotation index, then
	// player id, to a field sub-position.
	HardPositionLocks map[int]map[string]types.SubPosition
	SoftPositionPrefs map[int]map[string]types.SubPosition

	SoftOverrides []types.ManualOverride

	MaxBenchWeightByPlayer map[string]float64
	RotationWeights        []float64
	TotalRotationWeight    float64
	PeriodDivisions        []int
}

// ResolveGoalies picks one goalie per period. Explicit non-auto assignments
// win (validated against the disallowed set); auto slots go to the eligible
// player with the fewest goalie periods so far, avoiding the previous
// period's goalie when an alternative exists.
func ResolveGoalies(
	players []types.Player,
	periods int,
	assignments []types.GoalieAssignment,
	disallowedByPeriod map[int]map[string]bool,
) ([]string, error) {
	nameByID := make(map[string]string, len(players))
	var eligible []types.Player
	for _, p := range players {
		nameByID[p.ID] = p.Name
		if p.CanPlayGoalie {
			eligible = append(eligible, p)
		}
	}

	result := make([]string, 0, periods)
	for period := 0; period < periods; period++ {
		disallowed := disallowedByPeriod[period]

		var explicit *types.GoalieAssignment
		for i := range assignments {
			if assignments[i].PeriodIndex == period {
				explicit = &assignments[i]
				break
			}
		}
		if explicit != nil && explicit.PlayerID != types.AutoGoalie {
			if disallowed[explicit.PlayerID] {
				return nil, fmt.Errorf("%s cannot be goalie in period %d because they have a hard non-goalie lock in a goalie rotation",
					playerName(nameByID, explicit.PlayerID), period+1)
			}
			result = append(result, explicit.PlayerID)
			continue
		}

		counts := make(map[string]int)
		for _, id := range result {
			counts[id]++
		}
		var candidates []types.Player
		for _, p := range eligible {
			if !disallowed[p.ID] {
				candidates = append(candidates, p)
			}
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			return counts[candidates[i].ID] < counts[candidates[j].ID]
		})

		var prevGoalie string
		if len(result) > 0 {
			prevGoalie = result[len(result)-1]
		}
		var picked string
		for _, p := range candidates {
			if p.ID != prevGoalie {
				picked = p.ID
				break
			}
		}
		if picked == "" && len(candidates) > 0 {
			picked = candidates[0].ID
		}
		if picked == "" {
			if len(disallowed) > 0 {
				names := make([]string, 0, len(disallowed))
				for id := range disallowed {
					names = append(names, playerName(nameByID, id))
				}
				sort.Strings(names)
				return nil, fmt.Errorf("no goalie-eligible player available for period %d after applying hard locks (%s)",
					period+1, strings.Join(names, ", "))
			}
			return nil, fmt.Errorf("no goalie-eligible player available for period %d", period+1)
		}
		result = append(result, picked)
	}
	return result, nil
}

// PrepareConstraints normalizes the raw inputs into the constraint model
// shared by both solvers: override de-duplication, goalie resolution and
// rest, cannot/must-bench sets, position locks, and bench-weight ceilings.
func PrepareConstraints(ctx *Context) (*PreparedConstraints, error) {
	config := ctx.Config
	divisions := layout.Normalize(ctx.PeriodDivisions, config.Periods, config.RotationsPerPeriod)
	offsets := layout.PeriodOffsets(divisions)

	rotationWeights := ctx.RotationWeights
	if rotationWeights == nil {
		rotationWeights = layout.Weights(divisions)
	}
	if len(rotationWeights) != ctx.TotalRotations {
		return nil, fmt.Errorf("period divisions do not match total rotations")
	}

	var totalRotationWeight float64
	for _, w := range rotationWeights {
		totalRotationWeight += w
	}
	defaultMaxBenchWeight := totalRotationWeight * (1 - config.MinPlayPercentage/100)

	nameByID := make(map[string]string, len(ctx.Players))
	playerByID := make(map[string]types.Player, len(ctx.Players))
	for _, p := range ctx.Players {
		nameByID[p.ID] = p.Name
		playerByID[p.ID] = p
	}

	hardOverrides, softOverrides, err := normalizeOverrides(ctx, nameByID)
	if err != nil {
		return nil, err
	}

	hardByRotation := make(map[int][]types.ManualOverride)
	for _, o := range hardOverrides {
		hardByRotation[o.RotationIndex] = append(hardByRotation[o.RotationIndex], o)
	}

	// Hard field/bench locks on goalie-duty rotations remove a player from
	// the period's goalie candidate pool.
	disallowedByPeriod := make(map[int]map[string]bool)
	if config.UseGoalie {
		for period := 0; period < config.Periods; period++ {
			dutyRotations := []int{offsets[period]}
			if config.GoaliePlayFullPeriod {
				dutyRotations = dutyRotations[:0]
				for rot := 0; rot < divisions[period]; rot++ {
					dutyRotations = append(dutyRotations, offsets[period]+rot)
				}
			}
			disallowed := make(map[string]bool)
			for _, rotIndex := range dutyRotations {
				for _, o := range hardByRotation[rotIndex] {
					blocksGoalie := o.Assignment == types.AssignmentBench ||
						(o.Assignment == types.AssignmentField && o.FieldPosition != "")
					if blocksGoalie {
						disallowed[o.PlayerID] = true
					}
				}
			}
			if len(disallowed) > 0 {
				disallowedByPeriod[period] = disallowed
			}
		}
	}

	goalieMap := make(map[int]string)
	forcedBench := make(map[string]map[int]bool)

	if config.UseGoalie {
		ctx.progress(3, "resolving goalie assignments")

		goaliePerPeriod, err := ResolveGoalies(ctx.Players, config.Periods, ctx.GoalieAssignments, disallowedByPeriod)
		if err != nil {
			return nil, err
		}

		if config.GoalieRestAfterPeriod {
			for period := 0; period < config.Periods-1; period++ {
				if goaliePerPeriod[period] == goaliePerPeriod[period+1] {
					return nil, fmt.Errorf("%s is assigned goalie in periods %d and %d; goalie rest requires them to bench first rotation of period %d",
						playerName(nameByID, goaliePerPeriod[period]), period+1, period+2, period+2)
				}
			}
		}

		for period := 0; period < config.Periods; period++ {
			for rot := 0; rot < divisions[period]; rot++ {
				if config.GoaliePlayFullPeriod || rot == 0 {
					goalieMap[offsets[period]+rot] = goaliePerPeriod[period]
				}
			}
		}

		if config.GoalieRestAfterPeriod {
			for period := 0; period < config.Periods; period++ {
				nextFirst := offsets[period] + divisions[period]
				if nextFirst < ctx.TotalRotations {
					goalieID := goaliePerPeriod[period]
					if forcedBench[goalieID] == nil {
						forcedBench[goalieID] = make(map[int]bool)
					}
					forcedBench[goalieID][nextFirst] = true
				}
			}
		}
	}

	// Hard goalie locks override the per-period resolution.
	hardGoalieByRotation := make(map[int]string)
	for _, o := range hardOverrides {
		if o.Assignment != types.AssignmentGoalie {
			continue
		}
		if !config.UseGoalie {
			return nil, fmt.Errorf("hard goalie locks are not allowed when goalie usage is disabled")
		}
		if existing, ok := hardGoalieByRotation[o.RotationIndex]; ok && existing != o.PlayerID {
			return nil, fmt.Errorf("rotation %d has multiple hard goalie locks; only one goalie is allowed", o.RotationIndex+1)
		}
		if p, ok := playerByID[o.PlayerID]; !ok || !p.CanPlayGoalie {
			return nil, fmt.Errorf("%s cannot be hard-locked as goalie", playerName(nameByID, o.PlayerID))
		}
		hardGoalieByRotation[o.RotationIndex] = o.PlayerID
	}
	for rotIndex, playerID := range hardGoalieByRotation {
		goalieMap[rotIndex] = playerID
	}

	cannotBench := make(map[string]map[int]bool, len(ctx.Players))
	mustBench := make(map[string]map[int]bool, len(ctx.Players))
	for _, p := range ctx.Players {
		cannot := make(map[int]bool)
		must := make(map[int]bool)
		for rotIndex, goalieID := range goalieMap {
			if goalieID == p.ID {
				cannot[rotIndex] = true
			}
		}
		for _, o := range hardOverrides {
			if o.PlayerID != p.ID {
				continue
			}
			switch o.Assignment {
			case types.AssignmentField, types.AssignmentGoalie:
				cannot[o.RotationIndex] = true
			case types.AssignmentBench:
				must[o.RotationIndex] = true
			}
		}
		for idx := range forcedBench[p.ID] {
			must[idx] = true
		}
		cannotBench[p.ID] = cannot
		mustBench[p.ID] = must
	}

	for _, o := range hardOverrides {
		if goalieMap[o.RotationIndex] == o.PlayerID && o.Assignment == types.AssignmentBench {
			return nil, fmt.Errorf("%s is hard-locked as bench on rotation %d, but the goalie assignment requires goalie",
				playerName(nameByID, o.PlayerID), o.RotationIndex+1)
		}
	}

	hardPositionLocks := make(map[int]map[string]types.SubPosition)
	for _, o := range hardOverrides {
		if o.FieldPosition == "" {
			continue
		}
		if o.Assignment != types.AssignmentField {
			return nil, fmt.Errorf("%s has a hard position lock on rotation %d but is not set to field",
				playerName(nameByID, o.PlayerID), o.RotationIndex+1)
		}
		rotLocks := hardPositionLocks[o.RotationIndex]
		if rotLocks == nil {
			rotLocks = make(map[string]types.SubPosition)
			hardPositionLocks[o.RotationIndex] = rotLocks
		}
		for pid, pos := range rotLocks {
			if pos == o.FieldPosition && pid != o.PlayerID {
				return nil, fmt.Errorf("rotation %d: %s and %s are both hard-locked to %s",
					o.RotationIndex+1, playerName(nameByID, o.PlayerID), playerName(nameByID, pid), o.FieldPosition)
			}
		}
		rotLocks[o.PlayerID] = o.FieldPosition
	}

	softPositionPrefs := make(map[int]map[string]types.SubPosition)
	for _, o := range softOverrides {
		if o.FieldPosition == "" || o.Assignment != types.AssignmentField {
			continue
		}
		prefs := softPositionPrefs[o.RotationIndex]
		if prefs == nil {
			prefs = make(map[string]types.SubPosition)
			softPositionPrefs[o.RotationIndex] = prefs
		}
		prefs[o.PlayerID] = o.FieldPosition
	}

	maxBenchWeightByPlayer := make(map[string]float64, len(ctx.Players))
	for _, p := range ctx.Players {
		if override, ok := ctx.MaxBenchWeightByPlayer[p.ID]; ok {
			maxBenchWeightByPlayer[p.ID] = override
		} else {
			maxBenchWeightByPlayer[p.ID] = defaultMaxBenchWeight
		}
	}

	return &PreparedConstraints{
		GoalieMap:              goalieMap,
		CannotBench:            cannotBench,
		MustBench:              mustBench,
		HardPositionLocks:      hardPositionLocks,
		SoftPositionPrefs:      softPositionPrefs,
		SoftOverrides:          softOverrides,
		MaxBenchWeightByPlayer: maxBenchWeightByPlayer,
		RotationWeights:        rotationWeights,
		TotalRotationWeight:    totalRotationWeight,
		PeriodDivisions:        divisions,
	}, nil
}

// normalizeOverrides de-duplicates overrides per (player, rotation). Hard
// beats soft; two conflicting hards are a fatal input error.
func normalizeOverrides(ctx *Context, nameByID map[string]string) (hard, soft []types.ManualOverride, err error) {
	active := make(map[string]bool, len(ctx.Players))
	for _, p := range ctx.Players {
		active[p.ID] = true
	}

	type key struct {
		playerID string
		rotation int
	}
	byKey := make(map[key]types.ManualOverride)
	order := make([]key, 0, len(ctx.ManualOverrides))

	for _, o := range ctx.ManualOverrides {
		if !active[o.PlayerID] {
			continue
		}
		if o.RotationIndex < 0 || o.RotationIndex >= ctx.TotalRotations {
			continue
		}
		if o.LockMode != types.LockSoft {
			o.LockMode = types.LockHard
		}
		k := key{o.PlayerID, o.RotationIndex}
		existing, ok := byKey[k]
		if !ok {
			byKey[k] = o
			order = append(order, k)
			continue
		}
		if existing.LockMode == types.LockHard && o.LockMode == types.LockSoft {
			continue
		}
		if existing.LockMode == types.LockHard && o.LockMode == types.LockHard && existing.Assignment != o.Assignment {
			return nil, nil, fmt.Errorf("%s has conflicting hard assignments on rotation %d",
				playerName(nameByID, o.PlayerID), o.RotationIndex+1)
		}
		byKey[k] = o
	}

	for _, k := range order {
		o := byKey[k]
		if o.LockMode == types.LockHard {
			hard = append(hard, o)
		} else {
			soft = append(soft, o)
		}
	}
	return hard, soft, nil
}

func playerName(nameByID map[string]string, id string) string {
	if name, ok := nameByID[id]; ok && name != "" {
		return name
	}
	return "player " + id
}
