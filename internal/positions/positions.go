// Package positions assigns field players to formation sub-positions.
package positions

import (
	"github.com/fieldtime-dev/rotation-engine/internal/types"
)

// Group maps each sub-position label to its broad position group.
var Group = map[types.SubPosition]types.Position{
	"LB": types.PositionDEF, "CB": types.PositionDEF, "RB": types.PositionDEF,
	"LCB": types.PositionDEF, "RCB": types.PositionDEF,
	"LM": types.PositionMID, "CM": types.PositionMID, "RM": types.PositionMID,
	"LCM": types.PositionMID, "RCM": types.PositionMID,
	"LW": types.PositionFWD, "RW": types.PositionFWD, "ST": types.PositionFWD,
	"CF": types.PositionFWD,
}

var subPositionsByCount = map[types.Position]map[int][]types.SubPosition{
	types.PositionDEF: {
		1: {"CB"},
		2: {"LB", "RB"},
		3: {"LB", "CB", "RB"},
		4: {"LB", "LCB", "RCB", "RB"},
		5: {"LB", "LCB", "CB", "RCB", "RB"},
	},
	types.PositionMID: {
		1: {"CM"},
		2: {"LM", "RM"},
		3: {"LM", "CM", "RM"},
		4: {"LM", "LCM", "RCM", "RM"},
		5: {"LM", "LCM", "CM", "RCM", "RM"},
	},
	types.PositionFWD: {
		1: {"ST"},
		2: {"LW", "RW"},
		3: {"LW", "ST", "RW"},
		4: {"LW", "CF", "ST", "RW"},
	},
}

func subPositionsForCount(position types.Position, count int) []types.SubPosition {
	if position == types.PositionGK || count <= 0 {
		return nil
	}
	if labels, ok := subPositionsByCount[position][count]; ok {
		return labels
	}
	// Oversized lines fall back to repeating the center label.
	fallback := types.SubPosition("CM")
	switch position {
	case types.PositionDEF:
		fallback = "CB"
	case types.PositionFWD:
		fallback = "ST"
	}
	out := make([]types.SubPosition, count)
	for i := range out {
		out[i] = fallback
	}
	return out
}

// DeriveSubPositions expands a formation into its ordered sub-position slots,
// e.g. [{DEF 2} {MID 3} {FWD 1}] -> [LB RB LM CM RM ST].
func DeriveSubPositions(formation []types.FormationSlot) []types.SubPosition {
	var slots []types.SubPosition
	for _, slot := range formation {
		slots = append(slots, subPositionsForCount(slot.Position, slot.Count)...)
	}
	return slots
}

// History counts how many times each player has held each sub-position so
// far in a schedule; AutoAssign consults it to vary assignments.
type History map[string]map[types.SubPosition]int

// Record adds one occupancy to the history.
func (h History) Record(playerID string, pos types.SubPosition) {
	if h[playerID] == nil {
		h[playerID] = make(map[types.SubPosition]int)
	}
	h[playerID][pos]++
}

func (h History) count(playerID string, pos types.SubPosition) int {
	if h == nil {
		return 0
	}
	return h[playerID][pos]
}

// AutoAssign maps field players to formation slots for one rotation.
// Locked positions are claimed first, then soft preferences, then players
// whose primary position matches a free slot's group (least-used slot first
// per history), then everyone else in order.
func AutoAssign(
	fieldPlayerIDs []string,
	formation []types.FormationSlot,
	playerByID map[string]types.Player,
	history History,
	locked map[string]types.SubPosition,
	prefs map[string]types.SubPosition,
) map[string]types.SubPosition {
	slots := DeriveSubPositions(formation)
	result := make(map[string]types.SubPosition)
	assigned := make(map[string]bool)
	used := make(map[int]bool)

	claim := func(playerID string, want types.SubPosition) bool {
		for i, slot := range slots {
			if !used[i] && slot == want {
				result[playerID] = slot
				assigned[playerID] = true
				used[i] = true
				return true
			}
		}
		return false
	}

	for _, playerID := range fieldPlayerIDs {
		if want, ok := locked[playerID]; ok {
			claim(playerID, want)
		}
	}
	for _, playerID := range fieldPlayerIDs {
		if assigned[playerID] {
			continue
		}
		if want, ok := prefs[playerID]; ok {
			claim(playerID, want)
		}
	}

	// Primary-position pass: pick the least-recently-used compatible slot.
	for _, playerID := range fieldPlayerIDs {
		if assigned[playerID] {
			continue
		}
		player, ok := playerByID[playerID]
		if !ok || player.PrimaryPosition == "" || player.PrimaryPosition == types.PositionGK {
			continue
		}
		best := -1
		bestCount := 0
		for i, slot := range slots {
			if used[i] || Group[slot] != player.PrimaryPosition {
				continue
			}
			c := history.count(playerID, slot)
			if best == -1 || c < bestCount {
				best = i
				bestCount = c
			}
		}
		if best >= 0 {
			result[playerID] = slots[best]
			assigned[playerID] = true
			used[best] = true
		}
	}

	// Fill remaining slots in order.
	free := make([]int, 0, len(slots))
	for i := range slots {
		if !used[i] {
			free = append(free, i)
		}
	}
	idx := 0
	for _, playerID := range fieldPlayerIDs {
		if assigned[playerID] || idx >= len(free) {
			continue
		}
		result[playerID] = slots[free[idx]]
		idx++
	}
	return result
}
