package types

// Assignment is a player's role during one rotation.
type Assignment string

const (
	AssignmentField  Assignment = "FIELD"
	AssignmentBench  Assignment = "BENCH"
	AssignmentGoalie Assignment = "GOALIE"
)

// Position is a broad field position group.
type Position string

const (
	PositionGK  Position = "GK"
	PositionDEF Position = "DEF"
	PositionMID Position = "MID"
	PositionFWD Position = "FWD"
)

// SubPosition is a concrete formation slot label, e.g. LB, CM, ST.
type SubPosition string

// LockMode distinguishes overrides the solver must satisfy from preferences
// it may drop.
type LockMode string

const (
	LockHard LockMode = "hard"
	LockSoft LockMode = "soft"
)

// AutoGoalie marks a goalie slot the solver fills by round-robin.
const AutoGoalie = "auto"

// Player is one roster member. Immutable for the duration of a solve.
type Player struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	SkillRanking       int        `json:"skill_ranking"` // 1 (weakest) to 5 (strongest)
	CanPlayGoalie      bool       `json:"can_play_goalie"`
	PrimaryPosition    Position   `json:"primary_position,omitempty"`
	SecondaryPositions []Position `json:"secondary_positions,omitempty"`
}

// FormationSlot declares how many players a formation places in one
// position group, e.g. {DEF 2}.
type FormationSlot struct {
	Position Position `json:"position"`
	Count    int      `json:"count"`
}

// GameConfig holds the game shape and the togglable fairness rules.
type GameConfig struct {
	FieldSize          int             `json:"field_size"`
	Periods            int             `json:"periods"`
	RotationsPerPeriod int             `json:"rotations_per_period"`
	UsePositions       bool            `json:"use_positions"`
	Formation          []FormationSlot `json:"formation,omitempty"`

	UseGoalie             bool `json:"use_goalie"`
	GoaliePlayFullPeriod  bool `json:"goalie_play_full_period"`
	GoalieRestAfterPeriod bool `json:"goalie_rest_after_period"`

	NoConsecutiveBench  bool    `json:"no_consecutive_bench"`
	MaxConsecutiveBench int     `json:"max_consecutive_bench"`
	EnforceMinPlayTime  bool    `json:"enforce_min_play_time"`
	MinPlayPercentage   float64 `json:"min_play_percentage"`
	SkillBalance        bool    `json:"skill_balance"`
}

// ManualOverride pins or prefers a player's role in a specific rotation.
// Hard overrides are constraints; soft overrides become small objective
// penalties and are silently dropped when infeasible.
type ManualOverride struct {
	PlayerID      string      `json:"player_id"`
	RotationIndex int         `json:"rotation_index"`
	Assignment    Assignment  `json:"assignment"`
	LockMode      LockMode    `json:"lock_mode"`
	FieldPosition SubPosition `json:"field_position,omitempty"`
}

// GoalieAssignment names the goalie for one period, or AutoGoalie to let the
// solver pick by round-robin.
type GoalieAssignment struct {
	PeriodIndex int    `json:"period_index"`
	PlayerID    string `json:"player_id"`
}

// Rotation is one atomic time-slice with a fixed role per player.
type Rotation struct {
	Index          int                    `json:"index"`
	PeriodIndex    int                    `json:"period_index"`
	Assignments    map[string]Assignment  `json:"assignments"`
	FieldPositions map[string]SubPosition `json:"field_positions,omitempty"`
	TeamStrength   int                    `json:"team_strength"`
	Violations     []string               `json:"violations"`
}

// PlayerStats summarizes one player's time across a schedule. PlayPercentage
// is weighted: a rotation in a period split into N sub-rotations counts 1/N.
type PlayerStats struct {
	PlayerID            string `json:"player_id"`
	PlayerName          string `json:"player_name"`
	RotationsPlayed     int    `json:"rotations_played"`
	RotationsBenched    int    `json:"rotations_benched"`
	RotationsGoalie     int    `json:"rotations_goalie"`
	TotalRotations      int    `json:"total_rotations"`
	PlayPercentage      int    `json:"play_percentage"`
	MaxConsecutiveBench int    `json:"max_consecutive_bench"`
}

// OverallStats aggregates team strength across a schedule's rotations.
type OverallStats struct {
	StrengthVariance float64  `json:"strength_variance"`
	MinStrength      int      `json:"min_strength"`
	MaxStrength      int      `json:"max_strength"`
	AvgStrength      float64  `json:"avg_strength"`
	Violations       []string `json:"violations"`
	IsValid          bool     `json:"is_valid"`
}

// RotationSchedule is the engine's product: ordered rotations plus derived
// statistics. Immutable once produced.
type RotationSchedule struct {
	Rotations    []*Rotation            `json:"rotations"`
	PlayerStats  map[string]PlayerStats `json:"player_stats"`
	OverallStats OverallStats           `json:"overall_stats"`
	GeneratedAt  int64                  `json:"generated_at"`
}

// PositionContinuityPreference asks the position planner to keep a player on
// a sub-position from a given rotation onward.
type PositionContinuityPreference struct {
	RotationIndex int         `json:"rotation_index"`
	PlayerID      string      `json:"player_id"`
	FieldPosition SubPosition `json:"field_position"`
}
