package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fieldtime-dev/rotation-engine/internal/cache"
	"github.com/fieldtime-dev/rotation-engine/internal/division"
	"github.com/fieldtime-dev/rotation-engine/internal/engine"
	"github.com/fieldtime-dev/rotation-engine/internal/solver"
	"github.com/fieldtime-dev/rotation-engine/internal/types"
	"github.com/fieldtime-dev/rotation-engine/pkg/config"
)

// ScheduleHandler handles rotation schedule endpoints
type ScheduleHandler struct {
	engine *engine.Engine
	cache  *cache.ScheduleCache
	config *config.Config
	logger *logrus.Logger
}

// NewScheduleHandler creates a new schedule handler
func NewScheduleHandler(
	eng *engine.Engine,
	scheduleCache *cache.ScheduleCache,
	cfg *config.Config,
	logger *logrus.Logger,
) *ScheduleHandler {
	return &ScheduleHandler{
		engine: eng,
		cache:  scheduleCache,
		config: cfg,
		logger: logger,
	}
}

// SolveScheduleRequest is the JSON body for schedule generation
type SolveScheduleRequest struct {
	RequestID                     string                               `json:"requestId"`
	Players                       []types.Player                       `json:"players" binding:"required"`
	Config                        types.GameConfig                     `json:"config" binding:"required"`
	AbsentPlayerIDs               []string                             `json:"absentPlayerIds"`
	GoalieAssignments             []types.GoalieAssignment             `json:"goalieAssignments"`
	ManualOverrides               []types.ManualOverride               `json:"manualOverrides"`
	PositionContinuityPreferences []types.PositionContinuityPreference `json:"positionContinuityPreferences"`
	PeriodDivisions               []int                                `json:"periodDivisions"`
	StartFromRotation             int                                  `json:"startFromRotation"`
	ExistingRotations             []*types.Rotation                    `json:"existingRotations"`
	AllowConstraintRelaxation     bool                                 `json:"allowConstraintRelaxation"`
	SkipOptimizationCheck         bool                                 `json:"skipOptimizationCheck"`
}

// SolveScheduleResponse wraps a solved schedule with its request id
type SolveScheduleResponse struct {
	RequestID  string                  `json:"requestId"`
	Schedule   *types.RotationSchedule `json:"schedule"`
	Suggestion *division.Suggestion    `json:"divisionSuggestion,omitempty"`
	Cached     bool                    `json:"cached"`
}

// SolveSchedule handles rotation schedule generation requests
func (h *ScheduleHandler) SolveSchedule(c *gin.Context) {
	var req SolveScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request format",
			Code:  "INVALID_REQUEST",
			Details: map[string]string{
				"validation_error": err.Error(),
			},
		})
		return
	}

	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}

	solveReq := engine.SolveRequest{
		RequestID:                     req.RequestID,
		Players:                       req.Players,
		Config:                        req.Config,
		AbsentPlayerIDs:               req.AbsentPlayerIDs,
		GoalieAssignments:             req.GoalieAssignments,
		ManualOverrides:               req.ManualOverrides,
		PositionContinuityPreferences: req.PositionContinuityPreferences,
		PeriodDivisions:               req.PeriodDivisions,
		StartFromRotation:             req.StartFromRotation,
		ExistingRotations:             req.ExistingRotations,
		AllowConstraintRelaxation:     req.AllowConstraintRelaxation,
		SkipOptimizationCheck:         req.SkipOptimizationCheck || !h.config.EnableOptimizationCheck,
		SearchTimeout:                 h.config.SolveTimeout,
	}

	// Mid-game regenerations depend on live rotation content, so only
	// pre-game solves go through the cache.
	cacheKey := ""
	if h.cacheEnabled() && req.StartFromRotation == 0 {
		cacheKey = cache.GenerateSolveCacheKey(&solveReq)
		if cached, err := h.cache.GetSolve(c.Request.Context(), cacheKey); err == nil && cached != nil {
			h.logger.WithFields(logrus.Fields{
				"request_id": req.RequestID,
				"cache_key":  cacheKey,
			}).Info("Returning cached schedule")
			c.JSON(http.StatusOK, SolveScheduleResponse{
				RequestID:  req.RequestID,
				Schedule:   cached.Schedule,
				Suggestion: cached.Suggestion,
				Cached:     true,
			})
			return
		}
	}

	startTime := time.Now()
	result, err := h.engine.Solve(solveReq)
	if err != nil {
		h.respondSolveError(c, req.RequestID, err)
		return
	}

	if cacheKey != "" {
		if err := h.cache.SetSolve(c.Request.Context(), cacheKey, result, h.config.ScheduleCacheTTL); err != nil {
			h.logger.WithError(err).Warn("Failed to cache solved schedule")
		}
	}

	h.logger.WithFields(logrus.Fields{
		"request_id":     req.RequestID,
		"players":        len(req.Players),
		"rotations":      len(result.Schedule.Rotations),
		"execution_time": time.Since(startTime),
		"has_suggestion": result.Suggestion != nil,
	}).Info("Schedule solve completed")

	c.JSON(http.StatusOK, SolveScheduleResponse{
		RequestID:  req.RequestID,
		Schedule:   result.Schedule,
		Suggestion: result.Suggestion,
	})
}

// CancelSolve cancels an in-flight solve for the given request id
func (h *ScheduleHandler) CancelSolve(c *gin.Context) {
	requestID := c.Param("request_id")
	if requestID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Request ID is required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	h.engine.Cancel(requestID)

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Cancellation requested",
		Data: map[string]interface{}{
			"request_id": requestID,
		},
	})
}

// ValidateGoaliesRequest is the JSON body for goalie assignment validation
type ValidateGoaliesRequest struct {
	Players           []types.Player           `json:"players" binding:"required"`
	Config            types.GameConfig         `json:"config" binding:"required"`
	GoalieAssignments []types.GoalieAssignment `json:"goalieAssignments"`
}

// ValidateGoalies checks goalie assignments without running a solve
func (h *ScheduleHandler) ValidateGoalies(c *gin.Context) {
	var req ValidateGoaliesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request format",
			Code:  "INVALID_REQUEST",
			Details: map[string]string{
				"validation_error": err.Error(),
			},
		})
		return
	}

	warnings := solver.ValidateGoalieAssignments(req.Players, req.Config, req.GoalieAssignments)
	if warnings == nil {
		warnings = []string{}
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Goalie assignments validated",
		Data: map[string]interface{}{
			"valid":    len(warnings) == 0,
			"warnings": warnings,
		},
	})
}

func (h *ScheduleHandler) cacheEnabled() bool {
	return h.cache != nil && h.config.EnableScheduleCache
}

func (h *ScheduleHandler) respondSolveError(c *gin.Context, requestID string, err error) {
	switch {
	case errors.Is(err, engine.ErrSolveInFlight):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: "Another solve is already in flight",
			Code:  "SOLVE_IN_FLIGHT",
			Details: map[string]string{
				"request_id": requestID,
			},
		})
	case errors.Is(err, engine.ErrCancelled):
		c.JSON(http.StatusOK, SuccessResponse{
			Message: "Solve cancelled",
			Data: map[string]interface{}{
				"request_id": requestID,
				"cancelled":  true,
			},
		})
	case errors.Is(err, solver.ErrInfeasible):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: err.Error(),
			Code:  "SCHEDULE_INFEASIBLE",
			Details: map[string]string{
				"request_id": requestID,
			},
		})
	default:
		h.logger.WithError(err).WithField("request_id", requestID).Error("Schedule solve failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Schedule solve failed",
			Code:  "SOLVE_ERROR",
			Details: map[string]string{
				"error":      err.Error(),
				"request_id": requestID,
			},
		})
	}
}
