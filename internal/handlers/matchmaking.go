package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/matchmaker/internal/handlers/dto"
	"github.com/thereayou/matchmaker/internal/matchmaking"
)

const (
	ActionSetReady   = "set_ready"
	ActionCheckRoom  = "check_room"
	ActionUnsetReady = "unset_ready"
)

var errInvalidAction = errors.New("invalid action")

// Matchmaker операции движка подбора, которые использует HTTP слой.
type Matchmaker interface {
	SetReady(ctx context.Context, req matchmaking.ReadyRequest) (matchmaking.Result, error)
	CheckRoom(ctx context.Context, playerID string) (matchmaking.Result, error)
	UnsetReady(ctx context.Context, req matchmaking.UnsetRequest) (matchmaking.Result, error)
	LookupRoom(ctx context.Context, roomName string) (matchmaking.Result, error)
}

type MatchmakingHandler struct {
	engine Matchmaker
	log    *slog.Logger
}

func NewMatchmakingHandler(engine Matchmaker, log *slog.Logger) *MatchmakingHandler {
	if log == nil {
		log = slog.Default()
	}
	return &MatchmakingHandler{engine: engine, log: log}
}

// Handle обрабатывает POST /matchmaking
func (h *MatchmakingHandler) Handle(c *gin.Context) {
	var req dto.MatchmakingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body"})
		return
	}

	res, err := h.dispatch(c.Request.Context(), req)
	if err != nil {
		h.fail(c, req.Action, err)
		return
	}

	c.JSON(http.StatusOK, toResponse(res))
}

func (h *MatchmakingHandler) dispatch(ctx context.Context, req dto.MatchmakingRequest) (matchmaking.Result, error) {
	switch req.Action {
	case ActionSetReady:
		return h.engine.SetReady(ctx, matchmaking.ReadyRequest{
			RoomName:    req.RoomName,
			MemberIDs:   req.Players,
			RequesterID: req.PlayerID,
		})
	case ActionCheckRoom:
		return h.engine.CheckRoom(ctx, req.PlayerID)
	case ActionUnsetReady:
		return h.engine.UnsetReady(ctx, matchmaking.UnsetRequest{
			PlayerID: req.PlayerID,
			RoomName: req.RoomName,
		})
	default:
		return matchmaking.Result{}, errInvalidAction
	}
}

// GetRoom обрабатывает GET /matchmaking/rooms/:name
func (h *MatchmakingHandler) GetRoom(c *gin.Context) {
	res, err := h.engine.LookupRoom(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.fail(c, "lookup_room", err)
		return
	}
	c.JSON(http.StatusOK, toResponse(res))
}

// fail переводит ошибку в HTTP ответ без внутренних подробностей.
func (h *MatchmakingHandler) fail(c *gin.Context, action string, err error) {
	var verr *matchmaking.ValidationError
	switch {
	case errors.Is(err, errInvalidAction):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: verr.Error()})
	default:
		_ = c.Error(err)
		h.log.Error("matchmaking request failed", "action", action, "error", err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
	}
}

func toResponse(res matchmaking.Result) dto.MatchmakingResponse {
	return dto.MatchmakingResponse{Status: string(res.Status), Room: res.Room}
}
