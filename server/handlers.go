package server

import (
	"fmt"
	"net/http"
	"strconv"

	"coino/models"

	"github.com/gin-gonic/gin"
)

func scopeParam(c *gin.Context) (models.Scope, bool) {
	scope, err := models.ParseScope(c.Param("scope"))
	if err != nil {
		badRequest(c, err)
		return "", false
	}
	return scope, true
}

func limitQuery(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		badRequest(c, fmt.Errorf("invalid limit %q", raw))
		return 0, false
	}
	return limit, true
}

// placeBet handles POST /api/bets
func (s *Server) placeBet(c *gin.Context) {
	var req placeBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	scope := models.PublicScope
	if req.Scope != "" {
		scope = models.Scope(req.Scope)
	}
	outcome, _ := models.ParseOutcome(req.Outcome)

	ctx := c.Request.Context()
	userID := userIDFromContext(c)

	if _, err := s.services.Accounts.GetOrCreate(ctx, userID, userNameFromContext(c)); err != nil {
		writeError(c, err)
		return
	}

	bet, err := s.services.Betting.PlaceBet(ctx, userID, scope, outcome, req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, bet)
}

// getActiveRound handles GET /api/rounds/:scope/active
func (s *Server) getActiveRound(c *gin.Context) {
	scope, ok := scopeParam(c)
	if !ok {
		return
	}

	round, err := s.services.Rounds.GetActiveRound(c.Request.Context(), scope)
	if err != nil {
		writeError(c, err)
		return
	}
	if round == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active round", "reason": "round_not_active"})
		return
	}

	c.JSON(http.StatusOK, round)
}

// getRoundHistory handles GET /api/rounds/:scope/history
func (s *Server) getRoundHistory(c *gin.Context) {
	scope, ok := scopeParam(c)
	if !ok {
		return
	}
	limit, ok := limitQuery(c)
	if !ok {
		return
	}

	rounds, err := s.services.Rounds.GetHistory(c.Request.Context(), scope, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rounds": nonNil(rounds)})
}

// getRoundBets handles GET /api/rounds/:scope/bets/:id
func (s *Server) getRoundBets(c *gin.Context) {
	scope, ok := scopeParam(c)
	if !ok {
		return
	}
	roundID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || roundID <= 0 {
		badRequest(c, fmt.Errorf("invalid round id %q", c.Param("id")))
		return
	}

	bets, err := s.services.Rounds.GetRoundBets(c.Request.Context(), scope, roundID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bets": nonNil(bets)})
}

// getUserBets handles GET /api/users/:id/bets
func (s *Server) getUserBets(c *gin.Context) {
	limit, ok := limitQuery(c)
	if !ok {
		return
	}

	bets, err := s.services.Rounds.GetUserBets(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bets": nonNil(bets)})
}

// getUserStats handles GET /api/users/:id/stats
func (s *Server) getUserStats(c *gin.Context) {
	stats, err := s.services.Accounts.GetStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// createRoom handles POST /api/rooms
func (s *Server) createRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	userID := userIDFromContext(c)
	if _, err := s.services.Accounts.GetOrCreate(ctx, userID, userNameFromContext(c)); err != nil {
		writeError(c, err)
		return
	}

	room, err := s.services.Rooms.CreateRoom(ctx, userID, req.Name)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, room)
}

// getRoom handles GET /api/rooms/:id
func (s *Server) getRoom(c *gin.Context) {
	room, err := s.services.Rooms.GetRoom(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, room)
}

// joinRoom handles POST /api/rooms/:id/join
func (s *Server) joinRoom(c *gin.Context) {
	room, err := s.services.Rooms.JoinRoom(c.Request.Context(), c.Param("id"), userIDFromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, room)
}

// startRoom handles POST /api/rooms/:id/start
func (s *Server) startRoom(c *gin.Context) {
	room, err := s.services.Rooms.StartRoom(c.Request.Context(), c.Param("id"), userIDFromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, room)
}

// nonNil keeps empty lists encoded as [] rather than null
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
