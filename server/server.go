package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"coino/config"
	"coino/service"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const apiPrefix = "/api"

// Services are the engine operations exposed over HTTP
type Services struct {
	Accounts service.AccountService
	Betting  service.BettingService
	Rounds   service.RoundService
	Rooms    service.RoomService
	Feed     service.RoundFeed
}

// Server is the HTTP and websocket surface of the round engine
type Server struct {
	services   Services
	router     *gin.Engine
	httpServer *http.Server
}

// New builds the router. Call Start to listen.
func New(cfg *config.Config, services Services) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.Environment == "test" {
		gin.SetMode(gin.TestMode)
	}

	registerValidators()

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	s := &Server{
		services: services,
		router:   router,
		httpServer: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.router.Group(apiPrefix)
	identified := api.Group("/", requireUser())

	api.GET("/rounds/:scope/active", s.getActiveRound)
	api.GET("/rounds/:scope/history", s.getRoundHistory)
	api.GET("/rounds/:scope/bets/:id", s.getRoundBets)
	api.GET("/users/:id/bets", s.getUserBets)
	api.GET("/users/:id/stats", s.getUserStats)
	api.GET("/rooms/:id", s.getRoom)
	api.GET("/ws/:scope", s.streamRounds)

	identified.POST("/bets", s.placeBet)
	identified.POST("/rooms", s.createRoom)
	identified.POST("/rooms/:id/join", s.joinRoom)
	identified.POST("/rooms/:id/start", s.startRoom)
}

// Handler returns the root handler, used by tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens until Shutdown is called
func (s *Server) Start() error {
	log.WithField("addr", s.httpServer.Addr).Info("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
