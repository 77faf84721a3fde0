package server

import (
	"net/http"
	"time"

	"coino/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
	sendBufferLimit = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// streamMessage is one frame of the round stream
type streamMessage struct {
	Feed    string               `json:"feed"`
	Changes []models.RoundChange `json:"changes"`
}

// streamRounds handles GET /api/ws/:scope. The feed query selects "active"
// (default) or "history"; each frame carries added, modified and removed records.
func (s *Server) streamRounds(c *gin.Context) {
	scope, ok := scopeParam(c)
	if !ok {
		return
	}
	feed := c.DefaultQuery("feed", "active")
	if feed != "active" && feed != "history" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "feed must be active or history", "reason": "validation"})
		return
	}
	limit, ok := limitQuery(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Warn("Failed to upgrade websocket connection")
		return
	}
	defer conn.Close()

	// Overflowing subscribers are dropped instead of blocking the event bus.
	send := make(chan streamMessage, sendBufferLimit)
	overflow := make(chan struct{})
	var overflowed bool
	deliver := func(changes []models.RoundChange) {
		if overflowed {
			return
		}
		select {
		case send <- streamMessage{Feed: feed, Changes: changes}:
		default:
			overflowed = true
			close(overflow)
		}
	}

	ctx := c.Request.Context()
	var unsubscribe func()
	if feed == "history" {
		unsubscribe, err = s.services.Feed.SubscribeCompletedHistory(ctx, scope, limit, deliver)
	} else {
		unsubscribe, err = s.services.Feed.SubscribeActive(ctx, scope, deliver)
	}
	if err != nil {
		log.WithFields(log.Fields{
			"scope": scope,
			"feed":  feed,
			"error": err,
		}).Error("Failed to subscribe websocket to rounds")
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscription failed"),
			time.Now().Add(writeWait))
		return
	}
	defer unsubscribe()

	log.WithFields(log.Fields{
		"scope": scope,
		"feed":  feed,
	}).Debug("Websocket subscribed to rounds")

	closed := make(chan struct{})
	go readPump(conn, closed)
	writePump(conn, send, overflow, closed)
}

// readPump discards client frames and notices when the connection goes away
func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(conn *websocket.Conn, send <-chan streamMessage, overflow, closed <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-overflow:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscriber too slow"),
				time.Now().Add(writeWait))
			return
		case <-closed:
			return
		}
	}
}
