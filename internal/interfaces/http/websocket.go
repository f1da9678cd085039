package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsWriteWait  = 10 * time.Second
	wsMaxMessage = 64 * 1024
	wsQueueSize  = 4
)

// wsFrame is both the inbound and outbound frame shape.
type wsFrame struct {
	Message *string `json:"message,omitempty"`
	Reply   string  `json:"reply,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// handleChatWS upgrades to a WebSocket on which every text frame is one
// stateless turn for the verified customer. The budget is spent per frame,
// not at upgrade.
func (s *Server) handleChatWS(c *gin.Context) {
	reqID := requestID(c)
	customer := strings.TrimSpace(c.Query("customer_number"))
	if customer == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingCustomer})
		return
	}
	customer, apiErr := s.verifyCustomer(c.Request.Context(), customer, reqID)
	if apiErr != nil {
		c.JSON(apiErr.status, gin.H{"error": apiErr.message})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "request_id", reqID, "error", err)
		return
	}
	log := s.logger.With("request_id", reqID, "customer", customer)
	log.Info("websocket client connected")

	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	send := make(chan wsFrame, 16)
	done := make(chan struct{})
	go s.wsWritePump(conn, send, done)

	// One turn at a time, off the read loop; the reader must keep handling pongs.
	inbox := make(chan []byte, wsQueueSize)
	turnsDone := make(chan struct{})
	go func() {
		defer close(turnsDone)
		turn := 0
		for data := range inbox {
			turn++
			send <- s.wsTurn(ctx, customer, data, reqID, turn)
		}
	}()

	defer func() {
		cancel()
		close(inbox)
		<-turnsDone
		close(send)
		<-done
		log.Info("websocket client disconnected")
	}()

	conn.SetReadLimit(wsMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(s.wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.wsPongWait))
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("websocket read error", "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		select {
		case inbox <- data:
		default:
			log.Warn("websocket turn queue full, dropping frame")
			send <- wsFrame{Error: msgBusy}
		}
	}
}

func (s *Server) wsTurn(ctx context.Context, customer string, data []byte, reqID string, turn int) wsFrame {
	var in wsFrame
	if err := json.Unmarshal(data, &in); err != nil || in.Message == nil {
		return wsFrame{Error: msgMissingMessage}
	}
	if apiErr := s.checkRate(ctx, customer, reqID); apiErr != nil {
		return wsFrame{Error: apiErr.message}
	}
	reply, apiErr := s.runTurn(ctx, customer, *in.Message, "websocket", wsTurnID(reqID, turn))
	if apiErr != nil {
		return wsFrame{Error: apiErr.message}
	}
	return wsFrame{Reply: reply}
}

func (s *Server) wsWritePump(conn *websocket.Conn, send <-chan wsFrame, done chan<- struct{}) {
	ticker := time.NewTicker(s.wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
		close(done)
	}()

	for {
		select {
		case frame, ok := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(frame); err != nil {
				s.logger.Warn("websocket write failed", "error", err)
				drain(conn, send)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				drain(conn, send)
				return
			}
		}
	}
}

// drain closes conn so the reader fails fast, then consumes frames until the
// reader closes send.
func drain(conn *websocket.Conn, send <-chan wsFrame) {
	_ = conn.Close()
	for range send {
	}
}

func wsTurnID(reqID string, turn int) string {
	if reqID == "" {
		return ""
	}
	return reqID + "-" + strconv.Itoa(turn)
}
