// Package ws is the websocket transport in front of the delivery engine.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/maulanarifai114/research-chat-backend/internal/auth"
	"github.com/maulanarifai114/research-chat-backend/internal/delivery"
	"github.com/maulanarifai114/research-chat-backend/internal/metrics"
	"github.com/maulanarifai114/research-chat-backend/internal/presence"
	"github.com/maulanarifai114/research-chat-backend/internal/registry"
)

// frame is one inbound JSON message on the socket.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// registerPayload binds a user to the connection. Registration is an
// explicit client event after open, not implicit in the upgrade.
type registerPayload struct {
	ID string `json:"id"`
}

type Server struct {
	registry *registry.Registry
	engine   *delivery.Engine
	presence *presence.Store // optional
	secret   string
	log      *zap.SugaredLogger

	pingInterval  time.Duration
	writeDeadline time.Duration
	maxMsgSize    int64
	sendBuffer    int
}

func NewServer(reg *registry.Registry, engine *delivery.Engine, pres *presence.Store, secret string, pingInterval, writeDeadline time.Duration, maxMsgSize int64, sendBuffer int, log *zap.SugaredLogger) *Server {
	return &Server{
		registry:      reg,
		engine:        engine,
		presence:      pres,
		secret:        secret,
		log:           log,
		pingInterval:  pingInterval,
		writeDeadline: writeDeadline,
		maxMsgSize:    maxMsgSize,
		sendBuffer:    sendBuffer,
	}
}

// HandleWS runs one connection: upgrade already happened, the client must
// authenticate via ?token=, then register before it is reachable.
func (s *Server) HandleWS() func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		var claims *auth.Claims
		if s.secret != "" {
			token := conn.Query("token")
			if token == "" {
				_ = conn.Close()
				return
			}
			var err error
			claims, err = auth.ParseAndValidateToken(s.secret, token)
			if err != nil {
				_ = conn.Close()
				return
			}
		}

		client := NewClient(conn, s.sendBuffer)
		go client.writePump(s.pingInterval, s.writeDeadline)
		s.readLoop(conn, client, claims)

		// cleanup; handle equality is the removal key, a connection that
		// closed before registering matches nothing
		userID := s.boundUser(client)
		s.registry.UnregisterConn(client)
		metrics.ConnectionsActive.Set(float64(s.registry.Count()))
		if s.presence != nil && userID != "" {
			if err := s.presence.SetOffline(context.Background(), userID); err != nil {
				s.log.Warnw("presence offline", "user_id", userID, "err", err)
			}
		}
		client.Close()
	}
}

func (s *Server) readLoop(conn *websocket.Conn, client *Client, claims *auth.Claims) {
	conn.SetReadLimit(s.maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(2 * s.pingInterval))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * s.pingInterval))
	})

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}
		switch f.Event {
		case "register":
			s.handleRegister(client, claims, f.Data)
		case "message":
			s.handleMessage(client, f.Data)
		default:
			// ignore unknown events
		}
	}
}

func (s *Server) handleRegister(client *Client, claims *auth.Claims, data json.RawMessage) {
	var p registerPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ID == "" {
		return
	}
	userID := p.ID
	if claims != nil && claims.UserID != userID {
		// the token decides who this connection is
		s.log.Warnw("register id does not match token, using token identity", "payload_id", p.ID, "user_id", claims.UserID)
		userID = claims.UserID
	}
	s.registry.Register(userID, client)
	metrics.ConnectionsActive.Set(float64(s.registry.Count()))
	if s.presence != nil {
		if err := s.presence.SetOnline(context.Background(), userID); err != nil {
			s.log.Warnw("presence online", "user_id", userID, "err", err)
		}
	}
}

func (s *Server) handleMessage(client *Client, data json.RawMessage) {
	var in delivery.Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		client.Send(delivery.Event{Event: "error", Data: delivery.ErrorPayload{
			Code:    delivery.CodeInternal,
			Message: "malformed message payload",
		}})
		return
	}
	// Background context on purpose: a persist already under way must
	// finish even if this socket drops mid-flight.
	if _, err := s.engine.HandleMessage(context.Background(), in); err != nil {
		var de *delivery.Error
		if errors.As(err, &de) {
			client.Send(delivery.Event{Event: "error", Data: delivery.ErrorPayload{
				Code:    de.Code,
				Message: de.Message,
			}})
			return
		}
		s.log.Errorw("handle message", "sender", in.Sender, "conversation", in.ConversationID, "err", err)
		client.Send(delivery.Event{Event: "error", Data: delivery.ErrorPayload{
			Code:    delivery.CodeInternal,
			Message: "internal error",
		}})
	}
}

// boundUser finds which user, if any, this handle is registered as.
func (s *Server) boundUser(client *Client) string {
	return s.registry.UserOf(client)
}
