package live

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"

	"github.com/mwangaza12/meditime/internal/metrics"
	redisclient "github.com/mwangaza12/meditime/internal/redis"
	"github.com/mwangaza12/meditime/pkg/logging"
)

const (
	sendBuffer   = 256
	maxFrameSize = 64 * 1024
)

// Publisher forwards relayed frames to the other api-server instances.
type Publisher interface {
	Publish(ctx context.Context, env redisclient.Envelope) error
}

// Server upgrades requests into room members and relays their frames.
type Server struct {
	hub       *Hub
	publisher Publisher
	origin    string
	logger    *logging.Logger
	metrics   *metrics.Metrics
	upgrader  gorillawebsocket.Upgrader
}

// NewServer builds a relay. publisher may be nil for a single instance.
func NewServer(hub *Hub, publisher Publisher, logger *logging.Logger, m *metrics.Metrics) *Server {
	if logger == nil {
		logger = logging.Default()
	}
	return &Server{
		hub:       hub,
		publisher: publisher,
		origin:    uuid.NewString(),
		logger:    logger.Component("live"),
		metrics:   m,
		upgrader: gorillawebsocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // tokens, not cookies, authenticate the socket
			},
		},
	}
}

// Origin identifies this instance in broker envelopes.
func (s *Server) Origin() string { return s.origin }

// Serve upgrades the request and joins the connection to room. The caller
// has already authorized the user for the room.
func (s *Server) Serve(w http.ResponseWriter, r *http.Request, room, userID string) error {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	ws.SetReadLimit(maxFrameSize)

	client := &Client{
		ID:     uuid.NewString(),
		Room:   room,
		UserID: userID,
		Send:   make(chan []byte, sendBuffer),
		conn:   &gorillaConnAdapter{ws},
	}
	s.join(client)

	go s.writePump(client)
	go s.readPump(client)

	return nil
}

func (s *Server) join(client *Client) {
	s.hub.Register(client)
	s.metrics.LiveConnected()
	s.logger.Debug().
		Str("client_id", client.ID).
		Str("complaint_id", client.Room).
		Str("user_id", client.UserID).
		Msg("joined room")
}

func (s *Server) leave(client *Client) {
	if s.hub.Unregister(client) {
		s.metrics.LiveDisconnected()
		s.logger.Debug().Str("client_id", client.ID).Str("complaint_id", client.Room).Msg("left room")
	}
}

// readPump reads frames until the connection fails, relaying send-reply frames.
func (s *Server) readPump(client *Client) {
	defer func() {
		s.leave(client)
		_ = client.conn.Close()
	}()

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			return
		}
		s.handleFrame(client, message)
	}
}

func (s *Server) handleFrame(client *Client, message []byte) {
	out, ok, err := relayFrame(message, client.Room, client.UserID)
	if err != nil {
		s.logger.Warn().Err(err).Str("client_id", client.ID).Msg("dropping frame")
		return
	}
	if !ok {
		return
	}
	s.metrics.ObserveFrame(EventSendReply, "in")

	n := s.hub.Broadcast(client.Room, out, client)
	s.metrics.ObserveFrame(EventNewReply, "out")

	if s.publisher != nil {
		env := redisclient.Envelope{
			Origin:      s.origin,
			ComplaintID: client.Room,
			SenderConn:  client.ID,
			Payload:     out,
		}
		if err := s.publisher.Publish(context.Background(), env); err != nil {
			s.logger.Error().Err(err).Str("complaint_id", client.Room).Msg("failed to publish frame")
		}
	}

	s.logger.Debug().Str("complaint_id", client.Room).Int("local_receivers", n).Msg("relayed reply")
}

// Deliver hands a frame relayed by another instance to the local room.
func (s *Server) Deliver(env redisclient.Envelope) {
	if env.Origin == s.origin {
		return
	}
	s.hub.Broadcast(env.ComplaintID, env.Payload, nil)
	s.metrics.ObserveFrame(EventNewReply, "out")
}

// Close disconnects every member.
func (s *Server) Close() {
	s.hub.CloseAll()
}

// writePump writes queued frames to the connection.
func (s *Server) writePump(client *Client) {
	defer client.conn.Close()

	for message := range client.Send {
		if err := client.conn.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
			return
		}
	}
}

// gorillaConnAdapter wraps a gorilla/websocket.Conn to satisfy Conn.
type gorillaConnAdapter struct {
	conn *gorillawebsocket.Conn
}

func (a *gorillaConnAdapter) ReadMessage() (int, []byte, error) {
	return a.conn.ReadMessage()
}

func (a *gorillaConnAdapter) WriteMessage(messageType int, data []byte) error {
	return a.conn.WriteMessage(messageType, data)
}

func (a *gorillaConnAdapter) Close() error {
	return a.conn.Close()
}
