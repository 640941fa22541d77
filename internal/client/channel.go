package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/mwangaza12/meditime/internal/session"
	"github.com/mwangaza12/meditime/pkg/logging"
)

const (
	eventSendReply = "send-reply"
	eventNewReply  = "new-reply"
)

var (
	ErrNotConnected     = errors.New("live channel is not connected")
	ErrAlreadyConnected = errors.New("live channel is already connected")
)

type ChannelState int

const (
	ChannelDisconnected ChannelState = iota
	ChannelConnecting
	ChannelConnected
)

func (s ChannelState) String() string {
	switch s {
	case ChannelConnecting:
		return "connecting"
	case ChannelConnected:
		return "connected"
	}
	return "disconnected"
}

// WSConn is the part of a websocket connection the channel uses.
type WSConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (WSConn, error)
}

// GorillaDialer dials with gorilla/websocket. A nil Dialer uses the default.
type GorillaDialer struct {
	Dialer *websocket.Dialer
}

func (d GorillaDialer) Dial(ctx context.Context, url string, header http.Header) (WSConn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type outboundFrame struct {
	Event string   `json:"event"`
	Data  rawReply `json:"data"`
}

// LiveChannel is one connection to a complaint room. It does not reconnect:
// a dropped connection is logged and the state returns to disconnected.
type LiveChannel struct {
	url    string
	header http.Header
	dialer Dialer
	logger *logging.Logger

	mu      sync.Mutex
	state   ChannelState
	conn    WSConn
	done    chan struct{}
	closing bool

	writeMu sync.Mutex
}

// NewLiveChannel targets wsBase/complaints/{complaintID}.
func NewLiveChannel(wsBase, complaintID string, sess session.Session, dialer Dialer, logger *logging.Logger) *LiveChannel {
	header := http.Header{}
	if h := sess.AuthorizationHeader(); h != "" {
		header.Set("Authorization", h)
	}
	if dialer == nil {
		dialer = GorillaDialer{}
	}
	return &LiveChannel{
		url:    strings.TrimRight(wsBase, "/") + "/complaints/" + url.PathEscape(complaintID),
		header: header,
		dialer: dialer,
		logger: &logging.Logger{Logger: logger.Component("live_channel").With().Str("complaint_id", complaintID).Logger()},
	}
}

func (c *LiveChannel) URL() string { return c.url }

func (c *LiveChannel) State() ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect dials the room and delivers every inbound reply to onReply from
// a background reader.
func (c *LiveChannel) Connect(ctx context.Context, onReply func(Reply)) error {
	c.mu.Lock()
	if c.state != ChannelDisconnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.state = ChannelConnecting
	c.mu.Unlock()

	conn, err := c.dialer.Dial(ctx, c.url, c.header)
	if err != nil {
		c.logger.Warn().Err(err).Str("url", c.url).Msg("live channel connect failed")
		c.mu.Lock()
		c.state = ChannelDisconnected
		c.mu.Unlock()
		return fmt.Errorf("connect live channel: %w", err)
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.conn = conn
	c.done = done
	c.closing = false
	c.state = ChannelConnected
	c.mu.Unlock()

	go c.readLoop(conn, done, onReply)
	return nil
}

func (c *LiveChannel) readLoop(conn WSConn, done chan struct{}, onReply func(Reply)) {
	defer close(done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closing := c.closing
			if c.conn == conn {
				c.conn = nil
				c.state = ChannelDisconnected
			}
			c.mu.Unlock()
			if !closing {
				c.logger.Warn().Err(err).Msg("live channel dropped")
			}
			return
		}

		var f inboundFrame
		if err := json.Unmarshal(data, &f); err != nil {
			c.logger.Warn().Err(err).Msg("ignoring malformed frame")
			continue
		}
		if f.Event != eventNewReply {
			continue
		}
		reply, err := ParseReply(f.Data)
		if err != nil {
			c.logger.Warn().Err(err).Msg("ignoring malformed reply")
			continue
		}
		if onReply != nil {
			onReply(reply)
		}
	}
}

// Emit broadcasts an already persisted reply to the room.
func (c *LiveChannel) Emit(r Reply) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(outboundFrame{Event: eventSendReply, Data: wireReply(r)})
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("emit reply: %w", err)
	}
	return nil
}

// Close tears the connection down and waits for the reader to stop.
func (c *LiveChannel) Close() error {
	c.mu.Lock()
	conn := c.conn
	done := c.done
	c.closing = true
	c.conn = nil
	c.state = ChannelDisconnected
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	err := conn.Close()
	if done != nil {
		<-done
	}
	return err
}
