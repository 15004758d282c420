// ABOUTME: WebSocket client for the relay protocol
// ABOUTME: Handles connection, handshake, and message routing
package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Path is the websocket endpoint served by the relay
const Path = "/pianoroom"

// ErrNotConnected is returned when sending on a closed client
var ErrNotConnected = errors.New("not connected")

// Config holds client configuration
type Config struct {
	ServerAddr       string
	ClientID         string
	Name             string
	Color            string
	HandshakeTimeout time.Duration
	Logger           *zap.Logger
}

// Client represents a WebSocket client
type Client struct {
	config Config
	conn   *websocket.Conn
	mu     sync.RWMutex
	wmu    sync.Mutex
	logger *zap.Logger

	// Message channels
	Notes        chan NoteBatch
	TimeSyncResp chan ServerTime
	Joins        chan Participant
	Leaves       chan string

	hello     ServerHello
	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a new WebSocket client
func NewClient(config Config) *Client {
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = 5 * time.Second
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config:       config,
		logger:       logger.Named("protocol"),
		Notes:        make(chan NoteBatch, 100),
		TimeSyncResp: make(chan ServerTime, 10),
		Joins:        make(chan Participant, 10),
		Leaves:       make(chan string, 10),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Connect establishes the WebSocket connection and performs the handshake
func (c *Client) Connect(ctx context.Context) error {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: Path}
	c.logger.Info("connecting", zap.String("url", u.String()))

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.handshake(); err != nil {
		c.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	go c.readMessages()

	return nil
}

func (c *Client) handshake() error {
	msg := Message{
		Type: TypeClientHello,
		Payload: ClientHello{
			ClientID: c.config.ClientID,
			Name:     c.config.Name,
			Color:    c.config.Color,
			Version:  Version,
		},
	}
	if err := c.sendJSON(msg); err != nil {
		return fmt.Errorf("failed to send client/hello: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(c.config.HandshakeTimeout))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read server/hello: %w", err)
	}
	c.conn.SetReadDeadline(time.Time{})

	var serverMsg Message
	if err := json.Unmarshal(data, &serverMsg); err != nil {
		return fmt.Errorf("failed to parse server/hello: %w", err)
	}

	switch serverMsg.Type {
	case TypeServerHello:
	case TypeServerError:
		var se ServerError
		if err := DecodePayload(serverMsg.Payload, &se); err != nil {
			return err
		}
		return fmt.Errorf("rejected by server: %s", se.Message)
	default:
		return fmt.Errorf("expected server/hello, got %s", serverMsg.Type)
	}

	var hello ServerHello
	if err := DecodePayload(serverMsg.Payload, &hello); err != nil {
		return err
	}

	c.mu.Lock()
	c.hello = hello
	c.mu.Unlock()

	c.logger.Info("handshake complete",
		zap.String("server", hello.Name),
		zap.String("participant", hello.Participant.ID),
		zap.Int("participants", len(hello.Participants)))
	return nil
}

// Hello returns the server's handshake response
func (c *Client) Hello() ServerHello {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hello
}

func (c *Client) sendJSON(msg Message) error {
	c.mu.RLock()
	conn, connected := c.conn, c.connected
	c.mu.RUnlock()

	if !connected {
		return ErrNotConnected
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	return conn.WriteJSON(msg)
}

func (c *Client) readMessages() {
	defer c.Close()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("read error", zap.Error(err))
			}
			return
		}

		if messageType != websocket.TextMessage {
			c.logger.Debug("ignoring non-text message", zap.Int("type", messageType))
			continue
		}
		c.handleJSONMessage(data)
	}
}

func (c *Client) handleJSONMessage(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn("failed to parse message", zap.Error(err))
		return
	}

	switch msg.Type {
	case TypeServerTime:
		var t ServerTime
		if err := DecodePayload(msg.Payload, &t); err != nil {
			c.logger.Warn("bad server/time", zap.Error(err))
			return
		}
		select {
		case c.TimeSyncResp <- t:
		case <-c.ctx.Done():
		}

	case TypeServerNotes:
		var batch NoteBatch
		if err := DecodePayload(msg.Payload, &batch); err != nil {
			c.logger.Warn("bad server/notes", zap.Error(err))
			return
		}
		select {
		case c.Notes <- batch:
		case <-c.ctx.Done():
		}

	case TypeParticipantJoin:
		var p Participant
		if err := DecodePayload(msg.Payload, &p); err != nil {
			c.logger.Warn("bad participant/join", zap.Error(err))
			return
		}
		select {
		case c.Joins <- p:
		case <-time.After(100 * time.Millisecond):
			c.logger.Warn("join channel full, dropping", zap.String("participant", p.ID))
		}

	case TypeParticipantLeft:
		var left ParticipantLeft
		if err := DecodePayload(msg.Payload, &left); err != nil {
			c.logger.Warn("bad participant/leave", zap.Error(err))
			return
		}
		select {
		case c.Leaves <- left.ID:
		case <-time.After(100 * time.Millisecond):
			c.logger.Warn("leave channel full, dropping", zap.String("participant", left.ID))
		}

	default:
		c.logger.Debug("unknown message type", zap.String("type", msg.Type))
	}
}

// SendNotes sends a batch of local notes
func (c *Client) SendNotes(batch NoteBatch) error {
	return c.sendJSON(Message{Type: TypeClientNotes, Payload: batch})
}

// SendGoodbye sends a client/goodbye message before disconnecting
func (c *Client) SendGoodbye(reason string) error {
	return c.sendJSON(Message{Type: TypeClientGoodbye, Payload: ClientGoodbye{Reason: reason}})
}

// SendTimeSync sends a client/time message
func (c *Client) SendTimeSync(t1 int64) error {
	return c.sendJSON(Message{Type: TypeClientTime, Payload: ClientTime{ClientTransmitted: t1}})
}

// Done is closed once the connection has shut down
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.cancel()
		c.conn.Close()
		c.logger.Info("connection closed")
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
