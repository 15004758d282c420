// ABOUTME: Relay server for shared piano rooms
// ABOUTME: Accepts players over WebSocket, answers time sync and fans out note batches
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Resonate-Protocol/pianoroom/internal/discovery"
	"github.com/Resonate-Protocol/pianoroom/pkg/protocol"
)

// DefaultPort is where the relay listens unless configured otherwise
const DefaultPort = 8927

// Default colors handed to players that don't pick one
var palette = []string{"#ff6b6b", "#feca57", "#48dbfb", "#1dd1a1", "#5f27cd", "#ff9ff3", "#54a0ff", "#00d2d3"}

// ServerConfig configures a relay
type ServerConfig struct {
	// Port to listen on (default: 8927)
	Port int

	// Name of the room
	Name string

	// EnableMDNS advertises the room on the local network
	EnableMDNS bool

	// MaxNotesPerBatch caps relayed batches; longer batches are truncated
	MaxNotesPerBatch int

	Logger *zap.Logger
}

// Server is a relay: it owns no audio, only the room
type Server struct {
	config   ServerConfig
	serverID string
	upgrader websocket.Upgrader
	mux      *http.ServeMux
	logger   *zap.Logger

	httpServer *http.Server
	listener   net.Listener

	clients   map[string]*client
	clientsMu sync.RWMutex
	joined    int

	mdnsManager *discovery.Manager

	now func() time.Time

	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

type client struct {
	participant protocol.Participant
	conn        *websocket.Conn
	sendChan    chan protocol.Message
	notes       int
}

// NewServer creates a relay server
func NewServer(config ServerConfig) *Server {
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	if config.Name == "" {
		config.Name = "pianoroom"
	}
	if config.MaxNotesPerBatch <= 0 {
		config.MaxNotesPerBatch = 200
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		mux:      http.NewServeMux(),
		logger:   logger.Named("relay"),
		clients:  make(map[string]*client),
		now:      time.Now,
		stopChan: make(chan struct{}),
		upgrader: websocket.Upgrader{
			// The relay only ever sees note names and timestamps
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.mux.HandleFunc(protocol.Path, s.handleWebSocket)
	return s
}

// Handler exposes the relay's HTTP handler, e.g. for httptest
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start listens and serves until Stop is called
func (s *Server) Start() error {
	s.logger.Info("relay starting", zap.String("name", s.config.Name), zap.String("id", s.serverID))

	addr := fmt.Sprintf(":%d", s.config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = ln

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
			Logger:      s.logger,
		})
		if err := s.mdnsManager.Advertise(); err != nil {
			s.logger.Warn("mDNS advertisement failed", zap.Error(err))
		}
	}

	s.httpServer = &http.Server{Handler: s.mux}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()
	s.logger.Info("listening", zap.String("addr", ln.Addr().String()))

	var serverErr error
	select {
	case <-s.stopChan:
		s.logger.Info("relay shutting down")
	case err := <-errChan:
		serverErr = err
	}

	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("http shutdown", zap.Error(err))
	}

	// Hijacked websocket connections survive Shutdown
	s.clientsMu.RLock()
	for _, c := range s.clients {
		c.conn.Close()
	}
	s.clientsMu.RUnlock()

	s.wg.Wait()
	s.logger.Info("relay stopped")

	if serverErr != nil {
		return fmt.Errorf("http server failed: %w", serverErr)
	}
	return nil
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// Participants lists connected players ordered by name
func (s *Server) Participants() []protocol.Participant {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return s.participantsLocked("")
}

func (s *Server) participantsLocked(except string) []protocol.Participant {
	out := make([]protocol.Participant, 0, len(s.clients))
	for id, c := range s.clients {
		if id != except {
			out = append(out, c.participant)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade", zap.Error(err))
		return
	}
	s.logger.Debug("new connection", zap.String("remote", r.RemoteAddr))
	s.handleConnection(conn)
}

func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	s.shutdownMu.RLock()
	if s.isShutdown {
		s.shutdownMu.RUnlock()
		return
	}
	s.wg.Add(1)
	s.shutdownMu.RUnlock()
	defer s.wg.Done()

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	var msg protocol.Message
	if err := conn.ReadJSON(&msg); err != nil {
		s.logger.Debug("reading hello", zap.Error(err))
		return
	}
	conn.SetReadDeadline(time.Time{})

	if msg.Type != protocol.TypeClientHello {
		s.logger.Warn("expected client/hello", zap.String("type", msg.Type))
		return
	}
	var hello protocol.ClientHello
	if err := protocol.DecodePayload(msg.Payload, &hello); err != nil {
		s.logger.Warn("bad client/hello", zap.Error(err))
		return
	}
	if hello.ClientID == "" {
		hello.ClientID = uuid.New().String()
	}
	if hello.Name == "" {
		hello.Name = "anonymous"
	}

	c := &client{
		conn:     conn,
		sendChan: make(chan protocol.Message, 100),
	}

	s.clientsMu.Lock()
	if _, exists := s.clients[hello.ClientID]; exists {
		s.clientsMu.Unlock()
		s.logger.Warn("duplicate client id", zap.String("id", hello.ClientID))
		conn.WriteJSON(protocol.Message{
			Type: protocol.TypeServerError,
			Payload: protocol.ServerError{
				Error:   "duplicate_client_id",
				Message: "Client ID already connected",
			},
		})
		return
	}
	color := hello.Color
	if color == "" {
		color = palette[s.joined%len(palette)]
	}
	s.joined++
	c.participant = protocol.Participant{ID: hello.ClientID, Name: hello.Name, Color: color}
	// hello goes first so no broadcast can overtake it
	c.sendChan <- protocol.Message{
		Type: protocol.TypeServerHello,
		Payload: protocol.ServerHello{
			ServerID:     s.serverID,
			Name:         s.config.Name,
			Version:      protocol.Version,
			Participant:  c.participant,
			Participants: s.participantsLocked(""),
		},
	}
	s.clients[c.participant.ID] = c
	s.clientsMu.Unlock()

	s.logger.Info("participant joined",
		zap.String("id", c.participant.ID),
		zap.String("name", c.participant.Name),
		zap.String("color", color))

	writerDone := make(chan struct{})
	defer func() {
		s.removeClient(c)
		close(c.sendChan)
		<-writerDone
	}()

	go func() {
		defer close(writerDone)
		s.clientWriter(c)
	}()

	s.broadcast(c.participant.ID, protocol.Message{Type: protocol.TypeParticipantJoin, Payload: c.participant})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket error", zap.Error(err))
			}
			return
		}
		if !s.handleClientMessage(c, data) {
			return
		}
	}
}

func (s *Server) removeClient(c *client) {
	s.clientsMu.Lock()
	delete(s.clients, c.participant.ID)
	s.clientsMu.Unlock()

	s.logger.Info("participant left", zap.String("id", c.participant.ID), zap.Int("notes", c.notes))
	s.broadcast(c.participant.ID, protocol.Message{
		Type:    protocol.TypeParticipantLeft,
		Payload: protocol.ParticipantLeft{ID: c.participant.ID},
	})
}

// clientWriter owns all writes to a connection
func (s *Server) clientWriter(c *client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	const writeDeadline = 10 * time.Second

	for {
		select {
		case msg, ok := <-c.sendChan:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Warn("marshal", zap.Error(err))
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Debug("write", zap.Error(err))
				c.conn.Close()
				drain(c.sendChan)
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline)); err != nil {
				c.conn.Close()
				drain(c.sendChan)
				return
			}
		}
	}
}

func drain(ch <-chan protocol.Message) {
	for range ch {
	}
}

// handleClientMessage returns false when the client said goodbye
func (s *Server) handleClientMessage(c *client, data []byte) bool {
	received := s.clockMicros()

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Debug("bad message", zap.Error(err))
		return true
	}

	switch msg.Type {
	case protocol.TypeClientTime:
		s.handleTimeSync(c, msg.Payload, received)
	case protocol.TypeClientNotes:
		s.handleNotes(c, msg.Payload, received)
	case protocol.TypeClientGoodbye:
		var bye protocol.ClientGoodbye
		protocol.DecodePayload(msg.Payload, &bye)
		s.logger.Info("goodbye", zap.String("id", c.participant.ID), zap.String("reason", bye.Reason))
		return false
	default:
		s.logger.Debug("unknown message type", zap.String("type", msg.Type))
	}
	return true
}

func (s *Server) handleTimeSync(c *client, payload interface{}, received int64) {
	var ct protocol.ClientTime
	if err := protocol.DecodePayload(payload, &ct); err != nil {
		s.logger.Debug("bad client/time", zap.Error(err))
		return
	}
	s.send(c, protocol.Message{
		Type: protocol.TypeServerTime,
		Payload: protocol.ServerTime{
			ClientTransmitted: ct.ClientTransmitted,
			ServerReceived:    received,
			ServerTransmitted: s.clockMicros(),
		},
	})
}

// handleNotes stamps a batch with its sender and relays it to everyone else.
// Batches without a time, or claiming a time far from now, are restamped
// with the receive time.
func (s *Server) handleNotes(c *client, payload interface{}, received int64) {
	var batch protocol.NoteBatch
	if err := protocol.DecodePayload(payload, &batch); err != nil {
		s.logger.Debug("bad client/notes", zap.Error(err))
		return
	}
	if len(batch.Notes) == 0 {
		return
	}
	if len(batch.Notes) > s.config.MaxNotesPerBatch {
		batch.Notes = batch.Notes[:s.config.MaxNotesPerBatch]
	}
	const maxSkew = int64(10 * time.Second / time.Microsecond)
	if batch.Time == 0 || batch.Time > received+maxSkew || batch.Time < received-maxSkew {
		batch.Time = received
	}
	batch.Participant = c.participant.ID
	c.notes += len(batch.Notes)

	s.broadcast(c.participant.ID, protocol.Message{Type: protocol.TypeServerNotes, Payload: batch})
}

// broadcast sends msg to every client except the one with id except
func (s *Server) broadcast(except string, msg protocol.Message) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for id, c := range s.clients {
		if id != except {
			s.send(c, msg)
		}
	}
}

// send never blocks; a client that can't keep up loses messages.
// sendChan is closed only after the client left s.clients, so callers
// reach it either under clientsMu or from the client's own reader.
func (s *Server) send(c *client, msg protocol.Message) {
	select {
	case c.sendChan <- msg:
	default:
		s.logger.Warn("send buffer full, dropping", zap.String("id", c.participant.ID), zap.String("type", msg.Type))
	}
}

// clockMicros is the relay's clock, Unix μs
func (s *Server) clockMicros() int64 {
	return s.now().UnixMicro()
}
