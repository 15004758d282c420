// ABOUTME: Player side of the relay
// ABOUTME: Keeps the clock in sync, batches local notes and schedules remote ones
package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Resonate-Protocol/pianoroom/pkg/piano"
	"github.com/Resonate-Protocol/pianoroom/pkg/protocol"
	clocksync "github.com/Resonate-Protocol/pianoroom/pkg/sync"
)

// Keyboard is the part of piano.Piano the relay drives
type Keyboard interface {
	Play(note string, velocity float64, part piano.Participant, delay time.Duration)
	Stop(note string, part piano.Participant, delay time.Duration)
	Join(part piano.Participant)
	Leave(id string)
}

// ClientConfig configures a relay client
type ClientConfig struct {
	ServerAddr string
	ClientID   string
	Name       string
	Color      string
	Keyboard   Keyboard

	// Buffer is added to every remote note so jittery batches still line up
	Buffer time.Duration
	// SyncInterval is the steady-state time sync period
	SyncInterval time.Duration
	// FlushInterval is how often local notes are sent as a batch
	FlushInterval time.Duration

	Logger *zap.Logger
}

// Client connects a local keyboard to a relay room
type Client struct {
	config ClientConfig
	conn   *protocol.Client
	clock  *clocksync.ClockSync
	logger *zap.Logger

	mu      sync.Mutex
	self    piano.Participant
	pending protocol.NoteBatch
	started time.Time

	sent     int
	received int
	now      func() time.Time
}

// NewClient creates a relay client. Call Connect, then Run.
func NewClient(config ClientConfig) (*Client, error) {
	if config.Keyboard == nil {
		return nil, fmt.Errorf("keyboard is required")
	}
	if config.ClientID == "" {
		config.ClientID = uuid.New().String()
	}
	if config.Buffer <= 0 {
		config.Buffer = 200 * time.Millisecond
	}
	if config.SyncInterval <= 0 {
		config.SyncInterval = time.Second
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 100 * time.Millisecond
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		config: config,
		clock:  clocksync.NewClockSync(logger),
		logger: logger.Named("relay"),
		self:   piano.Participant{ID: config.ClientID, Name: config.Name, Color: config.Color},
		now:    time.Now,
	}, nil
}

// Connect dials the relay, performs the handshake and joins everyone
// already in the room to the keyboard.
func (c *Client) Connect(ctx context.Context) error {
	conn := protocol.NewClient(protocol.Config{
		ServerAddr: c.config.ServerAddr,
		ClientID:   c.config.ClientID,
		Name:       c.config.Name,
		Color:      c.config.Color,
		Logger:     c.logger,
	})
	if err := conn.Connect(ctx); err != nil {
		return err
	}
	c.conn = conn

	hello := conn.Hello()
	c.mu.Lock()
	c.self = toParticipant(hello.Participant)
	self := c.self
	c.mu.Unlock()

	c.config.Keyboard.Join(self)
	for _, p := range hello.Participants {
		c.config.Keyboard.Join(toParticipant(p))
	}
	c.logger.Info("joined room",
		zap.String("room", hello.Name),
		zap.String("color", self.Color),
		zap.Int("others", len(hello.Participants)))
	return nil
}

// Self is the local participant as the relay knows it
func (c *Client) Self() piano.Participant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.self
}

// Clock exposes the relay clock
func (c *Client) Clock() *clocksync.ClockSync {
	return c.clock
}

// Run services the connection until ctx is done or the relay goes away
func (c *Client) Run(ctx context.Context) error {
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}

	// A quick burst gets the offset usable before the first notes arrive
	for i := 0; i < 5; i++ {
		c.sendTimeSync()
		select {
		case <-time.After(50 * time.Millisecond):
		case <-ctx.Done():
		}
	}

	syncTicker := time.NewTicker(c.config.SyncInterval)
	defer syncTicker.Stop()
	flushTicker := time.NewTicker(c.config.FlushInterval)
	defer flushTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.flush()
			return ctx.Err()

		case <-c.conn.Done():
			return fmt.Errorf("relay connection closed")

		case <-syncTicker.C:
			c.sendTimeSync()
			if q := c.clock.CheckQuality(); q == clocksync.QualityLost {
				c.logger.Warn("clock sync lost")
			}

		case <-flushTicker.C:
			c.flush()

		case resp := <-c.conn.TimeSyncResp:
			t4 := c.now().UnixMicro()
			c.clock.ProcessSyncResponse(resp.ClientTransmitted, resp.ServerReceived, resp.ServerTransmitted, t4)

		case batch := <-c.conn.Notes:
			c.playRemote(batch)

		case p := <-c.conn.Joins:
			c.config.Keyboard.Join(toParticipant(p))
			c.logger.Info("participant joined", zap.String("name", p.Name), zap.String("color", p.Color))

		case id := <-c.conn.Leaves:
			c.config.Keyboard.Leave(id)
			c.logger.Info("participant left", zap.String("id", id))
		}
	}
}

func (c *Client) sendTimeSync() {
	if err := c.conn.SendTimeSync(c.now().UnixMicro()); err != nil {
		c.logger.Debug("time sync send", zap.Error(err))
	}
}

// playRemote turns server-stamped notes into local delays
func (c *Client) playRemote(batch protocol.NoteBatch) {
	part := piano.Participant{ID: batch.Participant}
	if part.ID == "" {
		return
	}
	buffer := c.config.Buffer.Microseconds()
	for _, n := range batch.Notes {
		at := batch.Time + n.Delay*1000 + buffer
		delay := c.clock.DelayUntil(at)
		if n.Stop {
			c.config.Keyboard.Stop(n.Note, part, delay)
			continue
		}
		v := n.Velocity
		if v <= 0 {
			v = piano.DefaultVelocity
		}
		c.config.Keyboard.Play(n.Note, v, part, delay)
	}
	c.mu.Lock()
	c.received += len(batch.Notes)
	c.mu.Unlock()
}

// Play sounds a note locally and queues it for the room when it belongs to
// the local participant. It matches the keyboard's Play, so the relay can
// sit between a front end and the piano.
func (c *Client) Play(note string, velocity float64, part piano.Participant, delay time.Duration) {
	c.config.Keyboard.Play(note, velocity, part, delay)
	c.queue(part, protocol.Note{Note: note, Velocity: velocity}, delay)
}

// Stop releases a note locally and queues the release for the room
func (c *Client) Stop(note string, part piano.Participant, delay time.Duration) {
	c.config.Keyboard.Stop(note, part, delay)
	c.queue(part, protocol.Note{Note: note, Stop: true}, delay)
}

func (c *Client) queue(part piano.Participant, n protocol.Note, delay time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if part.ID != c.self.ID {
		return
	}
	now := c.now().Add(delay)
	if len(c.pending.Notes) == 0 {
		c.started = now
		c.pending.Time = c.clock.ServerNow() + delay.Microseconds()
	}
	n.Delay = now.Sub(c.started).Milliseconds()
	if n.Delay < 0 {
		n.Delay = 0
	}
	c.pending.Notes = append(c.pending.Notes, n)
}

// flush sends queued local notes as one batch
func (c *Client) flush() {
	c.mu.Lock()
	if len(c.pending.Notes) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.pending
	c.pending = protocol.NoteBatch{}
	c.sent += len(batch.Notes)
	c.mu.Unlock()

	if err := c.conn.SendNotes(batch); err != nil {
		c.logger.Debug("sending notes", zap.Error(err), zap.Int("notes", len(batch.Notes)))
	}
}

// Stats returns note counters
func (c *Client) Stats() (sent, received int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent, c.received
}

// Close says goodbye and disconnects
func (c *Client) Close() {
	if c.conn == nil {
		return
	}
	c.flush()
	c.conn.SendGoodbye("shutdown")
	c.conn.Close()
}

func toParticipant(p protocol.Participant) piano.Participant {
	return piano.Participant{ID: p.ID, Name: p.Name, Color: p.Color}
}
