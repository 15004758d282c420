// ABOUTME: Relay message type definitions
// ABOUTME: JSON envelopes exchanged between players and the relay server
package protocol

import (
	"encoding/json"
	"fmt"
)

// Version is the relay protocol version
const Version = 1

// Message types
const (
	TypeClientHello     = "client/hello"
	TypeServerHello     = "server/hello"
	TypeClientTime      = "client/time"
	TypeServerTime      = "server/time"
	TypeClientNotes     = "client/notes"
	TypeServerNotes     = "server/notes"
	TypeParticipantJoin = "participant/join"
	TypeParticipantLeft = "participant/leave"
	TypeClientGoodbye   = "client/goodbye"
	TypeServerError     = "server/error"
)

// Message is the top-level envelope for all messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ClientHello is sent by a player after connecting
type ClientHello struct {
	ClientID string `json:"client_id"`
	Name     string `json:"name"`
	Color    string `json:"color,omitempty"`
	Version  int    `json:"version"`
}

// ServerHello is the relay's handshake response
type ServerHello struct {
	ServerID     string        `json:"server_id"`
	Name         string        `json:"name"`
	Version      int           `json:"version"`
	Participant  Participant   `json:"participant"`
	Participants []Participant `json:"participants"`
}

// Participant describes someone connected to the room
type Participant struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// ParticipantLeft announces a departure
type ParticipantLeft struct {
	ID string `json:"id"`
}

// ClientTime is a time sync request, Unix μs
type ClientTime struct {
	ClientTransmitted int64 `json:"client_transmitted"`
}

// ServerTime is a time sync response, Unix μs
type ServerTime struct {
	ClientTransmitted int64 `json:"client_transmitted"`
	ServerReceived    int64 `json:"server_received"`
	ServerTransmitted int64 `json:"server_transmitted"`
}

// Note is one press or release inside a batch.
// Delay is milliseconds after the batch time.
type Note struct {
	Note     string  `json:"n"`
	Velocity float64 `json:"v,omitempty"`
	Delay    int64   `json:"d,omitempty"`
	Stop     bool    `json:"s,omitempty"`
}

// NoteBatch carries notes played by one participant. Time is the batch
// start in server Unix μs; Participant is filled in by the relay.
type NoteBatch struct {
	Participant string `json:"participant,omitempty"`
	Time        int64  `json:"t"`
	Notes       []Note `json:"notes"`
}

// ClientGoodbye is sent before a player disconnects
type ClientGoodbye struct {
	Reason string `json:"reason"`
}

// ServerError is sent before the relay closes a connection it rejects
type ServerError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// DecodePayload re-decodes a generic payload into out
func DecodePayload(payload interface{}, out interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return nil
}
