// Package protocol implements the binary matchmaking wire protocol spoken
// between the bridge and the matchmaking server. Frames use the protobuf
// wire format described in matchmaking.proto.
package protocol

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Framing selects how inbound server frames are laid out.
type Framing string

const (
	// FramingBare expects every server frame to be a bare MatchFoundResponse.
	FramingBare Framing = "bare"
	// FramingEnvelope expects a ServerResponse wrapping a oneof payload.
	FramingEnvelope Framing = "envelope"
	// FramingAuto tries the envelope layout first and falls back to bare.
	FramingAuto Framing = "auto"
)

var (
	ErrEmptyPlayerID   = errors.New("protocol: player id must not be empty")
	ErrInvalidPlayerID = errors.New("protocol: player id must be valid UTF-8")
)

type (
	// JoinRequest is the queue join message sent once per matchmaking attempt.
	JoinRequest struct {
		PlayerID string
		Trophies int32
	}
	// MatchFound carries the fields of a MatchFoundResponse.
	MatchFound struct {
		OpponentID       string
		OpponentTrophies int32
		RoomID           string
	}
	// GameState mirrors the GameStateUpdate pushed by the server once a
	// battle is running. The client never acts on it; it exists so test
	// servers can emit the frames a real server interleaves.
	GameState struct {
		Elixir     float32
		Hand       []int32
		NextCard   int32
		ServerTick int32
	}
)

// Validate reports whether the request can be put on the wire.
func (r JoinRequest) Validate() error {
	if len(r.PlayerID) == 0 {
		return ErrEmptyPlayerID
	}
	if !utf8.ValidString(r.PlayerID) {
		return ErrInvalidPlayerID
	}
	return nil
}

// ParseFraming converts a configuration value into a Framing.
func ParseFraming(s string) (Framing, error) {
	switch f := Framing(s); f {
	case FramingBare, FramingEnvelope, FramingAuto:
		return f, nil
	case "":
		return FramingBare, nil
	default:
		return "", fmt.Errorf("protocol: unknown framing %q", s)
	}
}
