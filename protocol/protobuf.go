package protocol

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

var (
	errWireType = errors.New("protobuf: unexpected wire type")
	// fields in number order, so equal requests encode to equal bytes
	marshalOptions = proto.MarshalOptions{Deterministic: true}
)

type (
	ProcessorConf struct {
		// Framing of inbound server frames, default FramingBare.
		Framing Framing
	}
	// Processor encodes join requests and decodes match-found frames.
	// It holds no mutable state and is safe for concurrent use.
	Processor struct {
		conf ProcessorConf
	}
)

func NewProcessor(conf ProcessorConf) *Processor {
	if len(conf.Framing) == 0 {
		conf.Framing = FramingBare
	}
	return &Processor{conf: conf}
}

// Framing returns the inbound framing the processor decodes.
func (p *Processor) Framing() Framing {
	return p.conf.Framing
}

// Marshal encodes a JoinQueueRequest. Zero values are omitted and the
// output is deterministic.
func (p *Processor) Marshal(req JoinRequest) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	m := dynamicpb.NewMessage(joinQueueRequest)
	fields := joinQueueRequest.Fields()
	m.Set(fields.ByNumber(joinPlayerID), protoreflect.ValueOfString(req.PlayerID))
	if req.Trophies != 0 {
		m.Set(fields.ByNumber(joinTrophies), protoreflect.ValueOfInt32(req.Trophies))
	}
	return marshalOptions.Marshal(m)
}

// Unmarshal decodes a server frame as a match-found payload. It reports
// false for anything else so unknown message types can be skipped.
func (p *Processor) Unmarshal(data []byte) (MatchFound, bool) {
	switch p.conf.Framing {
	case FramingEnvelope:
		return unmarshalEnvelope(data)
	case FramingAuto:
		if m, ok := unmarshalEnvelope(data); ok {
			return m, true
		}
		return unmarshalMatchFound(data)
	default:
		return unmarshalMatchFound(data)
	}
}

// UnmarshalJoin decodes a JoinQueueRequest. It is the server side of
// Marshal and is used by test servers.
func UnmarshalJoin(data []byte) (JoinRequest, error) {
	m, err := decode(data, joinQueueRequest)
	if err != nil {
		return JoinRequest{}, fmt.Errorf("protocol: decoding join request: %w", err)
	}
	fields := joinQueueRequest.Fields()
	req := JoinRequest{
		PlayerID: m.Get(fields.ByNumber(joinPlayerID)).String(),
		Trophies: int32(m.Get(fields.ByNumber(joinTrophies)).Int()),
	}
	return req, req.Validate()
}

// MarshalMatchFound encodes a match-found frame in the given framing.
// FramingAuto encodes like FramingEnvelope. It returns nil when a string
// field is not valid UTF-8.
func MarshalMatchFound(m MatchFound, framing Framing) []byte {
	found := dynamicpb.NewMessage(matchFoundResponse)
	fields := matchFoundResponse.Fields()
	if len(m.OpponentID) > 0 {
		found.Set(fields.ByNumber(foundOpponentID), protoreflect.ValueOfString(m.OpponentID))
	}
	if m.OpponentTrophies != 0 {
		found.Set(fields.ByNumber(foundOpponentTrophies), protoreflect.ValueOfInt32(m.OpponentTrophies))
	}
	if len(m.RoomID) > 0 {
		found.Set(fields.ByNumber(foundRoomID), protoreflect.ValueOfString(m.RoomID))
	}

	var msg protoreflect.ProtoMessage = found
	if framing != FramingBare {
		env := dynamicpb.NewMessage(serverResponse)
		env.Set(serverResponse.Fields().ByNumber(responseMatchFound), protoreflect.ValueOfMessage(found))
		msg = env
	}
	b, err := marshalOptions.Marshal(msg)
	if err != nil {
		return nil
	}
	return b
}

// MarshalGameState encodes a ServerResponse carrying a GameStateUpdate.
func MarshalGameState(s GameState) []byte {
	state := dynamicpb.NewMessage(gameStateUpdate)
	fields := gameStateUpdate.Fields()
	if s.Elixir != 0 {
		state.Set(fields.ByNumber(stateElixir), protoreflect.ValueOfFloat32(s.Elixir))
	}
	if len(s.Hand) > 0 {
		hand := state.Mutable(fields.ByNumber(stateHand)).List()
		for _, c := range s.Hand {
			hand.Append(protoreflect.ValueOfInt32(c))
		}
	}
	if s.NextCard != 0 {
		state.Set(fields.ByNumber(stateNextCard), protoreflect.ValueOfInt32(s.NextCard))
	}
	if s.ServerTick != 0 {
		state.Set(fields.ByNumber(stateServerTick), protoreflect.ValueOfInt32(s.ServerTick))
	}

	env := dynamicpb.NewMessage(serverResponse)
	env.Set(serverResponse.Fields().ByNumber(responseGameState), protoreflect.ValueOfMessage(state))
	b, _ := marshalOptions.Marshal(env)
	return b
}

func unmarshalMatchFound(data []byte) (MatchFound, bool) {
	m, err := decode(data, matchFoundResponse)
	if err != nil {
		return MatchFound{}, false
	}
	return matchFound(m)
}

func unmarshalEnvelope(data []byte) (MatchFound, bool) {
	env, err := decode(data, serverResponse)
	if err != nil {
		return MatchFound{}, false
	}
	// a later oneof arm replaces an earlier one
	fd := serverResponse.Fields().ByNumber(responseMatchFound)
	if !env.Has(fd) {
		return MatchFound{}, false
	}
	found := env.Get(fd).Message()
	if checkUnknown(found) != nil {
		return MatchFound{}, false
	}
	return matchFound(found)
}

func matchFound(m protoreflect.Message) (MatchFound, bool) {
	fields := matchFoundResponse.Fields()
	found := MatchFound{
		OpponentID:       m.Get(fields.ByNumber(foundOpponentID)).String(),
		OpponentTrophies: int32(m.Get(fields.ByNumber(foundOpponentTrophies)).Int()),
		RoomID:           m.Get(fields.ByNumber(foundRoomID)).String(),
	}
	if len(found.OpponentID) == 0 || len(found.RoomID) == 0 {
		return MatchFound{}, false
	}
	return found, true
}

func decode(data []byte, md protoreflect.MessageDescriptor) (*dynamicpb.Message, error) {
	m := dynamicpb.NewMessage(md)
	if err := proto.Unmarshal(data, m); err != nil {
		return nil, err
	}
	if err := checkUnknown(m); err != nil {
		return nil, err
	}
	return m, nil
}

// checkUnknown rejects declared fields that arrived with the wrong wire
// type. proto keeps those among the unknown fields instead of failing.
func checkUnknown(m protoreflect.Message) error {
	fields := m.Descriptor().Fields()
	b := m.GetUnknown()
	for len(b) > 0 {
		num, _, n := protowire.ConsumeField(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		if fields.ByNumber(num) != nil {
			return fmt.Errorf("%w: field %d", errWireType, num)
		}
		b = b[n:]
	}
	return nil
}
