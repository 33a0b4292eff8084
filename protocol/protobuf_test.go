package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestMarshalJoin(t *testing.T) {
	p := NewProcessor(ProcessorConf{})

	b, err := p.Marshal(JoinRequest{PlayerID: "p1", Trophies: 100})
	require.NoError(t, err)
	// field 1 (bytes) "p1", field 2 (varint) 100
	assert.Equal(t, []byte{0x0a, 0x02, 'p', '1', 0x10, 0x64}, b)

	b, err = p.Marshal(JoinRequest{PlayerID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0a, 0x02, 'p', '1'}, b, "zero trophies are omitted")
}

func TestMarshalJoinInvalid(t *testing.T) {
	p := NewProcessor(ProcessorConf{})

	_, err := p.Marshal(JoinRequest{Trophies: 3})
	assert.ErrorIs(t, err, ErrEmptyPlayerID)

	_, err = p.Marshal(JoinRequest{PlayerID: string([]byte{0xff, 0xfe})})
	assert.ErrorIs(t, err, ErrInvalidPlayerID)
}

func TestUnmarshalMatchFound(t *testing.T) {
	want := MatchFound{OpponentID: "p2", OpponentTrophies: 150, RoomID: "room-7"}

	t.Run("bare", func(t *testing.T) {
		p := NewProcessor(ProcessorConf{Framing: FramingBare})
		got, ok := p.Unmarshal(MarshalMatchFound(want, FramingBare))
		require.True(t, ok)
		assert.Equal(t, want, got)
	})

	t.Run("envelope", func(t *testing.T) {
		p := NewProcessor(ProcessorConf{Framing: FramingEnvelope})
		got, ok := p.Unmarshal(MarshalMatchFound(want, FramingEnvelope))
		require.True(t, ok)
		assert.Equal(t, want, got)

		_, ok = p.Unmarshal(MarshalMatchFound(want, FramingBare))
		assert.False(t, ok, "bare frame under envelope framing")
	})

	t.Run("auto", func(t *testing.T) {
		p := NewProcessor(ProcessorConf{Framing: FramingAuto})
		for _, f := range []Framing{FramingBare, FramingEnvelope} {
			got, ok := p.Unmarshal(MarshalMatchFound(want, f))
			require.True(t, ok, "framing %s", f)
			assert.Equal(t, want, got)
		}
	})

	t.Run("negative trophies", func(t *testing.T) {
		p := NewProcessor(ProcessorConf{})
		m := MatchFound{OpponentID: "p2", OpponentTrophies: -40, RoomID: "r"}
		got, ok := p.Unmarshal(MarshalMatchFound(m, FramingBare))
		require.True(t, ok)
		assert.Equal(t, m, got)
	})
}

func TestUnmarshalSkipsUnrelatedFrames(t *testing.T) {
	state := MarshalGameState(GameState{Elixir: 5, Hand: []int32{1, 2, 3, 4}, NextCard: 5, ServerTick: 12})

	cases := map[string][]byte{
		"empty":            {},
		"garbage":          {0xff, 0xff, 0xff},
		"truncated string": {0x0a, 0x05, 'a'},
		"wrong wire type":  {0x0d, 0x00, 0x00, 0x80, 0x3f},
		"missing room":     MarshalMatchFound(MatchFound{OpponentID: "p2", OpponentTrophies: 3}, FramingBare),
		"missing opponent": MarshalMatchFound(MatchFound{RoomID: "r"}, FramingBare),
		"game state":       state,
		"text":             []byte("hello"),
	}
	for _, f := range []Framing{FramingBare, FramingEnvelope, FramingAuto} {
		p := NewProcessor(ProcessorConf{Framing: f})
		for name, data := range cases {
			_, ok := p.Unmarshal(data)
			assert.False(t, ok, "%s under %s framing", name, f)
		}
	}
}

func TestUnmarshalEnvelopeLastPayloadWins(t *testing.T) {
	p := NewProcessor(ProcessorConf{Framing: FramingEnvelope})
	found := MarshalMatchFound(MatchFound{OpponentID: "p2", RoomID: "r"}, FramingEnvelope)
	state := MarshalGameState(GameState{ServerTick: 1})

	_, ok := p.Unmarshal(append(append([]byte{}, found...), state...))
	assert.False(t, ok)

	got, ok := p.Unmarshal(append(append([]byte{}, state...), found...))
	require.True(t, ok)
	assert.Equal(t, "p2", got.OpponentID)
}

func TestSchema(t *testing.T) {
	assert.Equal(t, "game.JoinQueueRequest", string(joinQueueRequest.FullName()))
	assert.Equal(t, "game.MatchFoundResponse", string(matchFoundResponse.FullName()))
	assert.Equal(t, "game.GameStateUpdate", string(gameStateUpdate.FullName()))
	assert.Equal(t, "game.ServerResponse", string(serverResponse.FullName()))

	payload := serverResponse.Oneofs().ByName("payload")
	require.NotNil(t, payload)
	assert.Equal(t, 2, payload.Fields().Len())
	assert.True(t, gameStateUpdate.Fields().ByNumber(stateHand).IsPacked())
}

func TestUnmarshalIgnoresUnknownFields(t *testing.T) {
	p := NewProcessor(ProcessorConf{})
	frame := MarshalMatchFound(MatchFound{OpponentID: "p2", RoomID: "r"}, FramingBare)
	// field 9 (varint) 1, not part of MatchFoundResponse
	frame = append(frame, 0x48, 0x01)

	got, ok := p.Unmarshal(frame)
	require.True(t, ok)
	assert.Equal(t, MatchFound{OpponentID: "p2", RoomID: "r"}, got)
}

func TestUnmarshalEnvelopeWrongWireType(t *testing.T) {
	p := NewProcessor(ProcessorConf{Framing: FramingEnvelope})
	// match_found carrying opponent_id as fixed32
	inner := []byte{0x0d, 0x00, 0x00, 0x80, 0x3f, 0x1a, 0x01, 'r'}
	frame := append([]byte{0x0a, byte(len(inner))}, inner...)

	_, ok := p.Unmarshal(frame)
	assert.False(t, ok)

	// match_found sent as a varint
	_, ok = p.Unmarshal([]byte{0x08, 0x01})
	assert.False(t, ok)
}

func TestMarshalGameState(t *testing.T) {
	b := MarshalGameState(GameState{Hand: []int32{1, 2}, ServerTick: 3})
	// game_state { hand: [1, 2] packed, server_tick: 3 }
	assert.Equal(t, []byte{0x12, 0x06, 0x12, 0x02, 0x01, 0x02, 0x20, 0x03}, b)
}

func TestUnmarshalJoinRejectsEmpty(t *testing.T) {
	_, err := UnmarshalJoin([]byte{0x10, 0x01})
	assert.ErrorIs(t, err, ErrEmptyPlayerID)

	_, err = UnmarshalJoin([]byte{0x0a})
	assert.Error(t, err)
}

func TestParseFraming(t *testing.T) {
	for _, s := range []string{"bare", "envelope", "auto"} {
		f, err := ParseFraming(s)
		require.NoError(t, err)
		assert.Equal(t, Framing(s), f)
	}
	f, err := ParseFraming("")
	require.NoError(t, err)
	assert.Equal(t, FramingBare, f)

	_, err = ParseFraming("json")
	assert.Error(t, err)
}

// Property-based tests

func TestPropertyJoinRoundTrip(t *testing.T) {
	p := NewProcessor(ProcessorConf{})
	rapid.Check(t, func(t *rapid.T) {
		req := JoinRequest{
			PlayerID: rapid.StringN(1, 64, -1).Draw(t, "player_id"),
			Trophies: rapid.Int32().Draw(t, "trophies"),
		}
		b, err := p.Marshal(req)
		if err != nil {
			t.Fatalf("marshal %+v: %v", req, err)
		}
		got, err := UnmarshalJoin(b)
		if err != nil {
			t.Fatalf("unmarshal %x: %v", b, err)
		}
		if got != req {
			t.Fatalf("round trip mismatch: got %+v want %+v", got, req)
		}
	})
}

func TestPropertyMarshalDeterministic(t *testing.T) {
	p := NewProcessor(ProcessorConf{})
	rapid.Check(t, func(t *rapid.T) {
		req := JoinRequest{
			PlayerID: rapid.StringN(1, 32, -1).Draw(t, "player_id"),
			Trophies: rapid.Int32().Draw(t, "trophies"),
		}
		a, _ := p.Marshal(req)
		b, _ := p.Marshal(req)
		assert.Equal(t, a, b)
	})
}

func TestPropertyMatchFoundRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		want := MatchFound{
			OpponentID:       rapid.StringN(1, 32, -1).Draw(t, "opponent_id"),
			OpponentTrophies: rapid.Int32().Draw(t, "opponent_trophies"),
			RoomID:           rapid.StringN(1, 32, -1).Draw(t, "room_id"),
		}
		framing := rapid.SampledFrom([]Framing{FramingBare, FramingEnvelope}).Draw(t, "framing")

		got, ok := NewProcessor(ProcessorConf{Framing: framing}).Unmarshal(MarshalMatchFound(want, framing))
		if !ok {
			t.Fatalf("frame for %+v not recognised under %s", want, framing)
		}
		if got != want {
			t.Fatalf("got %+v want %+v", got, want)
		}
	})
}

func TestPropertyUnmarshalNeverPanics(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		data := rapid.SliceOf(rapid.Byte()).Draw(t, "data")
		framing := rapid.SampledFrom([]Framing{FramingBare, FramingEnvelope, FramingAuto}).Draw(t, "framing")
		m, ok := NewProcessor(ProcessorConf{Framing: framing}).Unmarshal(data)
		if ok && (m.OpponentID == "" || m.RoomID == "") {
			t.Fatalf("accepted frame %x without opponent or room: %+v", data, m)
		}
	})
}
