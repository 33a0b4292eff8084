package wstest

import (
	"fmt"
	"sync"

	"github.com/czx-lab/matchbridge/protocol"
)

// maxTrophyGap is the widest trophy difference Pairing will match.
const maxTrophyGap = 1000

// Respond answers every join request with m in the given framing, after
// the optional frames in before.
func Respond(m protocol.MatchFound, framing protocol.Framing, before ...[]byte) Handler {
	return func(p *Peer) {
		if _, err := p.ReadJoin(); err != nil {
			return
		}
		for _, b := range before {
			if err := p.WriteBinary(b); err != nil {
				return
			}
		}
		if err := p.WriteMatchFound(m, framing); err != nil {
			return
		}
		p.Wait()
	}
}

// CloseAfterJoin reads the join request and closes the connection with a
// close frame.
func CloseAfterJoin() Handler {
	return func(p *Peer) {
		if _, err := p.ReadJoin(); err != nil {
			return
		}
		_ = p.CloseNormal()
		p.Wait()
	}
}

// DropAfterJoin reads the join request and drops the socket.
func DropAfterJoin() Handler {
	return func(p *Peer) {
		if _, err := p.ReadJoin(); err != nil {
			return
		}
		_ = p.Drop()
	}
}

// Hold reads the join request and never answers.
func Hold() Handler {
	return func(p *Peer) {
		if _, err := p.ReadJoin(); err != nil {
			return
		}
		p.Wait()
	}
}

type (
	// Pairing is a tiny matchmaker: it queues players and pairs each new
	// one with the first waiting player whose trophies are within range.
	// Matches are written in envelope framing, followed by a game state.
	Pairing struct {
		mu      sync.Mutex
		waiting []*ticket
	}
	ticket struct {
		req   protocol.JoinRequest
		match chan protocol.MatchFound
	}
)

func NewPairing() *Pairing {
	return &Pairing{}
}

// Handler returns the connection handler.
func (m *Pairing) Handler() Handler {
	return func(p *Peer) {
		req, err := p.ReadJoin()
		if err != nil {
			return
		}

		t := &ticket{req: req, match: make(chan protocol.MatchFound, 1)}
		m.enqueue(t)

		gone := make(chan struct{})
		go func() {
			defer close(gone)
			p.Wait()
		}()

		select {
		case found := <-t.match:
			_ = p.WriteMatchFound(found, protocol.FramingEnvelope)
			_ = p.WriteGameState(protocol.GameState{Elixir: 5, Hand: []int32{1, 2, 3, 4}, NextCard: 5})
			<-gone
		case <-gone:
			m.remove(t)
		}
	}
}

func (m *Pairing) enqueue(t *ticket) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, other := range m.waiting {
		if abs(other.req.Trophies-t.req.Trophies) > maxTrophyGap {
			continue
		}
		m.waiting = append(m.waiting[:i], m.waiting[i+1:]...)

		room := fmt.Sprintf("room_%s_%s", other.req.PlayerID, t.req.PlayerID)
		other.match <- protocol.MatchFound{OpponentID: t.req.PlayerID, OpponentTrophies: t.req.Trophies, RoomID: room}
		t.match <- protocol.MatchFound{OpponentID: other.req.PlayerID, OpponentTrophies: other.req.Trophies, RoomID: room}
		return
	}
	m.waiting = append(m.waiting, t)
}

func (m *Pairing) remove(t *ticket) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, w := range m.waiting {
		if w == t {
			m.waiting = append(m.waiting[:i], m.waiting[i+1:]...)
			return
		}
	}
}

// Waiting returns the number of queued players.
func (m *Pairing) Waiting() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.waiting)
}

func abs(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
