// Command example queues one player and polls for the result from a 30 fps
// frame loop.
//
//	example [config.yaml] [player] [trophies]
package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/czx-lab/matchbridge"
	"github.com/czx-lab/matchbridge/actor"
	"github.com/czx-lab/matchbridge/bridge"
	"github.com/czx-lab/matchbridge/event"
	"github.com/czx-lab/matchbridge/protocol"
	"github.com/czx-lab/matchbridge/xlog"
	"go.uber.org/zap"
)

const (
	fps           = 30
	defaultPlayer = "Player"
)

// frameLoop stands in for a game's update loop: it never blocks on the
// network and drains at most one result per frame.
type frameLoop struct {
	bridge *bridge.Bridge
	// nil queues the player from the configuration file
	override *protocol.JoinRequest
	ticket   actor.PID
}

func (f *frameLoop) Init() {
	var (
		pid actor.PID
		err error
	)
	if f.override != nil {
		pid, err = f.bridge.RequestMatch(f.override.PlayerID, f.override.Trophies)
	} else {
		pid, err = f.bridge.FindMatch()
	}
	if err != nil {
		xlog.Write().Error("example: request match", zap.Error(err))
		return
	}
	f.ticket = pid
	xlog.Write().Info("example: searching", zap.Stringer("ticket", pid))
}

func (f *frameLoop) Run(done chan struct{}) {
	ticker := time.NewTicker(time.Second / fps)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			f.update()
		}
	}
}

func (f *frameLoop) Destroy() {}

func (f *frameLoop) update() {
	r, ok := f.bridge.Poll()
	if !ok {
		return
	}
	if r.Attempt() != f.ticket.String() {
		xlog.Write().Warn("example: result for unknown ticket", zap.String("ticket", r.Attempt()))
		return
	}
	switch r := r.(type) {
	case event.MatchFound:
		fmt.Printf("matched against %s (%d trophies) in room %s\n", r.OpponentID, r.OpponentTrophies, r.RoomID)
	case event.NetworkError:
		fmt.Printf("matchmaking failed: %s\n", r.Message)
	}
}

func main() {
	var path string
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	// player and trophies on the command line override the player section
	var override *protocol.JoinRequest
	if len(os.Args) > 2 {
		override = &protocol.JoinRequest{PlayerID: os.Args[2]}
	}
	if len(os.Args) > 3 {
		n, err := strconv.ParseInt(os.Args[3], 10, 32)
		if err != nil {
			fmt.Fprintf(os.Stderr, "trophies: %v\n", err)
			os.Exit(2)
		}
		override.Trophies = int32(n)
	}

	b, cfg, shutdown, err := matchbridge.Setup(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer shutdown()

	if override == nil && len(cfg.Player.Name) == 0 {
		// no player section either
		override = &protocol.JoinRequest{PlayerID: defaultPlayer}
	}

	matchbridge.Run(b, &frameLoop{bridge: b, override: override})
}
