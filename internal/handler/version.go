package handler

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/simwire/server/internal/core/event"
	"github.com/simwire/server/internal/net"
	"github.com/simwire/server/internal/net/packet"
)

// MaxNameLen caps a peer's display name, in bytes after normalization.
const MaxNameLen = 64

// HandleHello processes Hello. A peer whose packet table differs from ours is
// ignored; everyone else is stored, acked and announced with PeerJoined.
func HandleHello(p *net.Peer, msg packet.Hello, deps *Deps) {
	w := deps.World
	if msg.Schema != w.Proto.Schema() {
		p.Log().Warn("schema mismatch, hello ignored",
			zap.Stringer("theirs", msg.Schema),
			zap.Stringer("ours", w.Proto.Schema()),
		)
		return
	}

	if p.State() == packet.StateJoined {
		// Our ack was lost; repeat it.
		w.Send(p, packet.HelloAck{Peer: p.ID})
		return
	}

	p.Name = normalizeName(msg.Name)
	p.SetState(packet.StateJoined)
	w.Peers.Add(p)
	w.Send(p, packet.HelloAck{Peer: p.ID})
	event.Emit(w.Bus, event.PeerJoined{Peer: p.ID, Name: p.Name})

	p.Log().Info("peer joined", zap.String("name", p.Name), zap.Int("peers", w.Peers.Len()))
}

func normalizeName(name string) string {
	name = strings.TrimSpace(norm.NFC.String(name))
	if len(name) > MaxNameLen {
		// Cut on a rune boundary.
		cut := MaxNameLen
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut]
	}
	if name == "" {
		return "anonymous"
	}
	return name
}
