package service

import (
	"github.com/jonboulle/clockwork"

	"debate_timer/internal/debate"
	"debate_timer/internal/registry"
	"debate_timer/internal/relay"
	"debate_timer/internal/utils"
)

// Options 是服務層需要的設定
type Options struct {
	RelayEnabled bool
	PublicURL    string
}

type Services struct {
	Room      *RoomService
	Negotiate *NegotiateService
	Debate    *DebateService
	Catalog   *debate.Catalog
	Hub       *relay.Hub
	Tokens    *utils.TokenManager
	Registry  registry.Registry
}

func NewServices(reg registry.Registry, hub *relay.Hub, tokens *utils.TokenManager, catalog *debate.Catalog, clock clockwork.Clock, opts Options) *Services {
	roomService := NewRoomService(reg, tokens)
	negotiateService := NewNegotiateService(roomService, tokens, opts.RelayEnabled, opts.PublicURL)
	debateService := NewDebateService(catalog, roomService, reg, hub, hub, clock)

	return &Services{
		Room:      roomService,
		Negotiate: negotiateService,
		Debate:    debateService,
		Catalog:   catalog,
		Hub:       hub,
		Tokens:    tokens,
		Registry:  reg,
	}
}
