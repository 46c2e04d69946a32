package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"debate_timer/internal/replica"
	"debate_timer/internal/utils"
)

var (
	ErrRelayUnavailable = errors.New("relay is not configured")
	ErrInvalidRole      = errors.New("role must be moderator or observer")
	ErrLocalRoom        = errors.New("local rooms are not networked")
)

// RelayPath 是中繼 WebSocket 的路徑
const RelayPath = "/api/relay/ws"

// Negotiation 是用戶端連線中繼所需的資訊
type Negotiation struct {
	URL         string   `json:"url"`
	UserID      string   `json:"userId"`
	Hub         string   `json:"hub"`
	Room        string   `json:"room"`
	Role        string   `json:"role"`
	Groups      []string `json:"groups"`
	Permissions []string `json:"permissions"`
}

type NegotiateService struct {
	rooms     *RoomService
	tokens    *utils.TokenManager
	enabled   bool
	publicURL string
}

func NewNegotiateService(rooms *RoomService, tokens *utils.TokenManager, enabled bool, publicURL string) *NegotiateService {
	return &NegotiateService{rooms: rooms, tokens: tokens, enabled: enabled, publicURL: publicURL}
}

// Negotiate 簽發中繼存取權杖。所有角色都可以加入房間群組，只有主持人可以發送。
// baseURL 是從請求推算的外部位址，設定了 PublicURL 時以設定為準。
func (s *NegotiateService) Negotiate(ctx context.Context, roomID string, role replica.Role, moderatorToken, baseURL string) (*Negotiation, error) {
	if !s.enabled {
		return nil, ErrRelayUnavailable
	}
	if role == "" {
		role = replica.RoleObserver
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	if replica.IsLocal(roomID) {
		return nil, ErrLocalRoom
	}

	permissions := []string{utils.PermissionJoinLeaveGroup}
	if role == replica.RoleModerator {
		if err := s.rooms.Authorize(ctx, roomID, moderatorToken); err != nil {
			return nil, err
		}
		permissions = append(permissions, utils.PermissionSendToGroup)
	}

	userID := "user-" + uuid.NewString()
	groups := []string{replica.Topic(roomID)}
	token, err := s.tokens.GenerateRelayToken(userID, string(role), groups, permissions)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRelayUnavailable, err)
	}

	wsURL, err := relayURL(s.base(baseURL), token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRelayUnavailable, err)
	}

	log.Info().Str("room", roomID).Str("user", userID).Str("role", string(role)).Msg("relay access granted")
	return &Negotiation{
		URL:         wsURL,
		UserID:      userID,
		Hub:         replica.Hub,
		Room:        roomID,
		Role:        string(role),
		Groups:      groups,
		Permissions: permissions,
	}, nil
}

func (s *NegotiateService) base(fromRequest string) string {
	if s.publicURL != "" {
		return s.publicURL
	}
	return fromRequest
}

// relayURL 把 http(s) 位址轉成 ws(s) 並附上權杖
func relayURL(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = RelayPath
	u.RawQuery = url.Values{"access_token": {token}}.Encode()
	return u.String(), nil
}
