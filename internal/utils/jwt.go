package utils

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// 中繼連線的權限
const (
	PermissionJoinLeaveGroup = "webpubsub.joinLeaveGroup"
	PermissionSendToGroup    = "webpubsub.sendToGroup"
)

const (
	audienceRelay     = "relay"
	audienceModerator = "moderator"
)

// RelayClaims 是中繼連線的存取權杖內容
type RelayClaims struct {
	UserID      string   `json:"userId"`
	Role        string   `json:"role"`
	Groups      []string `json:"groups"`
	Permissions []string `json:"permissions"`
	jwt.StandardClaims
}

// CanJoin 檢查是否可以加入群組
func (c *RelayClaims) CanJoin(group string) bool {
	return slices.Contains(c.Groups, group) && c.has(PermissionJoinLeaveGroup, group)
}

// CanSend 檢查是否可以對群組發送訊息
func (c *RelayClaims) CanSend(group string) bool {
	return slices.Contains(c.Groups, group) && c.has(PermissionSendToGroup, group)
}

// has 權限可以是全域的，也可以限定在某個群組（permission.group）
func (c *RelayClaims) has(permission, group string) bool {
	for _, p := range c.Permissions {
		if p == permission || p == permission+"."+group {
			return true
		}
	}
	return false
}

// ModeratorClaims 綁定房間的主持人憑證，Key 的雜湊存在房間登記裡
type ModeratorClaims struct {
	RoomID string `json:"room"`
	Key    string `json:"key"`
	jwt.StandardClaims
}

// TokenManager 負責簽發與驗證所有的 JWT
type TokenManager struct {
	secret   []byte
	issuer   string
	relayTTL time.Duration
	modTTL   time.Duration
	now      func() time.Time
}

// NewTokenManager 建立 TokenManager
func NewTokenManager(secret, issuer string, relayTTL, moderatorTTL time.Duration) *TokenManager {
	return &TokenManager{
		secret:   []byte(secret),
		issuer:   issuer,
		relayTTL: relayTTL,
		modTTL:   moderatorTTL,
		now:      time.Now,
	}
}

// GenerateRelayToken 生成中繼連線的存取權杖
func (m *TokenManager) GenerateRelayToken(userID, role string, groups, permissions []string) (string, error) {
	nowTime := m.now()
	claims := RelayClaims{
		UserID:      userID,
		Role:        role,
		Groups:      groups,
		Permissions: permissions,
		StandardClaims: jwt.StandardClaims{
			Audience:  audienceRelay,
			Issuer:    m.issuer,
			Subject:   userID,
			ExpiresAt: nowTime.Add(m.relayTTL).Unix(),
			IssuedAt:  nowTime.Unix(),
		},
	}
	return m.sign(claims)
}

// ParseRelayToken 解析和驗證中繼權杖
func (m *TokenManager) ParseRelayToken(token string) (*RelayClaims, error) {
	claims := &RelayClaims{}
	if err := m.parse(token, claims, audienceRelay); err != nil {
		return nil, err
	}
	return claims, nil
}

// GenerateModeratorToken 生成綁定房間的主持人憑證
func (m *TokenManager) GenerateModeratorToken(roomID, key string) (string, error) {
	nowTime := m.now()
	claims := ModeratorClaims{
		RoomID: roomID,
		Key:    key,
		StandardClaims: jwt.StandardClaims{
			Audience:  audienceModerator,
			Issuer:    m.issuer,
			Subject:   roomID,
			ExpiresAt: nowTime.Add(m.modTTL).Unix(),
			IssuedAt:  nowTime.Unix(),
		},
	}
	return m.sign(claims)
}

// ParseModeratorToken 解析主持人憑證，並確認它屬於 roomID
func (m *TokenManager) ParseModeratorToken(token, roomID string) (*ModeratorClaims, error) {
	claims := &ModeratorClaims{}
	if err := m.parse(token, claims, audienceModerator); err != nil {
		return nil, err
	}
	if claims.RoomID != roomID {
		return nil, fmt.Errorf("%w: token belongs to another room", ErrInvalidToken)
	}
	return claims, nil
}

func (m *TokenManager) sign(claims jwt.Claims) (string, error) {
	tokenClaims := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tokenClaims.SignedString(m.secret)
}

type audienceClaims interface {
	jwt.Claims
	VerifyAudience(cmp string, req bool) bool
}

func (m *TokenManager) parse(token string, claims audienceClaims, audience string) error {
	tokenClaims, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tokenClaims.Valid || !claims.VerifyAudience(audience, true) {
		return ErrInvalidToken
	}
	return nil
}

// BearerToken 從 Authorization 標頭取出 Bearer 權杖
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if !(len(parts) == 2 && parts[0] == "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
