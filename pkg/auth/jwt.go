package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Usage-клеймы разделяют долгоживущий гостевой токен и одноразовый WS-тикет
const (
	usageGuest    = "guest"
	usageWSTicket = "ws_ticket"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// GuestClaims содержит пользовательские поля гостевого токена.
// Токен привязан к одной сессии: чужой токен не дает ни отвечать,
// ни подписываться на события другой сессии.
type GuestClaims struct {
	UserID      uint   `json:"user_id"`
	SessionID   uint   `json:"session_id"`
	DisplayName string `json:"display_name"`
	Usage       string `json:"usage"`
	jwt.RegisteredClaims
}

// TokenService предоставляет методы для работы с гостевыми JWT
type TokenService struct {
	secretKey      []byte
	expiration     time.Duration
	wsTicketExpiry time.Duration
}

// NewTokenService создает новый сервис гостевых токенов
func NewTokenService(secretKey string, expirationHrs int, wsTicketExpirySec int) (*TokenService, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("jwt secret key is required")
	}
	if expirationHrs <= 0 {
		expirationHrs = 24
	}
	wsExpiry := time.Duration(wsTicketExpirySec) * time.Second
	if wsExpiry <= 0 {
		wsExpiry = 60 * time.Second
	}
	return &TokenService{
		secretKey:      []byte(secretKey),
		expiration:     time.Duration(expirationHrs) * time.Hour,
		wsTicketExpiry: wsExpiry,
	}, nil
}

// GenerateToken выдает гостевой токен, привязанный к сессии
func (s *TokenService) GenerateToken(userID uint, sessionID uint, displayName string) (string, error) {
	return s.sign(userID, sessionID, displayName, usageGuest, s.expiration)
}

// GenerateWSTicket выдает короткоживущий тикет для подключения к WebSocket.
// Браузерный WebSocket не умеет ставить заголовок Authorization, поэтому
// тикет передается query-параметром и живет меньше минуты.
func (s *TokenService) GenerateWSTicket(userID uint, sessionID uint, displayName string) (string, error) {
	return s.sign(userID, sessionID, displayName, usageWSTicket, s.wsTicketExpiry)
}

func (s *TokenService) sign(userID uint, sessionID uint, displayName string, usage string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &GuestClaims{
		UserID:      userID,
		SessionID:   sessionID,
		DisplayName: displayName,
		Usage:       usage,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   fmt.Sprintf("%d", userID),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}

// ParseToken проверяет гостевой токен и возвращает его клеймы
func (s *TokenService) ParseToken(tokenString string) (*GuestClaims, error) {
	return s.parse(tokenString, usageGuest)
}

// ParseWSTicket проверяет WS-тикет и возвращает его клеймы
func (s *TokenService) ParseWSTicket(tokenString string) (*GuestClaims, error) {
	return s.parse(tokenString, usageWSTicket)
}

func (s *TokenService) parse(tokenString string, wantUsage string) (*GuestClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &GuestClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*GuestClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Usage != wantUsage {
		return nil, fmt.Errorf("%w: wrong token usage %q", ErrInvalidToken, claims.Usage)
	}
	return claims, nil
}
