package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	svc, err := NewTokenService("secret", 1, 60)
	require.NoError(t, err)

	token, err := svc.GenerateToken(42, 7, "Мария")
	require.NoError(t, err)

	claims, err := svc.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, uint(7), claims.SessionID)
	assert.Equal(t, "Мария", claims.DisplayName)
}

func TestWSTicketNotAcceptedAsGuestToken(t *testing.T) {
	svc, err := NewTokenService("secret", 1, 60)
	require.NoError(t, err)

	ticket, err := svc.GenerateWSTicket(42, 7, "Мария")
	require.NoError(t, err)

	// Тикет годится только для WS-подключения
	_, err = svc.ParseToken(ticket)
	assert.ErrorIs(t, err, ErrInvalidToken)

	claims, err := svc.ParseWSTicket(ticket)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.SessionID)
}

func TestParseRejectsForeignSecret(t *testing.T) {
	issuer, err := NewTokenService("secret-a", 1, 60)
	require.NoError(t, err)
	verifier, err := NewTokenService("secret-b", 1, 60)
	require.NoError(t, err)

	token, err := issuer.GenerateToken(42, 7, "x")
	require.NoError(t, err)

	_, err = verifier.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokenServiceRequiresSecret(t *testing.T) {
	_, err := NewTokenService("", 1, 60)
	assert.Error(t, err)
}
