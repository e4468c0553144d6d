package identity

import (
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/lomba/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProvider(t *testing.T, clock clockwork.Clock) *Provider {
	t.Helper()
	p, err := NewProvider(Config{Secret: []byte("rahasia-17-agustus"), TTL: time.Hour}, clock)
	require.NoError(t, err)
	return p
}

func TestRoundTrip(t *testing.T) {
	p := newProvider(t, clockwork.NewFakeClock())

	tok, err := p.SignInAnonymously("  Budi ")
	require.NoError(t, err)
	assert.Equal(t, "Budi", tok.Participant.Nickname)
	assert.NotEmpty(t, tok.Participant.ID)

	got, err := p.Verify(tok.Value)
	require.NoError(t, err)
	assert.Equal(t, tok.Participant, got)
}

func TestBlankNickname(t *testing.T) {
	p := newProvider(t, nil)
	_, err := p.SignInAnonymously("   ")
	assert.ErrorIs(t, err, models.ErrBlankNickname)
}

func TestTamperedToken(t *testing.T) {
	p := newProvider(t, nil)
	tok, err := p.SignInAnonymously("Budi")
	require.NoError(t, err)

	parts := strings.Split(tok.Value, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = p.Verify(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestOtherSecretRejected(t *testing.T) {
	p := newProvider(t, nil)
	other, err := NewProvider(Config{}, nil)
	require.NoError(t, err)

	tok, err := other.SignInAnonymously("Budi")
	require.NoError(t, err)

	_, err = p.Verify(tok.Value)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiredToken(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := newProvider(t, clock)

	tok, err := p.SignInAnonymously("Budi")
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	_, err = p.Verify(tok.Value)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestGarbage(t *testing.T) {
	p := newProvider(t, nil)
	_, err := p.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
