// Package identity issues anonymous participant tokens. There are no
// accounts: a token only binds a random subject to a nickname.
package identity

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/lomba/go/internal/models"
	"github.com/rs/zerolog/log"
)

const issuer = "lomba-arcade"

// ErrInvalidToken is returned for tokens that fail verification
var ErrInvalidToken = errors.New("invalid participant token")

// Config holds the token settings
type Config struct {
	Secret []byte
	TTL    time.Duration
}

// DefaultConfig returns a config with a one-day TTL and no secret
func DefaultConfig() Config {
	return Config{TTL: 24 * time.Hour}
}

// Token is a signed anonymous sign-in
type Token struct {
	Value       string             `json:"token"`
	Participant models.Participant `json:"participant"`
	ExpiresAt   time.Time          `json:"expires_at"`
}

type claims struct {
	Nickname string `json:"nick"`
	jwt.RegisteredClaims
}

// Provider signs and verifies anonymous tokens
type Provider struct {
	secret []byte
	ttl    time.Duration
	clock  clockwork.Clock
}

// NewProvider creates a provider. Without a secret a random one is generated,
// so tokens do not survive a restart.
func NewProvider(cfg Config, clock clockwork.Clock) (*Provider, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	secret := cfg.Secret
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate token secret: %w", err)
		}
		log.Warn().Msg("TOKEN_SECRET not set, using a per-process secret")
	}
	return &Provider{secret: secret, ttl: cfg.TTL, clock: clock}, nil
}

// SignInAnonymously issues a token for nickname under a fresh subject
func (p *Provider) SignInAnonymously(nickname string) (Token, error) {
	participant, err := models.NewParticipant(uuid.NewString(), nickname)
	if err != nil {
		return Token{}, err
	}

	now := p.clock.Now()
	expires := now.Add(p.ttl)
	c := claims{
		Nickname: participant.Nickname,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   participant.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(p.secret)
	if err != nil {
		return Token{}, fmt.Errorf("failed to sign token: %w", err)
	}

	log.Info().
		Str("participant_id", participant.ID).
		Str("nickname", participant.Nickname).
		Msg("anonymous sign-in")

	return Token{
		Value:       signed,
		Participant: participant,
		ExpiresAt:   expires,
	}, nil
}

// Verify checks token and returns the participant it was issued to
func (p *Provider) Verify(token string) (models.Participant, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c,
		func(*jwt.Token) (any, error) { return p.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.clock.Now),
	)
	if err != nil {
		return models.Participant{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	participant, err := models.NewParticipant(c.Subject, c.Nickname)
	if err != nil {
		return models.Participant{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return participant, nil
}
