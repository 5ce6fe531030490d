package impl

import (
	"context"
	"errors"
	"time"

	"sessionguard/internal/domain"
	"sessionguard/internal/dto"
	"sessionguard/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type TokenConfig struct {
	Issuer     string
	AccessTTL  time.Duration
	SigningKey []byte
}

// SessionClaims binds an access token to the session row that issued it.
// Introspection consults session state, so terminating the session revokes
// every token minted for it.
type SessionClaims struct {
	SID string `json:"sid"`
	jwt.RegisteredClaims
}

type TokenServiceImpl struct {
	cfg      TokenConfig
	sessions service.SessionService
	now      func() time.Time
}

func NewTokenServiceImpl(cfg TokenConfig, sessions service.SessionService) *TokenServiceImpl {
	return &TokenServiceImpl{cfg: cfg, sessions: sessions, now: time.Now}
}

func (t *TokenServiceImpl) Issue(ctx context.Context, sess *domain.Session) (*dto.TokenResponse, error) {
	now := t.now().UTC()
	exp := now.Add(t.cfg.AccessTTL)
	if exp.After(sess.ExpiresAt) {
		exp = sess.ExpiresAt
	}
	claims := SessionClaims{
		SID: sess.ID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.cfg.Issuer,
			Subject:   sess.UserID.String(),
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.cfg.SigningKey)
	if err != nil {
		return nil, err
	}
	return &dto.TokenResponse{
		AccessToken: signed,
		ExpiresIn:   int64(exp.Sub(now).Seconds()),
	}, nil
}

// Introspect reports token validity. A well-formed token whose session has
// expired or been terminated comes back inactive, never as an error.
func (t *TokenServiceImpl) Introspect(ctx context.Context, token string) (*dto.IntrospectResponse, error) {
	claims := &SessionClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return t.cfg.SigningKey, nil
	})
	if err != nil {
		return &dto.IntrospectResponse{Active: false}, nil
	}
	if claims.Issuer != t.cfg.Issuer {
		return &dto.IntrospectResponse{Active: false}, nil
	}
	sid, err := uuid.Parse(claims.SID)
	if err != nil {
		return &dto.IntrospectResponse{Active: false}, nil
	}

	live, err := t.sessions.Validate(ctx, sid)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &dto.IntrospectResponse{Active: false}, nil
		}
		return nil, err
	}
	if !live {
		return &dto.IntrospectResponse{Active: false}, nil
	}
	return &dto.IntrospectResponse{
		Active:    true,
		UserID:    claims.Subject,
		SessionID: claims.SID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
