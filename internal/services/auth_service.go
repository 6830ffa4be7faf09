package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prudhvinik1/inkboard/internal/models"
	"github.com/prudhvinik1/inkboard/internal/repositories"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidParticipant = errors.New("invalid participant")
)

// AuthService mints and verifies whiteboard tokens. Users authenticate with the
// host application, which asks for a token on their behalf.
type AuthService struct {
	sessionRepo repositories.SessionRepository
	jwtSecret   string
	jwtExpiry   time.Duration
}

type IssuedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	SessionID string    `json:"session_id"`
}

type TokenClaims struct {
	Participant models.Participant
	SessionID   string
}

func NewAuthService(sessionRepo repositories.SessionRepository, jwtSecret string, jwtExpiry time.Duration) *AuthService {
	return &AuthService{
		sessionRepo: sessionRepo,
		jwtSecret:   jwtSecret,
		jwtExpiry:   jwtExpiry,
	}
}

func (s *AuthService) IssueToken(ctx context.Context, p models.Participant) (*IssuedToken, error) {
	if p.ID == "" || !p.Role.Valid() {
		return nil, ErrInvalidParticipant
	}

	now := time.Now()
	session := &models.Session{
		ID:            uuid.New().String(),
		ParticipantID: p.ID,
		Role:          p.Role,
		ExpiresAt:     now.Add(s.jwtExpiry),
		CreatedAt:     now,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	token, err := s.generateToken(p, session.ID, now, session.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &IssuedToken{
		Token:     token,
		ExpiresAt: session.ExpiresAt,
		SessionID: session.ID,
	}, nil
}

func (s *AuthService) generateToken(p models.Participant, sessionID string, issuedAt, expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":  p.ID,
		"name": p.Name,
		"role": string(p.Role),
		"jti":  sessionID,
		"exp":  expiresAt.Unix(),
		"iat":  issuedAt.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

func (s *AuthService) parseToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	participantID, ok := claims["sub"].(string)
	if !ok || participantID == "" {
		return nil, ErrInvalidToken
	}
	role, ok := claims["role"].(string)
	if !ok || !models.Role(role).Valid() {
		return nil, ErrInvalidToken
	}
	sessionID, ok := claims["jti"].(string)
	if !ok || sessionID == "" {
		return nil, ErrInvalidToken
	}
	name, _ := claims["name"].(string)

	return &TokenClaims{
		Participant: models.Participant{ID: participantID, Name: name, Role: models.Role(role)},
		SessionID:   sessionID,
	}, nil
}

// VerifyToken checks the signature and expiry, then that the backing session
// has not been revoked.
func (s *AuthService) VerifyToken(ctx context.Context, tokenString string) (*TokenClaims, error) {
	claims, err := s.parseToken(tokenString)
	if err != nil {
		return nil, err
	}

	session, err := s.sessionRepo.GetByID(ctx, claims.SessionID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session.ParticipantID != claims.Participant.ID {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (s *AuthService) Revoke(ctx context.Context, tokenString string) error {
	claims, err := s.VerifyToken(ctx, tokenString)
	if err != nil {
		return err
	}

	if err := s.sessionRepo.Delete(ctx, claims.SessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *AuthService) RevokeAll(ctx context.Context, participantID string) error {
	if err := s.sessionRepo.DeleteAllForParticipant(ctx, participantID); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}
	return nil
}

// ListSessions returns the participant's unrevoked, unexpired tokens.
func (s *AuthService) ListSessions(ctx context.Context, participantID string) ([]*models.Session, error) {
	sessions, err := s.sessionRepo.ListByParticipantID(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}
