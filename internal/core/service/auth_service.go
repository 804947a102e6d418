package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ecommerce-app/ecommerce-api/internal/pkg/metrics"
	"github.com/ecommerce-app/ecommerce-api/internal/core/domain"
	"github.com/ecommerce-app/ecommerce-api/internal/core/ports"
	"github.com/ecommerce-app/ecommerce-api/internal/pkg/token"
)

const defaultRefreshTTL = 7 * 24 * time.Hour

// AuthDeps collects the collaborators of AuthService. Replay and Audit are
// optional.
type AuthDeps struct {
	Users      ports.UserRepository
	Sessions   ports.SessionStore
	Hasher     ports.PasswordHasher
	Tokens     ports.TokenIssuer
	Replay     ports.ReplayGuard
	Audit      ports.AuditRecorder
	RefreshTTL time.Duration
	Now        func() time.Time
	Log        zerolog.Logger
}

// AuthService implements registration, login, refresh-token rotation and
// revocation over the single session stored on each user record.
type AuthService struct {
	users      ports.UserRepository
	sessions   ports.SessionStore
	hasher     ports.PasswordHasher
	tokens     ports.TokenIssuer
	replay     ports.ReplayGuard
	audit      ports.AuditRecorder
	refreshTTL time.Duration
	now        func() time.Time
	log        zerolog.Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(deps AuthDeps) *AuthService {
	if deps.RefreshTTL <= 0 {
		deps.RefreshTTL = defaultRefreshTTL
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &AuthService{
		users:      deps.Users,
		sessions:   deps.Sessions,
		hasher:     deps.Hasher,
		tokens:     deps.Tokens,
		replay:     deps.Replay,
		audit:      deps.Audit,
		refreshTTL: deps.RefreshTTL,
		now:        deps.Now,
		log:        deps.Log,
	}
}

var _ ports.AuthService = (*AuthService)(nil)

// Register creates a user with no session. An empty role defaults to
// domain.RoleUser.
func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (*domain.User, error) {
	role := in.Role
	if role == "" {
		role = domain.RoleUser
	}
	if !domain.IsValidRole(role) {
		return nil, fmt.Errorf("register: unknown role %q", role)
	}

	if _, err := s.users.FindByEmail(ctx, in.Email); err == nil {
		return nil, domain.ErrEmailExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.NewStorageError("find user by email", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	now := s.now().UTC()
	created, err := s.users.Create(ctx, &domain.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmailExists) {
			return nil, domain.ErrEmailExists
		}
		return nil, domain.NewStorageError("create user", err)
	}

	s.record(domain.EventRegister, created.ID, created.Email)
	s.log.Info().Str("user_id", created.ID).Str("role", created.Role).Msg("user registered")
	return created, nil
}

// Authenticate verifies credentials and starts a new session, replacing any
// previous one.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*ports.AuthResult, error) {
	start := time.Now()
	result, err := s.authenticate(ctx, email, password)
	observe("login", start, err)
	return result, err
}

func (s *AuthService) authenticate(ctx context.Context, email, password string) (*ports.AuthResult, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			// Pay the same hashing cost as a wrong password.
			s.hasher.Verify(password, s.unknownUserHash())
			s.record(domain.EventLoginFailed, "", email)
			return nil, domain.ErrInvalidCredentials
		}
		return nil, domain.NewStorageError("find user by email", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.record(domain.EventLoginFailed, user.ID, email)
		return nil, domain.ErrInvalidCredentials
	}

	accessToken, session, err := s.issuePair(user)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.ReplaceSession(ctx, user.ID, session); err != nil {
		return nil, domain.NewStorageError("replace session", err)
	}
	user.Session = &session

	s.record(domain.EventLogin, user.ID, user.Email)
	s.log.Info().Str("user_id", user.ID).Msg("user authenticated")

	return &ports.AuthResult{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: session.Token,
	}, nil
}

// Refresh exchanges a (possibly expired) access token plus the user's
// current refresh token for a new pair. The stored refresh token is rotated
// with a conditional update, so of two concurrent calls presenting the same
// token only one succeeds.
func (s *AuthService) Refresh(ctx context.Context, accessToken, refreshToken string) (*ports.TokenPair, error) {
	start := time.Now()
	pair, err := s.refresh(ctx, accessToken, refreshToken)
	observe("refresh", start, err)
	return pair, err
}

func (s *AuthService) refresh(ctx context.Context, accessToken, refreshToken string) (*ports.TokenPair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, domain.ErrInvalidToken
	}

	claims, err := s.tokens.ExtractClaimsIgnoringExpiry(accessToken)
	if err != nil {
		s.log.Debug().Err(err).Msg("refresh rejected: access token")
		s.record(domain.EventRefreshFailed, "", "")
		return nil, domain.ErrInvalidToken
	}

	user, err := s.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.record(domain.EventRefreshFailed, claims.Subject, "")
			return nil, domain.ErrInvalidToken
		}
		return nil, domain.NewStorageError("find user by id", err)
	}

	now := s.now()
	if user.Session == nil || !tokensEqual(user.Session.Token, refreshToken) {
		s.checkReplay(ctx, user.ID, refreshToken)
		s.record(domain.EventRefreshFailed, user.ID, "")
		return nil, domain.ErrInvalidToken
	}
	if user.SessionState(now) != domain.ActiveSession {
		s.record(domain.EventRefreshFailed, user.ID, "")
		return nil, domain.ErrInvalidToken
	}

	newAccess, next, err := s.issuePair(user)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.RotateSession(ctx, user.ID, refreshToken, next, now); err != nil {
		if errors.Is(err, domain.ErrSessionConflict) || errors.Is(err, domain.ErrUserNotFound) {
			s.log.Warn().Str("user_id", user.ID).Msg("refresh lost a concurrent rotation")
			s.record(domain.EventRefreshFailed, user.ID, "")
			return nil, domain.ErrInvalidToken
		}
		return nil, domain.NewStorageError("rotate session", err)
	}

	if s.replay != nil {
		if err := s.replay.MarkSuperseded(ctx, refreshToken, user.ID); err != nil {
			s.log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to record superseded refresh token")
		}
	}

	s.record(domain.EventRefresh, user.ID, "")
	s.log.Info().Str("user_id", user.ID).Msg("session rotated")

	return &ports.TokenPair{AccessToken: newAccess, RefreshToken: next.Token}, nil
}

// Revoke ends the session holding refreshToken. Returns domain.ErrInvalidToken
// when no user holds it.
func (s *AuthService) Revoke(ctx context.Context, refreshToken string) error {
	start := time.Now()
	err := s.revoke(ctx, refreshToken)
	observe("revoke", start, err)
	return err
}

func (s *AuthService) revoke(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return domain.ErrInvalidToken
	}

	userID, err := s.sessions.RevokeSession(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrInvalidToken
		}
		return domain.NewStorageError("revoke session", err)
	}

	s.record(domain.EventRevoke, userID, "")
	s.log.Info().Str("user_id", userID).Msg("refresh token revoked")
	return nil
}

// Logout clears the session of userID regardless of which refresh token it holds.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	start := time.Now()
	err := s.sessions.ClearSession(ctx, userID)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		err = domain.NewStorageError("clear session", err)
	}
	observe("logout", start, err)
	if err != nil {
		return err
	}

	s.record(domain.EventLogout, userID, "")
	s.log.Info().Str("user_id", userID).Msg("user logged out")
	return nil
}

// CurrentUser returns the user identified by userID.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		return nil, domain.NewStorageError("find user by id", err)
	}
	return user, nil
}

// EnsureAdmin creates an Admin account with the given credentials unless a
// user with that email already exists.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, email, password string) error {
	_, err := s.Register(ctx, ports.RegisterInput{
		Username: username,
		Email:    email,
		Password: password,
		Role:     domain.RoleAdmin,
	})
	if errors.Is(err, domain.ErrEmailExists) {
		return nil
	}
	return err
}

func (s *AuthService) issuePair(user *domain.User) (string, domain.RefreshSession, error) {
	accessToken, _, err := s.tokens.IssueAccessToken(token.Identity{
		UserID:   user.ID,
		Role:     user.Role,
		Username: user.Username,
		Email:    user.Email,
	})
	if err != nil {
		return "", domain.RefreshSession{}, err
	}

	refreshToken, err := s.tokens.IssueRefreshToken()
	if err != nil {
		return "", domain.RefreshSession{}, err
	}

	return accessToken, domain.RefreshSession{
		Token:     refreshToken,
		ExpiresAt: s.now().Add(s.refreshTTL).UTC(),
	}, nil
}

// unknownUserHash returns a hash that no login password is checked against
// successfully, computed once with the configured hasher cost.
func (s *AuthService) unknownUserHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("unknown-user-placeholder")
		if err != nil {
			s.log.Warn().Err(err).Msg("failed to compute placeholder hash")
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// checkReplay flags a presented refresh token that an earlier rotation
// already superseded. The caller rejects the request either way.
func (s *AuthService) checkReplay(ctx context.Context, userID, refreshToken string) {
	if s.replay == nil {
		return
	}
	superseded, err := s.replay.IsSuperseded(ctx, refreshToken)
	if err != nil {
		s.log.Warn().Err(err).Msg("replay check failed")
		return
	}
	if !superseded {
		return
	}

	metrics.RefreshReuseTotal.Inc()
	s.record(domain.EventRefreshReuse, userID, "")
	s.log.Warn().Str("user_id", userID).Msg("superseded refresh token presented")
}

func (s *AuthService) record(typ domain.AuthEventType, userID, email string) {
	if s.audit == nil {
		return
	}
	s.audit.Enqueue(domain.AuthEvent{
		Type:       typ,
		UserID:     userID,
		Email:      email,
		OccurredAt: s.now().UTC(),
	})
}

func tokensEqual(stored, presented string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}

func observe(operation string, start time.Time, err error) {
	result := "success"
	var se *domain.StorageError
	switch {
	case err == nil:
	case errors.As(err, &se):
		result = "error"
	default:
		result = "rejected"
	}
	metrics.AuthOperationsTotal.WithLabelValues(operation, result).Inc()
	metrics.AuthOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
