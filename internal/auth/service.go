package auth

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/vesta-hotels/vesta/internal/authz"
	"github.com/vesta-hotels/vesta/internal/shared"
	"github.com/vesta-hotels/vesta/internal/users"
)

// UserSource looks up accounts for credential checks.
type UserSource interface {
	GetByEmail(ctx context.Context, email string) (users.User, error)
}

// EffectiveSource resolves permission sets for token issuance.
type EffectiveSource interface {
	Get(ctx context.Context, userID int64) (authz.EffectiveSet, error)
}

// Service wraps authentication business rules: credential checks, session
// registration and permission-bearing token issuance.
type Service struct {
	userSource UserSource
	repo       Repository
	effective  EffectiveSource
	tokens     *authz.TokenIssuer
}

// NewService constructs a new Service.
func NewService(userSource UserSource, repo Repository, effective EffectiveSource, tokens *authz.TokenIssuer) *Service {
	return &Service{userSource: userSource, repo: repo, effective: effective, tokens: tokens}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (users.User, error) {
	user, err := s.userSource.GetByEmail(ctx, email)
	if err != nil {
		return users.User{}, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return users.User{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return users.User{}, shared.ErrInvalidCredentials
	}
	return user, nil
}

// IssueToken resolves the user's current permission set and embeds it into a
// signed token stamped with their permissions version.
func (s *Service) IssueToken(ctx context.Context, user users.User) (string, error) {
	set, err := s.effective.Get(ctx, user.ID)
	if err != nil {
		return "", err
	}
	return s.tokens.Issue(ctx, set, user.PlatformAdmin)
}

// RefreshToken verifies an existing token and reissues with the current
// permission set. A version-behind token surfaces
// authz.ErrReauthenticationRequired; the client must log in again.
func (s *Service) RefreshToken(ctx context.Context, raw string) (string, error) {
	claims, err := s.tokens.Verify(ctx, raw)
	if err != nil {
		return "", err
	}
	userID, err := claims.UserID()
	if err != nil {
		return "", err
	}
	set, err := s.effective.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	return s.tokens.Issue(ctx, set, claims.PlatformAdmin)
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}
