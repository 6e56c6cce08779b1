package authz

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TenantClaim mirrors TenantContext in the token claim schema.
type TenantClaim struct {
	OrganizationID *int64 `json:"organizationId,omitempty"`
	PropertyID     *int64 `json:"propertyId,omitempty"`
	DepartmentID   *int64 `json:"departmentId,omitempty"`
}

// Claims is the portable credential embedding a resolved permission set for
// stateless enforcement without a cache round-trip.
type Claims struct {
	TenantIDs          TenantClaim `json:"tenantIds"`
	PermissionsVersion int64       `json:"permissionsVersion"`
	Permissions        []string    `json:"permissions"`
	PlatformAdmin      bool        `json:"platformAdmin,omitempty"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// Invalidator is the slice of the cache the token layer needs for forced
// refreshes.
type Invalidator interface {
	Invalidate(userID int64)
}

// TokenIssuer embeds resolved permission sets into signed tokens and
// verifies them against the current permissions version. A token issued
// before a permission change stays valid with stale permissions until it
// expires or a forced refresh bumps the version past it.
type TokenIssuer struct {
	secret   []byte
	issuer   string
	ttl      time.Duration
	versions *VersionStore
	cache    Invalidator
}

// NewTokenIssuer constructs the issuer. ttl bounds how long a stale token
// can outlive a permission change absent a forced refresh.
func NewTokenIssuer(secret string, issuer string, ttl time.Duration, versions *VersionStore, cache Invalidator) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), issuer: issuer, ttl: ttl, versions: versions, cache: cache}
}

// Issue serializes the effective set into a signed compact claim payload
// stamped with the user's current permissions version.
func (t *TokenIssuer) Issue(ctx context.Context, set EffectiveSet, platformAdmin bool) (string, error) {
	ver, err := t.versions.Current(ctx, set.UserID)
	if err != nil {
		return "", err
	}
	now := time.Now()
	claims := Claims{
		TenantIDs: TenantClaim{
			OrganizationID: set.Tenant.OrganizationID,
			PropertyID:     set.Tenant.PropertyID,
			DepartmentID:   set.Tenant.DepartmentID,
		},
		PermissionsVersion: ver,
		Permissions:        set.Keys(),
		PlatformAdmin:      platformAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   strconv.FormatInt(set.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify parses and validates a token, then rejects it with
// ErrReauthenticationRequired when its embedded permissions version is
// behind the user's current version.
func (t *TokenIssuer) Verify(ctx context.Context, raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("authz: unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithIssuer(t.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("authz: parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("authz: invalid token")
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, fmt.Errorf("authz: token subject: %w", err)
	}
	current, err := t.versions.Current(ctx, userID)
	if err != nil {
		return nil, err
	}
	if claims.PermissionsVersion < current {
		return nil, fmt.Errorf("%w: token version %d behind %d", ErrReauthenticationRequired, claims.PermissionsVersion, current)
	}
	return claims, nil
}

// ExtractSet rebuilds the effective set carried by verified claims for
// stateless enforcement.
func ExtractSet(claims *Claims) (EffectiveSet, error) {
	userID, err := claims.UserID()
	if err != nil {
		return EffectiveSet{}, err
	}
	keys := make(map[string]struct{}, len(claims.Permissions))
	for _, k := range claims.Permissions {
		keys[k] = struct{}{}
	}
	return NewEffectiveSet(userID, TenantContext{
		OrganizationID: claims.TenantIDs.OrganizationID,
		PropertyID:     claims.TenantIDs.PropertyID,
		DepartmentID:   claims.TenantIDs.DepartmentID,
	}, keys), nil
}

// ForceRefresh bumps the user's permissions version and invalidates their
// cached set, making every outstanding token for the user stale at once.
func (t *TokenIssuer) ForceRefresh(ctx context.Context, userID int64) (int64, error) {
	ver, err := t.versions.Bump(ctx, userID)
	if err != nil {
		return 0, err
	}
	if t.cache != nil {
		t.cache.Invalidate(userID)
	}
	return ver, nil
}
