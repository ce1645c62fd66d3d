package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/domain"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/repository"
)

// Claims represents the JWT claims minted by the identity service.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Config holds token verification configuration.
type Config struct {
	Secret string `mapstructure:"secret"`
}

// Verifier validates bearer tokens and binds them to an identity. Blocked
// identities and counselors without a profile are rejected at this layer so
// no event handling happens on an unverified connection.
type Verifier struct {
	secret     []byte
	blocklist  Blocklist
	counselors repository.CounselorRepository
}

// NewVerifier creates a token verifier.
func NewVerifier(cfg Config, blocklist Blocklist, counselors repository.CounselorRepository) *Verifier {
	return &Verifier{
		secret:     []byte(cfg.Secret),
		blocklist:  blocklist,
		counselors: counselors,
	}
}

// Verify parses and validates a bearer token and resolves the caller's
// identity. Every failure maps to domain.ErrAuthentication; callers must not
// leak the distinction to the peer.
func (v *Verifier) Verify(ctx context.Context, token string) (domain.Identity, error) {
	if token == "" {
		return domain.Identity{}, fmt.Errorf("%w: missing token", domain.ErrAuthentication)
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrAuthentication, err)
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return domain.Identity{}, fmt.Errorf("%w: token has no subject", domain.ErrAuthentication)
	}

	blocked, err := v.blocklist.IsBlocked(ctx, userID)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("blocklist check: %w", err)
	}
	if blocked {
		return domain.Identity{}, fmt.Errorf("%w: identity is blocked", domain.ErrAuthentication)
	}

	ident := domain.Identity{UserID: userID, Role: claims.Role}
	if ident.Role == "" {
		ident.Role = domain.RoleUser
	}

	if ident.Role == domain.RoleCounselor {
		counselor, err := v.counselors.GetByUserID(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrCounselorNotFound) {
				return domain.Identity{}, fmt.Errorf("%w: no counselor profile", domain.ErrAuthentication)
			}
			return domain.Identity{}, fmt.Errorf("counselor lookup: %w", err)
		}
		ident.CounselorID = counselor.ID
	}

	return ident, nil
}
