package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"callcenter-ops/internal/metrics"
	"callcenter-ops/internal/model"
	"callcenter-ops/internal/token"
	"callcenter-ops/pkg/apierror"
)

// AuthService owns login, token refresh and session resolution. Access and
// refresh credentials are signed with distinct secrets; both are stateless.
// A per-user token generation counter is embedded in claims and re-checked
// on refresh and strong resolution, so password changes cut off outstanding
// refresh credentials without a server-side token store.
type AuthService struct {
	users        UserStore
	accessCodec  *token.Codec
	refreshCodec *token.Codec
	accessTTL    time.Duration
	refreshTTL   time.Duration
	bcryptCost   int
}

func NewAuthService(users UserStore, accessSecret string, refreshSecret string,
	accessTTL time.Duration, refreshTTL time.Duration, bcryptCost int) (*AuthService, error) {

	accessCodec, err := token.NewCodec(accessSecret)
	if err != nil {
		return nil, fmt.Errorf("access codec: %w", err)
	}
	refreshCodec, err := token.NewCodec(refreshSecret)
	if err != nil {
		return nil, fmt.Errorf("refresh codec: %w", err)
	}

	return &AuthService{
		users:        users,
		accessCodec:  accessCodec,
		refreshCodec: refreshCodec,
		accessTTL:    accessTTL,
		refreshTTL:   refreshTTL,
		bcryptCost:   bcryptCost,
	}, nil
}

// AccessCodec exposes the access-secret codec for the reset flow, which
// wraps its link credential in the same envelope.
func (s *AuthService) AccessCodec() *token.Codec {
	return s.accessCodec
}

func (s *AuthService) Login(ctx context.Context, email string, password string) (model.TokenPair, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			metrics.RecordLogin("failure")
			return model.TokenPair{}, model.ErrInvalidCredentials
		}
		return model.TokenPair{}, err
	}

	if !VerifyPassword(password, user.PasswordHash) {
		metrics.RecordLogin("failure")
		return model.TokenPair{}, model.ErrInvalidCredentials
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return model.TokenPair{}, err
	}

	metrics.RecordLogin("success")
	return pair, nil
}

// Refresh exchanges a valid refresh credential for a brand-new pair. Both
// tokens are rotated on every use; claims are re-read from the live user
// row so a stale role never survives a refresh.
func (s *AuthService) Refresh(ctx context.Context, rawRefresh string) (model.TokenPair, error) {
	claims, err := s.refreshCodec.Verify(rawRefresh, token.KindRefresh)
	if err != nil {
		metrics.RecordRefresh("failure")
		return model.TokenPair{}, model.ErrUnauthorized
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			metrics.RecordRefresh("failure")
			return model.TokenPair{}, model.ErrUnauthorized
		}
		return model.TokenPair{}, err
	}

	if user.TokenGeneration != claims.TokenGeneration {
		metrics.RecordRefresh("failure")
		return model.TokenPair{}, model.ErrUnauthorized
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return model.TokenPair{}, err
	}

	metrics.RecordRefresh("success")
	return pair, nil
}

// ValidateAccess is the cheap resolution mode: it trusts the verified
// claims and performs no store lookup. Used by the auth middleware on every
// protected request.
func (s *AuthService) ValidateAccess(rawAccess string) (model.Principal, error) {
	claims, err := s.accessCodec.Verify(rawAccess, token.KindAccess)
	if err != nil {
		return model.Principal{}, model.ErrUnauthorized
	}

	return model.Principal{
		ID:                claims.UserID,
		Email:             claims.Email,
		Role:              claims.Role,
		IsPasswordChanged: claims.IsPasswordChanged,
		TokenGeneration:   claims.TokenGeneration,
	}, nil
}

// CurrentUser is the strong resolution mode: it re-fetches the live user
// row and rejects principals whose token generation is stale.
func (s *AuthService) CurrentUser(ctx context.Context, principal model.Principal) (model.PublicUser, error) {
	user, err := s.users.FindByID(ctx, principal.ID)
	if err != nil {
		return model.PublicUser{}, err
	}

	if user.TokenGeneration != principal.TokenGeneration {
		return model.PublicUser{}, model.ErrUnauthorized
	}

	return user.Public(), nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID int64, currentPassword string, newPassword string) error {
	if err := ValidatePasswordPolicy(newPassword); err != nil {
		return err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	if !VerifyPassword(currentPassword, user.PasswordHash) {
		return apierror.BadRequest("current password is incorrect", "current_password")
	}

	digest, err := HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}

	return s.users.UpdatePassword(ctx, userID, digest)
}

func (s *AuthService) issuePair(user model.User) (model.TokenPair, error) {
	claims := token.Claims{
		UserID:            user.ID,
		Email:             user.Email,
		Role:              user.Role,
		IsPasswordChanged: user.IsPasswordChanged,
		TokenGeneration:   user.TokenGeneration,
	}

	claims.Kind = token.KindAccess
	accessToken, err := s.accessCodec.Issue(claims, s.accessTTL)
	if err != nil {
		return model.TokenPair{}, err
	}

	claims.Kind = token.KindRefresh
	refreshToken, err := s.refreshCodec.Issue(claims, s.refreshTTL)
	if err != nil {
		return model.TokenPair{}, err
	}

	return model.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL.Seconds()),
		User:         user.Public(),
	}, nil
}
