package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"callcenter-ops/internal/mailer"
	"callcenter-ops/internal/metrics"
	"callcenter-ops/internal/model"
	"callcenter-ops/internal/token"
)

// MaxResetAttempts is the per-request budget: once three consume attempts
// have failed, the stored artifact is cleared and a new request is needed.
const MaxResetAttempts = 3

// ResetService manages the single-use, time-boxed password-reset artifact
// persisted on the user row. The raw random token is never stored (only its
// sha256) and never transmitted: the emailed link carries a short-lived
// signed credential whose subject identifies the user, and validation runs
// against the stored triple.
type ResetService struct {
	users          UserStore
	codec          *token.Codec
	ttl            time.Duration
	sender         mailer.Sender
	baseURL        string
	allowedDomains []string
	bcryptCost     int
	now            func() time.Time
}

func NewResetService(users UserStore, codec *token.Codec, ttl time.Duration,
	sender mailer.Sender, baseURL string, allowedDomains []string, bcryptCost int) *ResetService {

	return &ResetService{
		users:          users,
		codec:          codec,
		ttl:            ttl,
		sender:         sender,
		baseURL:        baseURL,
		allowedDomains: allowedDomains,
		bcryptCost:     bcryptCost,
		now:            time.Now,
	}
}

// Request starts a reset flow. The response is uniform whether or not the
// email maps to an account: an unknown address returns nil without sending
// anything, so the endpoint does not confirm account existence.
func (s *ResetService) Request(ctx context.Context, email string) error {
	if err := validateEmail(email, s.allowedDomains); err != nil {
		return err
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			metrics.RecordReset("request", "unknown_email")
			return nil
		}
		return err
	}

	rawToken := make([]byte, 32)
	if _, err := rand.Read(rawToken); err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	digest := sha256.Sum256([]byte(hex.EncodeToString(rawToken)))

	expiry := s.now().Add(s.ttl)
	if err := s.users.SetResetToken(ctx, user.ID, hex.EncodeToString(digest[:]), expiry); err != nil {
		return err
	}

	linkToken, err := s.codec.Issue(token.Claims{
		UserID:            user.ID,
		Email:             user.Email,
		Role:              user.Role,
		IsPasswordChanged: user.IsPasswordChanged,
		TokenGeneration:   user.TokenGeneration,
		Kind:              token.KindReset,
	}, s.ttl)
	if err != nil {
		return err
	}

	link := s.baseURL + "/reset-password?token=" + linkToken
	if err := s.sender.SendPasswordReset(ctx, user.Email, user.Name, link); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}

	slog.Info("password reset requested", "user_id", user.ID)
	metrics.RecordReset("request", "success")
	return nil
}

// Check validates a reset credential against the stored triple. A valid
// check does NOT increment the attempt counter; only the consume failure
// path does. Expired and exhausted states clear the stored fields so no
// stale artifact survives a blown flow.
func (s *ResetService) Check(ctx context.Context, signedToken string) error {
	_, err := s.lookup(ctx, signedToken)
	return err
}

// Consume finalizes the flow: it re-runs the check, hashes the new password
// and atomically installs it while clearing the reset triple. A storage
// failure during the final step increments the attempt counter before the
// error is returned, so crashed or retried consumes still count against the
// budget.
func (s *ResetService) Consume(ctx context.Context, signedToken string, newPassword string) error {
	if err := ValidatePasswordPolicy(newPassword); err != nil {
		return err
	}

	user, err := s.lookup(ctx, signedToken)
	if err != nil {
		metrics.RecordReset("consume", "rejected")
		return err
	}

	digest, err := HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}

	consumed, err := s.users.ConsumeResetToken(ctx, user.ID, digest)
	if err != nil {
		if incErr := s.users.IncrementResetAttempts(ctx, user.ID); incErr != nil {
			slog.Error("failed to count reset attempt", "user_id", user.ID, "error", incErr)
		}
		metrics.RecordReset("consume", "error")
		return err
	}
	if !consumed {
		// A concurrent consume won the row; this one sees no active request.
		metrics.RecordReset("consume", "rejected")
		return model.ErrNoActiveReset
	}

	slog.Info("password reset completed", "user_id", user.ID)
	metrics.RecordReset("consume", "success")
	return nil
}

// lookup decodes the signed credential and evaluates the stored triple.
func (s *ResetService) lookup(ctx context.Context, signedToken string) (model.User, error) {
	claims, err := s.codec.Verify(signedToken, token.KindReset)
	if err != nil {
		return model.User{}, model.ErrInvalidInput
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		return model.User{}, err
	}

	if !user.HasActiveReset() {
		return model.User{}, model.ErrNoActiveReset
	}

	if user.ResetTokenExpiry.Before(s.now()) {
		if err := s.users.ClearResetToken(ctx, user.ID); err != nil {
			slog.Error("failed to clear expired reset token", "user_id", user.ID, "error", err)
		}
		return model.User{}, model.ErrResetExpired
	}

	if user.ResetTokenAttempts >= MaxResetAttempts {
		if err := s.users.ClearResetToken(ctx, user.ID); err != nil {
			slog.Error("failed to clear exhausted reset token", "user_id", user.ID, "error", err)
		}
		return model.User{}, model.ErrResetTooManyAttempts
	}

	return user, nil
}
