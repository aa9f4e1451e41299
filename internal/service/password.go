package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/mail"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"callcenter-ops/pkg/apierror"
)

// HashPassword produces a salted bcrypt digest. Cost is validated at config
// load (>= 10).
func HashPassword(plaintext string, cost int) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(digest), nil
}

// VerifyPassword reports whether plaintext matches the stored digest.
// bcrypt's comparison is constant-time over the digest.
func VerifyPassword(plaintext string, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}

// ValidatePasswordPolicy enforces the minimum credential policy: at least 8
// characters with one uppercase, one lowercase and one digit.
func ValidatePasswordPolicy(password string) error {
	if len(password) < 8 {
		return apierror.BadRequest("password must be at least 8 characters", "password")
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasUpper {
		return apierror.BadRequest("password must contain at least one uppercase letter", "password")
	}
	if !hasLower {
		return apierror.BadRequest("password must contain at least one lowercase letter", "password")
	}
	if !hasDigit {
		return apierror.BadRequest("password must contain at least one digit", "password")
	}

	return nil
}

// GenerateTempPassword returns a random 32-hex-char password for freshly
// created accounts. It is emailed once and never stored in plaintext.
func GenerateTempPassword() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate temp password: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// validateEmail checks shape and the organization domain allowlist.
func validateEmail(email string, allowedDomains []string) error {
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return apierror.BadRequest("invalid email address", "email")
	}

	lowered := strings.ToLower(email)
	for _, domain := range allowedDomains {
		if strings.HasSuffix(lowered, strings.ToLower(domain)) {
			return nil
		}
	}

	return apierror.BadRequest(
		fmt.Sprintf("email must belong to one of: %s", strings.Join(allowedDomains, ", ")),
		"email")
}
