package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"callcenter-ops/internal/mailer"
	"callcenter-ops/internal/model"
	"callcenter-ops/pkg/apierror"
)

// UserService covers account provisioning: self-contained registration and
// the manager-driven team-leader lifecycle with generated temporary
// passwords.
type UserService struct {
	users          UserStore
	sender         mailer.Sender
	allowedDomains []string
	bcryptCost     int
}

func NewUserService(users UserStore, sender mailer.Sender, allowedDomains []string, bcryptCost int) *UserService {
	return &UserService{
		users:          users,
		sender:         sender,
		allowedDomains: allowedDomains,
		bcryptCost:     bcryptCost,
	}
}

func (s *UserService) Register(ctx context.Context, req model.RegisterRequest) (model.PublicUser, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return model.PublicUser{}, apierror.BadRequest("name is required", "name")
	}

	if err := validateEmail(req.Email, s.allowedDomains); err != nil {
		return model.PublicUser{}, err
	}
	if err := ValidatePasswordPolicy(req.Password); err != nil {
		return model.PublicUser{}, err
	}

	role := model.Role(strings.TrimSpace(req.Role))
	if role == "" {
		role = model.RoleUser
	}
	if !role.Valid() {
		return model.PublicUser{}, apierror.BadRequest("invalid role", req.Role)
	}

	digest, err := HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return model.PublicUser{}, err
	}

	created, err := s.users.Create(ctx, model.User{
		Email:        strings.TrimSpace(req.Email),
		Name:         name,
		PasswordHash: digest,
		Role:         role,
	})
	if err != nil {
		return model.PublicUser{}, err
	}

	slog.Info("user registered", "user_id", created.ID, "role", created.Role)
	return created.Public(), nil
}

func (s *UserService) ListTeamLeaders(ctx context.Context) ([]model.PublicUser, error) {
	return s.users.ListByRole(ctx, model.RoleTeamLeader)
}

// CreateTeamLeader provisions a team-leader account with a generated
// temporary password delivered once by email. The plaintext is discarded
// after sending and must never be logged.
func (s *UserService) CreateTeamLeader(ctx context.Context, name string, email string) (model.PublicUser, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.PublicUser{}, apierror.BadRequest("name is required", "name")
	}
	if err := validateEmail(email, s.allowedDomains); err != nil {
		return model.PublicUser{}, err
	}

	tempPassword, err := GenerateTempPassword()
	if err != nil {
		return model.PublicUser{}, err
	}

	digest, err := HashPassword(tempPassword, s.bcryptCost)
	if err != nil {
		return model.PublicUser{}, err
	}

	created, err := s.users.Create(ctx, model.User{
		Email:        strings.TrimSpace(email),
		Name:         name,
		PasswordHash: digest,
		Role:         model.RoleTeamLeader,
	})
	if err != nil {
		return model.PublicUser{}, err
	}

	if err := s.sender.SendWelcome(ctx, created.Email, created.Name, tempPassword); err != nil {
		return model.PublicUser{}, fmt.Errorf("send welcome email: %w", err)
	}

	slog.Info("team leader created", "user_id", created.ID)
	return created.Public(), nil
}

func (s *UserService) DeleteTeamLeader(ctx context.Context, id int64) error {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if user.Role != model.RoleTeamLeader {
		return apierror.BadRequest("user is not a team leader", "id")
	}

	return s.users.Delete(ctx, id)
}
