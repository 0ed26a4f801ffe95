package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"quiz-learning-service/internal/domain"
)

// AuthService registers users, logs them in and resolves identity tokens.
type AuthService struct {
	users  UserRepository
	hasher PasswordHasher
	tokens TokenIssuer
	now    func() time.Time
}

func NewAuthService(users UserRepository, hasher PasswordHasher, tokens TokenIssuer) *AuthService {
	return &AuthService{users: users, hasher: hasher, tokens: tokens, now: time.Now}
}

type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=120"`
	Phone    string `json:"phone" validate:"required,min=8,max=20"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      domain.User `json:"user"`
}

// RegisterStudent creates an active student. The phone must be free among active users.
func (a *AuthService) RegisterStudent(ctx context.Context, in RegisterInput) (domain.User, error) {
	return a.register(ctx, in, domain.RoleStudent)
}

// CreateAdministrator lets an administrator add another administrator.
func (a *AuthService) CreateAdministrator(ctx context.Context, who domain.Identity, in RegisterInput) (domain.User, error) {
	if !who.IsAdmin() {
		return domain.User{}, domain.Forbidden("administrator role required")
	}
	return a.register(ctx, in, domain.RoleAdministrator)
}

// BootstrapAdministrator creates an administrator without a caller identity.
// It is reserved for the operator CLI.
func (a *AuthService) BootstrapAdministrator(ctx context.Context, in RegisterInput) (domain.User, error) {
	return a.register(ctx, in, domain.RoleAdministrator)
}

func (a *AuthService) register(ctx context.Context, in RegisterInput, role domain.Role) (domain.User, error) {
	phone := strings.TrimSpace(in.Phone)
	if phone == "" || in.Password == "" || strings.TrimSpace(in.Name) == "" {
		return domain.User{}, domain.BadRequest("name, phone and password are required")
	}

	_, err := a.users.FindActiveUserByPhone(ctx, phone)
	switch {
	case err == nil:
		return domain.User{}, domain.ErrPhoneTaken
	case !errors.Is(err, domain.ErrNotFound):
		return domain.User{}, domain.Internal(err)
	}

	hash, err := a.hasher.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, domain.Internal(err)
	}
	user := domain.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(in.Name),
		Phone:        phone,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
		CreatedAt:    a.now(),
	}
	if err := a.users.CreateUser(ctx, user); err != nil {
		return domain.User{}, domain.Internal(err)
	}
	return user, nil
}

// Login checks the phone/password pair of an active user and issues a token.
func (a *AuthService) Login(ctx context.Context, phone, password string) (LoginResult, error) {
	user, err := a.users.FindActiveUserByPhone(ctx, strings.TrimSpace(phone))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return LoginResult{}, domain.ErrInvalidCredentials
		}
		return LoginResult{}, domain.Internal(err)
	}
	if err := a.hasher.ComparePassword(user.PasswordHash, password); err != nil {
		return LoginResult{}, domain.ErrInvalidCredentials
	}
	token, expiresAt, err := a.tokens.Issue(user)
	if err != nil {
		return LoginResult{}, domain.Internal(err)
	}
	return LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Authenticate resolves a bearer token into an identity.
func (a *AuthService) Authenticate(token string) (domain.Identity, error) {
	identity, err := a.tokens.Parse(token)
	if err != nil {
		return domain.Identity{}, domain.Unauthorized("invalid token")
	}
	return identity, nil
}

// Deactivate soft-deletes a user. Students may only deactivate themselves.
func (a *AuthService) Deactivate(ctx context.Context, who domain.Identity, userID string) error {
	if userID != who.UserID && !who.IsAdmin() {
		return domain.Forbidden("cannot deactivate another user")
	}
	if _, err := a.users.FindUser(ctx, userID); err != nil {
		return domain.Internal(err)
	}
	if err := a.users.DeactivateUser(ctx, userID); err != nil {
		return domain.Internal(err)
	}
	return nil
}
