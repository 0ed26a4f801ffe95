package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"quiz-learning-service/internal/app"
	"quiz-learning-service/internal/domain"
	"quiz-learning-service/internal/infra/memory"
	"quiz-learning-service/internal/infra/security"
)

func newAuth(t *testing.T) *app.AuthService {
	t.Helper()
	tokens, err := security.NewJWTIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	return app.NewAuthService(memory.NewCatalogStore(), security.NewBcryptHasher(bcrypt.MinCost), tokens)
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	auth := newAuth(t)

	user, err := auth.RegisterStudent(ctx, app.RegisterInput{Name: "Ana", Phone: "5511999990000", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleStudent, user.Role)
	assert.NotEqual(t, "secret1", user.PasswordHash)

	login, err := auth.Login(ctx, "5511999990000", "secret1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, login.User.ID)

	identity, err := auth.Authenticate(login.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.Identity{UserID: user.ID, Role: domain.RoleStudent}, identity)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	ctx := context.Background()
	auth := newAuth(t)
	_, err := auth.RegisterStudent(ctx, app.RegisterInput{Name: "Ana", Phone: "5511999990000", Password: "secret1"})
	require.NoError(t, err)

	_, err = auth.Login(ctx, "5511999990000", "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = auth.Login(ctx, "0000", "secret1")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestPhoneUniqueAmongActiveUsers(t *testing.T) {
	ctx := context.Background()
	auth := newAuth(t)
	in := app.RegisterInput{Name: "Ana", Phone: "5511999990000", Password: "secret1"}

	user, err := auth.RegisterStudent(ctx, in)
	require.NoError(t, err)
	_, err = auth.RegisterStudent(ctx, in)
	assert.ErrorIs(t, err, domain.ErrPhoneTaken)

	who := domain.Identity{UserID: user.ID, Role: domain.RoleStudent}
	require.NoError(t, auth.Deactivate(ctx, who, user.ID))

	_, err = auth.Login(ctx, in.Phone, in.Password)
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials, "deactivated users cannot log in")

	_, err = auth.RegisterStudent(ctx, in)
	assert.NoError(t, err, "a deactivated user's phone can be reused")
}

func TestAdministratorManagement(t *testing.T) {
	ctx := context.Background()
	auth := newAuth(t)

	root, err := auth.BootstrapAdministrator(ctx, app.RegisterInput{Name: "Root", Phone: "5511000000000", Password: "rootpw"})
	require.NoError(t, err)
	rootID := domain.Identity{UserID: root.ID, Role: root.Role}

	_, err = auth.CreateAdministrator(ctx, student, app.RegisterInput{Name: "X", Phone: "5511000000009", Password: "xxxxxx"})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	second, err := auth.CreateAdministrator(ctx, rootID, app.RegisterInput{Name: "Second", Phone: "5511000000001", Password: "second"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdministrator, second.Role)

	pupil, err := auth.RegisterStudent(ctx, app.RegisterInput{Name: "Ana", Phone: "5511000000002", Password: "secret1"})
	require.NoError(t, err)
	assert.ErrorIs(t, auth.Deactivate(ctx, student, pupil.ID), domain.ErrForbidden)
	assert.NoError(t, auth.Deactivate(ctx, rootID, pupil.ID))
}

func TestRegisterRequiresFields(t *testing.T) {
	_, err := newAuth(t).RegisterStudent(context.Background(), app.RegisterInput{Name: "Ana", Phone: " "})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestAuthenticateRejectsGarbage(t *testing.T) {
	_, err := newAuth(t).Authenticate("nope")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
