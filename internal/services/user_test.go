package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markjakearzadon/globalfund-gobackend/internal/logger"
	"github.com/markjakearzadon/globalfund-gobackend/internal/models"
)

func TestUserService_RegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	users := NewUserService(f.store, "test-secret", time.Hour, logger.Discard())
	ctx := context.Background()
	org := f.createOrg(t, "Water", "1")

	user, err := users.CreateUser(ctx, models.RegisterRequest{
		FullName:       "Org Admin",
		Email:          "Admin@Water.org",
		Password:       "correct horse",
		Role:           models.RoleOrganization,
		OrganizationID: org.ID.Hex(),
	})
	require.NoError(t, err)
	assert.Equal(t, "admin@water.org", user.Email)
	assert.NotEqual(t, "correct horse", user.HPassword)

	_, err = users.CreateUser(ctx, models.RegisterRequest{Email: "admin@water.org", Password: "another one", Role: models.RoleDeveloper})
	assert.ErrorIs(t, err, ErrEmailTaken)

	token, got, err := users.Login(ctx, "admin@water.org", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	claims, err := users.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.Hex(), claims.Subject)
	assert.Equal(t, models.RoleOrganization, claims.Role)
	assert.Equal(t, org.ID.Hex(), claims.OrganizationID)

	_, _, err = users.Login(ctx, "admin@water.org", "wrong password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = users.Login(ctx, "nobody@water.org", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUserService_RegisterValidation(t *testing.T) {
	f := newFixture(t)
	users := NewUserService(f.store, "test-secret", time.Hour, logger.Discard())
	ctx := context.Background()

	_, err := users.CreateUser(ctx, models.RegisterRequest{Email: "bad", Password: "long enough", Role: models.RoleDeveloper})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = users.CreateUser(ctx, models.RegisterRequest{Email: "a@b.org", Password: "short", Role: models.RoleDeveloper})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = users.CreateUser(ctx, models.RegisterRequest{Email: "a@b.org", Password: "long enough", Role: "admin"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = users.CreateUser(ctx, models.RegisterRequest{Email: "a@b.org", Password: "long enough", Role: models.RoleOrganization, OrganizationID: "507f1f77bcf86cd799439011"})
	assert.ErrorIs(t, err, ErrOrganizationNotFound)
}

func TestUserService_ParseTokenRejects(t *testing.T) {
	f := newFixture(t)
	users := NewUserService(f.store, "test-secret", time.Hour, logger.Discard())
	other := NewUserService(f.store, "other-secret", time.Hour, logger.Discard())
	ctx := context.Background()

	_, err := users.CreateUser(ctx, models.RegisterRequest{Email: "dev@b.org", Password: "long enough", Role: models.RoleDeveloper})
	require.NoError(t, err)
	token, _, err := users.Login(ctx, "dev@b.org", "long enough")
	require.NoError(t, err)

	_, err = other.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	users.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = users.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = users.ParseToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
