package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/accounts-api/internal/models"
)

type mockMethodRepo struct {
	byID        map[string]*models.AuthMethod
	byUserProv  map[string]*models.AuthMethod
	byProvident map[string]*models.AuthMethod
	touched     []string
}

func newMockMethodRepo() *mockMethodRepo {
	return &mockMethodRepo{
		byID:        map[string]*models.AuthMethod{},
		byUserProv:  map[string]*models.AuthMethod{},
		byProvident: map[string]*models.AuthMethod{},
	}
}

func (m *mockMethodRepo) store(method *models.AuthMethod) {
	m.byID[method.ID] = method
	m.byUserProv[method.UserID+"/"+method.Provider] = method
	if method.ProviderID.Valid {
		m.byProvident[method.Provider+"/"+method.ProviderID.String] = method
	}
}

func (m *mockMethodRepo) CreatePassword(ctx context.Context, userID, passwordHash string, isPrimary bool) (*models.AuthMethod, error) {
	method := &models.AuthMethod{
		ID:           "pm-" + userID,
		UserID:       userID,
		Provider:     string(models.ProviderPassword),
		PasswordHash: sql.NullString{String: passwordHash, Valid: true},
		IsPrimary:    isPrimary,
		CreatedAt:    time.Now().UTC(),
	}
	m.store(method)
	return method, nil
}

func (m *mockMethodRepo) CreateOAuth(ctx context.Context, userID string, provider models.AuthProvider, providerID string, isPrimary bool) (*models.AuthMethod, error) {
	method := &models.AuthMethod{
		ID:         "om-" + userID + "-" + string(provider),
		UserID:     userID,
		Provider:   string(provider),
		ProviderID: sql.NullString{String: providerID, Valid: true},
		IsPrimary:  isPrimary,
		IsVerified: true,
		CreatedAt:  time.Now().UTC(),
	}
	m.store(method)
	return method, nil
}

func (m *mockMethodRepo) FindByUserAndProvider(ctx context.Context, userID string, provider models.AuthProvider) (*models.AuthMethod, error) {
	method, ok := m.byUserProv[userID+"/"+string(provider)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return method, nil
}

func (m *mockMethodRepo) FindByProviderID(ctx context.Context, provider models.AuthProvider, providerID string) (*models.AuthMethod, error) {
	method, ok := m.byProvident[string(provider)+"/"+providerID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return method, nil
}

func (m *mockMethodRepo) ListByUser(ctx context.Context, userID string) ([]models.AuthMethod, error) {
	var out []models.AuthMethod
	for _, method := range m.byID {
		if method.UserID == userID {
			out = append(out, *method)
		}
	}
	return out, nil
}

func (m *mockMethodRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if method, ok := m.byID[id]; ok {
		method.PasswordHash = sql.NullString{String: passwordHash, Valid: true}
	}
	return nil
}

func (m *mockMethodRepo) Touch(ctx context.Context, id string) error {
	m.touched = append(m.touched, id)
	return nil
}

func newMethodFixture() (*AuthMethodService, *mockMethodRepo, *mockUserStore) {
	methods := newMockMethodRepo()
	users := newMockUserStore()
	svc := NewAuthMethodService(methods, users, zap.NewNop())
	return svc, methods, users
}

func TestVerifyPasswordRoundTrip(t *testing.T) {
	svc, _, _ := newMethodFixture()

	created, err := svc.CreatePasswordAuth(context.Background(), "u1", "correct-horse", true)
	require.NoError(t, err)
	assert.True(t, created.PasswordHash.Valid)
	assert.NotContains(t, created.PasswordHash.String, "correct-horse")

	method, ok, err := svc.VerifyPassword(context.Background(), "u1", "correct-horse")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, created.ID, method.ID)
}

func TestVerifyPasswordFailuresAreUniform(t *testing.T) {
	svc, _, _ := newMethodFixture()
	_, err := svc.CreatePasswordAuth(context.Background(), "u1", "correct-horse", true)
	require.NoError(t, err)

	_, ok, err := svc.VerifyPassword(context.Background(), "u1", "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	// No password method at all looks identical to a wrong password.
	_, ok, err = svc.VerifyPassword(context.Background(), "nobody", "correct-horse")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	svc, methods, _ := newMethodFixture()
	methods.store(&models.AuthMethod{
		ID:           "pm-u1",
		UserID:       "u1",
		Provider:     string(models.ProviderPassword),
		PasswordHash: sql.NullString{String: "$not$a$real$hash", Valid: true},
	})

	_, ok, err := svc.VerifyPassword(context.Background(), "u1", "anything")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdatePasswordRehashes(t *testing.T) {
	svc, methods, _ := newMethodFixture()
	created, err := svc.CreatePasswordAuth(context.Background(), "u1", "old-password", true)
	require.NoError(t, err)
	oldHash := created.PasswordHash.String

	require.NoError(t, svc.UpdatePassword(context.Background(), created.ID, "new-password"))
	assert.NotEqual(t, oldHash, methods.byID[created.ID].PasswordHash.String)

	_, ok, err := svc.VerifyPassword(context.Background(), "u1", "new-password")
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = svc.VerifyPassword(context.Background(), "u1", "old-password")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveOAuthExistingLink(t *testing.T) {
	svc, methods, users := newMethodFixture()
	user := &models.User{ID: "u1", Email: "user@example.com", Role: models.RoleUser, IsActive: true}
	users.add(user)
	_, err := methods.CreateOAuth(context.Background(), "u1", models.ProviderGoogle, "google-123", true)
	require.NoError(t, err)

	resolved, kind, err := svc.ResolveOAuth(context.Background(), models.OAuthUserInfo{
		Provider:   models.ProviderGoogle,
		ProviderID: "google-123",
		Email:      "user@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, ResolutionExisting, kind)
	assert.Equal(t, "u1", resolved.ID)
	assert.NotEmpty(t, methods.touched)
}

func TestResolveOAuthLinksByEmail(t *testing.T) {
	svc, methods, users := newMethodFixture()
	user := &models.User{ID: "u1", Email: "user@example.com", Role: models.RoleUser, IsActive: true}
	users.add(user)

	resolved, kind, err := svc.ResolveOAuth(context.Background(), models.OAuthUserInfo{
		Provider:   models.ProviderGitHub,
		ProviderID: "gh-9",
		Email:      "User@Example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, ResolutionLinked, kind)
	assert.Equal(t, "u1", resolved.ID)

	linked, err := methods.FindByProviderID(context.Background(), models.ProviderGitHub, "gh-9")
	require.NoError(t, err)
	assert.False(t, linked.IsPrimary)
}

func TestResolveOAuthCreatesAccount(t *testing.T) {
	svc, methods, users := newMethodFixture()

	resolved, kind, err := svc.ResolveOAuth(context.Background(), models.OAuthUserInfo{
		Provider:   models.ProviderGoogle,
		ProviderID: "google-new",
		Email:      "fresh@example.com",
		Name:       "Fresh User",
	})
	require.NoError(t, err)
	assert.Equal(t, ResolutionCreated, kind)
	assert.Equal(t, "fresh@example.com", resolved.Email)
	assert.Equal(t, models.RoleUser, resolved.Role)
	assert.True(t, resolved.IsActive)
	require.Len(t, users.created, 1)

	method, err := methods.FindByProviderID(context.Background(), models.ProviderGoogle, "google-new")
	require.NoError(t, err)
	assert.True(t, method.IsPrimary)
}
