package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/accounts-api/internal/models"
	appErrors "github.com/noah-isme/accounts-api/pkg/errors"
)

func newUserFixture() (*UserService, *mockUserRepo, *mockSessions) {
	repo := newMockUserRepo()
	sessions := newMockSessions()
	svc := NewUserService(repo, sessions, validator.New(), zap.NewNop())
	return svc, repo, sessions
}

type mockUserRepo struct {
	*mockUserStore
	roleUpdates map[string]models.UserRole
	deactivated []string
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{mockUserStore: newMockUserStore(), roleUpdates: map[string]models.UserRole{}}
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	var out []models.User
	for _, user := range m.byID {
		out = append(out, *user)
	}
	return out, len(out), nil
}

func (m *mockUserRepo) UpdateRole(ctx context.Context, id string, role models.UserRole) error {
	m.roleUpdates[id] = role
	if user, ok := m.byID[id]; ok {
		user.Role = role
	}
	return nil
}

func (m *mockUserRepo) SetActive(ctx context.Context, id string, active bool) error {
	if !active {
		m.deactivated = append(m.deactivated, id)
	}
	if user, ok := m.byID[id]; ok {
		user.IsActive = active
	}
	return nil
}

func TestUserServiceUpdateRole(t *testing.T) {
	svc, repo, _ := newUserFixture()
	repo.add(&models.User{ID: "u1", Email: "user@example.com", Role: models.RoleUser, IsActive: true})

	user, err := svc.UpdateRole(context.Background(), "u1", models.UpdateRoleRequest{Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, user.Role)
	assert.Equal(t, models.RoleAdmin, repo.roleUpdates["u1"])
}

func TestUserServiceUpdateRoleUnknownUser(t *testing.T) {
	svc, _, _ := newUserFixture()

	_, err := svc.UpdateRole(context.Background(), "ghost", models.UpdateRoleRequest{Role: models.RoleAdmin})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUserServiceUpdateRoleRejectsBadRole(t *testing.T) {
	svc, repo, _ := newUserFixture()
	repo.add(&models.User{ID: "u1", Email: "user@example.com", Role: models.RoleUser, IsActive: true})

	_, err := svc.UpdateRole(context.Background(), "u1", models.UpdateRoleRequest{Role: "superuser"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceDeactivateRevokesSessions(t *testing.T) {
	svc, repo, sessions := newUserFixture()
	repo.add(&models.User{ID: "u1", Email: "user@example.com", Role: models.RoleUser, IsActive: true})
	_, err := sessions.Create(context.Background(), "u1", "sid-a", "", models.DeviceInfo{}, time.Now().Add(time.Hour))
	require.NoError(t, err)
	_, err = sessions.Create(context.Background(), "u1", "sid-b", "", models.DeviceInfo{}, time.Now().Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(context.Background(), "u1"))

	assert.Contains(t, repo.deactivated, "u1")
	for _, s := range sessions.bySID {
		assert.False(t, s.IsActive)
	}
}

func TestUserServiceListPaginationDefaults(t *testing.T) {
	svc, repo, _ := newUserFixture()
	repo.add(&models.User{ID: "u1", Email: "user@example.com", Role: models.RoleUser, IsActive: true})

	users, pagination, err := svc.List(context.Background(), models.UserFilter{})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 1, pagination.TotalCount)
}
