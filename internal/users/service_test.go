package users

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madvasya/lz-app-backend/internal/auth"
	"github.com/madvasya/lz-app-backend/internal/platform/httpx"
	"github.com/madvasya/lz-app-backend/internal/shared"
)

type mockRepository struct {
	nextID   int64
	users    map[int64]User
	sessions map[int64]int // live session count per user
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		nextID:   1,
		users:    make(map[int64]User),
		sessions: make(map[int64]int),
	}
}

func (m *mockRepository) addUser(username, password string, super bool) User {
	hash, _ := auth.HashPassword(password)
	user := User{
		ID:           m.nextID,
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		IsSuperadmin: super,
		CreatedOn:    time.Now().UTC(),
	}
	m.nextID++
	m.users[user.ID] = user
	return user
}

func (m *mockRepository) List(ctx context.Context, params shared.ListParams) ([]User, int64, error) {
	users := make([]User, 0, len(m.users))
	for _, user := range m.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	total := int64(len(users))
	if params.Offset > 0 {
		if params.Offset >= len(users) {
			users = nil
		} else {
			users = users[params.Offset:]
		}
	}
	if params.Limit > 0 && params.Limit < len(users) {
		users = users[:params.Limit]
	}
	return users, total, nil
}

func (m *mockRepository) GetByID(ctx context.Context, id int64) (User, error) {
	user, ok := m.users[id]
	if !ok {
		return User{}, fmt.Errorf("%w: user %d", httpx.ErrNotFound, id)
	}
	return user, nil
}

func (m *mockRepository) GetByUsername(ctx context.Context, username string) (User, error) {
	for _, user := range m.users {
		if user.Username == username {
			return user, nil
		}
	}
	return User{}, fmt.Errorf("%w: user %q", httpx.ErrNotFound, username)
}

func (m *mockRepository) Create(ctx context.Context, user User) (User, error) {
	for _, other := range m.users {
		if other.Username == user.Username {
			return User{}, fmt.Errorf("%w: username %q already registered", httpx.ErrConflict, user.Username)
		}
		if other.Email == user.Email {
			return User{}, fmt.Errorf("%w: email %q already registered", httpx.ErrConflict, user.Email)
		}
	}
	user.ID = m.nextID
	m.nextID++
	user.CreatedOn = time.Now().UTC()
	m.users[user.ID] = user
	return user, nil
}

func (m *mockRepository) Update(ctx context.Context, user User) error {
	if _, ok := m.users[user.ID]; !ok {
		return fmt.Errorf("%w: user %d", httpx.ErrNotFound, user.ID)
	}
	for _, other := range m.users {
		if other.ID != user.ID && other.Username == user.Username {
			return fmt.Errorf("%w: username %q already registered", httpx.ErrConflict, user.Username)
		}
	}
	user.EditedOn = time.Now().UTC()
	m.users[user.ID] = user
	return nil
}

func (m *mockRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	user, ok := m.users[id]
	if !ok {
		return fmt.Errorf("%w: user %d", httpx.ErrNotFound, id)
	}
	user.PasswordHash = passwordHash
	m.users[id] = user
	// The real repository deletes the user's session rows in the same
	// transaction as the hash update.
	m.sessions[id] = 0
	return nil
}

func (m *mockRepository) Delete(ctx context.Context, id int64) error {
	if _, ok := m.users[id]; !ok {
		return fmt.Errorf("%w: user %d", httpx.ErrNotFound, id)
	}
	delete(m.users, id)
	delete(m.sessions, id)
	return nil
}

var _ RepositoryPort = (*mockRepository)(nil)

type testActor struct {
	id    int64
	super bool
}

func (a testActor) GetID() int64      { return a.id }
func (a testActor) IsSuperUser() bool { return a.super }

func TestCreateUser(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)
	ctx := context.Background()

	user, err := service.Create(ctx, CreateUser{
		Username: " petrov ",
		Email:    "petrov@example.com",
		FullName: "Petr Petrov",
		Password: "super-secret-pw",
	})
	require.NoError(t, err)
	assert.Equal(t, "petrov", user.Username)
	assert.True(t, auth.VerifyPassword("super-secret-pw", user.PasswordHash))
	assert.False(t, user.IsSuperadmin)

	_, err = service.Create(ctx, CreateUser{Username: "petrov", Email: "x@example.com", Password: "super-secret-pw"})
	assert.ErrorIs(t, err, httpx.ErrConflict)

	_, err = service.Create(ctx, CreateUser{Username: "  ", Password: "super-secret-pw"})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestUpdateUser(t *testing.T) {
	repo := newMockRepository()
	user := repo.addUser("petrov", "super-secret-pw", false)
	other := repo.addUser("sidorov", "super-secret-pw", false)
	admin := repo.addUser("admin", "super-secret-pw", true)
	service := NewService(repo)
	ctx := context.Background()

	fullName := "Petr Petrov"
	updated, err := service.Update(ctx, user.ID, UserPatch{FullName: &fullName})
	require.NoError(t, err)
	assert.Equal(t, "Petr Petrov", updated.FullName)
	assert.Equal(t, "petrov", updated.Username, "untouched fields survive a partial update")
	assert.False(t, updated.EditedOn.IsZero())

	taken := other.Username
	_, err = service.Update(ctx, user.ID, UserPatch{Username: &taken})
	assert.ErrorIs(t, err, httpx.ErrConflict)

	_, err = service.Update(ctx, admin.ID, UserPatch{FullName: &fullName})
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	_, err = service.Update(ctx, 999, UserPatch{FullName: &fullName})
	assert.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestChangePassword(t *testing.T) {
	repo := newMockRepository()
	user := repo.addUser("petrov", "super-secret-pw", false)
	repo.sessions[user.ID] = 2
	service := NewService(repo)
	ctx := context.Background()

	err := service.ChangePassword(ctx, user.ID, "wrong-password", "brand-new-pw")
	require.ErrorIs(t, err, httpx.ErrValidation)
	assert.Equal(t, 2, repo.sessions[user.ID], "failed change must not drop sessions")

	require.NoError(t, service.ChangePassword(ctx, user.ID, "super-secret-pw", "brand-new-pw"))
	assert.True(t, auth.VerifyPassword("brand-new-pw", repo.users[user.ID].PasswordHash))
	assert.Equal(t, 0, repo.sessions[user.ID], "password change drops live sessions")
}

func TestChangePasswordAllowedForSuperadmin(t *testing.T) {
	repo := newMockRepository()
	admin := repo.addUser("admin", "super-secret-pw", true)
	service := NewService(repo)

	err := service.ChangePassword(context.Background(), admin.ID, "super-secret-pw", "brand-new-pw")
	require.NoError(t, err)
	assert.True(t, auth.VerifyPassword("brand-new-pw", repo.users[admin.ID].PasswordHash))
}

func TestResetPassword(t *testing.T) {
	repo := newMockRepository()
	user := repo.addUser("petrov", "super-secret-pw", false)
	admin := repo.addUser("admin", "super-secret-pw", true)
	otherAdmin := repo.addUser("admin2", "super-secret-pw", true)
	repo.sessions[user.ID] = 1
	service := NewService(repo)
	ctx := context.Background()

	// Non-superadmin actors are rejected outright.
	err := service.ResetPassword(ctx, testActor{id: user.ID}, admin.ID, "brand-new-pw")
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	// Superadmins cannot reset their own password through this path.
	err = service.ResetPassword(ctx, testActor{id: admin.ID, super: true}, admin.ID, "brand-new-pw")
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	// Nor another superadmin's.
	err = service.ResetPassword(ctx, testActor{id: admin.ID, super: true}, otherAdmin.ID, "brand-new-pw")
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	// A regular target works and loses every session.
	require.NoError(t, service.ResetPassword(ctx, testActor{id: admin.ID, super: true}, user.ID, "brand-new-pw"))
	assert.True(t, auth.VerifyPassword("brand-new-pw", repo.users[user.ID].PasswordHash))
	assert.Equal(t, 0, repo.sessions[user.ID])
}

func TestDeleteUser(t *testing.T) {
	repo := newMockRepository()
	user := repo.addUser("petrov", "super-secret-pw", false)
	admin := repo.addUser("admin", "super-secret-pw", true)
	service := NewService(repo)
	ctx := context.Background()
	actor := testActor{id: admin.ID, super: true}

	assert.ErrorIs(t, service.Delete(ctx, actor, admin.ID), httpx.ErrForbidden)
	assert.ErrorIs(t, service.Delete(ctx, testActor{id: user.ID}, admin.ID), httpx.ErrForbidden)
	assert.ErrorIs(t, service.Delete(ctx, actor, 999), httpx.ErrNotFound)

	require.NoError(t, service.Delete(ctx, actor, user.ID))
	_, err := service.Get(ctx, user.ID)
	assert.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestListUsersPagination(t *testing.T) {
	repo := newMockRepository()
	for _, name := range []string{"anna", "boris", "vera"} {
		repo.addUser(name, "super-secret-pw", false)
	}
	service := NewService(repo)

	users, total, err := service.List(context.Background(), shared.ListParams{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, users, 1)
	assert.Equal(t, "boris", users[0].Username)
}
