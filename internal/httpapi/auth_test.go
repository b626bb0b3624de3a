package httpapi

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuelos/backend/internal/domain"
)

const (
	testSecret = "0123456789abcdef0123456789abcdef"
	testPIN    = "739154"
)

type userStoreStub struct {
	mu      sync.Mutex
	users   map[string]domain.UserAccount
	updates int
}

func (s *userStoreStub) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = make(map[string]domain.UserAccount)
	}
	s.users[user.Username] = user
	return nil
}

func (s *userStoreStub) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *userStoreStub) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[username]
	user.Password = password
	s.users[username] = user
	s.updates++
	return nil
}

func legacyAdminStore() *userStoreStub {
	return &userStoreStub{
		users: map[string]domain.UserAccount{
			"admin": {
				Username:  "admin",
				Password:  "admin123",
				Role:      domain.RoleAdmin,
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}
}

func TestNewAuthManagerRequiresSecret(t *testing.T) {
	_, err := NewAuthManager(context.Background(), "  ", time.Hour, testPIN, nil)
	assert.Error(t, err)
}

func TestAuthManagerUpgradesLegacyPlainPassword(t *testing.T) {
	store := legacyAdminStore()
	manager, err := NewAuthManager(context.Background(), testSecret, time.Hour, testPIN, store)
	require.NoError(t, err)

	_, err = manager.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "admin123"})
	require.NoError(t, err)

	users, err := store.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.NotEqual(t, "admin123", users[0].Password)
	assert.True(t, strings.HasPrefix(users[0].Password, "$2"), "expected bcrypt hash, got %s", users[0].Password)
	assert.GreaterOrEqual(t, store.updates, 1)
}

func TestLoginIssuesTokenCarryingRole(t *testing.T) {
	manager, err := NewAuthManager(context.Background(), testSecret, time.Hour, testPIN, legacyAdminStore())
	require.NoError(t, err)

	resp, err := manager.Login(context.Background(), domain.LoginRequest{Username: " ADMIN ", Password: "admin123"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, resp.Role)

	actor, err := manager.ParseToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, domain.Actor{Username: "admin", Role: domain.RoleAdmin}, actor)
}

func TestParseTokenRejectsForeignSignature(t *testing.T) {
	issuer, err := NewAuthManager(context.Background(), strings.Repeat("x", 32), time.Hour, testPIN, legacyAdminStore())
	require.NoError(t, err)
	verifier, err := NewAuthManager(context.Background(), testSecret, time.Hour, testPIN, legacyAdminStore())
	require.NoError(t, err)

	resp, err := issuer.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "admin123"})
	require.NoError(t, err)

	_, err = verifier.ParseToken(resp.AccessToken)
	assert.Error(t, err)
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	store := legacyAdminStore()
	store.users["retired"] = domain.UserAccount{Username: "retired", Password: "retired123", Role: domain.RoleOperator}
	manager, err := NewAuthManager(context.Background(), testSecret, time.Hour, testPIN, store)
	require.NoError(t, err)

	_, err = manager.Login(context.Background(), domain.LoginRequest{Username: "retired", Password: "retired123"})
	assert.ErrorIs(t, err, ErrInactiveAccount)

	_, err = manager.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "nope"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCreateOperatorStoresPasswordHash(t *testing.T) {
	store := legacyAdminStore()
	manager, err := NewAuthManager(context.Background(), testSecret, time.Hour, testPIN, store)
	require.NoError(t, err)

	operator, err := manager.CreateOperator(context.Background(), domain.OperatorCreateRequest{
		Username: "Ravi.K",
		Password: "pass1234",
	})
	require.NoError(t, err)
	assert.Equal(t, "ravi.k", operator.Username)
	assert.Equal(t, domain.RoleOperator, operator.Role)

	saved, ok := store.users["ravi.k"]
	require.True(t, ok, "expected operator to be saved")
	assert.NotEqual(t, "pass1234", saved.Password)
	assert.True(t, strings.HasPrefix(saved.Password, "$2"))

	_, err = manager.Login(context.Background(), domain.LoginRequest{Username: "ravi.k", Password: "pass1234"})
	require.NoError(t, err)

	_, err = manager.CreateOperator(context.Background(), domain.OperatorCreateRequest{Username: "ravi.k", Password: "another123"})
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestCreateOperatorValidatesInput(t *testing.T) {
	manager, err := NewAuthManager(context.Background(), testSecret, time.Hour, testPIN, legacyAdminStore())
	require.NoError(t, err)

	for name, req := range map[string]domain.OperatorCreateRequest{
		"short username": {Username: "abc", Password: "pass1234"},
		"spaces":         {Username: "ravi kumar", Password: "pass1234"},
		"short password": {Username: "ravikumar", Password: "short"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := manager.CreateOperator(context.Background(), req)
			assert.Error(t, err)
		})
	}
}

func TestListOperatorsExcludesOtherRoles(t *testing.T) {
	manager, err := NewAuthManager(context.Background(), testSecret, time.Hour, testPIN, legacyAdminStore())
	require.NoError(t, err)
	for _, name := range []string{"zara", "arun"} {
		_, err := manager.CreateOperator(context.Background(), domain.OperatorCreateRequest{Username: name + "op", Password: "pass1234"})
		require.NoError(t, err)
	}

	operators, err := manager.ListOperators(context.Background())
	require.NoError(t, err)
	require.Len(t, operators, 2)
	assert.Equal(t, "arunop", operators[0].Username)
	assert.Equal(t, "zaraop", operators[1].Username)
}

func TestManagerPINIsHashedAndStillValidates(t *testing.T) {
	manager, err := NewAuthManager(context.Background(), testSecret, time.Hour, "654321", &userStoreStub{})
	require.NoError(t, err)

	assert.NotEqual(t, "654321", string(manager.managerPIN))
	assert.True(t, manager.ValidateManagerPIN("654321"))
	assert.True(t, manager.ValidateManagerPIN(" 654321 "))
	assert.False(t, manager.ValidateManagerPIN("111111"))
	assert.False(t, manager.ValidateManagerPIN(""))
}

func TestEmptyManagerPINLocksAudits(t *testing.T) {
	manager, err := NewAuthManager(context.Background(), testSecret, time.Hour, "", &userStoreStub{})
	require.NoError(t, err)
	assert.False(t, manager.ValidateManagerPIN(""))
	assert.False(t, manager.ValidateManagerPIN("000000"))
}
