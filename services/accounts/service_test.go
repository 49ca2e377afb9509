package accounts

import (
	"context"
	"database/sql"
	"testing"

	"github.com/mazen160/go-random"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func newTestService(t *testing.T) Service {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	service, err := NewService(db, "test-secret")
	require.NoError(t, err)
	return service
}

func TestNewServiceRequiresSecret(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = NewService(db, "")
	require.Error(t, err)
}

func TestAddAndListRedactsPasswords(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	password, err := random.String(24)
	require.NoError(t, err)

	id, err := service.AddAccount(ctx, "a@example.com", password, "psn")
	require.NoError(t, err)
	require.NotZero(t, id)

	listed, err := service.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, "a@example.com", listed[0].Email)
	require.Equal(t, "psn", listed[0].Service)
	require.Empty(t, listed[0].Password)
}

func TestGetAccountsForUseDecrypts(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	_, err := service.AddAccount(ctx, "a@example.com", "hunter2", "psn")
	require.NoError(t, err)
	_, err = service.AddAccount(ctx, "b@example.com", "swordfish", "steam")
	require.NoError(t, err)

	accounts, err := service.GetAccountsForUse(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	// insertion order
	require.Equal(t, "a@example.com", accounts[0].Email)
	require.Equal(t, "hunter2", accounts[0].Password)
	require.Equal(t, "b@example.com", accounts[1].Email)
	require.Equal(t, "swordfish", accounts[1].Password)
}

func TestPasswordsAreNotStoredInPlaintext(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	service, err := NewService(db, "test-secret")
	require.NoError(t, err)

	_, err = service.AddAccount(context.Background(), "a@example.com", "hunter2", "psn")
	require.NoError(t, err)

	var stored string
	err = db.QueryRow(`SELECT encrypted_password FROM shift_accounts`).Scan(&stored)
	require.NoError(t, err)
	require.NotEqual(t, "hunter2", stored)
	require.NotContains(t, stored, "hunter2")
}

func TestRemoveAccount(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	id, err := service.AddAccount(ctx, "a@example.com", "hunter2", "psn")
	require.NoError(t, err)

	err = service.RemoveAccount(ctx, id)
	require.NoError(t, err)

	listed, err := service.ListAccounts(ctx)
	require.NoError(t, err)
	require.Empty(t, listed)

	err = service.RemoveAccount(ctx, id)
	require.Error(t, err)
}
