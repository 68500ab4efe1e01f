package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"truckmarket/internal/types"
)

func TestUserRepository_GetByEmail_DefaultsPreference(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserRepository(db)

	db.On("QueryRow", mock.Anything, sqlContains("LOWER(u.email) = LOWER($1)"), []any{"Jo@Example.com"}).
		Return(rowOf("usr_1", "jo@example.com", "Jo Hauler", "$2a$hash", nil, nil, testNow, testNow))

	u, err := repo.GetByEmail(context.Background(), "Jo@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "usr_1", u.ID)
	assert.Equal(t, "Jo Hauler", u.FullName)
	assert.Equal(t, types.EmailPrefEach, u.MessageEmailPref)
	assert.Nil(t, u.EmailVerifiedAt)
	require.NotNil(t, u.LastLoginAt)
	assert.Equal(t, testNow, *u.LastLoginAt)
}

func TestUserRepository_GetByEmail_Missing(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserRepository(db)

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	_, err := repo.GetByEmail(context.Background(), "nobody@example.com")
	requireAppCode(t, err, types.ErrCodeAuthUserNotFound)
}

func TestUserRepository_Create_DuplicateEmail(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserRepository(db)

	db.On("Exec", mock.Anything, sqlContains("INSERT INTO users"), mock.Anything).
		Return(pgconn.CommandTag{}, &pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), &types.User{ID: "usr_2", Email: "jo@example.com"})
	requireAppCode(t, err, types.ErrCodeConflictEmail)
}

func TestUserRepository_Create_DefaultPreference(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserRepository(db)

	db.On("Exec", mock.Anything, sqlContains("INSERT INTO users"), mock.MatchedBy(func(args []any) bool {
		name, _ := args[2].(*string)
		return args[4] == "each" && name == nil
	})).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	require.NoError(t, repo.Create(context.Background(), &types.User{ID: "usr_3", Email: "a@b.co", PasswordHash: "h"}))
	db.AssertExpectations(t)
}

func TestUserRepository_UpdateEmailPref_UnknownUser(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserRepository(db)

	db.On("Exec", mock.Anything, sqlContains("message_email_pref = $2"), []any{"usr_x", "daily"}).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := repo.UpdateEmailPref(context.Background(), "usr_x", types.EmailPrefDaily)
	requireAppCode(t, err, types.ErrCodeNotFoundUser)
}

func TestUserRepository_GetAdminByEmail(t *testing.T) {
	db := new(mockDBTX)
	repo := NewUserRepository(db)

	db.On("QueryRow", mock.Anything, sqlContains("FROM admins"), []any{"ops@example.com"}).
		Return(rowOf("adm_1", "ops@example.com", nil, "$2a$hash", testNow))

	a, err := repo.GetAdminByEmail(context.Background(), "ops@example.com")
	require.NoError(t, err)
	assert.Equal(t, "adm_1", a.ID)
	assert.Empty(t, a.Name)
}
