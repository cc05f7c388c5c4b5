package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/session-service/internal/domain"
)

type fakeRow struct {
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

type fakeDB struct {
	sql  string
	args []any
	tag  pgconn.CommandTag
	row  fakeRow
	err  error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql, f.args = sql, args
	return f.tag, f.err
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.sql, f.args = sql, args
	return f.row
}

func TestUserRepository_DeleteBySubject(t *testing.T) {
	db := &fakeDB{tag: pgconn.NewCommandTag("DELETE 1")}
	repo := NewUserRepository(db)

	rows, err := repo.DeleteBySubject(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
	assert.Equal(t, "DELETE FROM users WHERE username = $1", db.sql)
	assert.Equal(t, []any{"alice"}, db.args)

	db.tag = pgconn.NewCommandTag("DELETE 0")
	rows, err = repo.DeleteBySubject(context.Background(), "alice")
	require.NoError(t, err)
	assert.Zero(t, rows)
}

func TestUserRepository_UpdateMissingRow(t *testing.T) {
	db := &fakeDB{tag: pgconn.NewCommandTag("UPDATE 0")}
	repo := NewUserRepository(db)

	err := repo.UpdateRole(context.Background(), "ghost", domain.RoleManager)
	assert.True(t, errors.Is(err, pgx.ErrNoRows))
	assert.Contains(t, db.sql, "UPDATE users SET role = $1, updated_at = NOW() WHERE username = $2")
	assert.Equal(t, []any{"MANAGER", "ghost"}, db.args)
}

func TestUserRepository_FindBySubject(t *testing.T) {
	db := &fakeDB{row: fakeRow{scan: func(dest ...any) error {
		*dest[0].(*int64) = 7
		*dest[1].(*string) = "alice"
		*dest[2].(*string) = "hash"
		*dest[3].(*string) = "Al"
		*dest[4].(*string) = "MANAGER"
		return nil
	}}}
	repo := NewUserRepository(db)

	user, err := repo.FindBySubject(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(7), user.ID)
	assert.Equal(t, domain.RoleManager, user.Role)
	assert.Contains(t, db.sql, "FROM users WHERE username = $1")

	db.row = fakeRow{scan: func(...any) error { return pgx.ErrNoRows }}
	_, err = repo.FindBySubject(context.Background(), "ghost")
	assert.True(t, errors.Is(err, pgx.ErrNoRows))
}

func TestUserRepository_Exists(t *testing.T) {
	db := &fakeDB{row: fakeRow{scan: func(dest ...any) error {
		*dest[0].(*bool) = true
		return nil
	}}}
	repo := NewUserRepository(db)

	found, err := repo.ExistsByNickname(context.Background(), "Al")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "SELECT COUNT(1) > 0 FROM users WHERE nickname = $1", db.sql)
}
