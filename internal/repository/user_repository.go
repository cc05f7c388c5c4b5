package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/session-service/internal/domain"
)

const usersTable = "users"

var userColumns = []string{"id", "username", "password_hash", "nickname", "role", "created_at", "updated_at"}

// DBTX is the subset of pgxpool.Pool the repositories rely on.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserRepository defines persistence access for account records. The auth
// core treats it as an opaque keyed store of principals.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	FindBySubject(ctx context.Context, subject string) (*domain.User, error)
	ExistsBySubject(ctx context.Context, subject string) (bool, error)
	ExistsByNickname(ctx context.Context, nickname string) (bool, error)
	DeleteBySubject(ctx context.Context, subject string) (int64, error)
	UpdatePasswordHash(ctx context.Context, subject, hash string) error
	UpdateNickname(ctx context.Context, subject, nickname string) error
	UpdateRole(ctx context.Context, subject string, role domain.Role) error
}

type userRepository struct {
	db DBTX
	qb sq.StatementBuilderType
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepository{
		db: db,
		qb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	query, args, err := r.qb.Insert(usersTable).
		Columns("username", "password_hash", "nickname", "role").
		Values(user.Username, user.PasswordHash, user.Nickname, string(user.Role)).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return err
	}
	return r.db.QueryRow(ctx, query, args...).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}

// FindBySubject returns pgx.ErrNoRows when no account exists.
func (r *userRepository) FindBySubject(ctx context.Context, subject string) (*domain.User, error) {
	query, args, err := r.qb.Select(userColumns...).
		From(usersTable).
		Where(sq.Eq{"username": subject}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var (
		user domain.User
		role string
	)
	if err := r.db.QueryRow(ctx, query, args...).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Nickname,
		&role,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	user.Role = domain.Role(role)
	return &user, nil
}

func (r *userRepository) ExistsBySubject(ctx context.Context, subject string) (bool, error) {
	return r.exists(ctx, sq.Eq{"username": subject})
}

func (r *userRepository) ExistsByNickname(ctx context.Context, nickname string) (bool, error) {
	return r.exists(ctx, sq.Eq{"nickname": nickname})
}

func (r *userRepository) exists(ctx context.Context, pred sq.Eq) (bool, error) {
	query, args, err := r.qb.Select("COUNT(1) > 0").From(usersTable).Where(pred).ToSql()
	if err != nil {
		return false, err
	}
	var found bool
	if err := r.db.QueryRow(ctx, query, args...).Scan(&found); err != nil {
		return false, err
	}
	return found, nil
}

// DeleteBySubject reports the number of removed rows; zero is not an error here.
func (r *userRepository) DeleteBySubject(ctx context.Context, subject string) (int64, error) {
	query, args, err := r.qb.Delete(usersTable).Where(sq.Eq{"username": subject}).ToSql()
	if err != nil {
		return 0, err
	}
	cmd, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *userRepository) UpdatePasswordHash(ctx context.Context, subject, hash string) error {
	return r.update(ctx, subject, "password_hash", hash)
}

func (r *userRepository) UpdateNickname(ctx context.Context, subject, nickname string) error {
	return r.update(ctx, subject, "nickname", nickname)
}

func (r *userRepository) UpdateRole(ctx context.Context, subject string, role domain.Role) error {
	return r.update(ctx, subject, "role", string(role))
}

func (r *userRepository) update(ctx context.Context, subject, column string, value any) error {
	query, args, err := r.qb.Update(usersTable).
		Set(column, value).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"username": subject}).
		ToSql()
	if err != nil {
		return err
	}
	cmd, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
