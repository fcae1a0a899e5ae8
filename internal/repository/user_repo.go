package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"contacts-api/internal/db"
	"contacts-api/internal/domain"
)

// ErrDuplicateEmail indica que ya existe un usuario con ese email.
var ErrDuplicateEmail = errors.New("email already registered")

const pgUniqueViolation = "23505"

// UserRepository define el contrato de persistencia para usuarios.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByEmailForUpdate(ctx context.Context, email string) (domain.User, error)
	UpdateRefreshToken(ctx context.Context, id string, token *string) error
	MarkVerified(ctx context.Context, id string) error
	UpdateAvatar(ctx context.Context, id string, avatar *string) (domain.User, error)
}

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

const userColumns = `id, email, username, password_hash, verified, refresh_token, avatar, created_at`

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) error {
	const query = `
		INSERT INTO users (id, email, username, password_hash, verified, refresh_token, avatar, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := db.Conn(ctx, r.pool).Exec(ctx, query,
		user.ID,
		user.Email,
		user.Username,
		user.PasswordHash,
		user.Verified,
		user.RefreshToken,
		user.Avatar,
		user.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicateEmail
	}
	return err
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(db.Conn(ctx, r.pool).QueryRow(ctx, query, email))
}

// GetByEmailForUpdate bloquea la fila hasta el fin de la transaccion en curso.
func (r *PgUserRepository) GetByEmailForUpdate(ctx context.Context, email string) (domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1 FOR UPDATE`
	return scanUser(db.Conn(ctx, r.pool).QueryRow(ctx, query, email))
}

func (r *PgUserRepository) UpdateRefreshToken(ctx context.Context, id string, token *string) error {
	const query = `UPDATE users SET refresh_token = $1 WHERE id = $2`
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, query, token, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgUserRepository) MarkVerified(ctx context.Context, id string) error {
	const query = `UPDATE users SET verified = TRUE WHERE id = $1`
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgUserRepository) UpdateAvatar(ctx context.Context, id string, avatar *string) (domain.User, error) {
	const query = `UPDATE users SET avatar = $1 WHERE id = $2 RETURNING ` + userColumns
	return scanUser(db.Conn(ctx, r.pool).QueryRow(ctx, query, avatar, id))
}

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.PasswordHash,
		&u.Verified,
		&u.RefreshToken,
		&u.Avatar,
		&u.CreatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}
