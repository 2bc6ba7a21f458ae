package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/medibook/medibook/libs/db"
)

var ErrNotFound = errors.New("user not found")

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
)

// User is an account record. Specialization is set for doctors only.
type User struct {
	ID             string
	Email          string
	PasswordHash   string
	Role           string
	Name           string
	Specialization string
	CreatedAt      time.Time
}

// Users is the persistence surface the HTTP handlers work against.
type Users interface {
	Create(ctx context.Context, user User) error
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	ListDoctors(ctx context.Context) ([]User, error)
}

type UserRepository struct {
	pool *db.Pool
}

var _ Users = (*UserRepository)(nil)

func NewUserRepository(pool *db.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, user User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, role, name, specialization)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, user.ID, user.Email, user.PasswordHash, user.Role, user.Name, user.Specialization)
	return err
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (User, error) {
	return r.getOne(ctx, `WHERE email = $1`, email)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (User, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

func (r *UserRepository) getOne(ctx context.Context, where string, arg any) (User, error) {
	var user User
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, role, name, COALESCE(specialization, ''), created_at
		FROM users
	`+where, arg).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Role,
		&user.Name, &user.Specialization, &user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (r *UserRepository) ListDoctors(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, email, password_hash, role, name, COALESCE(specialization, ''), created_at
		FROM users
		WHERE role = $1
		ORDER BY name
	`, RoleDoctor)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	doctors := []User{}
	for rows.Next() {
		var user User
		if err := rows.Scan(
			&user.ID, &user.Email, &user.PasswordHash, &user.Role,
			&user.Name, &user.Specialization, &user.CreatedAt,
		); err != nil {
			return nil, err
		}
		doctors = append(doctors, user)
	}
	return doctors, rows.Err()
}
