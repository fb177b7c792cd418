package store

import (
	"context"
	"time"

	"infrabondx/pkg/domain"
)

type User struct {
	UserID       string
	Name         string
	Email        string
	PasswordHash string
	Role         domain.Role
	CreatedAt    time.Time
}

func (s *Store) CreateUser(ctx context.Context, u User) error {
	_, err := s.q.ExecContext(ctx, `INSERT INTO users(user_id,name,email,password_hash,role,created_at)
VALUES($1,$2,$3,$4,$5,$6)`,
		u.UserID, u.Name, u.Email, u.PasswordHash, string(u.Role), u.CreatedAt.UnixMilli())
	return err
}

func (s *Store) GetUser(ctx context.Context, userID string) (User, error) {
	return s.scanUser(ctx, `SELECT user_id,name,email,password_hash,role,created_at FROM users WHERE user_id=$1`, userID)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.scanUser(ctx, `SELECT user_id,name,email,password_hash,role,created_at FROM users WHERE email=$1`, email)
}

func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

func (s *Store) scanUser(ctx context.Context, query string, arg any) (User, error) {
	var u User
	var role string
	var createdAt int64
	err := s.q.QueryRowContext(ctx, query, arg).
		Scan(&u.UserID, &u.Name, &u.Email, &u.PasswordHash, &role, &createdAt)
	if err != nil {
		return User{}, notFound(err)
	}
	u.Role = domain.Role(role)
	u.CreatedAt = fromMillis(createdAt)
	return u, nil
}
