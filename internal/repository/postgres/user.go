package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/tradielink/internal/apperr"
	"github.com/lalith-99/tradielink/internal/models"
)

const uniqueViolation = "23505"

const userColumns = `
	id, role, first_name, last_name, about, company_name, address,
	occupation, price_per_hour, experience_years, certifications,
	photo_url, email, password_hash, created_at`

type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.Role,
		&u.FirstName,
		&u.LastName,
		&u.About,
		&u.CompanyName,
		&u.Address,
		&u.Occupation,
		&u.PricePerHour,
		&u.ExperienceYears,
		&u.Certifications,
		&u.PhotoURL,
		&u.Email,
		&u.PasswordHash,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if u.Certifications == nil {
		u.Certifications = []string{}
	}
	return &u, nil
}

// Create inserts a new user row. Postgres generates the id and timestamp.
func (s *UserStore) Create(ctx context.Context, nu models.NewUser) (*models.User, error) {
	certs := nu.Certifications
	if certs == nil {
		certs = []string{}
	}

	query := `
		INSERT INTO users (
			role, first_name, last_name, about, company_name, address,
			occupation, price_per_hour, experience_years, certifications,
			photo_url, email, password_hash, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now())
		RETURNING` + userColumns

	u, err := scanUser(s.pool.QueryRow(ctx, query,
		nu.Role,
		nu.FirstName,
		nu.LastName,
		nu.About,
		nu.CompanyName,
		nu.Address,
		nu.Occupation,
		nu.PricePerHour,
		nu.ExperienceYears,
		certs,
		nu.PhotoURL,
		nu.Email,
		nu.PasswordHash,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, apperr.Conflict("Email already registered.")
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// Update leaves role, email and created_at alone. An empty PasswordHash
// keeps the stored one.
func (s *UserStore) Update(ctx context.Context, userID int64, p models.NewUser) (*models.User, error) {
	certs := p.Certifications
	if certs == nil {
		certs = []string{}
	}

	query := `
		UPDATE users SET
			first_name = $2, last_name = $3, about = $4,
			company_name = $5, address = $6,
			occupation = $7, price_per_hour = $8, experience_years = $9,
			certifications = $10, photo_url = $11,
			password_hash = COALESCE(NULLIF($12, ''), password_hash)
		WHERE id = $1
		RETURNING` + userColumns

	u, err := scanUser(s.pool.QueryRow(ctx, query,
		userID,
		p.FirstName,
		p.LastName,
		p.About,
		p.CompanyName,
		p.Address,
		p.Occupation,
		p.PricePerHour,
		p.ExperienceYears,
		certs,
		p.PhotoURL,
		p.PasswordHash,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByID(ctx context.Context, userID int64) (*models.User, error) {
	query := `SELECT` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(s.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetByEmail is used by login and the duplicate check on register.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT` + userColumns + ` FROM users WHERE email = $1 LIMIT 1`

	u, err := scanUser(s.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *UserStore) ListByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	query := `SELECT` + userColumns + `
		FROM users
		WHERE role = $1
		ORDER BY first_name, last_name, id`

	rows, err := s.pool.Query(ctx, query, role)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}
