package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/tradielink/internal/models"
)

const jobColumns = `id, builder_id, title, location, trades_needed, details, status, created_at`

type JobStore struct {
	pool *pgxpool.Pool
}

func NewJobStore(pool *pgxpool.Pool) *JobStore {
	return &JobStore{pool: pool}
}

func scanJob(row pgx.Row, j *models.Job, extra ...any) error {
	dest := append([]any{
		&j.ID,
		&j.BuilderID,
		&j.Title,
		&j.Location,
		&j.TradesNeeded,
		&j.Details,
		&j.Status,
		&j.CreatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return err
	}
	if j.TradesNeeded == nil {
		j.TradesNeeded = []string{}
	}
	return nil
}

func (s *JobStore) Create(ctx context.Context, job models.Job) (*models.Job, error) {
	query := `
		INSERT INTO jobs (builder_id, title, location, trades_needed, details, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING ` + jobColumns

	var j models.Job
	err := scanJob(s.pool.QueryRow(ctx, query,
		job.BuilderID,
		job.Title,
		job.Location,
		job.TradesNeeded,
		job.Details,
		job.Status,
	), &j)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return &j, nil
}

func (s *JobStore) GetByID(ctx context.Context, jobID int64) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	var j models.Job
	if err := scanJob(s.pool.QueryRow(ctx, query, jobID), &j); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &j, nil
}

func (s *JobStore) ListByBuilder(ctx context.Context, builderID int64) ([]models.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE builder_id = $1
		ORDER BY created_at DESC, id DESC`

	rows, err := s.pool.Query(ctx, query, builderID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]models.Job, 0)
	for rows.Next() {
		var j models.Job
		if err := scanJob(rows, &j); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

func (s *JobStore) ListEnquiries(ctx context.Context, jobIDs []int64) ([]models.JobEnquiry, error) {
	enquiries := make([]models.JobEnquiry, 0)
	if len(jobIDs) == 0 {
		return enquiries, nil
	}

	query := `
		SELECT e.job_id, u.id, u.first_name, u.last_name, u.occupation
		FROM job_enquiries e
		JOIN users u ON u.id = e.tradie_id
		WHERE e.job_id = ANY($1)
		ORDER BY e.created_at ASC, u.id ASC`

	rows, err := s.pool.Query(ctx, query, jobIDs)
	if err != nil {
		return nil, fmt.Errorf("list enquiries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e           models.JobEnquiry
			first, last string
		)
		if err := rows.Scan(&e.JobID, &e.TradieID, &first, &last, &e.Occupation); err != nil {
			return nil, fmt.Errorf("scan enquiry: %w", err)
		}
		e.Name = strings.TrimSpace(first + " " + last)
		enquiries = append(enquiries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enquiries: %w", err)
	}
	return enquiries, nil
}

func (s *JobStore) ListPosted(ctx context.Context, tradieID int64) ([]models.BoardJob, error) {
	query := `
		SELECT j.id, j.builder_id, j.title, j.location, j.trades_needed, j.details, j.status, j.created_at,
		       b.first_name, b.last_name, b.company_name,
		       EXISTS (SELECT 1 FROM job_enquiries e WHERE e.job_id = j.id AND e.tradie_id = $1),
		       (SELECT COUNT(*) FROM job_enquiries e WHERE e.job_id = j.id)
		FROM jobs j
		JOIN users b ON b.id = j.builder_id
		WHERE j.status = 'posted'
		ORDER BY j.created_at DESC, j.id DESC`

	rows, err := s.pool.Query(ctx, query, tradieID)
	if err != nil {
		return nil, fmt.Errorf("list posted jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]models.BoardJob, 0)
	for rows.Next() {
		var (
			bj           models.BoardJob
			builder      models.User
			enquiryCount int64
		)
		builder.Role = models.RoleBuilder
		if err := scanJob(rows, &bj.Job,
			&builder.FirstName,
			&builder.LastName,
			&builder.CompanyName,
			&bj.HasEnquired,
			&enquiryCount,
		); err != nil {
			return nil, fmt.Errorf("scan posted job: %w", err)
		}
		bj.BuilderDisplayName = models.DisplayName(&builder)
		bj.EnquiriesCount = int(enquiryCount)
		jobs = append(jobs, bj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posted jobs: %w", err)
	}
	return jobs, nil
}

func (s *JobStore) Enquire(ctx context.Context, jobID, tradieID int64, at time.Time) error {
	query := `
		INSERT INTO job_enquiries (job_id, tradie_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (job_id, tradie_id) DO NOTHING`

	if _, err := s.pool.Exec(ctx, query, jobID, tradieID, at); err != nil {
		return fmt.Errorf("enquire on job: %w", err)
	}
	return nil
}

func (s *JobStore) CountPendingEnquiries(ctx context.Context, builderID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM job_enquiries e
		JOIN jobs j ON j.id = e.job_id
		WHERE j.builder_id = $1 AND j.status = 'posted'`

	var n int64
	if err := s.pool.QueryRow(ctx, query, builderID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count enquiries: %w", err)
	}
	return int(n), nil
}
