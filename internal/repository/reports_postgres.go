package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mediapulse/mediapulse-back/internal/domain"
)

const pgUniqueViolation = "23505"

type PostgresReportsRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresReportsRepository(ctx context.Context, databaseURL string) (*PostgresReportsRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pg: %w", err)
	}
	return &PostgresReportsRepository{pool: pool}, nil
}

func (r *PostgresReportsRepository) Close() {
	r.pool.Close()
}

func (r *PostgresReportsRepository) CreateGenerating(ctx context.Context, report domain.Report) (string, error) {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	now := time.Now().UTC()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO reports (
			id,
			report_config_id,
			user_id,
			status,
			is_public,
			view_count,
			created_at,
			updated_at
		) VALUES ($1,$2,$3,$4,$5,0,$6,$6)
	`,
		report.ID,
		report.ReportConfigID,
		report.UserID,
		string(domain.ReportStatusGenerating),
		report.IsPublic,
		now,
	)
	if err != nil {
		return "", fmt.Errorf("insert report: %w", err)
	}
	return report.ID, nil
}

func (r *PostgresReportsRepository) CompleteWithContent(
	ctx context.Context,
	reportID string,
	content domain.ReportContent,
	durationMs int64,
) (domain.Report, error) {
	encodedContent, err := json.Marshal(content)
	if err != nil {
		return domain.Report{}, fmt.Errorf("marshal report content: %w", err)
	}

	// Slug collisions are astronomically rare; retry a few times anyway.
	for attempt := 0; attempt < 5; attempt++ {
		slug := NewPublicSlug()
		command, err := r.pool.Exec(ctx, `
			UPDATE reports
			SET status = $2,
				content = $3,
				generation_duration_ms = $4,
				error_message = '',
				public_slug = CASE WHEN is_public THEN COALESCE(public_slug, $5) ELSE NULL END,
				updated_at = $6
			WHERE id = $1
		`,
			reportID,
			string(domain.ReportStatusCompleted),
			encodedContent,
			durationMs,
			slug,
			time.Now().UTC(),
		)
		if err != nil {
			if isUniqueViolation(err) {
				continue
			}
			return domain.Report{}, fmt.Errorf("complete report: %w", err)
		}
		if command.RowsAffected() == 0 {
			return domain.Report{}, ErrNotFound
		}
		return r.GetReport(ctx, reportID)
	}
	return domain.Report{}, ErrSlugCollision
}

func (r *PostgresReportsRepository) MarkFailed(ctx context.Context, reportID, message string) error {
	command, err := r.pool.Exec(ctx, `
		UPDATE reports
		SET status = $2,
			content = NULL,
			error_message = $3,
			updated_at = $4
		WHERE id = $1
	`, reportID, string(domain.ReportStatusFailed), message, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark report failed: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresReportsRepository) MarkFailedByConfig(
	ctx context.Context,
	configID, message string,
) (int, error) {
	command, err := r.pool.Exec(ctx, `
		UPDATE reports
		SET status = $2,
			content = NULL,
			error_message = $3,
			updated_at = $4
		WHERE report_config_id = $1 AND status = $5
	`,
		configID,
		string(domain.ReportStatusFailed),
		message,
		time.Now().UTC(),
		string(domain.ReportStatusGenerating),
	)
	if err != nil {
		return 0, fmt.Errorf("sweep generating reports: %w", err)
	}
	return int(command.RowsAffected()), nil
}

func (r *PostgresReportsRepository) BootstrapOwner(ctx context.Context, companyDomain string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(companyDomain))
	if key == "" {
		return "", errors.New("company domain is required")
	}

	var ownerID string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO placeholder_owners (id, company_domain, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (company_domain) DO UPDATE SET company_domain = EXCLUDED.company_domain
		RETURNING id
	`, uuid.NewString(), key, time.Now().UTC()).Scan(&ownerID)
	if err != nil {
		return "", fmt.Errorf("bootstrap owner: %w", err)
	}
	return ownerID, nil
}

func (r *PostgresReportsRepository) EnsureConfig(ctx context.Context, config domain.ReportConfig) (string, error) {
	var configID string
	err := r.pool.QueryRow(ctx, `
		SELECT id FROM report_configs
		WHERE user_id = $1 AND lower(company_domain) = lower($2) AND date_range_days = $3
		LIMIT 1
	`, config.UserID, config.CompanyDomain, config.DateRangeDays).Scan(&configID)
	if err == nil {
		return configID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("find report config: %w", err)
	}

	if config.ID == "" {
		config.ID = uuid.NewString()
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO report_configs (
			id, user_id, company_name, company_domain, industry, keywords, date_range_days, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		config.ID,
		config.UserID,
		config.CompanyName,
		config.CompanyDomain,
		config.Industry,
		config.Keywords,
		config.DateRangeDays,
		time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("insert report config: %w", err)
	}
	return config.ID, nil
}

func (r *PostgresReportsRepository) GetReport(ctx context.Context, reportID string) (domain.Report, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, report_config_id, user_id, status, content, is_public,
			COALESCE(public_slug, ''), view_count, generation_duration_ms,
			COALESCE(error_message, ''), created_at, updated_at
		FROM reports
		WHERE id = $1
	`, reportID)
	return scanReport(row)
}

func (r *PostgresReportsRepository) GetReportBySlug(ctx context.Context, slug string) (domain.Report, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE reports
		SET view_count = view_count + 1
		WHERE public_slug = $1 AND is_public
		RETURNING id, report_config_id, user_id, status, content, is_public,
			COALESCE(public_slug, ''), view_count, generation_duration_ms,
			COALESCE(error_message, ''), created_at, updated_at
	`, slug)
	return scanReport(row)
}

func (r *PostgresReportsRepository) SetVisibility(
	ctx context.Context,
	reportID string,
	isPublic bool,
) (domain.Report, error) {
	if !isPublic {
		command, err := r.pool.Exec(ctx, `
			UPDATE reports
			SET is_public = FALSE, public_slug = NULL, updated_at = $2
			WHERE id = $1
		`, reportID, time.Now().UTC())
		if err != nil {
			return domain.Report{}, fmt.Errorf("revoke report visibility: %w", err)
		}
		if command.RowsAffected() == 0 {
			return domain.Report{}, ErrNotFound
		}
		return r.GetReport(ctx, reportID)
	}

	for attempt := 0; attempt < 5; attempt++ {
		slug := NewPublicSlug()
		command, err := r.pool.Exec(ctx, `
			UPDATE reports
			SET is_public = TRUE,
				public_slug = CASE
					WHEN public_slug IS NULL AND status = $3 THEN $2
					ELSE public_slug
				END,
				updated_at = $4
			WHERE id = $1
		`, reportID, slug, string(domain.ReportStatusCompleted), time.Now().UTC())
		if err != nil {
			if isUniqueViolation(err) {
				continue
			}
			return domain.Report{}, fmt.Errorf("publish report: %w", err)
		}
		if command.RowsAffected() == 0 {
			return domain.Report{}, ErrNotFound
		}
		return r.GetReport(ctx, reportID)
	}
	return domain.Report{}, ErrSlugCollision
}

func scanReport(row pgx.Row) (domain.Report, error) {
	var (
		report     domain.Report
		status     string
		rawContent []byte
	)
	err := row.Scan(
		&report.ID,
		&report.ReportConfigID,
		&report.UserID,
		&status,
		&rawContent,
		&report.IsPublic,
		&report.PublicSlug,
		&report.ViewCount,
		&report.GenerationDurationMs,
		&report.ErrorMessage,
		&report.CreatedAt,
		&report.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Report{}, ErrNotFound
		}
		return domain.Report{}, fmt.Errorf("scan report: %w", err)
	}

	report.Status = domain.ReportStatus(status)
	if len(rawContent) > 0 {
		content := domain.ReportContent{}
		if err := json.Unmarshal(rawContent, &content); err != nil {
			return domain.Report{}, fmt.Errorf("decode report content: %w", err)
		}
		report.Content = &content
	}
	return report, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
