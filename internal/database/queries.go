package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"telesumm/internal/domain"
	"telesumm/internal/length"
)

func (d *Database) GetUserSettingsWithDefault(
	ctx context.Context,
	userID int64,
) (*domain.UserSettings, error) {
	query := "select user_id, tier from user_settings where user_id = ?"

	var us domain.UserSettings

	err := d.db.QueryRowContext(ctx, query, userID).Scan(&us.UserID, &us.Tier)
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.UserSettings{
			UserID: userID,
			Tier:   string(length.DefaultTier),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	us.Tier = strings.TrimSpace(us.Tier)

	return &us, nil
}

func (d *Database) UpsertUserSettings(ctx context.Context, userSettings *domain.UserSettings) error {
	tier := strings.TrimSpace(userSettings.Tier)
	if tier == "" {
		return errors.New("tier is empty")
	}

	query := `insert into user_settings (user_id, tier)
	values (?, ?)
	on conflict (user_id) do update
	set tier = excluded.tier`

	_, err := d.db.ExecContext(ctx, query, userSettings.UserID, tier)

	return err
}

func (d *Database) AddSummary(ctx context.Context, record *domain.SummaryRecord) error {
	summary := strings.TrimSpace(record.Summary)
	if summary == "" {
		return errors.New("summary is empty")
	}

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `insert into summaries (user_id, tier, summary, chunks, created_at)
	values (?, ?, ?, ?, ?)`

	res, err := d.db.ExecContext(ctx, query,
		record.UserID,
		record.Tier,
		summary,
		record.Chunks,
		createdAt.UTC(),
	)
	if err != nil {
		return err
	}

	if id, idErr := res.LastInsertId(); idErr == nil {
		record.ID = id
	}

	return nil
}

// GetLastSummary returns nil when the user has no history.
func (d *Database) GetLastSummary(
	ctx context.Context,
	userID int64,
) (*domain.SummaryRecord, error) {
	query := `select id, user_id, tier, summary, chunks, created_at
	from summaries
	where user_id = ?
	order by created_at desc, id desc
	limit 1`

	var r domain.SummaryRecord

	err := d.db.QueryRowContext(ctx, query, userID).Scan(
		&r.ID,
		&r.UserID,
		&r.Tier,
		&r.Summary,
		&r.Chunks,
		&r.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // Absent history is not an error.
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	return &r, nil
}

func (d *Database) DeleteSummariesBefore(ctx context.Context, before time.Time) (int64, error) {
	query := "delete from summaries where created_at < ?"

	res, err := d.db.ExecContext(ctx, query, before.UTC())
	if err != nil {
		return 0, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted rows: %w", err)
	}

	return n, nil
}
