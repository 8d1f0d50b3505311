package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/senyabanana/tender-platform/internal/models"

	"github.com/jackc/pgx/v5"
)

const equityLogColumns = `id, tender_id, sequence, actor_id, action, description, metadata, prev_hash, hash, created_at`

// PostgresEquityLogRepository хранит журнал равноправия. UPDATE и DELETE
// для таблицы equity_log запрещены триггером в миграции.
type PostgresEquityLogRepository struct {
	DB DBTX
}

func scanEntry(row pgx.Row) (models.EquityLogEntry, error) {
	var entry models.EquityLogEntry
	err := row.Scan(
		&entry.ID,
		&entry.TenderID,
		&entry.Sequence,
		&entry.ActorID,
		&entry.Action,
		&entry.Description,
		&entry.Metadata,
		&entry.PrevHash,
		&entry.Hash,
		&entry.CreatedAt)
	if err != nil {
		return models.EquityLogEntry{}, err
	}
	entry.CreatedAt = entry.CreatedAt.UTC()
	if entry.Metadata == nil {
		entry.Metadata = map[string]string{}
	}
	return entry, nil
}

// LastEntry возвращает последнюю запись тендера или nil, если журнал пуст.
func (r *PostgresEquityLogRepository) LastEntry(ctx context.Context, tenderID string) (*models.EquityLogEntry, error) {
	entry, err := scanEntry(r.DB.QueryRow(ctx, `SELECT `+equityLogColumns+`
		FROM equity_log WHERE tender_id = $1 ORDER BY sequence DESC LIMIT 1`, tenderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read last equity log entry: %w", err)
	}
	return &entry, nil
}

// AppendEntry добавляет запись. Уникальность (tender_id, sequence) не даёт
// двум транзакциям записать одну и ту же позицию цепочки.
func (r *PostgresEquityLogRepository) AppendEntry(ctx context.Context, entry models.EquityLogEntry) error {
	_, err := r.DB.Exec(ctx, `INSERT INTO equity_log (`+equityLogColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID,
		entry.TenderID,
		entry.Sequence,
		entry.ActorID,
		entry.Action,
		entry.Description,
		entry.Metadata,
		entry.PrevHash,
		entry.Hash,
		entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert equity log entry: %w", err)
	}
	return nil
}

// ListEntries возвращает журнал тендера в порядке создания.
func (r *PostgresEquityLogRepository) ListEntries(ctx context.Context, tenderID string) ([]models.EquityLogEntry, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+equityLogColumns+`
		FROM equity_log WHERE tender_id = $1 ORDER BY sequence`, tenderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list equity log: %w", err)
	}
	defer rows.Close()

	entries := []models.EquityLogEntry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
