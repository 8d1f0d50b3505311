package equitylog

import (
	"context"
	"fmt"
	"time"

	"github.com/senyabanana/tender-platform/internal/clock"
	"github.com/senyabanana/tender-platform/internal/models"

	"github.com/google/uuid"
)

// Repository - хранилище записей журнала. Метода изменения или удаления нет.
type Repository interface {
	LastEntry(ctx context.Context, tenderID string) (*models.EquityLogEntry, error)
	AppendEntry(ctx context.Context, entry models.EquityLogEntry) error
}

// Logger добавляет записи в журнал равноправия.
type Logger struct {
	Clock clock.Clock
}

// NewLogger создаёт новый экземпляр Logger.
func NewLogger(c clock.Clock) *Logger {
	return &Logger{Clock: c}
}

// Append записывает одну запись через repo. repo должен быть привязан к той же
// транзакции, что и изменение состояния, которое запись фиксирует.
func (l *Logger) Append(ctx context.Context, repo Repository, tenderID, actorID string, action models.EquityAction, description string, metadata map[string]string) (models.EquityLogEntry, error) {
	prev, err := repo.LastEntry(ctx, tenderID)
	if err != nil {
		return models.EquityLogEntry{}, fmt.Errorf("failed to read last equity log entry: %w", err)
	}
	if metadata == nil {
		metadata = map[string]string{}
	}

	// timestamptz хранит микросекунды, хэш считается по тому же значению.
	createdAt := l.Clock.Now().UTC().Truncate(time.Microsecond)
	if prev != nil && createdAt.Before(prev.CreatedAt) {
		createdAt = prev.CreatedAt
	}

	entry := Seal(models.EquityLogEntry{
		ID:          uuid.New().String(),
		TenderID:    tenderID,
		ActorID:     actorID,
		Action:      action,
		Description: description,
		Metadata:    metadata,
		CreatedAt:   createdAt,
	}, prev)

	if err := repo.AppendEntry(ctx, entry); err != nil {
		return models.EquityLogEntry{}, fmt.Errorf("failed to append equity log entry: %w", err)
	}
	return entry, nil
}
