package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/senyabanana/tender-platform/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OutboxFanout записывает уведомления в notification_outbox, откуда их забирает
// внешний релей рассылки. Удовлетворяет notify.Fanout.
type OutboxFanout struct {
	DB *pgxpool.Pool
}

// NewOutboxFanout создаёт новый экземпляр OutboxFanout.
func NewOutboxFanout(db *pgxpool.Pool) *OutboxFanout {
	return &OutboxFanout{DB: db}
}

// NotifyOrganization ставит in-app уведомление в очередь.
func (f *OutboxFanout) NotifyOrganization(ctx context.Context, organizationID, excludeUserID string, n models.Notification) error {
	return f.insert(ctx, models.InAppChannel, organizationID, excludeUserID, n)
}

// EmailOrganization ставит email-уведомление в очередь.
func (f *OutboxFanout) EmailOrganization(ctx context.Context, organizationID string, n models.Notification) error {
	return f.insert(ctx, models.EmailChannel, organizationID, "", n)
}

func (f *OutboxFanout) insert(ctx context.Context, channel models.NotificationChannel, organizationID, excludeUserID string, n models.Notification) error {
	metadata := n.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	_, err := f.DB.Exec(ctx, `
		INSERT INTO notification_outbox (id, channel, organization_id, exclude_user_id, type, title, message, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.New().String(),
		channel,
		organizationID,
		nullable(excludeUserID),
		n.Type,
		n.Title,
		n.Message,
		metadata,
		time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}
	return nil
}
