package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/senyabanana/tender-platform/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
)

const tenderColumns = `id, organization_id, title, description, category, budget, currency, deadline, mode, visibility,
       status, identity_revealed, payment_status, awarded_offer_id, created_by, created_at, updated_at, published_at, closed_at`

// PostgresTenderRepository - реализация TenderRepository для базы данных.
type PostgresTenderRepository struct {
	DB DBTX
}

// NewPostgresTenderRepository создаёт новый экземпляр PostgresTenderRepository.
func NewPostgresTenderRepository(db DBTX) *PostgresTenderRepository {
	return &PostgresTenderRepository{DB: db}
}

func scanTender(row pgx.Row) (models.Tender, error) {
	var tender models.Tender
	var awardedOfferID *string
	err := row.Scan(
		&tender.ID,
		&tender.OrganizationID,
		&tender.Title,
		&tender.Description,
		&tender.Category,
		&tender.Budget,
		&tender.Currency,
		&tender.Deadline,
		&tender.Mode,
		&tender.Visibility,
		&tender.Status,
		&tender.IdentityRevealed,
		&tender.PaymentStatus,
		&awardedOfferID,
		&tender.CreatedBy,
		&tender.CreatedAt,
		&tender.UpdatedAt,
		&tender.PublishedAt,
		&tender.ClosedAt)
	if err != nil {
		return models.Tender{}, err
	}
	if awardedOfferID != nil {
		tender.AwardedOfferID = *awardedOfferID
	}
	return tender, nil
}

func collectTenders(rows pgx.Rows) ([]models.Tender, error) {
	defer rows.Close()
	tenders := []models.Tender{}
	for rows.Next() {
		tender, err := scanTender(rows)
		if err != nil {
			return nil, err
		}
		tenders = append(tenders, tender)
	}
	return tenders, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// CreateTender сохраняет новый тендер.
func (r *PostgresTenderRepository) CreateTender(ctx context.Context, tender models.Tender) error {
	_, err := r.DB.Exec(ctx, `
       INSERT INTO tender (`+tenderColumns+`)
       VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
   `,
		tender.ID,
		tender.OrganizationID,
		tender.Title,
		tender.Description,
		tender.Category,
		tender.Budget,
		tender.Currency,
		tender.Deadline,
		tender.Mode,
		tender.Visibility,
		tender.Status,
		tender.IdentityRevealed,
		tender.PaymentStatus,
		nullable(tender.AwardedOfferID),
		tender.CreatedBy,
		tender.CreatedAt,
		tender.UpdatedAt,
		tender.PublishedAt,
		tender.ClosedAt)
	if err != nil {
		return fmt.Errorf("failed to insert tender: %w", err)
	}
	return nil
}

// GetTender возвращает тендер по идентификатору.
func (r *PostgresTenderRepository) GetTender(ctx context.Context, tenderID string) (models.Tender, error) {
	tender, err := scanTender(r.DB.QueryRow(ctx, `SELECT `+tenderColumns+` FROM tender WHERE id = $1`, tenderID))
	if err != nil {
		return models.Tender{}, notFound(err, models.ErrTenderNotFound, "failed to get tender")
	}
	return tender, nil
}

// GetTenderForUpdate блокирует строку тендера до конца транзакции.
// Все переходы тендера и его предложений проходят через эту блокировку.
func (r *PostgresTenderRepository) GetTenderForUpdate(ctx context.Context, tenderID string) (models.Tender, error) {
	tender, err := scanTender(r.DB.QueryRow(ctx, `SELECT `+tenderColumns+` FROM tender WHERE id = $1 FOR UPDATE`, tenderID))
	if err != nil {
		return models.Tender{}, notFound(err, models.ErrTenderNotFound, "failed to lock tender")
	}
	return tender, nil
}

// UpdateTender сохраняет изменяемые поля тендера.
func (r *PostgresTenderRepository) UpdateTender(ctx context.Context, tender models.Tender) error {
	tag, err := r.DB.Exec(ctx, `
       UPDATE tender
       SET title = $2, description = $3, category = $4, budget = $5, currency = $6, deadline = $7, mode = $8,
           visibility = $9, status = $10, identity_revealed = $11, payment_status = $12, awarded_offer_id = $13,
           updated_at = $14, published_at = $15, closed_at = $16
       WHERE id = $1
   `,
		tender.ID,
		tender.Title,
		tender.Description,
		tender.Category,
		tender.Budget,
		tender.Currency,
		tender.Deadline,
		tender.Mode,
		tender.Visibility,
		tender.Status,
		tender.IdentityRevealed,
		tender.PaymentStatus,
		nullable(tender.AwardedOfferID),
		tender.UpdatedAt,
		tender.PublishedAt,
		tender.ClosedAt)
	if err != nil {
		return fmt.Errorf("failed to update tender: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrTenderNotFound
	}
	return nil
}

// DeleteTender удаляет тендер вместе с его предложениями.
func (r *PostgresTenderRepository) DeleteTender(ctx context.Context, tenderID string) error {
	tag, err := r.DB.Exec(ctx, `DELETE FROM tender WHERE id = $1`, tenderID)
	if err != nil {
		return fmt.Errorf("failed to delete tender: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrTenderNotFound
	}
	return nil
}

// ListPublishedTenders возвращает публичные опубликованные тендеры.
func (r *PostgresTenderRepository) ListPublishedTenders(ctx context.Context, filter TenderFilter) ([]models.Tender, error) {
	query := `SELECT ` + tenderColumns + ` FROM tender`
	filters := []string{"status = $1", "visibility = $2"}
	args := []interface{}{models.PublishedTender, models.PublicTender}
	argIndex := 3

	if len(filter.Categories) > 0 {
		filters = append(filters, fmt.Sprintf("category = ANY($%d)", argIndex))
		args = append(args, pq.Array(filter.Categories))
		argIndex++
	}

	query += " WHERE " + strings.Join(filters, " AND ")
	query += fmt.Sprintf(" ORDER BY deadline, title LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenders: %w", err)
	}
	return collectTenders(rows)
}

// ListOrganizationTenders возвращает все тендеры организации, включая черновики.
func (r *PostgresTenderRepository) ListOrganizationTenders(ctx context.Context, organizationID string, limit, offset int) ([]models.Tender, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+tenderColumns+`
              FROM tender WHERE organization_id = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`,
		organizationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list organization tenders: %w", err)
	}
	return collectTenders(rows)
}
