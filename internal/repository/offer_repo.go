package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/senyabanana/tender-platform/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
)

// activeOfferConstraint - частичный уникальный индекс по (tender_id, organization_id)
// для активных статусов. Он окончательно решает гонку одновременных подач.
const activeOfferConstraint = "offer_active_unique"

const offerColumns = `id, tender_id, organization_id, price, currency, description, conditions, documents, status,
       anonymous_id, payment_status, created_by, created_at, updated_at, submitted_at`

// PostgresOfferRepository - реализация OfferRepository для базы данных.
type PostgresOfferRepository struct {
	DB DBTX
}

// NewPostgresOfferRepository создает новый экземпляр PostgresOfferRepository.
func NewPostgresOfferRepository(db DBTX) *PostgresOfferRepository {
	return &PostgresOfferRepository{DB: db}
}

func scanOffer(row pgx.Row) (models.Offer, error) {
	var offer models.Offer
	var anonymousID *string
	err := row.Scan(
		&offer.ID,
		&offer.TenderID,
		&offer.OrganizationID,
		&offer.Price,
		&offer.Currency,
		&offer.Description,
		&offer.Conditions,
		&offer.Documents,
		&offer.Status,
		&anonymousID,
		&offer.PaymentStatus,
		&offer.CreatedBy,
		&offer.CreatedAt,
		&offer.UpdatedAt,
		&offer.SubmittedAt)
	if err != nil {
		return models.Offer{}, err
	}
	if anonymousID != nil {
		offer.AnonymousID = *anonymousID
	}
	if offer.Documents == nil {
		offer.Documents = []string{}
	}
	return offer, nil
}

func collectOffers(rows pgx.Rows) ([]models.Offer, error) {
	defer rows.Close()
	offers := []models.Offer{}
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, offer)
	}
	return offers, rows.Err()
}

func offerWriteError(err error, op string) error {
	if isUniqueViolation(err, activeOfferConstraint) {
		return models.ErrDuplicateActiveOffer
	}
	return fmt.Errorf("%s: %w", op, err)
}

// CreateOffer сохраняет новое предложение.
func (r *PostgresOfferRepository) CreateOffer(ctx context.Context, offer models.Offer) error {
	insertQuery := `INSERT INTO offer (` + offerColumns + `)
                   VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := r.DB.Exec(
		ctx,
		insertQuery,
		offer.ID,
		offer.TenderID,
		offer.OrganizationID,
		offer.Price,
		offer.Currency,
		offer.Description,
		offer.Conditions,
		pq.Array(offer.Documents),
		offer.Status,
		nullable(offer.AnonymousID),
		offer.PaymentStatus,
		offer.CreatedBy,
		offer.CreatedAt,
		offer.UpdatedAt,
		offer.SubmittedAt)
	if err != nil {
		return offerWriteError(err, "failed to insert offer")
	}
	return nil
}

// GetOffer возвращает предложение по идентификатору.
func (r *PostgresOfferRepository) GetOffer(ctx context.Context, offerID string) (models.Offer, error) {
	offer, err := scanOffer(r.DB.QueryRow(ctx, `SELECT `+offerColumns+` FROM offer WHERE id = $1`, offerID))
	if err != nil {
		return models.Offer{}, notFound(err, models.ErrOfferNotFound, "failed to get offer")
	}
	return offer, nil
}

// GetOfferForUpdate блокирует строку предложения до конца транзакции.
func (r *PostgresOfferRepository) GetOfferForUpdate(ctx context.Context, offerID string) (models.Offer, error) {
	offer, err := scanOffer(r.DB.QueryRow(ctx, `SELECT `+offerColumns+` FROM offer WHERE id = $1 FOR UPDATE`, offerID))
	if err != nil {
		return models.Offer{}, notFound(err, models.ErrOfferNotFound, "failed to lock offer")
	}
	return offer, nil
}

// UpdateOffer сохраняет изменяемые поля предложения.
func (r *PostgresOfferRepository) UpdateOffer(ctx context.Context, offer models.Offer) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE offer
		SET price = $2, currency = $3, description = $4, conditions = $5, documents = $6, status = $7,
		    anonymous_id = $8, payment_status = $9, updated_at = $10, submitted_at = $11
		WHERE id = $1`,
		offer.ID,
		offer.Price,
		offer.Currency,
		offer.Description,
		offer.Conditions,
		pq.Array(offer.Documents),
		offer.Status,
		nullable(offer.AnonymousID),
		offer.PaymentStatus,
		offer.UpdatedAt,
		offer.SubmittedAt)
	if err != nil {
		return offerWriteError(err, "failed to update offer")
	}
	if tag.RowsAffected() == 0 {
		return models.ErrOfferNotFound
	}
	return nil
}

// DeleteOffer удаляет черновик предложения.
func (r *PostgresOfferRepository) DeleteOffer(ctx context.Context, offerID string) error {
	tag, err := r.DB.Exec(ctx, `DELETE FROM offer WHERE id = $1 AND status = $2`, offerID, models.DraftOffer)
	if err != nil {
		return fmt.Errorf("failed to delete offer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrOfferNotFound
	}
	return nil
}

// FindActiveOffer возвращает активное предложение организации на тендер или nil.
func (r *PostgresOfferRepository) FindActiveOffer(ctx context.Context, tenderID, organizationID string) (*models.Offer, error) {
	offer, err := scanOffer(r.DB.QueryRow(ctx, `SELECT `+offerColumns+`
		FROM offer WHERE tender_id = $1 AND organization_id = $2 AND status = ANY($3)`,
		tenderID, organizationID, pq.Array(offerStatusStrings(models.ActiveOfferStatuses))))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active offer: %w", err)
	}
	return &offer, nil
}

// ListTenderOffers возвращает предложения тендера в заданных статусах в порядке подачи.
func (r *PostgresOfferRepository) ListTenderOffers(ctx context.Context, tenderID string, statuses []models.OfferStatus) ([]models.Offer, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+offerColumns+`
		FROM offer WHERE tender_id = $1 AND status = ANY($2)
		ORDER BY submitted_at NULLS LAST, created_at, id`,
		tenderID, pq.Array(offerStatusStrings(statuses)))
	if err != nil {
		return nil, fmt.Errorf("failed to list tender offers: %w", err)
	}
	return collectOffers(rows)
}

// ListOrganizationOffers возвращает предложения организации.
func (r *PostgresOfferRepository) ListOrganizationOffers(ctx context.Context, organizationID string, limit, offset int) ([]models.Offer, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+offerColumns+`
		FROM offer WHERE organization_id = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`,
		organizationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list organization offers: %w", err)
	}
	return collectOffers(rows)
}

// CountTenderOffers считает предложения тендера в заданных статусах.
func (r *PostgresOfferRepository) CountTenderOffers(ctx context.Context, tenderID string, statuses []models.OfferStatus) (int, error) {
	var count int
	err := r.DB.QueryRow(ctx, `SELECT count(*) FROM offer WHERE tender_id = $1 AND status = ANY($2)`,
		tenderID, pq.Array(offerStatusStrings(statuses))).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tender offers: %w", err)
	}
	return count, nil
}
