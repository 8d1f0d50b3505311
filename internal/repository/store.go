package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/senyabanana/tender-platform/internal/equitylog"
	"github.com/senyabanana/tender-platform/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TenderFilter - параметры публичного списка тендеров.
type TenderFilter struct {
	Categories []string
	Limit      int
	Offset     int
}

// TenderRepository - интерфейс для работы с тендерами.
type TenderRepository interface {
	CreateTender(ctx context.Context, tender models.Tender) error
	GetTender(ctx context.Context, tenderID string) (models.Tender, error)
	GetTenderForUpdate(ctx context.Context, tenderID string) (models.Tender, error)
	UpdateTender(ctx context.Context, tender models.Tender) error
	DeleteTender(ctx context.Context, tenderID string) error
	ListPublishedTenders(ctx context.Context, filter TenderFilter) ([]models.Tender, error)
	ListOrganizationTenders(ctx context.Context, organizationID string, limit, offset int) ([]models.Tender, error)
}

// OfferRepository - интерфейс для работы с предложениями.
type OfferRepository interface {
	CreateOffer(ctx context.Context, offer models.Offer) error
	GetOffer(ctx context.Context, offerID string) (models.Offer, error)
	GetOfferForUpdate(ctx context.Context, offerID string) (models.Offer, error)
	UpdateOffer(ctx context.Context, offer models.Offer) error
	DeleteOffer(ctx context.Context, offerID string) error
	FindActiveOffer(ctx context.Context, tenderID, organizationID string) (*models.Offer, error)
	ListTenderOffers(ctx context.Context, tenderID string, statuses []models.OfferStatus) ([]models.Offer, error)
	ListOrganizationOffers(ctx context.Context, organizationID string, limit, offset int) ([]models.Offer, error)
	CountTenderOffers(ctx context.Context, tenderID string, statuses []models.OfferStatus) (int, error)
}

// EquityLogRepository - журнал равноправия, только добавление и чтение.
type EquityLogRepository interface {
	equitylog.Repository
	ListEntries(ctx context.Context, tenderID string) ([]models.EquityLogEntry, error)
}

// OrganizationRepository - организации и членство пользователей.
type OrganizationRepository interface {
	GetOrganization(ctx context.Context, organizationID string) (models.Organization, error)
	GetOrganizations(ctx context.Context, organizationIDs []string) (map[string]models.Organization, error)
	ListMemberships(ctx context.Context, userID string) ([]models.Membership, error)
}

// SavedSearchRepository находит организации, подписанные на категорию.
type SavedSearchRepository interface {
	MatchingOrganizations(ctx context.Context, category string) ([]string, error)
}

// Repositories - набор репозиториев, привязанных к одному соединению или транзакции.
type Repositories struct {
	Tenders       TenderRepository
	Offers        OfferRepository
	EquityLog     EquityLogRepository
	Organizations OrganizationRepository
	SavedSearches SavedSearchRepository
}

// Store выдаёт репозитории вне транзакции и выполняет атомарные единицы работы.
type Store interface {
	Repos() Repositories
	WithinTx(ctx context.Context, fn func(tx Repositories) error) error
}

// DBTX - общее подмножество pgxpool.Pool и pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore - реализация Store поверх пула соединений.
type PostgresStore struct {
	DB *pgxpool.Pool
}

// NewPostgresStore создаёт новый экземпляр PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{DB: db}
}

func newRepositories(db DBTX) Repositories {
	return Repositories{
		Tenders:       &PostgresTenderRepository{DB: db},
		Offers:        &PostgresOfferRepository{DB: db},
		EquityLog:     &PostgresEquityLogRepository{DB: db},
		Organizations: &PostgresOrganizationRepository{DB: db},
		SavedSearches: &PostgresOrganizationRepository{DB: db},
	}
}

// Repos возвращает репозитории, работающие напрямую с пулом.
func (s *PostgresStore) Repos() Repositories {
	return newRepositories(s.DB)
}

// WithinTx выполняет fn в транзакции. Ошибка fn откатывает транзакцию.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx Repositories) error) error {
	return pgx.BeginTxFunc(ctx, s.DB, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(newRepositories(tx))
	})
}

const uniqueViolation = "23505"

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func notFound(err error, sentinel *models.ErrorResponse, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel
	}
	return fmt.Errorf("%s: %w", op, err)
}

func offerStatusStrings(statuses []models.OfferStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
