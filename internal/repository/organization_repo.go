package repository

import (
	"context"
	"fmt"

	"github.com/senyabanana/tender-platform/internal/models"

	"github.com/lib/pq"
)

// PostgresOrganizationRepository читает организации, членство и сохранённые поиски.
type PostgresOrganizationRepository struct {
	DB DBTX
}

// GetOrganization возвращает организацию по идентификатору.
func (r *PostgresOrganizationRepository) GetOrganization(ctx context.Context, organizationID string) (models.Organization, error) {
	var org models.Organization
	err := r.DB.QueryRow(ctx, `SELECT id, name, city, canton, contact_email FROM organization WHERE id = $1`, organizationID).
		Scan(&org.ID, &org.Name, &org.City, &org.Canton, &org.ContactEmail)
	if err != nil {
		return models.Organization{}, notFound(err, models.ErrOrganizationNotFound, "failed to get organization")
	}
	return org, nil
}

// GetOrganizations возвращает организации по списку идентификаторов.
func (r *PostgresOrganizationRepository) GetOrganizations(ctx context.Context, organizationIDs []string) (map[string]models.Organization, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, name, city, canton, contact_email FROM organization WHERE id = ANY($1)`, pq.Array(organizationIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to get organizations: %w", err)
	}
	defer rows.Close()

	orgs := make(map[string]models.Organization, len(organizationIDs))
	for rows.Next() {
		var org models.Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.City, &org.Canton, &org.ContactEmail); err != nil {
			return nil, err
		}
		orgs[org.ID] = org
	}
	return orgs, rows.Err()
}

// ListMemberships возвращает членство пользователя во всех организациях.
func (r *PostgresOrganizationRepository) ListMemberships(ctx context.Context, userID string) ([]models.Membership, error) {
	rows, err := r.DB.Query(ctx, `SELECT organization_id, user_id, role FROM membership WHERE user_id = $1 ORDER BY organization_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []models.Membership
	for rows.Next() {
		var m models.Membership
		if err := rows.Scan(&m.OrganizationID, &m.UserID, &m.Role); err != nil {
			return nil, err
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

// MatchingOrganizations возвращает организации с сохранённым поиском по категории.
func (r *PostgresOrganizationRepository) MatchingOrganizations(ctx context.Context, category string) ([]string, error) {
	rows, err := r.DB.Query(ctx, `SELECT DISTINCT organization_id FROM saved_search WHERE $1 = ANY(categories) ORDER BY organization_id`, category)
	if err != nil {
		return nil, fmt.Errorf("failed to match saved searches: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
