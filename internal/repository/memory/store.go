// Package memory - транзакционное хранилище в памяти с теми же гарантиями,
// что и PostgreSQL-схема: частичная уникальность активных предложений,
// сериализация транзакций и неизменяемость журнала.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/senyabanana/tender-platform/internal/models"
	"github.com/senyabanana/tender-platform/internal/repository"
	"github.com/senyabanana/tender-platform/internal/utils"
)

type state struct {
	tenders       map[string]models.Tender
	offers        map[string]models.Offer
	entries       map[string][]models.EquityLogEntry
	organizations map[string]models.Organization
	memberships   []models.Membership
	savedSearches map[string][]string
}

func newState() *state {
	return &state{
		tenders:       map[string]models.Tender{},
		offers:        map[string]models.Offer{},
		entries:       map[string][]models.EquityLogEntry{},
		organizations: map[string]models.Organization{},
		savedSearches: map[string][]string{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.tenders {
		c.tenders[k] = v
	}
	for k, v := range s.offers {
		v.Documents = append([]string(nil), v.Documents...)
		c.offers[k] = v
	}
	for k, v := range s.entries {
		c.entries[k] = append([]models.EquityLogEntry(nil), v...)
	}
	for k, v := range s.organizations {
		c.organizations[k] = v
	}
	c.memberships = append(c.memberships, s.memberships...)
	for k, v := range s.savedSearches {
		c.savedSearches[k] = append([]string(nil), v...)
	}
	return c
}

// Store - реализация repository.Store в памяти. Транзакция работает с копией
// состояния и подменяет его при успехе, поэтому ошибка не оставляет следов.
type Store struct {
	mu    sync.RWMutex
	txMu  sync.Mutex
	state *state
}

// NewStore создаёт пустое хранилище.
func NewStore() *Store {
	return &Store{state: newState()}
}

// Repos возвращает репозитории, читающие и пишущие текущее состояние.
func (s *Store) Repos() repository.Repositories {
	return s.repositories(func() *state {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.state
	}, &s.mu)
}

// WithinTx выполняет fn над копией состояния. Транзакции выполняются по одной.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	working := s.state.clone()
	s.mu.RUnlock()

	var txLock sync.RWMutex
	if err := fn(s.repositories(func() *state { return working }, &txLock)); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = working
	s.mu.Unlock()
	return nil
}

func (s *Store) repositories(current func() *state, lock *sync.RWMutex) repository.Repositories {
	b := &backend{current: current, lock: lock}
	return repository.Repositories{
		Tenders:       tenders{b},
		Offers:        offers{b},
		EquityLog:     equityLog{b},
		Organizations: organizations{b},
		SavedSearches: organizations{b},
	}
}

// AddOrganization добавляет организацию.
func (s *Store) AddOrganization(org models.Organization) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.organizations[org.ID] = org
}

// AddMembership добавляет пользователя в организацию.
func (s *Store) AddMembership(m models.Membership) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.memberships = append(s.state.memberships, m)
}

// AddSavedSearch подписывает организацию на категории.
func (s *Store) AddSavedSearch(organizationID string, categories ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.savedSearches[organizationID] = append(s.state.savedSearches[organizationID], categories...)
}

// Offers возвращает все предложения тендера в любом статусе.
func (s *Store) Offers(tenderID string) []models.Offer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Offer
	for _, o := range s.state.offers {
		if o.TenderID == tenderID {
			out = append(out, o)
		}
	}
	sortOffers(out)
	return out
}

type backend struct {
	current func() *state
	lock    *sync.RWMutex
}

func (b *backend) read(fn func(st *state)) {
	st := b.current()
	b.lock.RLock()
	defer b.lock.RUnlock()
	fn(st)
}

func (b *backend) write(fn func(st *state) error) error {
	st := b.current()
	b.lock.Lock()
	defer b.lock.Unlock()
	return fn(st)
}

type tenders struct{ *backend }

func (r tenders) CreateTender(_ context.Context, t models.Tender) error {
	return r.write(func(st *state) error {
		st.tenders[t.ID] = t
		return nil
	})
}

func (r tenders) GetTender(_ context.Context, tenderID string) (models.Tender, error) {
	var (
		t  models.Tender
		ok bool
	)
	r.read(func(st *state) { t, ok = st.tenders[tenderID] })
	if !ok {
		return models.Tender{}, models.ErrTenderNotFound
	}
	return t, nil
}

func (r tenders) GetTenderForUpdate(ctx context.Context, tenderID string) (models.Tender, error) {
	return r.GetTender(ctx, tenderID)
}

func (r tenders) UpdateTender(_ context.Context, t models.Tender) error {
	return r.write(func(st *state) error {
		if _, ok := st.tenders[t.ID]; !ok {
			return models.ErrTenderNotFound
		}
		st.tenders[t.ID] = t
		return nil
	})
}

func (r tenders) DeleteTender(_ context.Context, tenderID string) error {
	return r.write(func(st *state) error {
		if _, ok := st.tenders[tenderID]; !ok {
			return models.ErrTenderNotFound
		}
		delete(st.tenders, tenderID)
		for id, o := range st.offers {
			if o.TenderID == tenderID {
				delete(st.offers, id)
			}
		}
		return nil
	})
}

func (r tenders) ListPublishedTenders(_ context.Context, filter repository.TenderFilter) ([]models.Tender, error) {
	var out []models.Tender
	r.read(func(st *state) {
		for _, t := range st.tenders {
			if t.Status != models.PublishedTender || t.Visibility != models.PublicTender {
				continue
			}
			if len(filter.Categories) > 0 && !utils.Contains(filter.Categories, t.Category) {
				continue
			}
			out = append(out, t)
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Deadline.Equal(out[j].Deadline) {
			return out[i].Deadline.Before(out[j].Deadline)
		}
		return out[i].Title < out[j].Title
	})
	return utils.Paginate(out, filter.Limit, filter.Offset), nil
}

func (r tenders) ListOrganizationTenders(_ context.Context, organizationID string, limit, offset int) ([]models.Tender, error) {
	var out []models.Tender
	r.read(func(st *state) {
		for _, t := range st.tenders {
			if t.OrganizationID == organizationID {
				out = append(out, t)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return utils.Paginate(out, limit, offset), nil
}

type offers struct{ *backend }

// conflicts повторяет частичный уникальный индекс offer_active_unique.
func conflicts(st *state, o models.Offer) bool {
	if !o.Status.Active() {
		return false
	}
	for id, other := range st.offers {
		if id != o.ID && other.TenderID == o.TenderID && other.OrganizationID == o.OrganizationID && other.Status.Active() {
			return true
		}
	}
	return false
}

func (r offers) CreateOffer(_ context.Context, o models.Offer) error {
	return r.write(func(st *state) error {
		if _, ok := st.tenders[o.TenderID]; !ok {
			return models.ErrTenderNotFound
		}
		if conflicts(st, o) {
			return models.ErrDuplicateActiveOffer
		}
		st.offers[o.ID] = o
		return nil
	})
}

func (r offers) GetOffer(_ context.Context, offerID string) (models.Offer, error) {
	var (
		o  models.Offer
		ok bool
	)
	r.read(func(st *state) { o, ok = st.offers[offerID] })
	if !ok {
		return models.Offer{}, models.ErrOfferNotFound
	}
	return o, nil
}

func (r offers) GetOfferForUpdate(ctx context.Context, offerID string) (models.Offer, error) {
	return r.GetOffer(ctx, offerID)
}

func (r offers) UpdateOffer(_ context.Context, o models.Offer) error {
	return r.write(func(st *state) error {
		if _, ok := st.offers[o.ID]; !ok {
			return models.ErrOfferNotFound
		}
		if conflicts(st, o) {
			return models.ErrDuplicateActiveOffer
		}
		st.offers[o.ID] = o
		return nil
	})
}

func (r offers) DeleteOffer(_ context.Context, offerID string) error {
	return r.write(func(st *state) error {
		o, ok := st.offers[offerID]
		if !ok || o.Status != models.DraftOffer {
			return models.ErrOfferNotFound
		}
		delete(st.offers, offerID)
		return nil
	})
}

func (r offers) FindActiveOffer(_ context.Context, tenderID, organizationID string) (*models.Offer, error) {
	var found *models.Offer
	r.read(func(st *state) {
		for _, o := range st.offers {
			if o.TenderID == tenderID && o.OrganizationID == organizationID && o.Status.Active() {
				o := o
				found = &o
				return
			}
		}
	})
	return found, nil
}

func (r offers) ListTenderOffers(_ context.Context, tenderID string, statuses []models.OfferStatus) ([]models.Offer, error) {
	out := []models.Offer{}
	r.read(func(st *state) {
		for _, o := range st.offers {
			if o.TenderID == tenderID && utils.Contains(statuses, o.Status) {
				out = append(out, o)
			}
		}
	})
	sortOffers(out)
	return out, nil
}

func (r offers) ListOrganizationOffers(_ context.Context, organizationID string, limit, offset int) ([]models.Offer, error) {
	var out []models.Offer
	r.read(func(st *state) {
		for _, o := range st.offers {
			if o.OrganizationID == organizationID {
				out = append(out, o)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return utils.Paginate(out, limit, offset), nil
}

func (r offers) CountTenderOffers(ctx context.Context, tenderID string, statuses []models.OfferStatus) (int, error) {
	list, err := r.ListTenderOffers(ctx, tenderID, statuses)
	return len(list), err
}

func sortOffers(out []models.Offer) {
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.SubmittedAt != nil && b.SubmittedAt != nil && !a.SubmittedAt.Equal(*b.SubmittedAt):
			return a.SubmittedAt.Before(*b.SubmittedAt)
		case a.SubmittedAt != nil && b.SubmittedAt == nil:
			return true
		case a.SubmittedAt == nil && b.SubmittedAt != nil:
			return false
		case !a.CreatedAt.Equal(b.CreatedAt):
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

type equityLog struct{ *backend }

func (r equityLog) LastEntry(_ context.Context, tenderID string) (*models.EquityLogEntry, error) {
	var last *models.EquityLogEntry
	r.read(func(st *state) {
		if entries := st.entries[tenderID]; len(entries) > 0 {
			e := entries[len(entries)-1]
			last = &e
		}
	})
	return last, nil
}

func (r equityLog) AppendEntry(_ context.Context, entry models.EquityLogEntry) error {
	return r.write(func(st *state) error {
		entries := st.entries[entry.TenderID]
		if n := len(entries); n > 0 && entries[n-1].Sequence >= entry.Sequence {
			return fmt.Errorf("equity log sequence conflict for tender %s", entry.TenderID)
		}
		st.entries[entry.TenderID] = append(entries, entry)
		return nil
	})
}

func (r equityLog) ListEntries(_ context.Context, tenderID string) ([]models.EquityLogEntry, error) {
	out := []models.EquityLogEntry{}
	r.read(func(st *state) {
		out = append(out, st.entries[tenderID]...)
	})
	return out, nil
}

type organizations struct{ *backend }

func (r organizations) GetOrganization(_ context.Context, organizationID string) (models.Organization, error) {
	var (
		org models.Organization
		ok  bool
	)
	r.read(func(st *state) { org, ok = st.organizations[organizationID] })
	if !ok {
		return models.Organization{}, models.ErrOrganizationNotFound
	}
	return org, nil
}

func (r organizations) GetOrganizations(_ context.Context, organizationIDs []string) (map[string]models.Organization, error) {
	out := make(map[string]models.Organization, len(organizationIDs))
	r.read(func(st *state) {
		for _, id := range organizationIDs {
			if org, ok := st.organizations[id]; ok {
				out[id] = org
			}
		}
	})
	return out, nil
}

func (r organizations) ListMemberships(_ context.Context, userID string) ([]models.Membership, error) {
	var out []models.Membership
	r.read(func(st *state) {
		for _, m := range st.memberships {
			if m.UserID == userID {
				out = append(out, m)
			}
		}
	})
	return out, nil
}

func (r organizations) MatchingOrganizations(_ context.Context, category string) ([]string, error) {
	var out []string
	r.read(func(st *state) {
		for orgID, categories := range st.savedSearches {
			if utils.Contains(categories, category) {
				out = append(out, orgID)
			}
		}
	})
	sort.Strings(out)
	return out, nil
}
