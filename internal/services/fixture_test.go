package services

import (
	"context"
	"testing"
	"time"

	"github.com/senyabanana/tender-platform/internal/authz"
	"github.com/senyabanana/tender-platform/internal/clock"
	"github.com/senyabanana/tender-platform/internal/models"
	"github.com/senyabanana/tender-platform/internal/notify"
	"github.com/senyabanana/tender-platform/internal/repository/memory"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

var start = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

// fixture - заказчик "buyer" и два участника "bidder-a", "bidder-b".
type fixture struct {
	store    *memory.Store
	clock    *clock.FakeClock
	recorder *notify.Recorder
	logs     *test.Hook
	tenders  *TenderService
	offers   *OfferService
	equity   *EquityLogService
	payments *PaymentHook

	owner   models.Actor
	editor  models.Actor
	viewer  models.Actor
	bidderA models.Actor
	bidderB models.Actor
}

func member(userID, orgID string, role models.Role) models.Membership {
	return models.Membership{OrganizationID: orgID, UserID: userID, Role: role}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	for _, org := range []models.Organization{
		{ID: "buyer", Name: "Stadt Zürich", City: "Zürich", Canton: "ZH"},
		{ID: "bidder-a", Name: "Alpenbau AG", City: "Chur", Canton: "GR", ContactEmail: "offers@alpenbau.ch"},
		{ID: "bidder-b", Name: "Seeland Holz GmbH", City: "Biel", Canton: "BE"},
	} {
		store.AddOrganization(org)
	}

	f := &fixture{
		store:    store,
		clock:    clock.Fake(start),
		recorder: &notify.Recorder{},
		owner:    models.Actor{UserID: "u-owner", Memberships: []models.Membership{member("u-owner", "buyer", models.OwnerRole)}},
		editor:   models.Actor{UserID: "u-editor", Memberships: []models.Membership{member("u-editor", "buyer", models.EditorRole)}},
		viewer:   models.Actor{UserID: "u-viewer", Memberships: []models.Membership{member("u-viewer", "buyer", models.ViewerRole)}},
		bidderA:  models.Actor{UserID: "u-a", Memberships: []models.Membership{member("u-a", "bidder-a", models.AdminRole)}},
		bidderB:  models.Actor{UserID: "u-b", Memberships: []models.Membership{member("u-b", "bidder-b", models.EditorRole)}},
	}
	for _, a := range []models.Actor{f.owner, f.editor, f.viewer, f.bidderA, f.bidderB} {
		for _, m := range a.Memberships {
			store.AddMembership(m)
		}
	}

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	f.logs = hook
	entry := logrus.NewEntry(logger)
	engine := NewEngine(store, authz.NewGuard(authz.DefaultTable), f.clock, notify.NewInline(f.recorder, entry), entry)
	f.tenders = NewTenderService(engine)
	f.offers = NewOfferService(engine)
	f.equity = NewEquityLogService(engine)
	f.payments = NewPaymentHook(f.tenders, f.offers, entry)
	return f
}

func (f *fixture) deadline() time.Time {
	return start.Add(7 * 24 * time.Hour)
}

func (f *fixture) tenderRequest(mode models.DisclosureMode) models.TenderRequest {
	return models.TenderRequest{
		Title:       "Sanierung Schulhaus Letzi",
		Description: "Renovation of the school building",
		Category:    "construction",
		Deadline:    f.deadline(),
		Mode:        mode,
		Visibility:  models.PublicTender,
	}
}

func (f *fixture) publishedTender(t *testing.T, mode models.DisclosureMode) models.Tender {
	t.Helper()
	ctx := context.Background()
	tender, err := f.tenders.CreateTender(ctx, "buyer", f.owner, f.tenderRequest(mode))
	if err != nil {
		t.Fatalf("CreateTender: %v", err)
	}
	tender, err = f.tenders.Publish(ctx, tender.ID, f.owner)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	return tender
}

func offerRequest(price int64) models.OfferRequest {
	return models.OfferRequest{
		Price:       decimal.NewFromInt(price),
		Description: "Complete renovation within 6 months",
		Documents:   []string{"offers/renovation.pdf"},
	}
}

func (f *fixture) submitOffer(t *testing.T, tenderID, orgID string, actor models.Actor, price int64) models.Offer {
	t.Helper()
	ctx := context.Background()
	draft, err := f.offers.SaveDraft(ctx, tenderID, orgID, actor, offerRequest(price))
	if err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	offer, err := f.offers.Submit(ctx, draft.ID, actor)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return offer
}

func (f *fixture) entries(t *testing.T, tenderID string) []models.EquityLogEntry {
	t.Helper()
	entries, err := f.store.Repos().EquityLog.ListEntries(context.Background(), tenderID)
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	return entries
}

func countAction(entries []models.EquityLogEntry, action models.EquityAction) int {
	n := 0
	for _, e := range entries {
		if e.Action == action {
			n++
		}
	}
	return n
}
