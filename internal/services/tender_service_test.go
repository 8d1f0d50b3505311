package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/senyabanana/tender-platform/internal/models"
)

func TestAwardAcceptedOffer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tender := f.publishedTender(t, models.AnonymousMode)
	winner := f.submitOffer(t, tender.ID, "bidder-a", f.bidderA, 50000)
	loser := f.submitOffer(t, tender.ID, "bidder-b", f.bidderB, 62000)

	if _, err := f.tenders.Award(ctx, tender.ID, f.owner, winner.ID); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("award before accept: got %v", err)
	}
	if _, err := f.offers.Accept(ctx, winner.ID, f.owner); err != nil {
		t.Fatal(err)
	}
	f.recorder.Reset()

	awarded, err := f.tenders.Award(ctx, tender.ID, f.owner, winner.ID)
	if err != nil {
		t.Fatal(err)
	}
	if awarded.Status != models.AwardedTender || awarded.AwardedOfferID != winner.ID || !awarded.IdentityRevealed {
		t.Fatalf("unexpected tender %+v", awarded)
	}
	stored, _ := f.store.Repos().Offers.GetOffer(ctx, winner.ID)
	if stored.Status != models.AwardedOffer {
		t.Fatalf("winner status = %s", stored.Status)
	}
	if countAction(f.entries(t, tender.ID), models.TenderAwardedAction) != 1 {
		t.Fatal("expected exactly one TENDER_AWARDED entry")
	}

	recipients := map[string]bool{}
	for _, d := range f.recorder.OfType(models.TenderAwardedNotification) {
		recipients[d.OrganizationID] = true
	}
	if !recipients["bidder-a"] || !recipients["bidder-b"] || !recipients["buyer"] {
		t.Fatalf("award recipients = %v", recipients)
	}

	if _, err := f.offers.Withdraw(ctx, winner.ID, f.bidderA); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("withdraw awarded offer: got %v", err)
	}
	if _, err := f.offers.Withdraw(ctx, loser.ID, f.bidderB); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("withdraw from awarded tender: got %v", err)
	}
	if _, err := f.tenders.Cancel(ctx, tender.ID, f.owner); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("cancel awarded tender: got %v", err)
	}
}

func TestAwardOfferFromAnotherTender(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.publishedTender(t, models.ClassicMode)
	second := f.publishedTender(t, models.ClassicMode)
	offer := f.submitOffer(t, second.ID, "bidder-a", f.bidderA, 50000)
	if _, err := f.offers.Accept(ctx, offer.ID, f.owner); err != nil {
		t.Fatal(err)
	}
	if _, err := f.tenders.Award(ctx, first.ID, f.owner, offer.ID); !errors.Is(err, models.ErrOfferNotFound) {
		t.Fatalf("award foreign offer: got %v", err)
	}
}

func TestCloseEarlyRequiresManager(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tender := f.publishedTender(t, models.ClassicMode)
	f.submitOffer(t, tender.ID, "bidder-a", f.bidderA, 50000)

	if _, err := f.tenders.Close(ctx, tender.ID, f.editor); !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("editor early close: got %v", err)
	}
	closed, err := f.tenders.Close(ctx, tender.ID, f.owner)
	if err != nil {
		t.Fatal(err)
	}
	if closed.Status != models.ClosedTender || closed.ClosedAt == nil {
		t.Fatalf("unexpected tender %+v", closed)
	}
	entries := f.entries(t, tender.ID)
	last := entries[len(entries)-1]
	if last.Action != models.TenderClosedAction || last.Metadata["early"] != "true" || last.Metadata["offerCount"] != "1" {
		t.Fatalf("close entry = %+v", last)
	}

	other := f.publishedTender(t, models.ClassicMode)
	f.clock.Set(f.deadline().Add(time.Minute))
	if _, err := f.tenders.Close(ctx, other.ID, f.editor); err != nil {
		t.Fatalf("editor close after deadline: %v", err)
	}
}

func TestCancelLeavesOffersUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tender := f.publishedTender(t, models.ClassicMode)
	offer := f.submitOffer(t, tender.ID, "bidder-a", f.bidderA, 50000)
	f.recorder.Reset()

	cancelled, err := f.tenders.Cancel(ctx, tender.ID, f.owner)
	if err != nil {
		t.Fatal(err)
	}
	if cancelled.Status != models.CancelledTender {
		t.Fatalf("status = %s", cancelled.Status)
	}
	stored, _ := f.store.Repos().Offers.GetOffer(ctx, offer.ID)
	if stored.Status != models.SubmittedOffer {
		t.Fatalf("offer status changed to %s", stored.Status)
	}
	if got := f.recorder.OfType(models.TenderCancelledNotification); len(got) != 1 || got[0].OrganizationID != "bidder-a" {
		t.Fatalf("cancel notices = %+v", got)
	}
	if _, err := f.offers.Shortlist(ctx, offer.ID, f.owner); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("shortlist on cancelled tender: got %v", err)
	}
}

func TestEditAndDeleteDraftTender(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft, err := f.tenders.CreateTender(ctx, "buyer", f.editor, f.tenderRequest(models.ClassicMode))
	if err != nil {
		t.Fatal(err)
	}
	edited, err := f.tenders.EditDraft(ctx, draft.ID, f.editor, models.TenderRequest{Title: "Neubau Turnhalle"})
	if err != nil {
		t.Fatal(err)
	}
	if edited.Title != "Neubau Turnhalle" {
		t.Fatalf("title = %q", edited.Title)
	}
	if _, err := f.tenders.GetTender(ctx, draft.ID, f.bidderA); !errors.Is(err, models.ErrTenderNotFound) {
		t.Fatalf("other organization reads draft: got %v", err)
	}

	if err := f.tenders.DeleteDraft(ctx, draft.ID, f.viewer); !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("viewer delete: got %v", err)
	}
	if err := f.tenders.DeleteDraft(ctx, draft.ID, f.editor); err != nil {
		t.Fatal(err)
	}
	if _, err := f.tenders.GetTender(ctx, draft.ID, f.owner); !errors.Is(err, models.ErrTenderNotFound) {
		t.Fatalf("deleted tender still readable: %v", err)
	}
	entries := f.entries(t, draft.ID)
	if len(entries) != 2 || entries[1].Action != models.TenderDeletedAction {
		t.Fatalf("log of deleted tender = %+v", entries)
	}
}

func TestPublishedTenderIsImmutable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tender := f.publishedTender(t, models.ClassicMode)
	if _, err := f.tenders.EditDraft(ctx, tender.ID, f.owner, models.TenderRequest{Title: "x"}); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("edit published: got %v", err)
	}
	if err := f.tenders.DeleteDraft(ctx, tender.ID, f.owner); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("delete published: got %v", err)
	}
}

func TestPublishNotifiesSavedSearches(t *testing.T) {
	f := newFixture(t)
	f.store.AddSavedSearch("bidder-a", "construction")
	f.store.AddSavedSearch("bidder-b", "legal")
	f.store.AddSavedSearch("buyer", "construction")

	f.publishedTender(t, models.ClassicMode)

	got := f.recorder.OfType(models.TenderMatchNotification)
	if len(got) != 1 || got[0].OrganizationID != "bidder-a" {
		t.Fatalf("match notices = %+v", got)
	}
	published := f.recorder.OfType(models.TenderPublishedNotification)
	for _, d := range published {
		if d.Channel == models.InAppChannel && d.ExcludeUserID != f.owner.UserID {
			t.Fatalf("publisher not excluded: %+v", d)
		}
	}
}

func TestFetchTendersListsPublicPublished(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	public := f.publishedTender(t, models.ClassicMode)
	if _, err := f.tenders.CreateTender(ctx, "buyer", f.owner, f.tenderRequest(models.ClassicMode)); err != nil {
		t.Fatal(err)
	}
	private := f.tenderRequest(models.ClassicMode)
	private.Visibility = models.PrivateTender
	hidden, err := f.tenders.CreateTender(ctx, "buyer", f.owner, private)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.tenders.Publish(ctx, hidden.ID, f.owner); err != nil {
		t.Fatal(err)
	}

	list, err := f.tenders.FetchTenders(ctx, 10, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != public.ID {
		t.Fatalf("public list = %+v", list)
	}
	if _, err := f.tenders.GetTender(ctx, hidden.ID, f.bidderA); err != nil {
		t.Fatalf("private tender by id: %v", err)
	}
	own, err := f.tenders.GetOrganizationTenders(ctx, "buyer", f.viewer, 10, 0)
	if err != nil || len(own) != 3 {
		t.Fatalf("organization tenders = %d, %v", len(own), err)
	}
}

func TestCreateTenderForUnknownOrganization(t *testing.T) {
	f := newFixture(t)
	ghost := models.Actor{UserID: "u-ghost", Memberships: []models.Membership{member("u-ghost", "ghost", models.OwnerRole)}}
	_, err := f.tenders.CreateTender(context.Background(), "ghost", ghost, f.tenderRequest(models.ClassicMode))
	if !errors.Is(err, models.ErrOrganizationNotFound) {
		t.Fatalf("got %v", err)
	}
}

func TestEquityLogVerify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tender := f.publishedTender(t, models.ClassicMode)
	offer := f.submitOffer(t, tender.ID, "bidder-a", f.bidderA, 50000)
	if _, err := f.offers.Shortlist(ctx, offer.ID, f.owner); err != nil {
		t.Fatal(err)
	}

	if _, err := f.equity.List(ctx, tender.ID, f.viewer); !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("viewer reads log: got %v", err)
	}
	entries, err := f.equity.List(ctx, tender.ID, f.owner)
	if err != nil {
		t.Fatal(err)
	}
	want := []models.EquityAction{models.TenderCreatedAction, models.TenderPublishedAction, models.OfferReceivedAction, models.OfferShortlistedAction}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(entries), len(want))
	}
	for i, action := range want {
		if entries[i].Action != action {
			t.Fatalf("entry %d action = %s, want %s", i, entries[i].Action, action)
		}
	}

	report, err := f.equity.Verify(ctx, tender.ID, f.owner)
	if err != nil {
		t.Fatal(err)
	}
	if !report.Valid || report.Entries != 4 {
		t.Fatalf("report = %+v", report)
	}
}

func TestEquityLogHidesBiddersBeforeReveal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tender := f.publishedTender(t, models.AnonymousMode)
	offer := f.submitOffer(t, tender.ID, "bidder-a", f.bidderA, 50000)
	if _, err := f.offers.Withdraw(ctx, offer.ID, f.bidderA); err != nil {
		t.Fatal(err)
	}

	actorsOf := func() map[models.EquityAction]string {
		t.Helper()
		entries, err := f.equity.List(ctx, tender.ID, f.owner)
		if err != nil {
			t.Fatal(err)
		}
		out := map[models.EquityAction]string{}
		for _, e := range entries {
			out[e.Action] = e.ActorID
		}
		return out
	}

	before := actorsOf()
	for _, action := range []models.EquityAction{models.OfferReceivedAction, models.OfferWithdrawnAction} {
		if before[action] != offer.AnonymousID {
			t.Fatalf("before deadline %s actor = %q, want %q", action, before[action], offer.AnonymousID)
		}
	}
	if before[models.TenderPublishedAction] != f.owner.UserID {
		t.Fatalf("procuring actor masked: %q", before[models.TenderPublishedAction])
	}

	// Проверка цепочки идёт по хранимым записям.
	report, err := f.equity.Verify(ctx, tender.ID, f.owner)
	if err != nil || !report.Valid {
		t.Fatalf("report = %+v, err = %v", report, err)
	}
	stored := f.entries(t, tender.ID)
	for _, e := range stored {
		if e.Action == models.OfferReceivedAction && e.ActorID != f.bidderA.UserID {
			t.Fatalf("stored entry changed: %q", e.ActorID)
		}
	}

	f.clock.Set(f.deadline().Add(time.Second))
	if after := actorsOf(); after[models.OfferReceivedAction] != f.bidderA.UserID {
		t.Fatalf("after deadline actor = %q", after[models.OfferReceivedAction])
	}
}
