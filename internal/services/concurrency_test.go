package services

import (
	"context"
	"sync"
	"testing"

	"github.com/senyabanana/tender-platform/internal/equitylog"
	"github.com/senyabanana/tender-platform/internal/models"
)

func TestConcurrentSubmissionsKeepOneActiveOffer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tender := f.publishedTender(t, models.AnonymousMode)

	const workers = 24
	var wg sync.WaitGroup
	errs := make(chan error, workers*2)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			draft, err := f.offers.SaveDraft(ctx, tender.ID, "bidder-a", f.bidderA, offerRequest(int64(40000+i)))
			if err != nil {
				errs <- err
				return
			}
			if _, err := f.offers.Submit(ctx, draft.ID, f.bidderA); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if !IsDomainError(err) {
			t.Fatalf("unexpected error: %v", err)
		}
		if kind := models.KindOf(err); kind != models.InvariantViolationError && kind != models.InvalidTransitionError {
			t.Fatalf("error kind %s: %v", kind, err)
		}
	}

	active := 0
	for _, o := range f.store.Offers(tender.ID) {
		if o.OrganizationID == "bidder-a" && o.Status.Active() {
			active++
		}
	}
	if active != 1 {
		t.Fatalf("got %d active offers, want 1", active)
	}

	entries := f.entries(t, tender.ID)
	if n := countAction(entries, models.OfferReceivedAction); n != 1 {
		t.Fatalf("got %d OFFER_RECEIVED entries, want 1", n)
	}
	if err := equitylog.Verify(entries); err != nil {
		t.Fatalf("chain after concurrent writes: %v", err)
	}
}

func TestConcurrentBiddersDoNotBlockEachOther(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tender := f.publishedTender(t, models.ClassicMode)

	bidders := []struct {
		org   string
		actor models.Actor
	}{{"bidder-a", f.bidderA}, {"bidder-b", f.bidderB}}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		for _, b := range bidders {
			wg.Add(1)
			go func(org string, actor models.Actor) {
				defer wg.Done()
				if draft, err := f.offers.SaveDraft(ctx, tender.ID, org, actor, offerRequest(50000)); err == nil {
					_, _ = f.offers.Submit(ctx, draft.ID, actor)
				}
			}(b.org, b.actor)
		}
	}
	wg.Wait()

	active := map[string]int{}
	for _, o := range f.store.Offers(tender.ID) {
		if o.Status == models.SubmittedOffer {
			active[o.OrganizationID]++
		}
	}
	if active["bidder-a"] != 1 || active["bidder-b"] != 1 {
		t.Fatalf("submitted offers per organization = %v", active)
	}
}
