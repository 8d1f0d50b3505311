package services

import (
	"context"
	"errors"
	"testing"

	"github.com/senyabanana/tender-platform/internal/models"
)

func TestPaymentConfirmPublishesTender(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft, err := f.tenders.CreateTender(ctx, "buyer", f.owner, f.tenderRequest(models.ClassicMode))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.tenders.RequestPublicationPayment(ctx, draft.ID, f.owner); err != nil {
		t.Fatal(err)
	}

	event := PaymentEvent{
		Type:     CheckoutCompleted,
		Metadata: PaymentMetadata{Type: TenderPublicationPayment, TenderID: draft.ID, OrganizationID: "buyer"},
	}
	if err := f.payments.Handle(ctx, event); err != nil {
		t.Fatal(err)
	}
	if err := f.payments.Handle(ctx, event); err != nil {
		t.Fatalf("repeated confirmation: %v", err)
	}

	tender, _ := f.store.Repos().Tenders.GetTender(ctx, draft.ID)
	if tender.Status != models.PublishedTender || tender.PaymentStatus != models.PaymentPaid {
		t.Fatalf("tender = %s / %s", tender.Status, tender.PaymentStatus)
	}
	entries := f.entries(t, draft.ID)
	if countAction(entries, models.TenderPublishedAction) != 1 {
		t.Fatal("expected one TENDER_PUBLISHED entry")
	}
	if last := entries[len(entries)-1]; last.ActorID != models.SystemUserID {
		t.Fatalf("publish actor = %s", last.ActorID)
	}
}

func TestPaymentConfirmRejectsForeignOrganization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft, err := f.tenders.CreateTender(ctx, "buyer", f.owner, f.tenderRequest(models.ClassicMode))
	if err != nil {
		t.Fatal(err)
	}
	err = f.payments.Confirm(ctx, PaymentMetadata{Type: TenderPublicationPayment, TenderID: draft.ID, OrganizationID: "bidder-a"})
	if models.KindOf(err) != models.ValidationError {
		t.Fatalf("got %v", err)
	}
	err = f.payments.Confirm(ctx, PaymentMetadata{Type: OfferSubmissionPayment, OrganizationID: "bidder-a"})
	if models.KindOf(err) != models.ValidationError {
		t.Fatalf("missing offer id: got %v", err)
	}
	err = f.payments.Confirm(ctx, PaymentMetadata{Type: "subscription", OrganizationID: "buyer"})
	if models.KindOf(err) != models.ValidationError {
		t.Fatalf("unknown purpose: got %v", err)
	}
}

func TestPaymentConfirmSubmitsOfferButKeepsInvariants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tender := f.publishedTender(t, models.AnonymousMode)
	draft, err := f.offers.SaveDraft(ctx, tender.ID, "bidder-a", f.bidderA, offerRequest(50000))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.offers.RequestSubmissionPayment(ctx, draft.ID, f.bidderA); err != nil {
		t.Fatal(err)
	}

	f.clock.Set(f.deadline().Add(1))
	md := PaymentMetadata{Type: OfferSubmissionPayment, OfferID: draft.ID, OrganizationID: "bidder-a"}
	if err := f.payments.Confirm(ctx, md); !errors.Is(err, models.ErrWindowClosed) {
		t.Fatalf("late paid submission: got %v", err)
	}

	f.clock.Set(start)
	if err := f.payments.Confirm(ctx, md); err != nil {
		t.Fatal(err)
	}
	offer, _ := f.store.Repos().Offers.GetOffer(ctx, draft.ID)
	if offer.Status != models.SubmittedOffer || offer.PaymentStatus != models.PaymentPaid || offer.AnonymousID == "" {
		t.Fatalf("offer = %+v", offer)
	}
}

func TestPaymentVoid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft, err := f.tenders.CreateTender(ctx, "buyer", f.owner, f.tenderRequest(models.ClassicMode))
	if err != nil {
		t.Fatal(err)
	}
	md := PaymentMetadata{Type: TenderPublicationPayment, TenderID: draft.ID, OrganizationID: "buyer"}
	if err := f.payments.Void(ctx, md); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("void without pending payment: got %v", err)
	}
	if _, err := f.tenders.RequestPublicationPayment(ctx, draft.ID, f.owner); err != nil {
		t.Fatal(err)
	}
	if err := f.payments.Handle(ctx, PaymentEvent{Type: CheckoutExpired, Metadata: md}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.store.Repos().Tenders.GetTender(ctx, draft.ID); !errors.Is(err, models.ErrTenderNotFound) {
		t.Fatalf("expired draft still present: %v", err)
	}

	tender := f.publishedTender(t, models.ClassicMode)
	offer, err := f.offers.SaveDraft(ctx, tender.ID, "bidder-b", f.bidderB, offerRequest(30000))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.offers.RequestSubmissionPayment(ctx, offer.ID, f.bidderB); err != nil {
		t.Fatal(err)
	}
	if err := f.payments.Void(ctx, PaymentMetadata{Type: OfferSubmissionPayment, OfferID: offer.ID}); err != nil {
		t.Fatal(err)
	}
	stored, _ := f.store.Repos().Offers.GetOffer(ctx, offer.ID)
	if stored.Status != models.DraftOffer || stored.PaymentStatus != models.PaymentFailed {
		t.Fatalf("offer after expired payment = %s / %s", stored.Status, stored.PaymentStatus)
	}
}

func TestPaymentHandleIgnoresUnknownEvents(t *testing.T) {
	f := newFixture(t)
	if err := f.payments.Handle(context.Background(), PaymentEvent{Type: "invoice.paid"}); err != nil {
		t.Fatalf("got %v", err)
	}
}
