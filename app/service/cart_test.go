package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vibast-solutions/ms-go-orders/app/entity"
	"github.com/vibast-solutions/ms-go-orders/app/types"
)

type fakeOfferingRepo struct {
	offerings map[string]*entity.CatalogOffering
	lastIDs   []string
	calls     int
}

func (r *fakeOfferingRepo) FindByIDs(_ context.Context, ids []string) ([]*entity.CatalogOffering, error) {
	r.calls++
	r.lastIDs = ids
	found := make([]*entity.CatalogOffering, 0, len(ids))
	for _, id := range ids {
		if offering, ok := r.offerings[id]; ok {
			copyItem := *offering
			found = append(found, &copyItem)
		}
	}
	return found, nil
}

func strPtr(s string) *string { return &s }

func catalogFixture() *fakeOfferingRepo {
	priceID := "price_pentest_std"
	return &fakeOfferingRepo{offerings: map[string]*entity.CatalogOffering{
		"plan-pentest": {
			ID:                  "plan-pentest",
			ServiceID:           "svc-pentest",
			ServiceName:         "Penetration Testing",
			ServicePurchaseType: entity.PurchaseTypePreConfigured,
			Name:                "Standard",
			Description:         strPtr("External network assessment"),
			UnitPriceCents:      250000,
			Currency:            "usd",
			Published:           true,
			GatewayPriceID:      &priceID,
		},
		"plan-audit": {
			ID:                  "plan-audit",
			ServiceID:           "svc-audit",
			ServiceName:         "Security Audit",
			ServiceDescription:  strPtr("Compliance-focused review"),
			ServicePurchaseType: entity.PurchaseTypePreConfigured,
			Name:                "Basic",
			UnitPriceCents:      90000,
			Currency:            "usd",
			Published:           true,
		},
		"plan-custom": {
			ID:                  "plan-custom",
			ServiceID:           "svc-custom",
			ServiceName:         "Red Team Engagement",
			ServicePurchaseType: entity.PurchaseTypeQuoteOnly,
			Name:                "Custom",
			UnitPriceCents:      0,
			Currency:            "usd",
			Published:           true,
		},
		"plan-retired": {
			ID:                  "plan-retired",
			ServiceID:           "svc-audit",
			ServiceName:         "Security Audit",
			ServicePurchaseType: entity.PurchaseTypePreConfigured,
			Name:                "Legacy",
			UnitPriceCents:      50000,
			Currency:            "usd",
			Published:           false,
		},
	}}
}

func TestCartValidatorUsesCatalogPrices(t *testing.T) {
	repo := catalogFixture()
	validator := NewCartValidator(repo)

	// Client-side price is a lie; the catalog must win.
	lines, err := validator.Validate(context.Background(), []types.CartLine{
		{OfferingID: "plan-pentest", Quantity: 2, Price: 1},
		{OfferingID: "plan-audit", Quantity: 1, Price: 1},
	})
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 priced lines, got %d", len(lines))
	}
	if lines[0].UnitPriceCents != 250000 || lines[1].UnitPriceCents != 90000 {
		t.Fatalf("catalog prices not applied: %d %d", lines[0].UnitPriceCents, lines[1].UnitPriceCents)
	}
	if lines[0].Quantity != 2 || lines[1].Quantity != 1 {
		t.Fatalf("quantities lost: %d %d", lines[0].Quantity, lines[1].Quantity)
	}
	if lines[0].GatewayPriceID == nil || *lines[0].GatewayPriceID != "price_pentest_std" {
		t.Fatalf("registered price id lost: %v", lines[0].GatewayPriceID)
	}
	if lines[1].GatewayPriceID != nil {
		t.Fatalf("expected inline pricing for plan-audit, got %v", *lines[1].GatewayPriceID)
	}
}

func TestCartValidatorDescriptionFallsBackToService(t *testing.T) {
	validator := NewCartValidator(catalogFixture())

	lines, err := validator.Validate(context.Background(), []types.CartLine{{OfferingID: "plan-audit", Quantity: 1}})
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if lines[0].Description != "Compliance-focused review" {
		t.Fatalf("expected service description fallback, got %q", lines[0].Description)
	}
}

func TestCartValidatorRejectsEmptyCart(t *testing.T) {
	validator := NewCartValidator(catalogFixture())

	_, err := validator.Validate(context.Background(), nil)
	if !errors.Is(err, ErrCartInvalid) {
		t.Fatalf("expected ErrCartInvalid, got %v", err)
	}
}

func TestCartValidatorRejectsNonPositiveQuantity(t *testing.T) {
	validator := NewCartValidator(catalogFixture())

	_, err := validator.Validate(context.Background(), []types.CartLine{{OfferingID: "plan-pentest", Quantity: 0}})
	if !errors.Is(err, ErrCartInvalid) {
		t.Fatalf("expected ErrCartInvalid, got %v", err)
	}
}

func TestCartValidatorRejectsUnknownOffering(t *testing.T) {
	validator := NewCartValidator(catalogFixture())

	_, err := validator.Validate(context.Background(), []types.CartLine{{OfferingID: "plan-nope", Quantity: 1}})
	if !errors.Is(err, ErrCartInvalid) {
		t.Fatalf("expected ErrCartInvalid, got %v", err)
	}
	if !strings.Contains(err.Error(), "plan-nope") {
		t.Fatalf("error should name the missing offering: %v", err)
	}
}

func TestCartValidatorTreatsUnpublishedAsUnknown(t *testing.T) {
	validator := NewCartValidator(catalogFixture())

	_, err := validator.Validate(context.Background(), []types.CartLine{{OfferingID: "plan-retired", Quantity: 1}})
	if !errors.Is(err, ErrCartInvalid) {
		t.Fatalf("expected ErrCartInvalid, got %v", err)
	}
	if !strings.Contains(err.Error(), "plan-retired") {
		t.Fatalf("unpublished offering should look unknown: %v", err)
	}
}

func TestCartValidatorRejectsQuoteOnlyByName(t *testing.T) {
	validator := NewCartValidator(catalogFixture())

	_, err := validator.Validate(context.Background(), []types.CartLine{
		{OfferingID: "plan-pentest", Quantity: 1},
		{OfferingID: "plan-custom", Quantity: 1},
	})
	if !errors.Is(err, ErrCartInvalid) {
		t.Fatalf("expected ErrCartInvalid, got %v", err)
	}
	if !strings.Contains(err.Error(), "Red Team Engagement - Custom") {
		t.Fatalf("error should name the quote-only offering: %v", err)
	}
}

func TestCartValidatorBatchesDuplicateIDs(t *testing.T) {
	repo := catalogFixture()
	validator := NewCartValidator(repo)

	lines, err := validator.Validate(context.Background(), []types.CartLine{
		{OfferingID: "plan-pentest", Quantity: 1},
		{OfferingID: "plan-pentest", Quantity: 3},
	})
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if repo.calls != 1 {
		t.Fatalf("expected a single catalog lookup, got %d", repo.calls)
	}
	if len(repo.lastIDs) != 1 {
		t.Fatalf("duplicate ids should be deduplicated in the lookup: %v", repo.lastIDs)
	}
	if len(lines) != 2 {
		t.Fatalf("each cart line should stay its own priced line, got %d", len(lines))
	}
}
