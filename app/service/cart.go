package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/vibast-solutions/ms-go-orders/app/entity"
	"github.com/vibast-solutions/ms-go-orders/app/types"
)

type offeringRepository interface {
	FindByIDs(ctx context.Context, ids []string) ([]*entity.CatalogOffering, error)
}

// CartValidator resolves a submitted cart against the catalog. Whatever
// price the client displayed is discarded here; only catalog prices leave
// this component.
type CartValidator struct {
	offeringRepo offeringRepository
}

func NewCartValidator(offeringRepo offeringRepository) *CartValidator {
	return &CartValidator{offeringRepo: offeringRepo}
}

func (v *CartValidator) Validate(ctx context.Context, lines []types.CartLine) ([]entity.PricedLine, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: cart cannot be empty", ErrCartInvalid)
	}

	ids := make([]string, 0, len(lines))
	seen := make(map[string]bool, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line.OfferingID) == "" {
			return nil, fmt.Errorf("%w: cart line is missing an offering id", ErrCartInvalid)
		}
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be > 0", ErrCartInvalid)
		}
		if !seen[line.OfferingID] {
			seen[line.OfferingID] = true
			ids = append(ids, line.OfferingID)
		}
	}

	offerings, err := v.offeringRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*entity.CatalogOffering, len(offerings))
	for _, offering := range offerings {
		// Unpublished offerings are indistinguishable from unknown ones
		// on purpose: neither is purchasable.
		if offering.Published {
			byID[offering.ID] = offering
		}
	}

	missing := make([]string, 0)
	quoteOnly := make([]string, 0)
	for _, id := range ids {
		offering, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		if offering.ServicePurchaseType != entity.PurchaseTypePreConfigured {
			quoteOnly = append(quoteOnly, offering.ServiceName+" - "+offering.Name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: unknown or unavailable offerings: %s", ErrCartInvalid, strings.Join(missing, ", "))
	}
	if len(quoteOnly) > 0 {
		return nil, fmt.Errorf("%w: not available for direct purchase: %s", ErrCartInvalid, strings.Join(quoteOnly, ", "))
	}

	priced := make([]entity.PricedLine, 0, len(lines))
	for _, line := range lines {
		offering := byID[line.OfferingID]
		priced = append(priced, entity.PricedLine{
			OfferingID:     offering.ID,
			ServiceID:      offering.ServiceID,
			Name:           offering.Name,
			Description:    offeringDescription(offering),
			Quantity:       line.Quantity,
			UnitPriceCents: offering.UnitPriceCents,
			Currency:       offering.Currency,
			GatewayPriceID: offering.GatewayPriceID,
		})
	}

	return priced, nil
}

func offeringDescription(offering *entity.CatalogOffering) string {
	if offering.Description != nil && strings.TrimSpace(*offering.Description) != "" {
		return strings.TrimSpace(*offering.Description)
	}
	if offering.ServiceDescription != nil {
		return strings.TrimSpace(*offering.ServiceDescription)
	}
	return ""
}
