package repository

import (
	"context"
	"database/sql"

	"github.com/vibast-solutions/ms-go-orders/app/entity"
)

// OfferingRepository reads the service catalog. The catalog itself is owned
// by another service; this subsystem never writes to it.
type OfferingRepository struct {
	db DBTX
}

func NewOfferingRepository(db DBTX) *OfferingRepository {
	return &OfferingRepository{db: db}
}

func (r *OfferingRepository) FindByIDs(ctx context.Context, ids []string) ([]*entity.CatalogOffering, error) {
	if len(ids) == 0 {
		return []*entity.CatalogOffering{}, nil
	}

	query := `
		SELECT p.id, p.service_id, s.name, s.description, s.purchase_type,
			p.name, p.description, p.unit_price_cents, p.currency, p.published,
			p.gateway_price_id
		FROM service_plans p
		JOIN services s ON s.id = p.service_id
		WHERE p.id IN (` + placeholders(len(ids)) + `)
	`

	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	offerings := make([]*entity.CatalogOffering, 0, len(ids))
	for rows.Next() {
		item := &entity.CatalogOffering{}
		var serviceDescription sql.NullString
		var description sql.NullString
		var gatewayPriceID sql.NullString

		err := rows.Scan(
			&item.ID,
			&item.ServiceID,
			&item.ServiceName,
			&serviceDescription,
			&item.ServicePurchaseType,
			&item.Name,
			&description,
			&item.UnitPriceCents,
			&item.Currency,
			&item.Published,
			&gatewayPriceID,
		)
		if err != nil {
			return nil, err
		}

		item.ServiceDescription = stringPtrFromNull(serviceDescription)
		item.Description = stringPtrFromNull(description)
		item.GatewayPriceID = stringPtrFromNull(gatewayPriceID)
		offerings = append(offerings, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return offerings, nil
}
