package entity

const (
	PurchaseTypePreConfigured = "pre_configured"
	PurchaseTypeQuoteOnly     = "quote_only"
)

// CatalogOffering is a purchasable plan of a catalog service. The catalog
// owns these rows; this subsystem only reads them.
type CatalogOffering struct {
	ID string

	ServiceID           string
	ServiceName         string
	ServiceDescription  *string
	ServicePurchaseType string

	Name        string
	Description *string

	UnitPriceCents int64
	Currency       string
	Published      bool

	// GatewayPriceID points at a price registered with the gateway. When
	// nil the checkout builder sends an inline price instead.
	GatewayPriceID *string
}

// PricedLine is a cart line after catalog validation: quantity from the
// client, everything money-related from the catalog.
type PricedLine struct {
	OfferingID     string
	ServiceID      string
	Name           string
	Description    string
	Quantity       int64
	UnitPriceCents int64
	Currency       string
	GatewayPriceID *string
}
