package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-orders/app/entity"
)

type OrderFilter struct {
	Status  entity.OrderStatus
	OwnerID string
	Limit   int32
	Offset  int32
}

type OrderRepository struct {
	db DBTX
}

func NewOrderRepository(db DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, external_payment_id, owner_id, amount_cents, amount_refunded_cents,
		currency, status, metadata_json, created_at, updated_at`

// UpsertByExternalID inserts the order or, when a row already exists for the
// same external payment id, applies the incoming event behind a precedence
// guard. Every mutable column sits behind the same guard as the status: an
// event whose status loses must not still rewrite the amount, currency or
// the cart snapshot, which is immutable once attached. The whole
// read-and-guard happens inside the single statement, so concurrent webhook
// deliveries for the same key serialize on the database.
func (r *OrderRepository) UpsertByExternalID(ctx context.Context, order *entity.Order) error {
	metadataJSON, err := serializeMetadata(order.Metadata)
	if err != nil {
		return err
	}

	overridable := entity.OverridableBy(order.Status)
	guard := "1 = 0"
	guardArgs := make([]interface{}, 0, len(overridable))
	if len(overridable) > 0 {
		guard = "status IN (" + placeholders(len(overridable)) + ")"
		for _, status := range overridable {
			guardArgs = append(guardArgs, string(status))
		}
	}

	// MySQL applies the SET list left to right and the guard reads the
	// stored status, so the status assignment must come last.
	assignments := []string{
		"owner_id = IF(" + guard + ", COALESCE(VALUES(owner_id), owner_id), owner_id)",
		"amount_cents = IF(" + guard + ", VALUES(amount_cents), amount_cents)",
		"currency = IF(" + guard + ", VALUES(currency), currency)",
		"metadata_json = IF(" + guard + ", VALUES(metadata_json), metadata_json)",
		"updated_at = IF(" + guard + ", VALUES(updated_at), updated_at)",
		"status = IF(" + guard + ", VALUES(status), status)",
	}

	args := []interface{}{
		order.ID,
		order.ExternalPaymentID,
		nullableStringValue(order.OwnerID),
		order.AmountCents,
		order.AmountRefundedCents,
		order.Currency,
		string(order.Status),
		metadataJSON,
		order.CreatedAt,
		order.UpdatedAt,
	}
	for range assignments {
		args = append(args, guardArgs...)
	}

	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			` + strings.Join(assignments, ",\n\t\t\t")

	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

// CreateIfAbsent inserts the order only when no row exists for its external
// payment id. An existing row is left entirely untouched.
func (r *OrderRepository) CreateIfAbsent(ctx context.Context, order *entity.Order) error {
	metadataJSON, err := serializeMetadata(order.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE id = id
	`

	_, err = r.db.ExecContext(ctx, query,
		order.ID,
		order.ExternalPaymentID,
		nullableStringValue(order.OwnerID),
		order.AmountCents,
		order.AmountRefundedCents,
		order.Currency,
		string(order.Status),
		metadataJSON,
		order.CreatedAt,
		order.UpdatedAt,
	)
	return err
}

// UpdateStatusIfPrecedes applies a guarded status transition keyed on the
// external payment id and reports whether any row changed. Zero rows is not
// an error: either no order exists for the key, or the stored status already
// outranks the incoming one. When amountRefundedCents is provided the update
// is also allowed at equal status as long as the refunded tally grows, so a
// second partial refund still lands.
func (r *OrderRepository) UpdateStatusIfPrecedes(ctx context.Context, externalPaymentID string, next entity.OrderStatus, amountRefundedCents *int64) (bool, error) {
	overridable := entity.OverridableBy(next)
	if len(overridable) == 0 && amountRefundedCents == nil {
		return false, nil
	}

	conditions := make([]string, 0, 2)
	args := []interface{}{string(next)}

	var refunded interface{}
	if amountRefundedCents != nil {
		refunded = *amountRefundedCents
	}
	args = append(args, refunded, time.Now().UTC(), externalPaymentID)

	if len(overridable) > 0 {
		conditions = append(conditions, "status IN ("+placeholders(len(overridable))+")")
		for _, status := range overridable {
			args = append(args, string(status))
		}
	}
	if amountRefundedCents != nil {
		conditions = append(conditions, "(status = ? AND ? > amount_refunded_cents)")
		args = append(args, string(next), *amountRefundedCents)
	}

	query := `
		UPDATE orders
		SET status = ?,
			amount_refunded_cents = COALESCE(?, amount_refunded_cents),
			updated_at = ?
		WHERE external_payment_id = ?
		  AND (` + strings.Join(conditions, " OR ") + `)
	`

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id string) (*entity.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = ?`

	order := &entity.Order{}
	if err := scanOrder(r.db.QueryRowContext(ctx, query, id), order); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *OrderRepository) FindByExternalID(ctx context.Context, externalPaymentID string) (*entity.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE external_payment_id = ? LIMIT 1`

	order := &entity.Order{}
	if err := scanOrder(r.db.QueryRowContext(ctx, query, externalPaymentID), order); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *OrderRepository) List(ctx context.Context, filter OrderFilter) ([]*entity.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders`

	conditions := make([]string, 0, 2)
	args := make([]interface{}, 0, 4)

	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if strings.TrimSpace(filter.OwnerID) != "" {
		conditions = append(conditions, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]*entity.Order, 0)
	for rows.Next() {
		item := &entity.Order{}
		if err := scanOrder(rows, item); err != nil {
			return nil, err
		}
		orders = append(orders, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

// ListStalePending returns pending orders that have not moved since before;
// the reconcile job polls the gateway for their real status.
func (r *OrderRepository) ListStalePending(ctx context.Context, before time.Time, limit int32) ([]*entity.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE status = ? AND updated_at <= ?
		ORDER BY updated_at ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, string(entity.OrderStatusPending), before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]*entity.Order, 0)
	for rows.Next() {
		item := &entity.Order{}
		if err := scanOrder(rows, item); err != nil {
			return nil, err
		}
		orders = append(orders, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(scan rowScanner, order *entity.Order) error {
	var ownerID sql.NullString
	var status string
	var metadataJSON string

	err := scan.Scan(
		&order.ID,
		&order.ExternalPaymentID,
		&ownerID,
		&order.AmountCents,
		&order.AmountRefundedCents,
		&order.Currency,
		&status,
		&metadataJSON,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return err
	}

	order.OwnerID = stringPtrFromNull(ownerID)
	order.Status = entity.OrderStatus(status)

	metadata, err := parseMetadata(metadataJSON)
	if err != nil {
		return err
	}
	order.Metadata = metadata

	return nil
}
