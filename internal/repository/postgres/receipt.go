package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/Swiftdaops/QuickClean/internal/domain"
	"github.com/Swiftdaops/QuickClean/pkg/database"
	apperrors "github.com/Swiftdaops/QuickClean/pkg/errors"
)

// ReceiptRepository implements repository.ReceiptRepository using PostgreSQL.
// Amounts travel as text and are cast to NUMERIC in SQL, so no precision is
// lost between decimal.Decimal and the column.
type ReceiptRepository struct {
	pool database.DBTX
}

// NewReceiptRepository creates a new PostgreSQL-backed receipt repository.
func NewReceiptRepository(pool database.DBTX) *ReceiptRepository {
	return &ReceiptRepository{pool: pool}
}

// Create inserts a receipt. An existing receipt for the order is left as is.
func (r *ReceiptRepository) Create(ctx context.Context, rec *domain.Receipt) (err error) {
	summaryJSON, err := json.Marshal(rec.Summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	query := `
		INSERT INTO receipts (order_id, client_id, store_name, summary, total, created_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6)
		ON CONFLICT (order_id) DO NOTHING`

	ctx, end := database.TraceQuery(ctx, "CreateReceipt", query)
	defer func() { end(err) }()

	_, err = r.pool.Exec(ctx, query,
		rec.OrderID,
		rec.ClientID,
		rec.StoreName,
		summaryJSON,
		rec.Total.String(),
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert receipt: %w", err)
	}

	return nil
}

// GetByOrderID retrieves a receipt by order id.
func (r *ReceiptRepository) GetByOrderID(ctx context.Context, orderID string) (_ *domain.Receipt, err error) {
	query := `
		SELECT order_id, client_id, store_name, summary, total::text, created_at
		FROM receipts
		WHERE order_id = $1`

	ctx, end := database.TraceQuery(ctx, "GetReceipt", query)
	defer func() { end(err) }()

	var (
		rec         domain.Receipt
		summaryJSON []byte
		total       string
	)
	err = r.pool.QueryRow(ctx, query, orderID).Scan(
		&rec.OrderID,
		&rec.ClientID,
		&rec.StoreName,
		&summaryJSON,
		&total,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("receipt", orderID)
		}
		return nil, fmt.Errorf("get receipt: %w", err)
	}

	if err := decodeReceipt(&rec, summaryJSON, total); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListByClient returns a client's receipts, newest first.
func (r *ReceiptRepository) ListByClient(ctx context.Context, clientID string, offset, limit int) (_ []domain.Receipt, _ int, err error) {
	query := `
		SELECT order_id, client_id, store_name, summary, total::text, created_at,
		       count(*) OVER() AS total_count
		FROM receipts
		WHERE client_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	ctx, end := database.TraceQuery(ctx, "ListReceiptsByClient", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, clientID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list receipts by client: %w", err)
	}
	defer rows.Close()

	var totalCount int
	receipts := make([]domain.Receipt, 0)

	for rows.Next() {
		var (
			rec         domain.Receipt
			summaryJSON []byte
			total       string
		)
		if err := rows.Scan(
			&rec.OrderID,
			&rec.ClientID,
			&rec.StoreName,
			&summaryJSON,
			&total,
			&rec.CreatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan receipt row: %w", err)
		}
		if err := decodeReceipt(&rec, summaryJSON, total); err != nil {
			return nil, 0, err
		}
		receipts = append(receipts, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate receipt rows: %w", err)
	}

	return receipts, totalCount, nil
}

func decodeReceipt(rec *domain.Receipt, summaryJSON []byte, total string) error {
	if err := json.Unmarshal(summaryJSON, &rec.Summary); err != nil {
		return fmt.Errorf("unmarshal summary: %w", err)
	}
	amount, err := decimal.NewFromString(total)
	if err != nil {
		return fmt.Errorf("parse receipt total: %w", err)
	}
	rec.Total = amount
	return nil
}
