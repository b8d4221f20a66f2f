package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const upsertPrintHistory = `-- name: UpsertPrintHistory :one
INSERT INTO print_history (order_id, order_number, print_count, printed_by, delivery_date, print_date)
VALUES ($1, $2, 1, $3, $4, $5)
ON CONFLICT (order_id) DO UPDATE
SET print_count = print_history.print_count + 1,
    printed_by = EXCLUDED.printed_by,
    delivery_date = EXCLUDED.delivery_date,
    print_date = EXCLUDED.print_date
RETURNING id, order_id, order_number, print_count, printed_by, delivery_date, print_date
`

type UpsertPrintHistoryParams struct {
	OrderID      uuid.UUID   `json:"order_id"`
	OrderNumber  string      `json:"order_number"`
	PrintedBy    string      `json:"printed_by"`
	DeliveryDate pgtype.Date `json:"delivery_date"`
	PrintDate    time.Time   `json:"print_date"`
}

// UpsertPrintHistory relies on print_history_order_id_key, so concurrent
// prints of one order still collapse into a single row.
func (q *Queries) UpsertPrintHistory(ctx context.Context, arg UpsertPrintHistoryParams) (PrintHistory, error) {
	row := q.db.QueryRow(ctx, upsertPrintHistory,
		arg.OrderID,
		arg.OrderNumber,
		arg.PrintedBy,
		arg.DeliveryDate,
		arg.PrintDate,
	)
	var i PrintHistory
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.OrderNumber,
		&i.PrintCount,
		&i.PrintedBy,
		&i.DeliveryDate,
		&i.PrintDate,
	)
	return i, err
}

const getPrintHistoryByOrder = `-- name: GetPrintHistoryByOrder :one
SELECT id, order_id, order_number, print_count, printed_by, delivery_date, print_date
FROM print_history
WHERE order_id = $1
`

func (q *Queries) GetPrintHistoryByOrder(ctx context.Context, orderID uuid.UUID) (PrintHistory, error) {
	row := q.db.QueryRow(ctx, getPrintHistoryByOrder, orderID)
	var i PrintHistory
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.OrderNumber,
		&i.PrintCount,
		&i.PrintedBy,
		&i.DeliveryDate,
		&i.PrintDate,
	)
	return i, err
}
