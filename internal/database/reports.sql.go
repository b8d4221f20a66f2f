package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const listReportLines = `-- name: ListReportLines :many
SELECT o.id AS order_id,
       o.order_number,
       o.order_date,
       o.age_group,
       o.child_name,
       o.child_name_kana,
       o.handedness,
       oi.product_id,
       oi.product_name,
       oi.quantity,
       oi.unit_price
FROM orders o
JOIN order_items oi ON oi.order_id = o.id
WHERE o.order_date >= $1 AND o.order_date < $2
ORDER BY o.age_group ASC, o.child_name ASC, oi.product_name ASC, o.order_date ASC, oi.line_no ASC
`

type ListReportLinesParams struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

type ListReportLinesRow struct {
	OrderID       uuid.UUID      `json:"order_id"`
	OrderNumber   string         `json:"order_number"`
	OrderDate     time.Time      `json:"order_date"`
	AgeGroup      int16          `json:"age_group"`
	ChildName     string         `json:"child_name"`
	ChildNameKana string         `json:"child_name_kana"`
	Handedness    string         `json:"handedness"`
	ProductID     pgtype.UUID    `json:"product_id"`
	ProductName   string         `json:"product_name"`
	Quantity      int32          `json:"quantity"`
	UnitPrice     pgtype.Numeric `json:"unit_price"`
}

func (q *Queries) ListReportLines(ctx context.Context, arg ListReportLinesParams) ([]ListReportLinesRow, error) {
	rows, err := q.db.Query(ctx, listReportLines, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListReportLinesRow{}
	for rows.Next() {
		var i ListReportLinesRow
		if err := rows.Scan(
			&i.OrderID,
			&i.OrderNumber,
			&i.OrderDate,
			&i.AgeGroup,
			&i.ChildName,
			&i.ChildNameKana,
			&i.Handedness,
			&i.ProductID,
			&i.ProductName,
			&i.Quantity,
			&i.UnitPrice,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getOrderSummary = `-- name: GetOrderSummary :one
SELECT COUNT(*)::bigint AS order_count,
       COALESCE(SUM(total_amount), 0)::numeric AS total_sales,
       COALESCE(SUM(total_quantity), 0)::bigint AS total_quantity,
       COALESCE(AVG(total_amount), 0)::numeric AS avg_order_amount
FROM orders
WHERE order_date >= $1 AND order_date < $2
`

type GetOrderSummaryParams struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

type GetOrderSummaryRow struct {
	OrderCount     int64          `json:"order_count"`
	TotalSales     pgtype.Numeric `json:"total_sales"`
	TotalQuantity  int64          `json:"total_quantity"`
	AvgOrderAmount pgtype.Numeric `json:"avg_order_amount"`
}

func (q *Queries) GetOrderSummary(ctx context.Context, arg GetOrderSummaryParams) (GetOrderSummaryRow, error) {
	row := q.db.QueryRow(ctx, getOrderSummary, arg.StartDate, arg.EndDate)
	var i GetOrderSummaryRow
	err := row.Scan(
		&i.OrderCount,
		&i.TotalSales,
		&i.TotalQuantity,
		&i.AvgOrderAmount,
	)
	return i, err
}

const getAgeGroupStats = `-- name: GetAgeGroupStats :many
SELECT age_group,
       COUNT(*)::bigint AS order_count,
       COALESCE(SUM(total_amount), 0)::numeric AS total_sales,
       COALESCE(SUM(total_quantity), 0)::bigint AS total_quantity
FROM orders
WHERE order_date >= $1 AND order_date < $2
GROUP BY age_group
ORDER BY age_group ASC
`

type GetAgeGroupStatsParams struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

type GetAgeGroupStatsRow struct {
	AgeGroup      int16          `json:"age_group"`
	OrderCount    int64          `json:"order_count"`
	TotalSales    pgtype.Numeric `json:"total_sales"`
	TotalQuantity int64          `json:"total_quantity"`
}

func (q *Queries) GetAgeGroupStats(ctx context.Context, arg GetAgeGroupStatsParams) ([]GetAgeGroupStatsRow, error) {
	rows, err := q.db.Query(ctx, getAgeGroupStats, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []GetAgeGroupStatsRow{}
	for rows.Next() {
		var i GetAgeGroupStatsRow
		if err := rows.Scan(
			&i.AgeGroup,
			&i.OrderCount,
			&i.TotalSales,
			&i.TotalQuantity,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getHandednessStats = `-- name: GetHandednessStats :many
SELECT handedness,
       COUNT(*)::bigint AS order_count
FROM orders
WHERE order_date >= $1 AND order_date < $2
  AND handedness <> ''
GROUP BY handedness
ORDER BY handedness ASC
`

type GetHandednessStatsParams struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

type GetHandednessStatsRow struct {
	Handedness string `json:"handedness"`
	OrderCount int64  `json:"order_count"`
}

func (q *Queries) GetHandednessStats(ctx context.Context, arg GetHandednessStatsParams) ([]GetHandednessStatsRow, error) {
	rows, err := q.db.Query(ctx, getHandednessStats, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []GetHandednessStatsRow{}
	for rows.Next() {
		var i GetHandednessStatsRow
		if err := rows.Scan(&i.Handedness, &i.OrderCount); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
