package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, order_number, parent_name, child_name, child_name_kana, age_group, handedness,
       total_amount, total_quantity, status, notes, ip_address, user_agent, order_date, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.OrderNumber,
		&i.ParentName,
		&i.ChildName,
		&i.ChildNameKana,
		&i.AgeGroup,
		&i.Handedness,
		&i.TotalAmount,
		&i.TotalQuantity,
		&i.Status,
		&i.Notes,
		&i.IpAddress,
		&i.UserAgent,
		&i.OrderDate,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func scanOrderItem(row rowScanner) (OrderItem, error) {
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.LineNo,
		&i.ProductID,
		&i.ProductCode,
		&i.ProductName,
		&i.Specification,
		&i.UnitPrice,
		&i.Quantity,
		&i.Subtotal,
		&i.CreatedAt,
	)
	return i, err
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (
    order_number, parent_name, child_name, child_name_kana, age_group, handedness,
    total_amount, total_quantity, status, notes, ip_address, user_agent, order_date
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	OrderNumber   string         `json:"order_number"`
	ParentName    string         `json:"parent_name"`
	ChildName     string         `json:"child_name"`
	ChildNameKana string         `json:"child_name_kana"`
	AgeGroup      int16          `json:"age_group"`
	Handedness    string         `json:"handedness"`
	TotalAmount   pgtype.Numeric `json:"total_amount"`
	TotalQuantity int32          `json:"total_quantity"`
	Status        string         `json:"status"`
	Notes         pgtype.Text    `json:"notes"`
	IpAddress     string         `json:"ip_address"`
	UserAgent     string         `json:"user_agent"`
	OrderDate     time.Time      `json:"order_date"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.OrderNumber,
		arg.ParentName,
		arg.ChildName,
		arg.ChildNameKana,
		arg.AgeGroup,
		arg.Handedness,
		arg.TotalAmount,
		arg.TotalQuantity,
		arg.Status,
		arg.Notes,
		arg.IpAddress,
		arg.UserAgent,
		arg.OrderDate,
	)
	return scanOrder(row)
}

const createOrderItem = `-- name: CreateOrderItem :one
INSERT INTO order_items (
    order_id, line_no, product_id, product_code, product_name, specification, unit_price, quantity, subtotal
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9
)
RETURNING id, order_id, line_no, product_id, product_code, product_name, specification, unit_price, quantity, subtotal, created_at
`

type CreateOrderItemParams struct {
	OrderID       uuid.UUID      `json:"order_id"`
	LineNo        int16          `json:"line_no"`
	ProductID     pgtype.UUID    `json:"product_id"`
	ProductCode   string         `json:"product_code"`
	ProductName   string         `json:"product_name"`
	Specification string         `json:"specification"`
	UnitPrice     pgtype.Numeric `json:"unit_price"`
	Quantity      int32          `json:"quantity"`
	Subtotal      pgtype.Numeric `json:"subtotal"`
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.LineNo,
		arg.ProductID,
		arg.ProductCode,
		arg.ProductName,
		arg.Specification,
		arg.UnitPrice,
		arg.Quantity,
		arg.Subtotal,
	)
	return scanOrderItem(row)
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + `
FROM orders WHERE id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const getOrderByNumber = `-- name: GetOrderByNumber :one
SELECT ` + orderColumns + `
FROM orders WHERE order_number = $1
`

func (q *Queries) GetOrderByNumber(ctx context.Context, orderNumber string) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderByNumber, orderNumber))
}

const searchOrders = `-- name: SearchOrders :many
SELECT ` + orderColumns + `
FROM orders
WHERE ($1::text = ''
       OR order_number ILIKE '%' || $1::text || '%'
       OR parent_name ILIKE '%' || $1::text || '%'
       OR child_name ILIKE '%' || $1::text || '%'
       OR child_name_kana ILIKE '%' || $1::text || '%')
  AND ($2::smallint = 0 OR age_group = $2::smallint)
  AND ($3::timestamptz IS NULL OR order_date >= $3::timestamptz)
  AND ($4::timestamptz IS NULL OR order_date < $4::timestamptz)
ORDER BY order_date DESC, order_number DESC
LIMIT $5 OFFSET $6
`

type SearchOrdersParams struct {
	Keyword   string             `json:"keyword"`
	AgeGroup  int16              `json:"age_group"`
	StartDate pgtype.Timestamptz `json:"start_date"`
	EndDate   pgtype.Timestamptz `json:"end_date"`
	Limit     int32              `json:"limit"`
	Offset    int32              `json:"offset"`
}

func (q *Queries) SearchOrders(ctx context.Context, arg SearchOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, searchOrders,
		arg.Keyword,
		arg.AgeGroup,
		arg.StartDate,
		arg.EndDate,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Order{}
	for rows.Next() {
		i, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listOrdersByIDs = `-- name: ListOrdersByIDs :many
SELECT ` + orderColumns + `
FROM orders
WHERE id = ANY($1::uuid[])
ORDER BY age_group ASC, child_name ASC, order_date ASC
`

func (q *Queries) ListOrdersByIDs(ctx context.Context, ids []uuid.UUID) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByIDs, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Order{}
	for rows.Next() {
		i, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listOrderItemsByOrder = `-- name: ListOrderItemsByOrder :many
SELECT id, order_id, line_no, product_id, product_code, product_name, specification, unit_price, quantity, subtotal, created_at
FROM order_items
WHERE order_id = $1
ORDER BY line_no ASC
`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderItem{}
	for rows.Next() {
		i, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listOrderItemsByOrders = `-- name: ListOrderItemsByOrders :many
SELECT id, order_id, line_no, product_id, product_code, product_name, specification, unit_price, quantity, subtotal, created_at
FROM order_items
WHERE order_id = ANY($1::uuid[])
ORDER BY order_id ASC, product_name ASC, line_no ASC
`

func (q *Queries) ListOrderItemsByOrders(ctx context.Context, orderIDs []uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrders, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderItem{}
	for rows.Next() {
		i, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
