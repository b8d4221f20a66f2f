package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const listActiveProductsForAgeGroup = `-- name: ListActiveProductsForAgeGroup :many
SELECT p.id, p.product_code, p.product_name, p.specification, p.price, p.remarks, agp.sort_order
FROM age_group_products agp
JOIN products p ON p.id = agp.product_id
WHERE agp.age_group = $1
  AND agp.is_active = true
  AND p.is_active = true
ORDER BY agp.sort_order ASC, p.sort_order ASC, p.product_code ASC
`

type ListActiveProductsForAgeGroupRow struct {
	ID            uuid.UUID      `json:"id"`
	ProductCode   string         `json:"product_code"`
	ProductName   string         `json:"product_name"`
	Specification string         `json:"specification"`
	Price         pgtype.Numeric `json:"price"`
	Remarks       string         `json:"remarks"`
	SortOrder     int32          `json:"sort_order"`
}

func (q *Queries) ListActiveProductsForAgeGroup(ctx context.Context, ageGroup int16) ([]ListActiveProductsForAgeGroupRow, error) {
	rows, err := q.db.Query(ctx, listActiveProductsForAgeGroup, ageGroup)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListActiveProductsForAgeGroupRow{}
	for rows.Next() {
		var i ListActiveProductsForAgeGroupRow
		if err := rows.Scan(
			&i.ID,
			&i.ProductCode,
			&i.ProductName,
			&i.Specification,
			&i.Price,
			&i.Remarks,
			&i.SortOrder,
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

const getProductPrice = `-- name: GetProductPrice :one
SELECT price FROM products WHERE id = $1
`

func (q *Queries) GetProductPrice(ctx context.Context, id uuid.UUID) (pgtype.Numeric, error) {
	row := q.db.QueryRow(ctx, getProductPrice, id)
	var price pgtype.Numeric
	err := row.Scan(&price)
	return price, err
}

const listProductPrices = `-- name: ListProductPrices :many
SELECT id, price FROM products WHERE id = ANY($1::uuid[])
`

type ListProductPricesRow struct {
	ID    uuid.UUID      `json:"id"`
	Price pgtype.Numeric `json:"price"`
}

func (q *Queries) ListProductPrices(ctx context.Context, ids []uuid.UUID) ([]ListProductPricesRow, error) {
	rows, err := q.db.Query(ctx, listProductPrices, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListProductPricesRow{}
	for rows.Next() {
		var i ListProductPricesRow
		if err := rows.Scan(&i.ID, &i.Price); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertProduct = `-- name: UpsertProduct :one
INSERT INTO products (product_code, product_name, specification, price, remarks, is_active, sort_order)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (product_code) DO UPDATE
SET product_name = EXCLUDED.product_name,
    specification = EXCLUDED.specification,
    price = EXCLUDED.price,
    remarks = EXCLUDED.remarks,
    is_active = EXCLUDED.is_active,
    sort_order = EXCLUDED.sort_order,
    updated_at = now()
RETURNING id, product_code, product_name, specification, price, remarks, is_active, sort_order, created_at, updated_at
`

type UpsertProductParams struct {
	ProductCode   string         `json:"product_code"`
	ProductName   string         `json:"product_name"`
	Specification string         `json:"specification"`
	Price         pgtype.Numeric `json:"price"`
	Remarks       string         `json:"remarks"`
	IsActive      bool           `json:"is_active"`
	SortOrder     int32          `json:"sort_order"`
}

func (q *Queries) UpsertProduct(ctx context.Context, arg UpsertProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, upsertProduct,
		arg.ProductCode,
		arg.ProductName,
		arg.Specification,
		arg.Price,
		arg.Remarks,
		arg.IsActive,
		arg.SortOrder,
	)
	var i Product
	err := row.Scan(
		&i.ID,
		&i.ProductCode,
		&i.ProductName,
		&i.Specification,
		&i.Price,
		&i.Remarks,
		&i.IsActive,
		&i.SortOrder,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const updateProductPrice = `-- name: UpdateProductPrice :one
UPDATE products SET price = $2, updated_at = now()
WHERE id = $1
RETURNING id, product_code, product_name, specification, price, remarks, is_active, sort_order, created_at, updated_at
`

type UpdateProductPriceParams struct {
	ID    uuid.UUID      `json:"id"`
	Price pgtype.Numeric `json:"price"`
}

func (q *Queries) UpdateProductPrice(ctx context.Context, arg UpdateProductPriceParams) (Product, error) {
	row := q.db.QueryRow(ctx, updateProductPrice, arg.ID, arg.Price)
	var i Product
	err := row.Scan(
		&i.ID,
		&i.ProductCode,
		&i.ProductName,
		&i.Specification,
		&i.Price,
		&i.Remarks,
		&i.IsActive,
		&i.SortOrder,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const upsertAgeGroupProduct = `-- name: UpsertAgeGroupProduct :one
INSERT INTO age_group_products (age_group, product_id, is_active, sort_order)
VALUES ($1, $2, $3, $4)
ON CONFLICT (age_group, product_id) DO UPDATE
SET is_active = EXCLUDED.is_active,
    sort_order = EXCLUDED.sort_order
RETURNING id, age_group, product_id, is_active, sort_order, created_at
`

type UpsertAgeGroupProductParams struct {
	AgeGroup  int16     `json:"age_group"`
	ProductID uuid.UUID `json:"product_id"`
	IsActive  bool      `json:"is_active"`
	SortOrder int32     `json:"sort_order"`
}

func (q *Queries) UpsertAgeGroupProduct(ctx context.Context, arg UpsertAgeGroupProductParams) (AgeGroupProduct, error) {
	row := q.db.QueryRow(ctx, upsertAgeGroupProduct,
		arg.AgeGroup,
		arg.ProductID,
		arg.IsActive,
		arg.SortOrder,
	)
	var i AgeGroupProduct
	err := row.Scan(
		&i.ID,
		&i.AgeGroup,
		&i.ProductID,
		&i.IsActive,
		&i.SortOrder,
		&i.CreatedAt,
	)
	return i, err
}
