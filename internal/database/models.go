package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Admin struct {
	ID             uuid.UUID `json:"id"`
	Username       string    `json:"username"`
	HashedPassword string    `json:"-"`
	FullName       string    `json:"full_name"`
	Role           string    `json:"role"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

type AgeGroupProduct struct {
	ID        uuid.UUID `json:"id"`
	AgeGroup  int16     `json:"age_group"`
	ProductID uuid.UUID `json:"product_id"`
	IsActive  bool      `json:"is_active"`
	SortOrder int32     `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
}

type Order struct {
	ID            uuid.UUID      `json:"id"`
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
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

type OrderItem struct {
	ID            uuid.UUID      `json:"id"`
	OrderID       uuid.UUID      `json:"order_id"`
	LineNo        int16          `json:"line_no"`
	ProductID     pgtype.UUID    `json:"product_id"`
	ProductCode   string         `json:"product_code"`
	ProductName   string         `json:"product_name"`
	Specification string         `json:"specification"`
	UnitPrice     pgtype.Numeric `json:"unit_price"`
	Quantity      int32          `json:"quantity"`
	Subtotal      pgtype.Numeric `json:"subtotal"`
	CreatedAt     time.Time      `json:"created_at"`
}

type PrintHistory struct {
	ID           uuid.UUID   `json:"id"`
	OrderID      uuid.UUID   `json:"order_id"`
	OrderNumber  string      `json:"order_number"`
	PrintCount   int32       `json:"print_count"`
	PrintedBy    string      `json:"printed_by"`
	DeliveryDate pgtype.Date `json:"delivery_date"`
	PrintDate    time.Time   `json:"print_date"`
}

type Product struct {
	ID            uuid.UUID      `json:"id"`
	ProductCode   string         `json:"product_code"`
	ProductName   string         `json:"product_name"`
	Specification string         `json:"specification"`
	Price         pgtype.Numeric `json:"price"`
	Remarks       string         `json:"remarks"`
	IsActive      bool           `json:"is_active"`
	SortOrder     int32          `json:"sort_order"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}
