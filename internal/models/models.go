package models

import "time"

// Product is a catalog entry. Price is in centavos; Stock is the only
// contended value in the system and is mutated exclusively inside the
// checkout transaction.
type Product struct {
	ID          int64  `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
	Price       int64  `db:"price" json:"price"`
	Stock       int    `db:"stock" json:"stock"`
	Category    string `db:"category" json:"category"`
	MadeInMari  bool   `db:"made_in_mari" json:"made_in_mari"`
	ImageURL    string `db:"image_url" json:"image_url,omitempty"`
}

// Customer is a registered shopper. Email is unique at the storage layer.
// The three boolean flags independently grant discount eligibility.
type Customer struct {
	ID           int64     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Street       string    `db:"street" json:"street,omitempty"`
	Number       string    `db:"number" json:"number,omitempty"`
	Complement   string    `db:"complement" json:"complement,omitempty"`
	City         string    `db:"city" json:"city,omitempty"`
	State        string    `db:"state" json:"state,omitempty"`
	PostalCode   string    `db:"postal_code" json:"postal_code,omitempty"`
	Phone        string    `db:"phone" json:"phone,omitempty"`
	FlamengoFan  bool      `db:"flamengo_fan" json:"flamengo_fan"`
	OnePieceFan  bool      `db:"one_piece_fan" json:"one_piece_fan"`
	SousaNative  bool      `db:"sousa_native" json:"sousa_native"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// DiscountEligible reports whether any eligibility flag is set. No discount
// math happens here; eligibility is resolved once and handed to callers.
func (c *Customer) DiscountEligible() bool {
	return c.FlamengoFan || c.OnePieceFan || c.SousaNative
}

// Staff is an employee account. Staff handle orders and sign in through the
// same login endpoint as customers.
type Staff struct {
	ID           int64  `db:"id" json:"id"`
	Name         string `db:"name" json:"name"`
	Email        string `db:"email" json:"email"`
	PasswordHash string `db:"password_hash" json:"-"`
	Position     string `db:"position" json:"position"`
}

// Order is the header row of a placed order. It is immutable once committed;
// payment is modeled as always approved, so PaymentStatus is fixed at creation.
type Order struct {
	ID            int64     `db:"id" json:"id"`
	CustomerID    int64     `db:"customer_id" json:"customer_id"`
	StaffID       int64     `db:"staff_id" json:"staff_id"`
	PaymentMethod string    `db:"payment_method" json:"payment_method"`
	PaymentStatus string    `db:"payment_status" json:"payment_status"`
	TotalAmount   int64     `db:"total_amount" json:"total_amount"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// OrderLine is one product-quantity-price record owned by exactly one order.
// UnitPrice is the price captured under lock at purchase time and is never
// re-read from the live product row.
type OrderLine struct {
	ID        int64 `db:"id" json:"id"`
	OrderID   int64 `db:"order_id" json:"order_id"`
	ProductID int64 `db:"product_id" json:"product_id"`
	Quantity  int   `db:"quantity" json:"quantity"`
	UnitPrice int64 `db:"unit_price" json:"unit_price"`
}

// Payment status. Only one value is ever written: there is no gateway and
// checkout either commits an approved order or commits nothing.
const (
	PaymentStatusApproved = "APPROVED"
)

// Roles resolved by the account directory.
const (
	RoleCustomer = "customer"
	RoleStaff    = "staff"
)

// InventoryReport summarizes the catalog: distinct product count and total
// value of stock on hand (price * stock, in centavos).
type InventoryReport struct {
	DistinctProducts int   `db:"distinct_products" json:"distinct_products"`
	TotalStockValue  int64 `db:"total_stock_value" json:"total_stock_value"`
}

// ProductSales is one row of the sales report kept by the sales worker.
type ProductSales struct {
	ProductID int64 `json:"product_id"`
	UnitsSold int64 `json:"units_sold"`
	Revenue   int64 `json:"revenue"`
}
