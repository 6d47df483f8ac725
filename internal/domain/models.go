package domain

import "time"

// CategoryKind tags the product variant. Category-specific attributes
// live in the matching Attrs struct on Product.Category.
type CategoryKind string

const (
	KindShoe      CategoryKind = "shoe"
	KindClothing  CategoryKind = "clothing"
	KindAccessory CategoryKind = "accessory"
)

type ShoeType string

const (
	ShoeRunning    ShoeType = "RUNNING"
	ShoeBasketball ShoeType = "BASKETBALL"
	ShoeCasual     ShoeType = "CASUAL"
	ShoeBoots      ShoeType = "BOOTS"
)

type ClothingType string

const (
	ClothingShirt  ClothingType = "SHIRT"
	ClothingShorts ClothingType = "SHORTS"
	ClothingJacket ClothingType = "JACKET"
	ClothingSocks  ClothingType = "SOCKS"
)

type AccessoryType string

const (
	AccessoryCap    AccessoryType = "CAP"
	AccessoryGloves AccessoryType = "GLOVES"
	AccessoryBag    AccessoryType = "BAG"
	AccessoryWatch  AccessoryType = "WATCH"
)

type ShoeAttrs struct {
	Size  string   `json:"size"`
	Color string   `json:"color"`
	Type  ShoeType `json:"type"`
}

type ClothingAttrs struct {
	Size  string       `json:"size"`
	Color string       `json:"color"`
	Type  ClothingType `json:"type"`
}

type AccessoryAttrs struct {
	Brand string        `json:"brand"`
	Type  AccessoryType `json:"type"`
}

// Category is a tagged variant: exactly the pointer matching Kind is
// non-nil.
type Category struct {
	Kind      CategoryKind    `json:"kind"`
	Shoe      *ShoeAttrs      `json:"shoe,omitempty"`
	Clothing  *ClothingAttrs  `json:"clothing,omitempty"`
	Accessory *AccessoryAttrs `json:"accessory,omitempty"`
}

type Product struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	UnitPrice   float64  `json:"unit_price"`
	Stock       int      `json:"stock"`
	Category    Category `json:"category"`
}

// CartLine is one entry of an in-progress sale. ItemDiscount is a
// fraction in [0,1].
type CartLine struct {
	Product      Product `json:"product"`
	Quantity     int     `json:"quantity"`
	ItemDiscount float64 `json:"item_discount"`
}

// Subtotal is the line amount after the item discount only. The global
// discount is applied on the session total.
func (l CartLine) Subtotal() float64 {
	return l.Product.UnitPrice * float64(l.Quantity) * (1.0 - l.ItemDiscount)
}

// InvoiceLine is the frozen snapshot of one sold product. The effective
// unit price already includes both item and global discounts and never
// changes after checkout.
type InvoiceLine struct {
	ProductID          string  `json:"product_id"`
	ProductName        string  `json:"product_name"`
	Quantity           int     `json:"quantity"`
	EffectiveUnitPrice float64 `json:"effective_unit_price"`
	ItemDiscount       float64 `json:"item_discount"`
}

// InvoiceRecord is a completed sale. Only the return flow may amend
// Lines and Total; id, date and cashier are fixed for life.
type InvoiceRecord struct {
	ID             int           `json:"id"`
	Total          float64       `json:"total"`
	Date           string        `json:"date"`
	CashierName    string        `json:"cashier"`
	GlobalDiscount float64       `json:"global_discount"`
	Lines          []InvoiceLine `json:"lines"`
}

// HeldCart is a parked cart session, keyed by terminal.
type HeldCart struct {
	TerminalID     string     `json:"terminal_id"`
	CashierName    string     `json:"cashier_name"`
	Lines          []CartLine `json:"lines"`
	GlobalDiscount float64    `json:"global_discount"`
	HeldAt         time.Time  `json:"held_at"`
}

// UserAccount is the persistence model for auth credentials.
type UserAccount struct {
	ID           int
	Username     string
	PasswordHash string
	Role         string
}

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type AddItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

type DiscountRequest struct {
	Percent float64 `json:"percent"`
}

type CartView struct {
	TerminalID     string     `json:"terminal_id"`
	Lines          []CartLine `json:"lines"`
	GlobalDiscount float64    `json:"global_discount"`
	Total          float64    `json:"total"`
}

// Receipt is the display-facing view of a completed checkout. Tax is
// applied here only; the ledger stores pre-tax totals.
type Receipt struct {
	Invoice      InvoiceRecord `json:"invoice"`
	TaxRate      float64       `json:"tax_rate"`
	TaxAmount    float64       `json:"tax_amount"`
	TotalWithTax float64       `json:"total_with_tax"`
}

type ReturnRequest struct {
	InvoiceID int    `json:"invoice_id" validate:"gt=0"`
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

type ReturnResponse struct {
	Invoice      InvoiceRecord `json:"invoice"`
	RestockedQty int           `json:"restocked_qty"`
	LineRemoved  bool          `json:"line_removed"`
}

type ProductCreateRequest struct {
	Name        string  `json:"name" validate:"required"`
	Description string  `json:"description"`
	UnitPrice   float64 `json:"unit_price" validate:"gt=0"`
	Stock       int     `json:"stock" validate:"gte=0"`
	Kind        string  `json:"kind" validate:"required,oneof=shoe clothing accessory"`
	Size        string  `json:"size"`
	Color       string  `json:"color"`
	Type        string  `json:"type"`
	Brand       string  `json:"brand"`
}

type StockUpdateRequest struct {
	Stock int `json:"stock" validate:"gte=0"`
}

type UserCreateRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"required,oneof=admin cashier"`
}

type UserUpdateRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password"`
	Role     string `json:"role" validate:"required,oneof=admin cashier"`
}

type UserView struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type DashboardView struct {
	InvoiceCount   int       `json:"invoice_count"`
	RevenueWithTax float64   `json:"revenue_with_tax"`
	LowStockCount  int       `json:"low_stock_count"`
	LowStock       []Product `json:"low_stock"`
	TotalUnits     int       `json:"total_units"`
}
