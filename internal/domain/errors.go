package domain

import "errors"

// Failure kinds shared across the cart, catalog and ledger. Callers
// branch with errors.Is; the HTTP layer maps them to status codes.
var (
	ErrInsufficientStock     = errors.New("insufficient stock")
	ErrCartFull              = errors.New("cart is full")
	ErrLedgerFull            = errors.New("invoice ledger is full")
	ErrCatalogFull           = errors.New("catalog is full")
	ErrInvalidDiscount       = errors.New("discount must be between 0 and 1")
	ErrInvalidQuantity       = errors.New("quantity must be positive")
	ErrInvoiceNotFound       = errors.New("invoice not found")
	ErrLineNotFound          = errors.New("invoice line not found")
	ErrProductNotFound       = errors.New("product not found")
	ErrInvalidReturnQuantity = errors.New("return quantity exceeds sold quantity")
	ErrDuplicateProduct      = errors.New("product id already exists")
	ErrDuplicateUsername     = errors.New("username already exists")
	ErrUserNotFound          = errors.New("user not found")
	ErrEmptyCart             = errors.New("cart is empty")
	ErrNoHeldCart            = errors.New("no held cart for terminal")
)
