package billing

import "errors"

var (
	// ErrStatementNotFound is returned when a statement does not exist.
	ErrStatementNotFound = errors.New("billing: statement not found")
	// ErrOrderNotFound is returned when an order does not exist.
	ErrOrderNotFound = errors.New("billing: order not found")
	// ErrInvalidAgingCategory is returned for an unknown aging category.
	ErrInvalidAgingCategory = errors.New("billing: invalid aging category")
	// ErrEmptyClientID is returned when an order or statement has no client.
	ErrEmptyClientID = errors.New("billing: empty client id")
	// ErrInvalidMonth is returned when a statement month is zero.
	ErrInvalidMonth = errors.New("billing: invalid statement month")
	// ErrNilStatement is returned when saving a nil statement.
	ErrNilStatement = errors.New("billing: nil statement")
)
