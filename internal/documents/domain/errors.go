package documents

import "errors"

var (
	// ErrEmptyInvoiceSet blocks rendering a document without lines.
	ErrEmptyInvoiceSet = errors.New("no items found")
	// ErrMissingClient blocks rendering when the client lookup found nothing.
	ErrMissingClient = errors.New("documents: client not found")
	// ErrNilOrder is returned when the order argument is nil.
	ErrNilOrder = errors.New("documents: nil order")
	// ErrNilStatement is returned when the statement argument is nil.
	ErrNilStatement = errors.New("documents: nil statement")
)
