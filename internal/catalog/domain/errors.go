package catalog

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrClientNotFound is returned when no client has the requested id.
	ErrClientNotFound = errors.New("catalog: client not found")
	// ErrEmptyDocument is returned when an upload has no content.
	ErrEmptyDocument = errors.New("catalog: empty document")
	// ErrNoPriceEdits is returned for an empty price batch.
	ErrNoPriceEdits = errors.New("catalog: no price edits")
)

// PriceEditFailure records why one edit of a batch failed.
type PriceEditFailure struct {
	ProductID string `json:"product_id"`
	Err       error  `json:"-"`
}

// PartialBatchFailure reports the failed edits of a concurrent batch. Edits not
// listed succeeded and are kept.
type PartialBatchFailure struct {
	Failed    []PriceEditFailure
	Succeeded int
}

func (e *PartialBatchFailure) Error() string {
	ids := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		ids = append(ids, f.ProductID)
	}
	return fmt.Sprintf("catalog: %d of %d price edits failed (%s)", len(e.Failed), len(e.Failed)+e.Succeeded, strings.Join(ids, ", "))
}

// Unwrap exposes the underlying edit errors.
func (e *PartialBatchFailure) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, f := range e.Failed {
		errs = append(errs, f.Err)
	}
	return errs
}
