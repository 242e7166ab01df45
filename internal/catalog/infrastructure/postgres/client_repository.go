package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	catalog "gelato-ops/internal/catalog/domain"
)

// ClientRepository reads clients and links their documents.
type ClientRepository struct {
	db *sql.DB
}

// NewClientRepository constructs a repository.
func NewClientRepository(db *sql.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

var _ catalog.ClientRepository = (*ClientRepository)(nil)

// GetByID fetches a client; nil when absent.
func (r *ClientRepository) GetByID(ctx context.Context, id string) (*catalog.Client, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("client repo: nil db")
	}
	var c catalog.Client
	var acra sql.NullString
	err := r.db.QueryRowContext(ctx, `
SELECT id, business_name, contact_person, email, contact_number, address,
	billing_street, billing_unit, billing_postal_code, billing_country,
	acra_path, created_at, updated_at
FROM clients
WHERE id = $1`, id).Scan(
		&c.ID,
		&c.BusinessName,
		&c.ContactPerson,
		&c.Email,
		&c.ContactNumber,
		&c.Address,
		&c.Billing.Street,
		&c.Billing.Unit,
		&c.Billing.PostalCode,
		&c.Billing.Country,
		&acra,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if acra.Valid {
		c.ACRAPath = &acra.String
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

// SetDocumentPath stores the blob path of the client's ACRA document.
func (r *ClientRepository) SetDocumentPath(ctx context.Context, id, path string) error {
	if r == nil || r.db == nil {
		return errors.New("client repo: nil db")
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE clients
SET acra_path = $1, updated_at = $2
WHERE id = $3`, path, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return catalog.ErrClientNotFound
	}
	return nil
}
