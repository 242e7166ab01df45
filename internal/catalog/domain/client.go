package catalog

import (
	"net/mail"
	"regexp"
	"strings"
	"time"

	"gelato-ops/internal/apperr"
)

// Address is a structured billing address.
type Address struct {
	Street     string `json:"street"`
	Unit       string `json:"unit"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// IsZero reports whether no structured field is set.
func (a Address) IsZero() bool {
	return strings.TrimSpace(a.Street) == "" &&
		strings.TrimSpace(a.Unit) == "" &&
		strings.TrimSpace(a.PostalCode) == "" &&
		strings.TrimSpace(a.Country) == ""
}

// Lines formats the address for a document recipient block.
func (a Address) Lines() []string {
	var lines []string
	street := strings.TrimSpace(a.Street)
	if unit := strings.TrimSpace(a.Unit); unit != "" {
		if street != "" {
			street += " " + unit
		} else {
			street = unit
		}
	}
	if street != "" {
		lines = append(lines, street)
	}
	tail := strings.TrimSpace(strings.TrimSpace(a.Country) + " " + strings.TrimSpace(a.PostalCode))
	if tail != "" {
		lines = append(lines, tail)
	}
	return lines
}

// Client is a wholesale customer.
type Client struct {
	ID            string    `json:"id"`
	BusinessName  string    `json:"business_name"`
	ContactPerson string    `json:"contact_person"`
	Email         string    `json:"email"`
	ContactNumber string    `json:"contact_number"`
	Address       string    `json:"address"`
	Billing       Address   `json:"billing_address"`
	ACRAPath      *string   `json:"acra_path"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// AddressLines prefers the structured billing address over the flat one.
func (c Client) AddressLines() []string {
	if !c.Billing.IsZero() {
		return c.Billing.Lines()
	}
	return splitFlat(c.Address)
}

var contactNumberPattern = regexp.MustCompile(`^(\+65)?[0-9]{8}$`)

// Validate checks the fields a client form collects.
func (c Client) Validate() error {
	if strings.TrimSpace(c.BusinessName) == "" {
		return apperr.Invalid("business_name", "business name is required")
	}
	if email := strings.TrimSpace(c.Email); email != "" {
		addr, err := mail.ParseAddress(email)
		if err != nil || addr.Address != email {
			return apperr.Invalid("email", "%q is not a valid email address", email)
		}
	}
	if number := strings.ReplaceAll(strings.TrimSpace(c.ContactNumber), " ", ""); number != "" {
		if !contactNumberPattern.MatchString(number) {
			return apperr.Invalid("contact_number", "%q must be 8 digits, optionally prefixed by +65", c.ContactNumber)
		}
	}
	return nil
}

func splitFlat(address string) []string {
	var lines []string
	for _, part := range strings.Split(address, "\n") {
		if part = strings.TrimSpace(part); part != "" {
			lines = append(lines, part)
		}
	}
	return lines
}

// FlatAddressLines splits a free-form address into non-empty lines.
func FlatAddressLines(address string) []string {
	return splitFlat(address)
}
