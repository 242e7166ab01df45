package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gelato-ops/internal/apperr"
)

func TestClientValidate(t *testing.T) {
	valid := Client{BusinessName: "Gelato Bar", Email: "ops@gelato.sg", ContactNumber: "+6591234567"}
	assert.NoError(t, valid.Validate())
	assert.NoError(t, Client{BusinessName: "Gelato Bar", ContactNumber: "9123 4567"}.Validate())

	cases := map[string]Client{
		"missing name":  {ContactNumber: "91234567"},
		"bad email":     {BusinessName: "x", Email: "not-an-email"},
		"display email": {BusinessName: "x", Email: "Ops <ops@gelato.sg>"},
		"short number":  {BusinessName: "x", ContactNumber: "1234567"},
		"wrong prefix":  {BusinessName: "x", ContactNumber: "+6091234567"},
	}
	for name, c := range cases {
		err := c.Validate()
		assert.True(t, apperr.IsValidation(err), name)
	}
}

func TestClientAddressLines(t *testing.T) {
	structured := Client{
		Address: "ignored",
		Billing: Address{Street: "1 Orchard Rd", Unit: "#02-01", PostalCode: "238801", Country: "Singapore"},
	}
	assert.Equal(t, []string{"1 Orchard Rd #02-01", "Singapore 238801"}, structured.AddressLines())

	flat := Client{Address: "77 Beach Road\n\n#01-02 "}
	assert.Equal(t, []string{"77 Beach Road", "#01-02"}, flat.AddressLines())
	assert.Empty(t, Client{}.AddressLines())
}

func TestPartialBatchFailureMessage(t *testing.T) {
	err := &PartialBatchFailure{Failed: []PriceEditFailure{{ProductID: "p2"}}, Succeeded: 3}
	assert.Equal(t, "catalog: 1 of 4 price edits failed (p2)", err.Error())
}
