// Package address is a thin client for the address collaborator. The
// storefront core only selects addresses; it does not own them, and an
// order snapshots the selected address server-side at creation time.
package address

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/example/shopcore/rest"
)

// Address is a shipping destination as returned by the collaborator.
type Address struct {
	ID          string `json:"id"`
	Recipient   string `json:"recipient"`
	Phone       string `json:"phone"`
	Line1       string `json:"line1"`
	Line2       string `json:"line2,omitempty"`
	Subdistrict string `json:"subdistrict"`
	District    string `json:"district"`
	Province    string `json:"province"`
	PostalCode  string `json:"postalCode"`
	IsDefault   bool   `json:"isDefault"`
}

// Format renders the address as a single shipping line for display.
func (a Address) Format() string {
	parts := []string{a.Line1, a.Line2, a.Subdistrict, a.District, a.Province, a.PostalCode}
	fields := make([]string, 0, len(parts)+1)
	for _, p := range parts {
		if p != "" {
			fields = append(fields, p)
		}
	}
	return fmt.Sprintf("%s (%s) %s", a.Recipient, a.Phone, strings.Join(fields, " "))
}

type listEnvelope struct {
	Success bool      `json:"success"`
	Data    []Address `json:"data"`
}

// List fetches the user's addresses.
func List(ctx context.Context, client *rest.Client) ([]Address, error) {
	var envelope listEnvelope
	err := client.DoJSON(ctx, rest.RequestOpts{
		Method: http.MethodGet,
		Path:   "/addresses",
	}, &envelope)
	if err != nil {
		return nil, err
	}
	return envelope.Data, nil
}

// Default returns the address flagged as default, falling back to the
// first entry. Returns nil for an empty list.
func Default(addresses []Address) *Address {
	for i := range addresses {
		if addresses[i].IsDefault {
			return &addresses[i]
		}
	}
	if len(addresses) > 0 {
		return &addresses[0]
	}
	return nil
}
