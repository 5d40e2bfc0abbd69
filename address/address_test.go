package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefault_PrefersFlaggedAddress(t *testing.T) {
	addresses := []Address{
		{ID: "a1"},
		{ID: "a2", IsDefault: true},
		{ID: "a3"},
	}
	selected := Default(addresses)
	assert.Equal(t, "a2", selected.ID)
}

func TestDefault_FallsBackToFirst(t *testing.T) {
	addresses := []Address{{ID: "a1"}, {ID: "a2"}}
	assert.Equal(t, "a1", Default(addresses).ID)
}

func TestDefault_EmptyList(t *testing.T) {
	assert.Nil(t, Default(nil))
}

func TestFormat_SkipsEmptyParts(t *testing.T) {
	addr := Address{
		Recipient: "A. Buyer", Phone: "0899999999",
		Line1: "1 Main Rd", District: "Bang Rak",
		Province: "Bangkok", PostalCode: "10500",
	}
	formatted := addr.Format()
	assert.Equal(t, "A. Buyer (0899999999) 1 Main Rd Bang Rak Bangkok 10500", formatted)
}
