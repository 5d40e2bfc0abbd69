package cart

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeWireCart(t *testing.T, raw string) wireCart {
	t.Helper()
	var w wireCart
	require.NoError(t, json.Unmarshal([]byte(raw), &w))
	return w
}

func TestNormalizeItem_CurrentShape(t *testing.T) {
	w := decodeWireCart(t, `{
		"items": [{
			"productId": "p1", "color": "black", "size": "M",
			"name": "Tee", "imageUrl": "/img/tee.png",
			"unitPrice": 500, "quantity": 2
		}],
		"subTotal": 1000, "shippingFee": 50
	}`)

	items, subTotal, shippingFee := normalizeCart(w)
	require.Len(t, items, 1)
	assert.Equal(t, Item{
		ProductID: "p1", Color: "black", Size: "M",
		Name: "Tee", Image: "/img/tee.png",
		Price: 500, Quantity: 2,
	}, items[0])
	assert.Equal(t, int64(1000), subTotal)
	assert.Equal(t, int64(50), shippingFee)
}

func TestNormalizeItem_LegacyShape(t *testing.T) {
	// Older endpoints returned price/image/productName/qty.
	w := decodeWireCart(t, `{
		"items": [{
			"productId": "p1", "color": "red", "size": "L",
			"productName": "Hoodie", "image": "/img/hoodie.png",
			"price": 900, "qty": 1
		}],
		"subtotal": 900
	}`)

	items, subTotal, shippingFee := normalizeCart(w)
	require.Len(t, items, 1)
	assert.Equal(t, Item{
		ProductID: "p1", Color: "red", Size: "L",
		Name: "Hoodie", Image: "/img/hoodie.png",
		Price: 900, Quantity: 1,
	}, items[0])
	assert.Equal(t, int64(900), subTotal)
	assert.Zero(t, shippingFee)
}

func TestNormalizeItem_NewFieldsWinOverLegacy(t *testing.T) {
	w := decodeWireCart(t, `{
		"items": [{
			"productId": "p1",
			"name": "Tee", "productName": "Old Tee",
			"imageUrl": "/new.png", "image": "/old.png",
			"unitPrice": 450, "price": 500,
			"quantity": 3, "qty": 9
		}]
	}`)

	items, _, _ := normalizeCart(w)
	require.Len(t, items, 1)
	assert.Equal(t, "Tee", items[0].Name)
	assert.Equal(t, "/new.png", items[0].Image)
	assert.Equal(t, int64(450), items[0].Price)
	assert.Equal(t, 3, items[0].Quantity)
}

func TestNormalizeItem_ZeroPriceIsNotMissing(t *testing.T) {
	// An explicit unitPrice of 0 must not fall through to price.
	w := decodeWireCart(t, `{"items": [{"productId": "p1", "unitPrice": 0, "price": 700}]}`)

	items, _, _ := normalizeCart(w)
	require.Len(t, items, 1)
	assert.Zero(t, items[0].Price)
}
