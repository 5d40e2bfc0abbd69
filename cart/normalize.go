package cart

// Backend field names for cart lines have drifted across endpoints
// over time, so the wire shape is decoded tolerantly and collapsed by
// normalizeItem with a fixed priority order:
//
//	price:    unitPrice, then price
//	image:    imageUrl, then image
//	name:     name, then productName
//	quantity: quantity, then qty
type wireItem struct {
	ProductID   string `json:"productId"`
	Color       string `json:"color"`
	Size        string `json:"size"`
	Name        string `json:"name"`
	ProductName string `json:"productName"`
	Image       string `json:"image"`
	ImageURL    string `json:"imageUrl"`
	Price       *int64 `json:"price"`
	UnitPrice   *int64 `json:"unitPrice"`
	Quantity    *int   `json:"quantity"`
	Qty         *int   `json:"qty"`
}

type wireCart struct {
	Items       []wireItem `json:"items"`
	SubTotal    *int64     `json:"subTotal"`
	Subtotal    *int64     `json:"subtotal"`
	ShippingFee *int64     `json:"shippingFee"`
}

func normalizeItem(w wireItem) Item {
	item := Item{
		ProductID: w.ProductID,
		Color:     w.Color,
		Size:      w.Size,
		Name:      coalesceString(w.Name, w.ProductName),
		Image:     coalesceString(w.ImageURL, w.Image),
	}

	if w.UnitPrice != nil {
		item.Price = *w.UnitPrice
	} else if w.Price != nil {
		item.Price = *w.Price
	}

	if w.Quantity != nil {
		item.Quantity = *w.Quantity
	} else if w.Qty != nil {
		item.Quantity = *w.Qty
	}

	return item
}

func normalizeCart(w wireCart) ([]Item, int64, int64) {
	items := make([]Item, 0, len(w.Items))
	for _, line := range w.Items {
		items = append(items, normalizeItem(line))
	}

	var subTotal int64
	if w.SubTotal != nil {
		subTotal = *w.SubTotal
	} else if w.Subtotal != nil {
		subTotal = *w.Subtotal
	}

	var shippingFee int64
	if w.ShippingFee != nil {
		shippingFee = *w.ShippingFee
	}

	return items, subTotal, shippingFee
}

func coalesceString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
