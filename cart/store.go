package cart

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/example/shopcore/rest"
)

// Key is the composite identity of a cart line.
type Key struct {
	ProductID string
	Color     string
	Size      string
}

// Item is a cart line as mirrored from the server.
type Item struct {
	ProductID string
	Color     string
	Size      string
	Name      string
	Image     string
	Price     int64
	Quantity  int
}

// Key returns the composite identity of the item.
func (i Item) Key() Key {
	return Key{ProductID: i.ProductID, Color: i.Color, Size: i.Size}
}

type mutationRequest struct {
	ProductID string `json:"productId"`
	Color     string `json:"color"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

type cartEnvelope struct {
	Success bool     `json:"success"`
	Data    wireCart `json:"data"`
}

// Store mirrors the server's authoritative per-user cart. Every
// mutation round-trips to the server and then re-fetches the canonical
// cart; local state is never patched speculatively, so money and stock
// stay server-correct even under concurrent modification.
type Store struct {
	client *rest.Client

	mu          sync.RWMutex
	items       []Item
	subTotal    int64
	shippingFee int64
}

// NewStore constructs a Store over the given transport.
func NewStore(client *rest.Client) *Store {
	return &Store{client: client}
}

// Refresh replaces local state with the server's cart. When the user
// is unauthenticated the cart resets to empty without error.
func (s *Store) Refresh(ctx context.Context) error {
	var envelope cartEnvelope
	err := s.client.DoJSON(ctx, rest.RequestOpts{
		Method: http.MethodGet,
		Path:   "/cart",
	}, &envelope)

	if err != nil {
		if rest.IsStatus(err, http.StatusUnauthorized) {
			s.replace(nil, 0, 0)
			return nil
		}
		return err
	}

	items, subTotal, shippingFee := normalizeCart(envelope.Data)
	s.replace(items, subTotal, shippingFee)
	return nil
}

// AddItem adds quantity of a product variant to the cart. A failed add
// is logged and swallowed; the unconditional refresh re-syncs local
// state to whatever the server holds.
func (s *Store) AddItem(ctx context.Context, productID, color, size string, quantity int) error {
	err := s.client.DoJSON(ctx, rest.RequestOpts{
		Method: http.MethodPost,
		Path:   "/cart/items",
		Body:   mutationRequest{ProductID: productID, Color: color, Size: size, Quantity: quantity},
	}, nil)
	if err != nil {
		log.Printf("[Cart] Add item failed: %v", err)
	}

	return s.Refresh(ctx)
}

// UpdateItem sets the quantity of an existing line. The caller is
// responsible for clamping quantity to >= 1.
func (s *Store) UpdateItem(ctx context.Context, productID, color, size string, quantity int) error {
	err := s.client.DoJSON(ctx, rest.RequestOpts{
		Method: http.MethodPut,
		Path:   "/cart/items",
		Body:   mutationRequest{ProductID: productID, Color: color, Size: size, Quantity: quantity},
	}, nil)
	if err != nil {
		log.Printf("[Cart] Update item failed: %v", err)
	}

	return s.Refresh(ctx)
}

// RemoveItem deletes a line by its composite key.
func (s *Store) RemoveItem(ctx context.Context, productID, color, size string) error {
	err := s.client.DoJSON(ctx, rest.RequestOpts{
		Method: http.MethodDelete,
		Path:   "/cart/items",
		Query:  map[string]string{"productId": productID, "color": color, "size": size},
	}, nil)
	if err != nil {
		log.Printf("[Cart] Remove item failed: %v", err)
	}

	return s.Refresh(ctx)
}

// Clear empties the whole cart resource.
func (s *Store) Clear(ctx context.Context) error {
	err := s.client.DoJSON(ctx, rest.RequestOpts{
		Method: http.MethodDelete,
		Path:   "/cart",
	}, nil)
	if err != nil {
		log.Printf("[Cart] Clear failed: %v", err)
	}

	return s.Refresh(ctx)
}

// Items returns a copy of the current lines.
func (s *Store) Items() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Item(nil), s.items...)
}

// SubTotal is the server-reported merchandise total.
func (s *Store) SubTotal() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subTotal
}

// ShippingFee is the server-reported shipping fee.
func (s *Store) ShippingFee() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shippingFee
}

// Total is subtotal plus shipping. Both inputs come verbatim from the
// server; the client never recomputes money from line items.
func (s *Store) Total() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subTotal + s.shippingFee
}

// ItemCount sums quantities across lines.
func (s *Store) ItemCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, item := range s.items {
		count += item.Quantity
	}
	return count
}

// IsEmpty reports whether the cart has no lines.
func (s *Store) IsEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items) == 0
}

func (s *Store) replace(items []Item, subTotal, shippingFee int64) {
	s.mu.Lock()
	s.items = items
	s.subTotal = subTotal
	s.shippingFee = shippingFee
	s.mu.Unlock()
}
