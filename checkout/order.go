package checkout

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/shopcore/rest"
)

// OrderItem is a line of a placed order, snapshotted at creation.
type OrderItem struct {
	ProductID string `json:"productId"`
	Color     string `json:"color"`
	Size      string `json:"size"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
}

// Order is the client-side snapshot of an order. It is read-only from
// the client's perspective except for the slip-upload side effect;
// expiresAt, once set, never changes for the order's lifetime.
type Order struct {
	ID              string      `json:"id"`
	Items           []OrderItem `json:"items,omitempty"`
	SubTotal        int64       `json:"subTotal"`
	ShippingFee     int64       `json:"shippingFee"`
	Total           int64       `json:"total"`
	PaymentMethod   string      `json:"paymentMethod"`
	Status          Status      `json:"status"`
	ExpiresAt       *time.Time  `json:"expiresAt,omitempty"`
	PaymentSlipURL  string      `json:"paymentSlipUrl,omitempty"`
	PromptPayTarget string      `json:"promptpayTarget,omitempty"`
	PromptPayQRURL  string      `json:"promptpayQrUrl,omitempty"`
	StatusNote      string      `json:"statusNote,omitempty"`
	RejectedAt      *time.Time  `json:"rejectedAt,omitempty"`
	CanceledAt      *time.Time  `json:"canceledAt,omitempty"`
	TrackingTag     string      `json:"trackingTag,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

type orderEnvelope struct {
	Success bool  `json:"success"`
	Data    Order `json:"data"`
}

// FetchOrder loads the full detail of a single order.
func FetchOrder(ctx context.Context, client *rest.Client, id string) (*Order, error) {
	var envelope orderEnvelope
	err := client.DoJSON(ctx, rest.RequestOpts{
		Method: http.MethodGet,
		Path:   "/orders/" + id,
	}, &envelope)
	if err != nil {
		return nil, err
	}
	return &envelope.Data, nil
}

// OrderPage is one page of the user's order history.
type OrderPage struct {
	Orders     []Order
	Page       int
	Size       int
	TotalItems int64
}

type orderListEnvelope struct {
	Success    bool    `json:"success"`
	Data       []Order `json:"data"`
	Pagination struct {
		CurrentPage  int   `json:"currentPage"`
		ItemsPerPage int   `json:"itemsPerPage"`
		TotalItems   int64 `json:"totalItems"`
	} `json:"pagination"`
}

// ListMine fetches a page of the current user's orders, optionally
// filtered to the given statuses (sent as a CSV).
func ListMine(ctx context.Context, client *rest.Client, page, size int, statuses []Status) (*OrderPage, error) {
	query := map[string]string{
		"page": strconv.Itoa(page),
		"size": strconv.Itoa(size),
	}
	if len(statuses) > 0 {
		values := make([]string, 0, len(statuses))
		for _, s := range statuses {
			values = append(values, string(s))
		}
		query["status"] = strings.Join(values, ",")
	}

	var envelope orderListEnvelope
	err := client.DoJSON(ctx, rest.RequestOpts{
		Method: http.MethodGet,
		Path:   "/orders/my",
		Query:  query,
	}, &envelope)
	if err != nil {
		return nil, err
	}

	return &OrderPage{
		Orders:     envelope.Data,
		Page:       envelope.Pagination.CurrentPage,
		Size:       envelope.Pagination.ItemsPerPage,
		TotalItems: envelope.Pagination.TotalItems,
	}, nil
}
