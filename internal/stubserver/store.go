package stubserver

import (
	"sync"
	"time"
)

// Product is a catalog entry the stub can sell.
type Product struct {
	ID    string
	Name  string
	Image string
	Price int64
}

// User is a registered account.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Roles        []string
}

// CartLine is one cart entry keyed by (productID, color, size).
type CartLine struct {
	ProductID string
	Color     string
	Size      string
	Name      string
	Image     string
	UnitPrice int64
	Quantity  int
}

// Address is a stored shipping address.
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

// OrderItem is an order line snapshotted from the cart at creation.
type OrderItem struct {
	ProductID string `json:"productId"`
	Color     string `json:"color"`
	Size      string `json:"size"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
}

// Order is a placed order with its payment-window state.
type Order struct {
	ID              string      `json:"id"`
	UserID          string      `json:"-"`
	Items           []OrderItem `json:"items"`
	SubTotal        int64       `json:"subTotal"`
	ShippingFee     int64       `json:"shippingFee"`
	Total           int64       `json:"total"`
	PaymentMethod   string      `json:"paymentMethod"`
	Status          string      `json:"status"`
	ExpiresAt       *time.Time  `json:"expiresAt,omitempty"`
	PaymentSlipURL  string      `json:"paymentSlipUrl,omitempty"`
	PromptPayTarget string      `json:"promptpayTarget,omitempty"`
	PromptPayQRURL  string      `json:"promptpayQrUrl,omitempty"`
	StatusNote      string      `json:"statusNote,omitempty"`
	RejectedAt      *time.Time  `json:"rejectedAt,omitempty"`
	CanceledAt      *time.Time  `json:"canceledAt,omitempty"`
	TrackingTag     string      `json:"trackingTag,omitempty"`
	AddressLine     string      `json:"addressLine,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// Order statuses recognized by the stub.
const (
	statusPendingPayment = "PENDING_PAYMENT"
	statusSlipUploaded   = "SLIP_UPLOADED"
	statusPaid           = "PAID"
	statusRejected       = "REJECTED"
	statusExpired        = "EXPIRED"
	statusCanceled       = "CANCELED"
)

// store holds all stub state in memory, guarded by one mutex. The stub
// exists so development and tests run hermetically without a real
// backend; durability is a non-goal.
type store struct {
	mu            sync.Mutex
	products      map[string]Product
	users         map[string]*User            // by id
	usersByEmail  map[string]*User            // by email
	carts         map[string][]CartLine       // by user id
	addresses     map[string][]Address        // by user id
	orders        map[string]*Order           // by id
	refreshTokens map[string]string           // refresh token -> user id
}

func newStore() *store {
	return &store{
		products:      make(map[string]Product),
		users:         make(map[string]*User),
		usersByEmail:  make(map[string]*User),
		carts:         make(map[string][]CartLine),
		addresses:     make(map[string][]Address),
		orders:        make(map[string]*Order),
		refreshTokens: make(map[string]string),
	}
}

// expireIfDue flips a pending order to EXPIRED once its payment window
// has passed. Called with the store lock held before any order read.
func expireIfDue(order *Order, now time.Time) {
	if order.Status != statusPendingPayment || order.ExpiresAt == nil {
		return
	}
	if now.After(*order.ExpiresAt) {
		order.Status = statusExpired
		order.UpdatedAt = now
	}
}
