package checkout

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/example/shopcore/address"
	"github.com/example/shopcore/cart"
	"github.com/example/shopcore/config"
	"github.com/example/shopcore/poll"
	"github.com/example/shopcore/rest"
)

var (
	// ErrNoAddress means order creation was attempted without a
	// selected shipping address.
	ErrNoAddress = errors.New("select a shipping address first")
	// ErrEmptyCart means the cart has no items or a non-positive total.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrConfirmationDeclined means the confirmation callback aborted
	// the order before any network call.
	ErrConfirmationDeclined = errors.New("order confirmation declined")
	// ErrNoOrder means the operation needs an order and none exists.
	ErrNoOrder = errors.New("no active order")
	// ErrSlipNotAllowed means the payment window is closed or the
	// order is past PENDING_PAYMENT.
	ErrSlipNotAllowed = errors.New("slip upload is not allowed for this order")
	// ErrRestoreNotAllowed means the order is not EXPIRED or REJECTED.
	ErrRestoreNotAllowed = errors.New("restore to cart is not allowed for this order")
)

const paymentMethodPromptPay = "PROMPTPAY"

type createOrderRequest struct {
	PaymentMethod string `json:"paymentMethod"`
	AddressID     string `json:"addressId"`
}

type createOrderResponse struct {
	Success bool `json:"success"`
	Data    struct {
		OrderID         string     `json:"orderId"`
		Total           int64      `json:"total"`
		PromptPayTarget string     `json:"promptpayTarget"`
		PromptPayQRURL  string     `json:"promptpayQrUrl"`
		ExpiresAt       *time.Time `json:"expiresAt"`
	} `json:"data"`
}

type slipUploadResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Status         Status `json:"status"`
		PaymentSlipURL string `json:"paymentSlipUrl"`
	} `json:"data"`
}

// Orchestrator drives the checkout flow: address selection, order
// creation, PromptPay display, slip submission and status polling. It
// owns the payment-window countdown and the poll loop for the order it
// created, and both are torn down by Close.
type Orchestrator struct {
	client *rest.Client
	cart   *cart.Store

	// Confirm, when set, is consulted with the order total and the
	// selected address before the create call is committed. Returning
	// false aborts without any network traffic.
	Confirm func(total int64, addr address.Address) bool

	pollInterval  time.Duration
	countdownTick time.Duration
	slipMaxBytes  int64

	mu       sync.RWMutex
	addr     *address.Address
	order    *Order
	timeLeft int64

	countdown *poll.Handle
	poller    *poll.Handle
}

// NewOrchestrator constructs an Orchestrator over the transport, the
// cart mirror and client configuration.
func NewOrchestrator(client *rest.Client, cartStore *cart.Store, cfg *config.Config) *Orchestrator {
	return &Orchestrator{
		client:        client,
		cart:          cartStore,
		pollInterval:  cfg.PollInterval,
		countdownTick: cfg.CountdownTick,
		slipMaxBytes:  cfg.SlipMaxBytes,
	}
}

// SelectAddress records the shipping address for the next order.
func (o *Orchestrator) SelectAddress(addr address.Address) {
	o.mu.Lock()
	o.addr = &addr
	o.mu.Unlock()
}

// SelectedAddress returns the currently selected address, or nil.
func (o *Orchestrator) SelectedAddress() *address.Address {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.addr == nil {
		return nil
	}
	a := *o.addr
	return &a
}

// Order returns a copy of the held order snapshot, or nil.
func (o *Orchestrator) Order() *Order {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.order == nil {
		return nil
	}
	snapshot := *o.order
	snapshot.Items = append([]OrderItem(nil), o.order.Items...)
	return &snapshot
}

// Create places a PromptPay order for the selected address and the
// current cart. The server clears the cart on success; the client
// mirrors that by re-syncing, never by clearing locally. Server errors
// surface verbatim and leave the flow's state untouched.
func (o *Orchestrator) Create(ctx context.Context) (*Order, error) {
	o.mu.RLock()
	addr := o.addr
	o.mu.RUnlock()

	if addr == nil {
		return nil, ErrNoAddress
	}
	if o.cart.IsEmpty() || o.cart.Total() <= 0 {
		return nil, ErrEmptyCart
	}

	if o.Confirm != nil && !o.Confirm(o.cart.Total(), *addr) {
		return nil, ErrConfirmationDeclined
	}

	var resp createOrderResponse
	err := o.client.DoJSON(ctx, rest.RequestOpts{
		Method: http.MethodPost,
		Path:   "/orders",
		Body:   createOrderRequest{PaymentMethod: paymentMethodPromptPay, AddressID: addr.ID},
	}, &resp)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	order := &Order{
		ID:              resp.Data.OrderID,
		Total:           resp.Data.Total,
		PaymentMethod:   paymentMethodPromptPay,
		Status:          StatusPendingPayment,
		ExpiresAt:       resp.Data.ExpiresAt,
		PromptPayTarget: resp.Data.PromptPayTarget,
		PromptPayQRURL:  resp.Data.PromptPayQRURL,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	o.mu.Lock()
	o.order = order
	o.timeLeft = remainingSeconds(order.ExpiresAt, now)
	o.mu.Unlock()

	o.startCountdown()
	o.ResumePolling()

	if err := o.cart.Refresh(ctx); err != nil {
		log.Printf("[Checkout] Cart re-sync after order creation failed: %v", err)
	}

	return o.Order(), nil
}

// TimeLeft returns the current payment-window countdown in whole
// seconds. It is non-increasing for a fixed expiry and bottoms out at
// zero.
func (o *Orchestrator) TimeLeft() int64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.timeLeft
}

// CanUploadSlip is the derived gate for slip submission: an order must
// exist with an expiry set, the payment window must still be open, and
// the status must be PENDING_PAYMENT. The time check is evaluated
// fresh on every call, so the gate closes the moment the window does,
// even before the server reports EXPIRED.
func (o *Orchestrator) CanUploadSlip() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.order == nil || o.order.ExpiresAt == nil {
		return false
	}
	if o.order.Status != StatusPendingPayment {
		return false
	}
	return remainingSeconds(o.order.ExpiresAt, time.Now()) > 0
}

// UploadSlip validates and submits a payment slip image. The server's
// response carries the advanced status and the stored slip URL, which
// are merged into the held snapshot; other fields are untouched.
func (o *Orchestrator) UploadSlip(ctx context.Context, filename, contentType string, data []byte) error {
	if !o.CanUploadSlip() {
		return ErrSlipNotAllowed
	}
	if err := ValidateUpload(contentType, int64(len(data)), o.slipMaxBytes); err != nil {
		return err
	}

	o.mu.RLock()
	orderID := o.order.ID
	o.mu.RUnlock()

	var resp slipUploadResponse
	if err := o.client.Upload(ctx, "/orders/"+orderID+"/slip", "file", filename, contentType, data, &resp); err != nil {
		return err
	}

	o.mu.Lock()
	if o.order != nil && o.order.ID == orderID {
		o.order.Status = resp.Data.Status
		o.order.PaymentSlipURL = resp.Data.PaymentSlipURL
		o.order.UpdatedAt = time.Now()
	}
	o.mu.Unlock()

	return nil
}

// RestoreToCart moves an EXPIRED or REJECTED order's items back into
// the cart and re-syncs the cart mirror.
func (o *Orchestrator) RestoreToCart(ctx context.Context) error {
	o.mu.RLock()
	order := o.order
	o.mu.RUnlock()

	if order == nil {
		return ErrNoOrder
	}
	if !order.Status.CanRestore() {
		return ErrRestoreNotAllowed
	}

	err := o.client.DoJSON(ctx, rest.RequestOpts{
		Method: http.MethodPost,
		Path:   "/orders/" + order.ID + "/restore-cart",
	}, nil)
	if err != nil {
		return err
	}

	return o.cart.Refresh(ctx)
}

// PausePolling stops the status poll loop, e.g. right after a slip
// upload already advanced the state. The countdown keeps running.
func (o *Orchestrator) PausePolling() {
	o.mu.Lock()
	poller := o.poller
	o.poller = nil
	o.mu.Unlock()

	if poller != nil {
		poller.Stop()
	}
}

// ResumePolling (re)starts the 5s status poll loop for the held order.
// Each tick replaces the snapshot wholesale so fields that change
// together never drift apart.
func (o *Orchestrator) ResumePolling() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.order == nil || o.poller != nil {
		return
	}

	orderID := o.order.ID
	o.poller = poll.Start(o.pollInterval, func(ctx context.Context) {
		fetched, err := FetchOrder(ctx, o.client, orderID)
		if err != nil {
			log.Printf("[Checkout] Order poll failed: %v", err)
			return
		}
		o.replaceOrder(fetched)
	})
}

// Close tears down the countdown and poll timers. Safe to call more
// than once; must be called when the user navigates away so no timer
// outlives the flow.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	countdown := o.countdown
	poller := o.poller
	o.countdown = nil
	o.poller = nil
	o.mu.Unlock()

	if countdown != nil {
		countdown.Stop()
	}
	if poller != nil {
		poller.Stop()
	}
}

func (o *Orchestrator) startCountdown() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.countdown != nil || o.order == nil || o.order.ExpiresAt == nil {
		return
	}

	o.countdown = poll.Start(o.countdownTick, func(ctx context.Context) {
		o.recomputeTimeLeft()
	})
}

func (o *Orchestrator) recomputeTimeLeft() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.order == nil || o.order.ExpiresAt == nil {
		o.timeLeft = 0
		if o.countdown != nil {
			// Stop from outside the tick to avoid waiting on our
			// own loop.
			stale := o.countdown
			o.countdown = nil
			go stale.Stop()
		}
		return
	}

	o.timeLeft = remainingSeconds(o.order.ExpiresAt, time.Now())
}

func (o *Orchestrator) replaceOrder(fetched *Order) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.order == nil || o.order.ID != fetched.ID {
		return
	}
	o.order = fetched
}

// remainingSeconds is max(0, floor(expiresAt - now)) in seconds.
func remainingSeconds(expiresAt *time.Time, now time.Time) int64 {
	if expiresAt == nil {
		return 0
	}
	remaining := expiresAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int64(remaining / time.Second)
}
