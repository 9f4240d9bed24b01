package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to the external commerce/order service. The scheduling core
// never computes price; it hands over the occurrence's policy snapshot and
// gets back the created order and its confirmed window.
type Client struct {
	hc      *http.Client
	baseURL string
}

func New(baseURL string) *Client {
	return &Client{
		hc:      &http.Client{Timeout: 5 * time.Second},
		baseURL: baseURL,
	}
}

type OrderRequest struct {
	TenantID      string    `json:"tenant_id"`
	ContractID    string    `json:"contract_id"`
	OccurrenceKey string    `json:"occurrence_key"`
	CustomerID    string    `json:"customer_id"`
	SellableID    string    `json:"sellable_id"`
	LocationID    string    `json:"location_id"`
	PartySize     int       `json:"party_size"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
}

type Order struct {
	ID             string    `json:"id"`
	ConfirmedStart time.Time `json:"confirmed_start"`
	ConfirmedEnd   time.Time `json:"confirmed_end"`
}

// CreateOrder submits a materialization request. The occurrence key rides
// along as the idempotency key so a retried request lands on the same
// order.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (Order, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Order{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return Order{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.TenantID+":"+req.OccurrenceKey)

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return Order{}, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Order{}, err
	}
	if resp.StatusCode >= 400 {
		var e struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(b, &e)
		if e.Message != "" {
			return Order{}, fmt.Errorf("commerce: create order failed: %s (status=%d)", e.Message, resp.StatusCode)
		}
		return Order{}, fmt.Errorf("commerce: create order failed (status=%d)", resp.StatusCode)
	}

	var o Order
	if err := json.Unmarshal(b, &o); err != nil {
		return Order{}, fmt.Errorf("commerce: decode order: %w", err)
	}
	if o.ID == "" {
		return Order{}, fmt.Errorf("commerce: order response missing id")
	}
	return o, nil
}
