package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/example/opsched/internal/domain/fulfillment"
)

// Client reads sellable component templates from the external catalog.
// Read-only collaborator: the core never writes catalog state.
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

type componentJSON struct {
	ID              string `json:"id"`
	Kind            string `json:"kind"`
	DurationHintMin int    `json:"duration_hint_min"`
	LocationID      string `json:"location_id"`
}

type relationJSON struct {
	PredecessorID string `json:"predecessor_id"`
	SuccessorID   string `json:"successor_id"`
	Type          string `json:"type"`
	MinGapMin     *int   `json:"min_gap_min"`
	MaxGapMin     *int   `json:"max_gap_min"`
	HardBlock     bool   `json:"hard_block"`
}

type templateJSON struct {
	SellableID string          `json:"sellable_id"`
	Components []componentJSON `json:"components"`
	Relations  []relationJSON  `json:"relations"`
}

func (c *Client) Template(ctx context.Context, tenantID, sellableID string) (fulfillment.ComponentTemplate, error) {
	url := fmt.Sprintf("%s/tenants/%s/sellables/%s/template", c.baseURL, tenantID, sellableID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fulfillment.ComponentTemplate{}, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return fulfillment.ComponentTemplate{}, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fulfillment.ComponentTemplate{}, err
	}
	if resp.StatusCode >= 400 {
		return fulfillment.ComponentTemplate{}, fmt.Errorf("catalog: template %s fetch failed (status=%d)", sellableID, resp.StatusCode)
	}

	var t templateJSON
	if err := json.Unmarshal(b, &t); err != nil {
		return fulfillment.ComponentTemplate{}, fmt.Errorf("catalog: decode template: %w", err)
	}

	out := fulfillment.ComponentTemplate{SellableID: t.SellableID}
	for _, comp := range t.Components {
		out.Components = append(out.Components, fulfillment.ComponentDef{
			ID:              comp.ID,
			Kind:            fulfillment.UnitKind(comp.Kind),
			DurationHintMin: comp.DurationHintMin,
			LocationID:      comp.LocationID,
		})
	}
	for _, rel := range t.Relations {
		out.Relations = append(out.Relations, fulfillment.RelationDef{
			PredecessorID: rel.PredecessorID,
			SuccessorID:   rel.SuccessorID,
			Type:          fulfillment.DependencyType(rel.Type),
			MinGapMin:     rel.MinGapMin,
			MaxGapMin:     rel.MaxGapMin,
			HardBlock:     rel.HardBlock,
		})
	}
	return out, nil
}
