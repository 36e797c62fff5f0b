package bitrix

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"
)

// FindDealIDByContact returns the most recent deal linked to a
// contact, if any.
func (c *Client) FindDealIDByContact(ctx context.Context, contactID int64) (int64, bool, error) {
	payload := map[string]any{
		"filter": map[string]any{"CONTACT_ID": contactID},
		"select": []string{"ID"},
		"order":  map[string]any{"ID": "DESC"},
	}

	var resp ListResponse[idRow]
	err := callWithRetry(ctx, c.lookupRetries, func(ctx context.Context) error {
		return c.Call(ctx, "crm.deal.list", payload, &resp)
	})
	if err != nil {
		return 0, false, fmt.Errorf("crm.deal.list: %w", err)
	}

	if len(resp.Result) == 0 {
		return 0, false, nil
	}

	id, err := strconv.ParseInt(resp.Result[0].ID, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("deal id %q: %w", resp.Result[0].ID, err)
	}
	return id, true, nil
}

// AddDeal creates a deal and returns its id.
func (c *Client) AddDeal(ctx context.Context, fields map[string]any) (int64, error) {
	var resp mutationResponse
	if err := c.Call(ctx, "crm.deal.add", map[string]any{"fields": fields}, &resp); err != nil {
		return 0, fmt.Errorf("crm.deal.add: %w", err)
	}

	id, err := parseID(resp.Result)
	if err != nil {
		return 0, fmt.Errorf("crm.deal.add result: %w", err)
	}

	c.log.Info("deal created", zap.Int64("deal_id", id))
	return id, nil
}

// UpdateDeal merges fields into an existing deal.
func (c *Client) UpdateDeal(ctx context.Context, id int64, fields map[string]any) error {
	payload := map[string]any{
		"id":     id,
		"fields": fields,
	}
	if err := c.Call(ctx, "crm.deal.update", payload, nil); err != nil {
		return fmt.Errorf("crm.deal.update %d: %w", id, err)
	}

	c.log.Info("deal updated", zap.Int64("deal_id", id))
	return nil
}
