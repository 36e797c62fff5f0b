package bitrix

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"
)

// FindContactIDByPhone returns the first contact whose phone matches.
// The caller decides how to treat lookup errors; this method reports
// them instead of downgrading to "not found".
func (c *Client) FindContactIDByPhone(ctx context.Context, phone string) (int64, bool, error) {
	payload := map[string]any{
		"filter": map[string]any{"PHONE": phone},
		"select": []string{"ID"},
	}

	var resp ListResponse[idRow]
	err := callWithRetry(ctx, c.lookupRetries, func(ctx context.Context) error {
		return c.Call(ctx, "crm.contact.list", payload, &resp)
	})
	if err != nil {
		return 0, false, fmt.Errorf("crm.contact.list: %w", err)
	}

	if len(resp.Result) == 0 {
		return 0, false, nil
	}

	id, err := strconv.ParseInt(resp.Result[0].ID, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("contact id %q: %w", resp.Result[0].ID, err)
	}
	return id, true, nil
}

// AddContact creates a contact and returns its id.
func (c *Client) AddContact(ctx context.Context, fields map[string]any) (int64, error) {
	var resp mutationResponse
	if err := c.Call(ctx, "crm.contact.add", map[string]any{"fields": fields}, &resp); err != nil {
		return 0, fmt.Errorf("crm.contact.add: %w", err)
	}

	id, err := parseID(resp.Result)
	if err != nil {
		return 0, fmt.Errorf("crm.contact.add result: %w", err)
	}

	c.log.Info("contact created", zap.Int64("contact_id", id))
	return id, nil
}

// UpdateContact merges fields into an existing contact.
func (c *Client) UpdateContact(ctx context.Context, id int64, fields map[string]any) error {
	payload := map[string]any{
		"id":     id,
		"fields": fields,
	}
	if err := c.Call(ctx, "crm.contact.update", payload, nil); err != nil {
		return fmt.Errorf("crm.contact.update %d: %w", id, err)
	}

	c.log.Info("contact updated", zap.Int64("contact_id", id))
	return nil
}
