package bitrix

import "encoding/json"

type ListResponse[T any] struct {
	Result []T  `json:"result"`
	Next   *int `json:"next,omitempty"`
	Total  *int `json:"total,omitempty"`
}

// idRow is the minimal projection used by lookup calls.
type idRow struct {
	ID string `json:"ID"`
}

// mutationResponse covers crm.*.add and crm.*.update responses. Add
// returns the new entity id, update returns true; both arrive in
// "result".
type mutationResponse struct {
	Result json.RawMessage `json:"result"`
}

// PhoneField is the multi-value phone shape Bitrix expects on a
// contact.
type PhoneField struct {
	Value     string `json:"VALUE"`
	ValueType string `json:"VALUE_TYPE"`
}
