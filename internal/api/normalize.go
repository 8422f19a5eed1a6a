// internal/api/normalize.go
package api

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/unclebandit/formreach-client/internal/model"
)

// The backend's list responses have shipped in three shapes over time: a bare
// array, {"data": [...]}, and a named key like {"campaigns": [...]}. Every
// list fetch funnels through decodeList so the rest of the client only ever
// sees the canonical form.

func decodeList(body []byte, namedKeys []string, out any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, out)
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return fmt.Errorf("unrecognized list response shape: %w", err)
	}
	for _, key := range append([]string{"data"}, namedKeys...) {
		raw, ok := wrapper[key]
		if !ok {
			continue
		}
		return json.Unmarshal(raw, out)
	}
	return fmt.Errorf("list response has none of the expected keys %v", namedKeys)
}

// decodeObject accepts either a bare object or a {"data": {...}} wrapper.
func decodeObject(body []byte, out any) error {
	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && len(wrapper.Data) > 0 && wrapper.Data[0] == '{' {
		return json.Unmarshal(wrapper.Data, out)
	}
	return json.Unmarshal(body, out)
}

func decodeCampaign(body []byte) (model.Campaign, error) {
	var c model.Campaign
	if err := decodeObject(body, &c); err != nil {
		return model.Campaign{}, fmt.Errorf("decode campaign: %w", err)
	}
	c.Status = model.NormalizeStatus(string(c.Status))
	return c, nil
}
