package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/mcp-go"
)

func notConfigured(what string) error {
	return fmt.Errorf("%s requires database connection", what)
}

func encodePayload(payload map[string]any) (json.RawMessage, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	return b, nil
}

func jsonResource(uri string, v any) (*mcp.ResourceContent, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return &mcp.ResourceContent{
		URI:      uri,
		MimeType: "application/json",
		Text:     string(data),
	}, nil
}
