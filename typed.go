package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
)

// Decode converts a value returned by the dispatcher into T by round-tripping
// it through JSON.
func Decode[T any](value any) (T, error) {
	var out T
	if err := decodeInto(value, &out); err != nil {
		return out, err
	}
	return out, nil
}

// GetJSON issues a GET and decodes the body into out.
func (d *Dispatcher) GetJSON(ctx context.Context, path string, out any, opts ...RequestOption) error {
	value, err := d.Get(ctx, path, opts...)
	if err != nil {
		return err
	}
	return decodeInto(value, out)
}

// PostJSON issues a POST and decodes the body into out. out may be nil.
func (d *Dispatcher) PostJSON(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	value, err := d.Post(ctx, path, body, opts...)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decodeInto(value, out)
}

func decodeInto(value, out any) error {
	if value == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("apiclient: re-encode response: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("apiclient: decode response into %T: %w", out, err)
	}
	return nil
}
