package httputil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// ReadAllWithLimit reads at most limit bytes from r. The boolean reports
// whether the reader held more than limit bytes (the excess is discarded).
func ReadAllWithLimit(r io.Reader, limit int64) ([]byte, bool, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(data)) > limit {
		return data[:limit], true, nil
	}
	return data, false, nil
}

// ReadAllStrict reads the full body and errors when it exceeds limit bytes.
func ReadAllStrict(r io.Reader, limit int64) ([]byte, error) {
	data, truncated, err := ReadAllWithLimit(r, limit)
	if err != nil {
		return nil, err
	}
	if truncated {
		return nil, fmt.Errorf("response body exceeds %d bytes", limit)
	}
	return data, nil
}

const maxRequestBodyBytes = 1 << 20 // 1 MiB

// DecodeJSONBody decodes a request body into target with a size cap.
// Unknown fields are ignored; submission types state which fields count.
func DecodeJSONBody(r *http.Request, target interface{}) error {
	body, err := ReadAllStrict(r.Body, maxRequestBodyBytes)
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if len(body) == 0 {
		return fmt.Errorf("empty request body")
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}
