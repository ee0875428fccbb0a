package open5e

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// ErrUpstream is joined into every error caused by a failed Open5e call.
var ErrUpstream = errors.New("open5e api")

// ErrInvalidRecord is returned by the converters for records that cannot be
// mapped to an entry.
var ErrInvalidRecord = errors.New("invalid open5e record")

// ErrorResponse describes the JSON that Open5e responds with when a call
// fails.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// toErrorFromResponse turns a non-2xx response into an error wrapping
// ErrUpstream. The body is decoded as an ErrorResponse when possible.
func toErrorFromResponse(resp *resty.Response) (*ErrorResponse, error) {
	var errorResponse ErrorResponse
	if err := json.Unmarshal(resp.Body(), &errorResponse); err != nil || errorResponse.Detail == "" {
		return nil, errors.Join(ErrUpstream, fmt.Errorf("(HTTP Status: %d) %s", resp.StatusCode(), resp.Status()))
	}

	return &errorResponse, errors.Join(ErrUpstream, fmt.Errorf("(HTTP Status: %d) %s", resp.StatusCode(), errorResponse.Detail))
}
