package rpc

import (
	"encoding/json"
	"io"
)

// Empty is the request or response of an endpoint that carries no data.
// It serializes to {}.
type Empty struct{}

// response wraps successful results as {"result": ...}.
type response struct {
	Result any `json:"result"`
}

// errorResponse wraps failures as {"error": {...}}.
type errorResponse struct {
	Error *Error `json:"error"`
}

func encodeResponse(w io.Writer, result any) error {
	return json.NewEncoder(w).Encode(response{Result: result})
}

func encodeErrorResponse(w io.Writer, err *Error) error {
	return json.NewEncoder(w).Encode(errorResponse{Error: err})
}
