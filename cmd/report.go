package cmd

import (
	"encoding/json"
	"io"

	"db-merge/internal/mergeerr"
)

// errorBody is the JSON shape of a failed command.
type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Detail  any    `json:"detail,omitempty"`
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeJSONError renders err with its kind and structured detail. Errors
// outside the merge taxonomy (bad flags, bad config) get kind "invalid_request".
func writeJSONError(w io.Writer, err error) {
	body := errorBody{Kind: "invalid_request", Message: err.Error()}
	if typed, ok := mergeerr.AsTyped(err); ok {
		body.Kind = string(typed.Kind())
		body.Detail = typed.Detail()
	}
	writeJSON(w, body)
}
