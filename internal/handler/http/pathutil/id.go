// Package pathutil reads path parameters and normalizes paths for metrics.
package pathutil

import (
	"errors"
	"net/http"
	"strings"
)

// ErrInvalidID is returned when the id path parameter is missing or malformed.
var ErrInvalidID = errors.New("invalid id")

const maxIDLength = 256

// ID returns the {id} path parameter of r. Record ids are opaque strings;
// only empty, oversized and control-character ids are rejected.
func ID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" || len(id) > maxIDLength {
		return "", ErrInvalidID
	}
	for _, c := range id {
		if c < 0x20 || c == 0x7f {
			return "", ErrInvalidID
		}
	}
	return id, nil
}
