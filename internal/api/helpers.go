package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
)

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg, "", "")
}

func writeNotFound(c *echo.Context, msg string) error {
	return writeError(c, http.StatusNotFound, "not_found_error", msg, "", "")
}

func writeServerError(c *echo.Context, err error) error {
	return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
}

// writeInvalid answers ErrInvalidRequest errors with 400 and the offending
// field; anything else is a server error.
func writeInvalid(c *echo.Context, err error) error {
	if !errors.Is(err, ErrInvalidRequest) {
		return writeServerError(c, err)
	}
	return writeError(c, http.StatusBadRequest, "invalid_request_error", err.Error(), errorParam(err), "")
}

func writeError(c *echo.Context, status int, errType, msg, param, code string) error {
	return c.JSON(status, map[string]any{
		"error": ResponseError{
			Message: msg,
			Type:    errType,
			Code:    code,
			Param:   param,
		},
	})
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return out, invalidField("", "invalid JSON body: "+err.Error())
	}
	return out, nil
}

// topK resolves an optional top_k against the server default. Zero is a
// valid request for no results.
func topK(v *int, def int) (int, error) {
	if v == nil {
		return def, nil
	}
	if *v < 0 {
		return 0, invalidField("top_k", "top_k must not be negative")
	}
	return *v, nil
}

func queryTopK(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidField("top_k", "top_k must be an integer")
	}
	return topK(&n, def)
}

// contextLength resolves an optional context_length. Encode allocates the
// full length up front, so it is capped at limit.
func contextLength(v *int, def, limit int) (int, error) {
	if v == nil {
		return def, nil
	}
	if *v < 0 || *v > limit {
		return 0, invalidField("context_length", fmt.Sprintf("context_length must be between 0 and %d", limit))
	}
	return *v, nil
}

func newSearchID() string {
	return "search_" + uuid.NewString()
}
