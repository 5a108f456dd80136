package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"tally/internal/core"

	"github.com/google/uuid"
)

const maxBodyBytes = 1 << 20 // 1 MiB for JSON bodies

// decodeJSON reads a bounded JSON request body into v.
func decodeJSON(r *http.Request, v any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	defer body.Close()

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", core.ErrInvalidArgument, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: request body must contain a single JSON object", core.ErrInvalidArgument)
	}
	return nil
}

// pathUUID parses the {id} path value as a UUID.
func pathUUID(r *http.Request) (uuid.UUID, error) {
	raw := r.PathValue("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid id %q", core.ErrInvalidArgument, raw)
	}
	return id, nil
}

// pathInt64 parses the {id} path value as an integer.
func pathInt64(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid id %q", core.ErrInvalidArgument, raw)
	}
	return id, nil
}

// queryInt parses an integer query parameter, returning fallback when absent.
func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", core.ErrInvalidArgument, name, raw)
	}
	return n, nil
}

// queryDate parses a YYYY-MM-DD query parameter, zero Date when absent.
func queryDate(r *http.Request, name string) (core.Date, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(raw)
	if err != nil {
		return core.Date{}, fmt.Errorf("%w: invalid %s %q: want YYYY-MM-DD", core.ErrInvalidArgument, name, raw)
	}
	return d, nil
}

// parseYearMonth reads the year and month query parameters, defaulting to the
// current calendar month.
func parseYearMonth(r *http.Request) (year, month int, err error) {
	now := time.Now()
	year, err = queryInt(r, "year", now.Year())
	if err != nil {
		return 0, 0, err
	}
	month, err = queryInt(r, "month", int(now.Month()))
	if err != nil {
		return 0, 0, err
	}
	return year, month, nil
}
