package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	apperrors "github.com/tropicaldog17/mangaguard/internal/errors"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps err onto its status code. Internal failures are logged with the request id
// and their details are not returned to the client.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	status := apperrors.HTTPStatus(err)
	resp := ErrorResponse{Error: apperrors.Kind(err), Message: err.Error()}

	var verr *apperrors.ErrValidation
	if errors.As(err, &verr) {
		resp.Field = verr.Field
	}
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err))
		if status == http.StatusInternalServerError {
			resp.Message = "internal error"
		}
	}
	writeJSON(w, status, resp)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dest); err != nil {
		return apperrors.Validation("body", "invalid JSON: "+err.Error())
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.Validation(name, fmt.Sprintf("invalid id %q", raw))
	}
	return id, nil
}

// queryParser collects the first parse error so handlers can read every parameter and
// check once.
type queryParser struct {
	r   *http.Request
	err error
}

func newQueryParser(r *http.Request) *queryParser {
	return &queryParser{r: r}
}

func (p *queryParser) str(name string) string {
	return strings.TrimSpace(p.r.URL.Query().Get(name))
}

func (p *queryParser) int(name string, def int) int {
	raw := p.str(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(name, "must be an integer")
		return def
	}
	return v
}

func (p *queryParser) float(name string) *float64 {
	raw := p.str(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(name, "must be a number")
		return nil
	}
	return &v
}

// date parses YYYY-MM-DD as a UTC midnight. With endOfDay it returns the following midnight
// so the whole day is included by a "<" comparison.
func (p *queryParser) date(name string, endOfDay bool) *time.Time {
	raw := p.str(name)
	if raw == "" {
		return nil
	}
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		p.fail(name, "must be a date (YYYY-MM-DD)")
		return nil
	}
	if endOfDay {
		d = d.AddDate(0, 0, 1)
	}
	return &d
}

func (p *queryParser) fail(name, msg string) {
	if p.err == nil {
		p.err = apperrors.Validation(name, msg)
	}
}
