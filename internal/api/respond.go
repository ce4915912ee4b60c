package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/iammorganparry/clive/apps/interviewer/internal/models"
)

// statusClientClosed is the non-standard status logged when the caller went away.
const statusClientClosed = 499

var kindStatus = map[models.ErrorKind]int{
	models.KindNotFound:           http.StatusNotFound,
	models.KindInvalidState:       http.StatusConflict,
	models.KindEmptyContext:       http.StatusBadRequest,
	models.KindIncompleteSession:  http.StatusBadRequest,
	models.KindBadRequest:         http.StatusBadRequest,
	models.KindAdapterTimeout:     http.StatusGatewayTimeout,
	models.KindGenerationFailed:   http.StatusBadGateway,
	models.KindScoringFailed:      http.StatusBadGateway,
	models.KindAdapterFailed:      http.StatusBadGateway,
	models.KindAdapterUnavailable: http.StatusServiceUnavailable,
	models.KindCancelled:          statusClientClosed,
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind models.ErrorKind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error body whose kind follows from status.
func writeError(w http.ResponseWriter, status int, msg string) {
	kind := models.KindInternal
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		kind = models.KindBadRequest
	case http.StatusNotFound:
		kind = models.KindNotFound
	}
	writeJSON(w, status, models.ErrorResponse{Error: msg, Kind: kind})
}

// writeServiceError reports a domain error with the status of its kind.
func writeServiceError(w http.ResponseWriter, err error) {
	kind := models.KindOf(err)
	writeJSON(w, statusFor(kind), models.ErrorResponse{Error: err.Error(), Kind: kind})
}

// decodeJSON reads a JSON body no larger than limit bytes.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body exceeds %d bytes: %w", tooLarge.Limit, errBodyTooLarge)
		}
		return fmt.Errorf("invalid request body: %v: %w", err, models.ErrBadRequest)
	}
	return nil
}

var errBodyTooLarge = errors.New("body too large")

// writeDecodeError reports a decodeJSON failure.
func writeDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, errBodyTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

// decodeBase64 accepts plain or data-URL base64 payloads.
func decodeBase64(field, s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%s is required: %w", field, models.ErrBadRequest)
	}
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	}
	if err != nil {
		return nil, fmt.Errorf("%s is not valid base64: %w", field, models.ErrBadRequest)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s is empty: %w", field, models.ErrBadRequest)
	}
	return data, nil
}

func requireSessionID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("session_id is required: %w", models.ErrBadRequest)
	}
	return nil
}
