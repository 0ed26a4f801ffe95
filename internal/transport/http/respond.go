package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"quiz-learning-service/internal/domain"
)

type errorBody struct {
	Error string      `json:"error"`
	Kind  domain.Kind `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindBadRequest:
		return http.StatusBadRequest
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps a use-case failure to its HTTP status. Internal details are
// logged, never returned.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)
	message := err.Error()

	entry := s.log.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"kind":   kind,
	})
	if who, ok := IdentityFrom(r.Context()); ok {
		entry = entry.WithField("user_id", who.UserID)
	}
	if status == http.StatusInternalServerError {
		entry.WithError(err).Error("request failed")
		message = "internal error"
	} else {
		entry.WithError(err).Debug("request rejected")
	}
	writeJSON(w, status, errorBody{Error: message, Kind: kind})
}

// decode reads a JSON body into dst and runs struct validation on it.
func (s *Server) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.BadRequest("invalid json body: %v", err)
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
			}
			return domain.BadRequest("%s", strings.Join(msgs, "; "))
		}
		return domain.BadRequest("%v", err)
	}
	return nil
}
