package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/Layr-Labs/eigenx-payouts-go/pkg/types"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err as {err_code, description, message}. Errors without a code are
// logged and reported as INTERNAL_ERROR without their details.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var pe *types.PayoutError
	if !errors.As(err, &pe) {
		s.logger.Sugar().Errorw("Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"requestId", middleware.GetReqID(r.Context()),
			"error", err,
		)
		code := types.ErrCodeInternal
		writeJSON(w, code.HTTPStatus(), &types.ErrorResponse{
			ErrCode:     code,
			Description: code.Description(),
			Message:     "internal server error",
		})
		return
	}

	if pe.Code.HTTPStatus() >= http.StatusInternalServerError {
		s.logger.Sugar().Warnw("Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"requestId", middleware.GetReqID(r.Context()),
			"error", err,
		)
	}
	message := pe.Message
	if message == "" {
		message = pe.Code.Description()
	}
	writeJSON(w, pe.Code.HTTPStatus(), &types.ErrorResponse{
		ErrCode:     pe.Code,
		Description: pe.Code.Description(),
		Message:     message,
	})
}
