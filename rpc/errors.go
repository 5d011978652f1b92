package rpc

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	coreerrors "rocket/core/errors"
)

// statusClientClosed reports a request abandoned by the client.
const statusClientClosed = 499

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Transient bool   `json:"transient,omitempty"`
}

// statusFor maps an error kind onto an HTTP status.
func statusFor(err error) int {
	switch coreerrors.KindOf(err) {
	case coreerrors.ErrUnauthorized, coreerrors.ErrTransferDisabled:
		return http.StatusForbidden
	case coreerrors.ErrZeroAddress, coreerrors.ErrInvalidArgument, coreerrors.ErrAmountOutOfBounds:
		return http.StatusBadRequest
	case coreerrors.ErrNotFound:
		return http.StatusNotFound
	case coreerrors.ErrInsufficientBalance, coreerrors.ErrInsufficientAllowance, coreerrors.ErrTransferFailed:
		return http.StatusUnprocessableEntity
	case coreerrors.ErrModulePaused:
		return http.StatusServiceUnavailable
	case nil:
		switch {
		case stderrors.Is(err, context.DeadlineExceeded):
			return http.StatusGatewayTimeout
		case stderrors.Is(err, context.Canceled):
			return statusClientClosed
		}
		return http.StatusInternalServerError
	default:
		return http.StatusConflict
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{
		Error:     message,
		Code:      coreerrors.Code(err),
		Transient: coreerrors.IsTransient(err),
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: message, Code: "bad_request"})
}
