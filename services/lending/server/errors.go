package server

import (
	"encoding/json"
	"errors"
	"net/http"

	coreerrors "shark/core/errors"
	"shark/services/lending/journal"
)

type errorResponse struct {
	Error string `json:"error"`
	Class string `json:"class,omitempty"`
}

// statusFor maps an error class onto an HTTP status.
func statusFor(class coreerrors.Class) int {
	switch class {
	case coreerrors.ClassInvalidFunds, coreerrors.ClassFundsRequired, coreerrors.ClassUnexpectedFunds,
		coreerrors.ClassInvalidRequest, coreerrors.ClassUnsupported, coreerrors.ClassInsufficientBalance:
		return http.StatusBadRequest
	case coreerrors.ClassUnauthorized:
		return http.StatusForbidden
	case coreerrors.ClassInsufficientCollateral, coreerrors.ClassInsufficientLiquidity:
		return http.StatusUnprocessableEntity
	case coreerrors.ClassNotInstantiated, coreerrors.ClassAlreadyInstantiated:
		return http.StatusConflict
	case coreerrors.ClassPaused:
		return http.StatusServiceUnavailable
	case coreerrors.ClassOracle:
		return http.StatusBadGateway
	case coreerrors.ClassCanceled:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err with the status of its class. Internal errors are
// not echoed to the caller.
func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, journal.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	class := coreerrors.Classify(err)
	status := statusFor(class)
	msg := err.Error()
	if class == coreerrors.ClassInternal {
		msg = "internal error"
	}
	writeJSONError(w, status, string(class), msg)
}

func writeJSONError(w http.ResponseWriter, status int, class, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Class: class})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
