package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/josh-kwaku/betting-ledger/internal/domain"
	"github.com/josh-kwaku/betting-ledger/internal/limits"
	"github.com/josh-kwaku/betting-ledger/internal/logging"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Error:   nil,
	})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	RespondJSON(w, appErr.Status, APIResponse{
		Success: false,
		Data:    nil,
		Error: &APIError{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: details,
		},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	RespondAppError(w, ErrValidationFailed, fields)
}

type betRejection struct {
	Violations      []limits.Violation `json:"violations"`
	TotalOdds       string             `json:"total_odds"`
	PotentialWin    string             `json:"potential_win"`
	MaxAllowedStake *string            `json:"max_allowed_stake,omitempty"`
}

var stateConflicts = []error{
	domain.ErrAlreadySettled,
	domain.ErrAlreadyReversed,
	domain.ErrBetNotPending,
	domain.ErrEntryNotPending,
	domain.ErrEventClosed,
}

// RespondDomainError maps a service error to its HTTP form. State conflicts
// all answer 409 ALREADY_PROCESSED with the specific reason in details.
func RespondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *limits.ValidationError
	if errors.As(err, &verr) {
		d := betRejection{
			Violations:   verr.Result.Violations,
			TotalOdds:    verr.Result.TotalOdds.String(),
			PotentialWin: verr.Result.PotentialWin.StringFixed(2),
		}
		if verr.Result.MaxAllowedStake != nil {
			s := verr.Result.MaxAllowedStake.StringFixed(2)
			d.MaxAllowedStake = &s
		}
		RespondAppError(w, ErrBetRejected, d)
		return
	}

	if domain.IsStateConflict(err) {
		reason := err.Error()
		for _, c := range stateConflicts {
			if errors.Is(err, c) {
				reason = c.Error()
				break
			}
		}
		RespondAppError(w, ErrAlreadyProcessed, map[string]string{"reason": reason})
		return
	}

	var appErr *AppError
	switch {
	case domain.IsNotFound(err):
		appErr = ErrResourceNotFound
	case errors.Is(err, domain.ErrInsufficientFunds):
		appErr = ErrInsufficientFunds
	case errors.Is(err, domain.ErrInvalidAmount):
		appErr = ErrInvalidAmount
	case errors.Is(err, domain.ErrInvalidCurrency):
		appErr = ErrInvalidCurrency
	case errors.Is(err, domain.ErrCurrencyMismatch):
		appErr = ErrCurrencyMismatch
	case errors.Is(err, domain.ErrInvalidAccount):
		appErr = ErrInvalidAccount
	case errors.Is(err, domain.ErrSameAccount):
		appErr = ErrSameAccount
	case errors.Is(err, domain.ErrVersionConflict):
		appErr = ErrVersionConflict
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrValidation):
		appErr = ErrInvalidRequest
	default:
		logging.FromContext(r.Context()).Error("unhandled domain error", "error", err)
		appErr = ErrInternalError
	}

	RespondAppError(w, appErr, nil)
}
