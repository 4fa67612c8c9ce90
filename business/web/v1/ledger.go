package v1

import (
	"errors"
	"net/http"

	"github.com/ardanlabs/powledger/foundation/blockchain/settings"
	"github.com/ardanlabs/powledger/foundation/blockchain/state"
	"github.com/ardanlabs/powledger/foundation/blockchain/storage"
)

// statusByKind maps each ledger rule to the status returned to clients.
var statusByKind = map[state.Kind]int{
	state.MissingField:           http.StatusBadRequest,
	state.InvalidFormat:          http.StatusBadRequest,
	state.UnregisteredMiner:      http.StatusBadRequest,
	state.UnregisteredParty:      http.StatusBadRequest,
	state.UnknownParent:          http.StatusUnprocessableEntity,
	state.InsufficientDifficulty: http.StatusUnprocessableEntity,
	state.InsufficientFunds:      http.StatusUnprocessableEntity,
	state.SelfPayoutConflict:     http.StatusUnprocessableEntity,
	state.DuplicateBlock:         http.StatusConflict,
}

// LedgerError converts an error returned by the ledger into a RequestError
// carrying the matching status. Errors it doesn't recognize are returned
// unchanged and end up as internal errors.
func LedgerError(err error) error {
	if err == nil {
		return nil
	}

	if ve := state.GetValidationError(err); ve != nil {
		status, ok := statusByKind[ve.Kind]
		if !ok {
			status = http.StatusBadRequest
		}
		return NewRequestError(err, status)
	}

	switch {
	case errors.Is(err, state.ErrNotFound):
		return NewRequestError(err, http.StatusNotFound)
	case errors.Is(err, settings.ErrOutOfRange):
		return NewRequestError(err, http.StatusBadRequest)
	case errors.Is(err, storage.ErrUnavailable):
		return NewRequestError(err, http.StatusServiceUnavailable)
	}

	return err
}
