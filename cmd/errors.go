package cmd

import (
	"errors"

	"github.com/marcus/pratica/internal/bank"
	"github.com/marcus/pratica/internal/db"
	"github.com/marcus/pratica/internal/output"
	"github.com/marcus/pratica/internal/store"
)

// errNotFound marks lookups of unknown ids for the JSON error code.
var errNotFound = errors.New("not found")

func errorCode(err error) string {
	switch {
	case errors.Is(err, errNotFound):
		return output.ErrCodeNotFound
	case errors.Is(err, store.ErrInvalidDocument), errors.Is(err, bank.ErrUnsupportedType), errors.Is(err, bank.ErrWrongAnswerKind):
		return output.ErrCodeInvalidInput
	case errors.Is(err, db.ErrNotInitialized):
		return output.ErrCodeDatabaseError
	case errors.Is(err, errNotAuthenticated):
		return output.ErrCodeNotAuthenticated
	case errors.Is(err, errSyncFailed):
		return output.ErrCodeSyncFailed
	}
	return "error"
}

func printJSONError(err error) {
	output.JSONError(errorCode(err), err.Error())
}
