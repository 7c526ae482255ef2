package api

import (
	"errors"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"event-signup-backend/internal/notification"
	"event-signup-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store    store.Store
	notifier *notification.WorkerPool
	webpush  *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, notifier *notification.WorkerPool, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:    s,
		notifier: notifier,
		webpush:  webpushOptions,
	}
}

// httpStatus maps the store's error taxonomy onto response codes. Anything
// unrecognized is a storage failure and stays a 500.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrAlreadyRegistered):
		return http.StatusConflict
	case errors.Is(err, store.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, store.ErrLockTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
