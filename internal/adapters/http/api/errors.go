package api

import (
	"errors"
	"net/http"

	"github.com/okian/reachyou/internal/adapters/mq/queue"
	"github.com/okian/reachyou/internal/adapters/repository"
	service "github.com/okian/reachyou/internal/app"
	"github.com/okian/reachyou/internal/domain/compat"
	"github.com/okian/reachyou/internal/domain/matching"
	"github.com/okian/reachyou/internal/domain/model"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")
)

// statusRule maps an error kind to the status and code clients see.
type statusRule struct {
	kind   error
	status int
	code   string
}

// First match wins.
var statusRules = []statusRule{
	{repository.ErrNotFound, http.StatusNotFound, "not_found"},
	{repository.ErrProfileExists, http.StatusConflict, "conflict"},
	{repository.ErrDuplicateCouple, http.StatusConflict, "conflict"},
	{queue.ErrFull, http.StatusTooManyRequests, "backpressure"},
	{ErrBackpressure, http.StatusTooManyRequests, "backpressure"},
	{queue.ErrClosed, http.StatusServiceUnavailable, "unavailable"},
	{service.ErrNotStarted, http.StatusServiceUnavailable, "unavailable"},
	{matching.ErrInsufficientPopulation, http.StatusBadRequest, "insufficient_population"},
	{compat.ErrUnknownType, http.StatusBadRequest, "bad_request"},
	{model.ErrInvalidProfile, http.StatusBadRequest, "bad_request"},
	{model.ErrInvalidReading, http.StatusBadRequest, "bad_request"},
	{model.ErrInvalidCouple, http.StatusBadRequest, "bad_request"},
	{model.ErrInvalidRating, http.StatusBadRequest, "bad_request"},
	{repository.ErrInvalidLimit, http.StatusBadRequest, "bad_request"},
	{ErrBadRequest, http.StatusBadRequest, "bad_request"},
}

// classify returns the HTTP status and error code for err.
func classify(err error) (int, string) {
	for _, rule := range statusRules {
		if errors.Is(err, rule.kind) {
			return rule.status, rule.code
		}
	}
	return http.StatusInternalServerError, "internal"
}
