package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/suderio/ultramafia/internal/engine"
	"github.com/suderio/ultramafia/internal/session"
	"github.com/suderio/ultramafia/internal/solicit"
)

// ErrorBody is the JSON body of every failed request.
type ErrorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, solicit.ErrInvalidChoice):
		return http.StatusUnprocessableEntity, "invalid_choice"
	case errors.Is(err, engine.ErrNoSession):
		return http.StatusNotFound, "no_session"
	case errors.Is(err, session.ErrNoTransport):
		return http.StatusServiceUnavailable, "no_transport"
	}

	kind := engine.Kind(err)
	switch kind {
	case "conflict", "already_joined":
		return http.StatusConflict, kind
	case "forbidden":
		return http.StatusForbidden, kind
	case "not_in_game", "not_pending":
		return http.StatusNotFound, kind
	case "invalid_state", "insufficient_players":
		return http.StatusPreconditionFailed, kind
	}
	return http.StatusInternalServerError, kind
}

func abortWithError(c *gin.Context, err error) {
	status, kind := statusOf(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorBody{Error: err.Error(), Kind: kind})
}

func abortBadRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, ErrorBody{Error: err.Error(), Kind: "invalid_request"})
}
