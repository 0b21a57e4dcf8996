package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/asset"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/balance"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/gateway"
)

type errorResponse struct {
	Error           string   `json:"error"`
	Kind            string   `json:"kind"`
	SupportedAssets []string `json:"supportedAssets,omitempty"`
}

func (s *Server) handleBalance(c echo.Context) error {
	var deadlineMs int64
	if raw := c.QueryParam("deadlineMs"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid deadlineMs: "+raw)
		}
		deadlineMs = v
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.deadline(deadlineMs))
	defer cancel()

	h, err := s.balances.Balance(ctx, c.Param("address"), c.QueryParam("asset"))
	if err != nil {
		code, body := balanceError(ctx, err)
		s.logger.WithField("address", c.Param("address")).Warnf("balance query failed: %v", err)
		return c.JSON(code, body)
	}
	return c.JSON(http.StatusOK, h)
}

func balanceError(ctx context.Context, err error) (int, errorResponse) {
	body := errorResponse{Error: err.Error()}

	var (
		unknown  *asset.UnknownAssetError
		all      *gateway.AllEndpointsFailedError
		rejected *gateway.RejectedError
	)
	switch {
	case errors.Is(err, balance.ErrInvalidOwner):
		body.Kind = "invalid_request"
		return http.StatusBadRequest, body
	case errors.As(err, &unknown):
		body.Kind = "unknown_asset"
		body.SupportedAssets = unknown.Supported
		return http.StatusBadRequest, body
	case ctx.Err() != nil:
		body.Kind = "canceled"
		return http.StatusGatewayTimeout, body
	case errors.As(err, &all):
		body.Kind = "all_endpoints_failed"
		return http.StatusServiceUnavailable, body
	case errors.As(err, &rejected):
		body.Kind = "operation_rejected"
		return http.StatusUnprocessableEntity, body
	default:
		body.Kind = "internal"
		return http.StatusInternalServerError, body
	}
}
