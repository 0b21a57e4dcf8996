package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/swap"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/util"
)

type swapRequest struct {
	FromAsset string `json:"fromAsset"`
	ToAsset   string `json:"toAsset"`
	// Amount accepts a JSON number or a numeric string.
	Amount        json.Number `json:"amount"`
	SignerAddress string      `json:"signerAddress"`
	DeadlineMs    int64       `json:"deadlineMs"`
}

var failureStatus = map[swap.Kind]int{
	swap.KindInvalidRequest:     http.StatusBadRequest,
	swap.KindUnknownAsset:       http.StatusBadRequest,
	swap.KindQuoteUnavailable:   http.StatusBadGateway,
	swap.KindBuildFailed:        http.StatusBadGateway,
	swap.KindSignFailed:         http.StatusInternalServerError,
	swap.KindAllEndpointsFailed: http.StatusServiceUnavailable,
	swap.KindOperationRejected:  http.StatusUnprocessableEntity,
	swap.KindCanceled:           http.StatusGatewayTimeout,
}

func resultStatus(res swap.Result) int {
	switch res.Status {
	case swap.StatusConfirmed:
		return http.StatusOK
	case swap.StatusSubmitted:
		return http.StatusAccepted
	}
	if res.Failure != nil {
		if code, ok := failureStatus[res.Failure.Kind]; ok {
			return code
		}
	}
	return http.StatusInternalServerError
}

func (s *Server) handleSwap(c echo.Context) error {
	var req swapRequest
	err := json.NewDecoder(c.Request().Body).Decode(&req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}

	amount, err := util.ParseAmount(req.Amount.String())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	signerAddress := req.SignerAddress
	if signerAddress == "" && s.signer != nil {
		signerAddress = s.signer.PublicKey().String()
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.deadline(req.DeadlineMs))
	defer cancel()

	res := s.swaps.Execute(ctx, swap.Request{
		FromAsset:     req.FromAsset,
		ToAsset:       req.ToAsset,
		HumanAmount:   amount,
		SignerAddress: signerAddress,
	}, s.signer)

	return c.JSON(resultStatus(res), res)
}
