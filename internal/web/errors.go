package web

import (
	"net/http"

	gmw "github.com/Laisky/gin-middlewares/v7"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/papyr-app/papyr-api/library/apperr"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// respondError maps a service error onto an HTTP status and a JSON body.
// All handlers funnel their failures through here so the wire mapping lives
// in one place.
func respondError(ctx *gin.Context, err error) {
	if appErr, ok := apperr.As(err); ok {
		ctx.JSON(httpStatusFor(appErr.Code), errorResponse{
			Error: appErr.Message,
			Code:  string(appErr.Code),
		})
		return
	}

	gmw.GetLogger(ctx).Error("request failed", zap.Error(err))
	ctx.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

func httpStatusFor(code apperr.ErrorCode) int {
	switch code {
	case apperr.ErrCodeNotFound:
		return http.StatusNotFound
	case apperr.ErrCodeValidation:
		return http.StatusBadRequest
	case apperr.ErrCodeStorageUnavailable:
		return http.StatusServiceUnavailable
	case apperr.ErrCodeProviderUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
