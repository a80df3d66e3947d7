package handler

import (
	"errors"
	"fmt"

	"coinmarket/internal/service"
	"coinmarket/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// FieldError 单个字段的校验失败
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// bindError 请求体无法解析或未通过 binding 校验
func bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, FieldError{
				Field: fe.Field(),
				Rule:  fe.Tag(),
				Param: fe.Param(),
			})
		}
		response.ParamErrorWithDetails(c, "参数校验失败", details)
		return
	}
	response.ParamError(c, "参数错误: "+err.Error())
}

// respondError 把业务错误映射为稳定的错误码，内部错误不透出细节
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		response.Unauthorized(c, service.ErrUnauthenticated.Error())
	case errors.Is(err, service.ErrAddressRequired):
		response.BusinessError(c, response.CodeAddressRequired, service.ErrAddressRequired.Error())
	case errors.Is(err, service.ErrValidation):
		response.ParamError(c, err.Error())
	case errors.Is(err, service.ErrInsufficientFunds):
		response.BusinessError(c, response.CodeBalanceNotEnough, service.ErrInsufficientFunds.Error())
	case errors.Is(err, service.ErrEmptyCart):
		response.BusinessError(c, response.CodeEmptyCart, service.ErrEmptyCart.Error())
	case errors.Is(err, service.ErrInvalidCart):
		response.BusinessError(c, response.CodeInvalidCart, service.ErrInvalidCart.Error())
	case errors.Is(err, service.ErrCartLineNotFound):
		response.BusinessError(c, response.CodeCartLineNotFound, service.ErrCartLineNotFound.Error())
	case errors.Is(err, service.ErrProductNotFound):
		response.BusinessError(c, response.CodeProductNotFound, service.ErrProductNotFound.Error())
	case errors.Is(err, service.ErrOrderNotFound):
		response.BusinessError(c, response.CodeOrderNotFound, service.ErrOrderNotFound.Error())
	case errors.Is(err, service.ErrAccountNotFound):
		response.BusinessError(c, response.CodeAccountNotFound, service.ErrAccountNotFound.Error())
	case errors.Is(err, service.ErrSettlementFailed):
		msg := fmt.Sprintf("%s，请稍后重试", service.ErrSettlementFailed.Error())
		if service.IsRetryable(err) {
			response.RetryableError(c, response.CodeSettlementFailed, msg)
			return
		}
		response.BusinessError(c, response.CodeSettlementFailed, service.ErrSettlementFailed.Error())
	case service.IsRetryable(err):
		response.RetryableError(c, response.CodeStoreUnavailable, service.ErrTransientStore.Error())
	default:
		response.ServerError(c, "服务器内部错误")
	}
}
