package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess      = 0
	CodeParamError   = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeServerError  = 500
)

// 业务错误码
const (
	CodeOrderNotFound    = 1001
	CodeBalanceNotEnough = 1003
	CodeAccountNotFound  = 1005
	CodeSettlementFailed = 1006
	CodeProductNotFound  = 1008
	CodeEmptyCart        = 1009
	CodeInvalidCart      = 1010
	CodeAddressRequired  = 1011
	CodeCartLineNotFound = 1012
	CodeStoreUnavailable = 1013
)

type Response struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Retryable bool        `json:"retryable,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

// ParamErrorWithDetails 附带逐字段的校验失败原因
func ParamErrorWithDetails(c *gin.Context, message string, details interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeParamError,
		Message: message,
		Data:    details,
	})
}

func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

func BusinessError(c *gin.Context, code int, message string) {
	Error(c, code, message)
}

// RetryableError 客户端可以原样重试整个请求
func RetryableError(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:      code,
		Message:   message,
		Retryable: true,
	})
}

// Unauthorized 身份校验失败直接中断请求
func Unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
		Code:    CodeUnauthorized,
		Message: message,
	})
}

func Forbidden(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusForbidden, Response{
		Code:    CodeForbidden,
		Message: message,
	})
}
