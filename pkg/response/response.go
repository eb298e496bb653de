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
	CodeConflict     = 409
	CodeServerError  = 500
)

// 业务错误码，每个资金失败原因一个稳定编号
// 客户端据此区分可重试（基础设施 500）和不可重试（策略类 2xxx）失败
const (
	CodeBalanceNotFound      = 2001
	CodeRecipientNotFound    = 2002
	CodeRequestNotFound      = 2003
	CodeRecipientNotEligible = 2004
	CodeRequestForbidden     = 2005
	CodeInsufficientFunds    = 2006
	CodeWeeklyLimitExceeded  = 2007
	CodeStatusConflict       = 2008
	CodeCardNotFound         = 2009
	CodeCardStatusInvalid    = 2010
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// Error 按给定 HTTP 状态码返回业务错误
// 外部接口约定用真实的 400/403/404/409 状态码，不是一律 200
func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, CodeParamError, message)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, CodeUnauthorized, message)
}

func NotFound(c *gin.Context, code int, message string) {
	Error(c, http.StatusNotFound, code, message)
}

func Forbidden(c *gin.Context, code int, message string) {
	Error(c, http.StatusForbidden, code, message)
}

func Conflict(c *gin.Context, code int, message string) {
	Error(c, http.StatusConflict, code, message)
}

// BusinessError 策略类失败（余额不足、超限额等），HTTP 400
func BusinessError(c *gin.Context, code int, message string) {
	Error(c, http.StatusBadRequest, code, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, CodeServerError, message)
}
