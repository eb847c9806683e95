package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess      = 0
	CodeParamError   = 400
	CodeUnauthorized = 401
	CodeNotFound     = 404
	CodeServerError  = 500
)

// 业务错误码
const (
	CodeBalanceNotEnough = 1001
	CodeDuplicateField   = 1002
	CodeFieldRejected    = 1003
	CodeLoginFailed      = 1004
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Errors  []string    `json:"errors,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, message string) {
	c.JSON(http.StatusCreated, Response{
		Code:    CodeSuccess,
		Message: message,
	})
}

func Error(c *gin.Context, status, code int, message string) {
	c.JSON(status, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, CodeParamError, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, CodeNotFound, message)
}

func BusinessError(c *gin.Context, code int, message string) {
	Error(c, http.StatusBadRequest, code, message)
}

// FieldErrors 逐字段校验错误列表（请求整体不生效）
func FieldErrors(c *gin.Context, errs []string) {
	c.JSON(http.StatusBadRequest, Response{
		Code:    CodeFieldRejected,
		Message: "字段校验失败",
		Errors:  errs,
	})
}

// ServerError 事务失败等内部错误，统一返回笼统信息，不泄露细节
func ServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, CodeServerError, "服务器内部错误")
}
