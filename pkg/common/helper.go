package common

import (
	"net/http"

	"anchorex.com/pkg/logger"
	"anchorex.com/pkg/xerr"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 定义http返回格式
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

func Success(ctx *gin.Context, data interface{}) {
	ctx.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: http.StatusText(http.StatusOK),
		Data:    data,
	})
}

func Fail(c *gin.Context, httpStatus int, code int, message string) {
	c.JSON(httpStatus, Response{
		Code:    code,
		Message: message,
		Data:    nil,
	})
}

// FailErr 按 xerr 错误码映射 http 状态，对外只给固定文案
func FailErr(c *gin.Context, err error) {
	code := xerr.CodeOf(err)
	httpStatus := http.StatusInternalServerError
	switch code {
	case xerr.RequestParamsError, xerr.ValidationError:
		httpStatus = http.StatusBadRequest
	case xerr.RecordNotFound:
		httpStatus = http.StatusNotFound
	case xerr.StatusConflict:
		httpStatus = http.StatusConflict
	case xerr.ResourceBusy:
		httpStatus = http.StatusServiceUnavailable
	}
	if httpStatus >= http.StatusInternalServerError {
		logger.Error(c.Request.Context(), "http error",
			zap.String("request_id", RequestIDFromGin(c)),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
	}
	msg := xerr.MapErrMsg(code)
	if code == xerr.ServerCommonError {
		msg = "internal error"
	}
	Fail(c, httpStatus, code, msg)
}
