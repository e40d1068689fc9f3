package xerr

import (
	"errors"
	"fmt"
)

// 常用错误码定义
const (
	OK                 = 200
	ServerCommonError  = 500
	RequestParamsError = 400
	DbError            = 501
	RecordNotFound     = 404

	// 结算引擎错误分类
	ValidationError    = 1001 // 记录本身不合法，不自动重试
	AdapterError       = 1002 // 账本 / 后端网络或协议错误，记录进 error 状态
	ConfigurationError = 1003 // 集成方返回了违反约定的数据，整轮中止
	StatusConflict     = 1004 // CAS 失败，记录已被其他进程推进
	ResourceBusy       = 1005 // 源账户锁被占用，下一轮再试
)

type CodeError struct {
	Code  int    `json:"code"`
	Msg   string `json:"msg"`
	cause error
}

func (e *CodeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("ErrCode:%d, Msg:%s, Cause:%v", e.Code, e.Msg, e.cause)
	}
	return fmt.Sprintf("ErrCode:%d, Msg:%s", e.Code, e.Msg)
}

func (e *CodeError) Unwrap() error { return e.cause }

func New(code int, msg string) error {
	return &CodeError{Code: code, Msg: msg}
}

func Newf(code int, format string, args ...any) error {
	return &CodeError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

func NewErrCode(code int) error {
	return &CodeError{Code: code, Msg: MapErrMsg(code)}
}

// Wrap 保留原始错误，errors.Is / errors.As 仍然可以穿透
func Wrap(err error, code int, msg string) error {
	if err == nil {
		return nil
	}
	return &CodeError{Code: code, Msg: msg, cause: err}
}

// CodeOf 取出错误码，非 CodeError 统一当作 ServerCommonError
func CodeOf(err error) int {
	if err == nil {
		return OK
	}
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ServerCommonError
}

// Is 沿整条 cause 链查找，外层被重新分类也能认出里面的错误码
func Is(err error, code int) bool {
	for err != nil {
		var ce *CodeError
		if !errors.As(err, &ce) {
			return false
		}
		if ce.Code == code {
			return true
		}
		err = ce.cause
	}
	return false
}

// Message 给 status_message 用的可读文本，不带 ErrCode 前缀
func Message(err error) string {
	if err == nil {
		return ""
	}
	var ce *CodeError
	if !errors.As(err, &ce) {
		return err.Error()
	}
	if ce.cause != nil {
		return ce.Msg + ": " + Message(ce.cause)
	}
	return ce.Msg
}

func MapErrMsg(code int) string {
	switch code {
	case ServerCommonError:
		return "服务器开小差了"
	case RequestParamsError:
		return "参数错误"
	case DbError:
		return "数据库繁忙"
	case RecordNotFound:
		return "记录不存在"
	case ValidationError:
		return "数据校验失败"
	case AdapterError:
		return "外部服务调用失败"
	case ConfigurationError:
		return "集成配置错误"
	case StatusConflict:
		return "状态已变更"
	case ResourceBusy:
		return "资源繁忙"
	default:
		return "未知错误"
	}
}
