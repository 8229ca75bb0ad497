package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// MsgTryAgain 非业务错误统一对外提示，不暴露内部细节
const MsgTryAgain = "操作失败，请稍后重试"

type Response struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Code: 0,
		Msg:  "success",
		Data: data,
	})
}

// Fail 业务错误统一返回 HTTP 200，错误码放在 body 里
func Fail(c *gin.Context, code int, msg string) {
	c.JSON(http.StatusOK, Response{
		Code: code,
		Msg:  msg,
	})
}
