// internal/api/error_codes.go
package api

import (
	"net/http"

	apperrors "github.com/Corphon/StorySpark/internal/errors"
)

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorConflict      = "CONFLICT"
	ErrorForbidden     = "FORBIDDEN"
	ErrorUnauthorized  = "UNAUTHORIZED"
	ErrorRateLimited   = "RATE_LIMIT_EXCEEDED"

	// 剧本和文件相关错误
	ErrorScriptInvalid    = "SCRIPT_INVALID"
	ErrorFileInvalid      = "FILE_INVALID"
	ErrorFileUploadFailed = "FILE_UPLOAD_FAILED"

	// 任务相关错误
	ErrorTaskNotFound = "TASK_NOT_FOUND"
)

// statusForErrorType AppError 类型到 HTTP 状态码的映射
func statusForErrorType(t apperrors.ErrorType) int {
	switch t {
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case apperrors.ErrorTypeForbidden:
		return http.StatusForbidden
	case apperrors.ErrorTypeConflict:
		return http.StatusConflict
	case apperrors.ErrorTypeTimeout:
		return http.StatusRequestTimeout
	case apperrors.ErrorTypeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
