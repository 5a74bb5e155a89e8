package response

import (
	"github.com/gin-gonic/gin"

	domainerrors "school-onboarding.backend/internal/domain/errors"
)

// Success sends a success response
func Success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}

// Error sends an error response. Errors outside the taxonomy become a bare
// 500 so internal details never reach the client.
func Error(c *gin.Context, err error) {
	appErr := domainerrors.FromError(err)

	body := gin.H{
		"code":    appErr.Code,
		"message": appErr.Message,
	}
	if reason := detail(appErr); reason != "" {
		body["reason"] = reason
	}
	c.JSON(appErr.Status, body)
}

// ErrorWithError sends an error response with a specific status and message
func ErrorWithError(c *gin.Context, status int, code string, message string) {
	c.JSON(status, gin.H{
		"code":    code,
		"message": message,
	})
}

func detail(appErr *domainerrors.AppError) string {
	if appErr.Err == nil || appErr.Code == string(domainerrors.KindInternal) {
		return ""
	}
	if d := appErr.Err.Error(); d != appErr.Message {
		return d
	}
	return ""
}
