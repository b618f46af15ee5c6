package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rcliao/memeboard/internal/auth"
	"github.com/rcliao/memeboard/internal/media"
	"github.com/rcliao/memeboard/internal/model"
	"github.com/rcliao/memeboard/internal/store"
)

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// mapDomainError translates a domain error into a status code and a
// client-facing body. Unknown errors become 500 with a generic message.
func mapDomainError(err error) (int, errorBody) {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, errorBody{Error: ve.Message, Field: ve.Field}
	case errors.Is(err, media.ErrRecordNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: "meme not found"}
	case errors.Is(err, store.ErrLocked):
		return http.StatusLocked, errorBody{Error: "this meme is locked and cannot be edited"}
	case errors.Is(err, media.ErrAssetUploadFailed):
		return http.StatusBadGateway, errorBody{Error: "image upload failed"}
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorBody{Error: "invalid username or password"}
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, errorBody{Error: "invalid or expired token"}
	case errors.Is(err, media.ErrForbidden):
		return http.StatusForbidden, errorBody{Error: "admin role required"}
	case errors.Is(err, store.ErrAdminExists):
		return http.StatusConflict, errorBody{Error: "admin already exists"}
	default:
		return http.StatusInternalServerError, errorBody{Error: "internal server error"}
	}
}

func (h *handler) writeError(c *gin.Context, err error) {
	status, body := mapDomainError(err)
	if status >= http.StatusInternalServerError || status == http.StatusBadGateway {
		h.requestLogger(c).Error("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, field, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: msg, Field: field})
}
