package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/contrail/internal/service"
	"github.com/noah-isme/contrail/pkg/response"
)

// FileHandler serves stored certificate images behind signed links.
type FileHandler struct {
	images *service.ImageService
}

// NewFileHandler constructs the handler.
func NewFileHandler(images *service.ImageService) *FileHandler {
	return &FileHandler{images: images}
}

// Serve resolves the signed token in the path and streams the file.
func (h *FileHandler) Serve(c *gin.Context) {
	token := strings.TrimPrefix(c.Param("token"), "/")
	path, err := h.images.Open(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.File(path)
}
