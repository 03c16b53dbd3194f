package handlers

import (
	"net/http"

	"github.com/andresuchdata/docsync/internal/auth"
	"github.com/andresuchdata/docsync/internal/config"
	"github.com/gin-gonic/gin"
)

// InfoHandler exposes read-only facts about the running process.
type InfoHandler struct {
	method auth.Method
	config config.Public
}

func NewInfoHandler(method auth.Method, cfg config.Public) *InfoHandler {
	return &InfoHandler{method: method, config: cfg}
}

func (h *InfoHandler) AuthInfo(c *gin.Context) {
	c.JSON(http.StatusOK, h.method)
}

func (h *InfoHandler) Config(c *gin.Context) {
	c.JSON(http.StatusOK, h.config)
}
