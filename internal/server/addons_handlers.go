package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type addonRequest struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

func (s *Server) RegisterAddon(c *gin.Context) {
	record := domainFromContext(c)

	var req addonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	entry, err := s.addons.Register(c.Request.Context(), record.ID.String(), req.Name, req.Version)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"addon":   entry,
	})
}

func (s *Server) UnregisterAddon(c *gin.Context) {
	record := domainFromContext(c)

	var req addonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.addons.Unregister(c.Request.Context(), record.ID.String(), req.Name); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) AddonStatus(c *gin.Context) {
	record := domainFromContext(c)

	entry, err := s.addons.Status(c.Request.Context(), record.ID.String(), c.Query("name"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"addon":   entry,
	})
}

func (s *Server) ListAddons(c *gin.Context) {
	record := domainFromContext(c)

	entries, err := s.addons.List(c.Request.Context(), record.ID.String())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"addons":  entries,
	})
}
