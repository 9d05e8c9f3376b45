package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetConfig(c *gin.Context) {
	record := domainFromContext(c)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"config":  s.configsync.Effective(record),
	})
}

// ReplaceConfig swaps the whole overlay; PatchConfig merges keys and treats
// an explicit null as a delete.
func (s *Server) ReplaceConfig(c *gin.Context) {
	record := domainFromContext(c)

	var overlay map[string]any
	if err := c.ShouldBindJSON(&overlay); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.configsync.SetOverlay(c.Request.Context(), record.ID.String(), overlay); err != nil {
		AbortWithError(c, err)
		return
	}

	fresh, err := s.credential.Get(c.Request.Context(), record.ID.String())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"config":  s.configsync.Effective(fresh),
	})
}

func (s *Server) PatchConfig(c *gin.Context) {
	record := domainFromContext(c)

	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.configsync.MergeOverlay(c.Request.Context(), record.ID.String(), patch); err != nil {
		AbortWithError(c, err)
		return
	}

	fresh, err := s.credential.Get(c.Request.Context(), record.ID.String())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"config":  s.configsync.Effective(fresh),
	})
}
