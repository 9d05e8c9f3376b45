package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	commissiondomain "github.com/affcd/gateway/internal/commission/domain"
)

func (s *Server) ListCommissionRules(c *gin.Context) {
	rules, err := s.commission.ListRules(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"rules":   rules,
	})
}

func (s *Server) CreateCommissionRule(c *gin.Context) {
	var req commissiondomain.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	rule, err := s.commission.CreateRule(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"rule":    rule,
	})
}

func (s *Server) GetCommissionRule(c *gin.Context) {
	rule, tiers, err := s.commission.GetRule(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"rule":    rule,
		"tiers":   tiers,
	})
}

func (s *Server) DeleteCommissionRule(c *gin.Context) {
	if err := s.commission.DeleteRule(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
