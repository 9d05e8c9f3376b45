package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	credentialdomain "github.com/affcd/gateway/internal/credential/domain"
	securitydomain "github.com/affcd/gateway/internal/securitylog/domain"
	"github.com/affcd/gateway/pkg/db/pagination"
)

// Diagnostics is the operator health view: domain counts by status, recent
// security events, and a database liveness check.
func (s *Server) Diagnostics(c *gin.Context) {
	ctx := c.Request.Context()

	dbOK := true
	if sqlDB, err := s.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		dbOK = false
	}

	records, err := s.credential.List(ctx)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	statusCounts := map[string]int{}
	verified := 0
	for i := range records {
		statusCounts[string(records[i].Status)]++
		if records[i].VerificationStatus == credentialdomain.VerificationVerified {
			verified++
		}
	}

	recent, err := s.security.List(ctx, securitydomain.ListRequest{
		Pagination: pagination.Pagination{PageSize: 20},
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"time":    s.clock.Now().Format(time.RFC3339),
		"version": s.cfg.AppVersion,
		"database": gin.H{
			"ok": dbOK,
		},
		"domains": gin.H{
			"total":     len(records),
			"by_status": statusCounts,
			"verified":  verified,
		},
		"security": gin.H{
			"recent":   recent.Entries,
			"has_more": recent.HasMore,
		},
	})
}
