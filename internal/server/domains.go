package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	credentialdomain "github.com/affcd/gateway/internal/credential/domain"
	securitydomain "github.com/affcd/gateway/internal/securitylog/domain"
	"github.com/affcd/gateway/internal/webhook"
)

// RegisterDomain provisions a new satellite. The response carries the only
// copy of the plaintext credentials.
func (s *Server) RegisterDomain(c *gin.Context) {
	var req credentialdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	secret, err := s.credential.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.logSecurity(c, securitydomain.EventDomainRegistered, securitydomain.SeverityLow, secret.Domain, map[string]any{
		"domain_id": secret.DomainID,
	})

	c.JSON(http.StatusCreated, gin.H{
		"success":     true,
		"credentials": secret,
	})
}

func (s *Server) ListDomains(c *gin.Context) {
	records, err := s.credential.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"domains": records,
	})
}

func (s *Server) GetDomain(c *gin.Context) {
	record, err := s.credential.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"domain":  record,
	})
}

func (s *Server) UpdateDomain(c *gin.Context) {
	var req credentialdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.DomainID = c.Param("id")

	record, err := s.credential.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"domain":  record,
	})
}

func (s *Server) DeleteDomain(c *gin.Context) {
	record, err := s.credential.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.credential.Delete(c.Request.Context(), record.ID.String()); err != nil {
		AbortWithError(c, err)
		return
	}

	s.logSecurity(c, securitydomain.EventDomainDeleted, securitydomain.SeverityMedium, record.Domain, map[string]any{
		"domain_id": record.ID.String(),
	})

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// VerifyDomain runs one synchronous ownership check. Unlike webhook
// delivery, verification failures surface to the caller.
func (s *Server) VerifyDomain(c *gin.Context) {
	result, err := s.verifier.Verify(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  result,
	})
}

func (s *Server) RotateDomainKey(c *gin.Context) {
	secret, err := s.credential.RotateKey(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	record, err := s.credential.Get(c.Request.Context(), secret.DomainID)
	if err == nil {
		s.webhooks.Dispatch(record, webhook.Event{
			Type:       webhook.EventKeyRotated,
			DeliveryID: secret.DomainID,
			Domain:     record.Domain,
			OccurredAt: s.clock.Now(),
		})
	}

	s.logSecurity(c, securitydomain.EventKeyRotated, securitydomain.SeverityMedium, secret.Domain, map[string]any{
		"domain_id": secret.DomainID,
	})

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"credentials": secret,
	})
}
