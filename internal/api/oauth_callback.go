package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/redadsync/redadsync/internal/auth"
	"github.com/redadsync/redadsync/internal/models"
)

// Authorizer exchanges an authorization code for token bundles.
type Authorizer interface {
	Authorize(ctx context.Context, code string) ([]models.TokenBundle, error)
}

type authorizedAccount struct {
	AdvertiserID   string `json:"advertiser_id"`
	AdvertiserName string `json:"advertiser_name"`
}

// handleOAuthCallback receives the consent redirect, exchanges the code
// and stores one bundle per approved advertiser.
func (s *Server) handleOAuthCallback(c *gin.Context) {
	if s.authorizer == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_configured",
			Message: "oauth callback is not configured",
			Code:    http.StatusNotFound,
		})
		return
	}

	if s.state != "" && c.Query("state") != s.state {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_state",
			Message: "state parameter does not match this authorization",
			Code:    http.StatusBadRequest,
		})
		return
	}

	code, err := auth.ParseAuthCode(c.Request.URL.RawQuery)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_code",
			Message: err.Error(),
			Code:    http.StatusBadRequest,
		})
		return
	}

	ctx := c.Request.Context()
	bundles, err := s.authorizer.Authorize(ctx, code)
	if err != nil {
		s.logger.ErrorWithContext(ctx, "authorization failed", "error", err)
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "authorization_failed",
			Message: err.Error(),
			Code:    http.StatusBadGateway,
		})
		return
	}

	accounts := make([]authorizedAccount, 0, len(bundles))
	for _, b := range bundles {
		accounts = append(accounts, authorizedAccount{AdvertiserID: b.AdvertiserID, AdvertiserName: b.AdvertiserName})
	}
	s.logger.InfoWithContext(ctx, "authorization completed", "accounts", len(accounts))

	if s.onAuthorized != nil {
		s.onAuthorized(bundles)
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "authorized",
		"accounts": accounts,
	})
}
