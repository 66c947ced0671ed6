package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	tenantdomain "github.com/smallbiznis/taskhub/internal/tenant/domain"
	"github.com/smallbiznis/taskhub/pkg/db/pagination"
)

type listTenantsQuery struct {
	pagination.Page
	Status           string `form:"status"`
	SubscriptionPlan string `form:"subscriptionPlan"`
}

func (s *Server) ListTenants(c *gin.Context) {
	var query listTenantsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.tenantSvc.List(c.Request.Context(), tenantdomain.ListTenantRequest{
		Page:             query.Page,
		Status:           strings.TrimSpace(query.Status),
		SubscriptionPlan: strings.TrimSpace(query.SubscriptionPlan),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetTenant(c *gin.Context) {
	resp, err := s.tenantSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateTenant(c *gin.Context) {
	var req tenantdomain.UpdateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.tenantSvc.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
