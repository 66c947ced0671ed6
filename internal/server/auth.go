package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/taskhub/internal/auth/domain"
	tenantdomain "github.com/smallbiznis/taskhub/internal/tenant/domain"
)

type registerTenantRequest struct {
	TenantName    string `json:"tenantName"`
	Subdomain     string `json:"subdomain"`
	AdminFullName string `json:"adminFullName"`
	AdminEmail    string `json:"adminEmail"`
	AdminPassword string `json:"adminPassword"`
}

func (s *Server) RegisterTenant(c *gin.Context) {
	var req registerTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.tenantSvc.Register(c.Request.Context(), tenantdomain.RegisterTenantRequest{
		TenantName:    strings.TrimSpace(req.TenantName),
		Subdomain:     strings.TrimSpace(req.Subdomain),
		AdminFullName: strings.TrimSpace(req.AdminFullName),
		AdminEmail:    strings.TrimSpace(req.AdminEmail),
		AdminPassword: req.AdminPassword,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

type registerRequest struct {
	FullName        string `json:"fullName"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	TenantSubdomain string `json:"tenantSubdomain"`
}

func (s *Server) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.authSvc.Register(c.Request.Context(), authdomain.RegisterRequest{
		FullName:        strings.TrimSpace(req.FullName),
		Email:           strings.TrimSpace(req.Email),
		Password:        req.Password,
		TenantSubdomain: strings.TrimSpace(req.TenantSubdomain),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

type loginRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	TenantSubdomain string `json:"tenantSubdomain"`
}

func (s *Server) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.authSvc.Login(c.Request.Context(), authdomain.LoginRequest{
		Email:           strings.TrimSpace(req.Email),
		Password:        req.Password,
		TenantSubdomain: strings.TrimSpace(req.TenantSubdomain),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// Logout only records the event; credentials are stateless and expire on their own.
func (s *Server) Logout(c *gin.Context) {
	if err := s.authSvc.Logout(c.Request.Context()); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"message": "logged out"}})
}

func (s *Server) Me(c *gin.Context) {
	principal, err := s.authSvc.Me(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": principal})
}
