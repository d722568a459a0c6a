package handler

import (
	"errors"
	"net/http"

	"github.com/nithin1018/Village-Banking-App/internal/adapter/http/dto"
	"github.com/nithin1018/Village-Banking-App/internal/adapter/http/middleware"
	"github.com/nithin1018/Village-Banking-App/internal/core/domain"
	"github.com/nithin1018/Village-Banking-App/internal/core/ports"
	"github.com/nithin1018/Village-Banking-App/pkg/apperror"
	"github.com/nithin1018/Village-Banking-App/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// AuthHandler handles registration and login.
type AuthHandler struct {
	authSvc ports.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authSvc ports.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Register handles POST /api/v1/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.authSvc.Register(c.Request.Context(), ports.RegisterRequest{
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
		Role:        domain.Role(req.Role),
		EmployeeID:  req.EmployeeID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxAuditResource, result.UserID.String())
	response.Created(c, dto.RegisterResponse{
		UserID:        result.UserID.String(),
		Role:          string(result.Role),
		AccountNumber: result.AccountNumber,
	})
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	token, expiry, err := h.authSvc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.LoginResponse{
		Token:  token,
		Expiry: expiry.Unix(),
	})
}

// HealthCheck handles GET /health, pinging every dependency.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		type depStatus struct {
			Status string `json:"status"`
			Error  string `json:"error,omitempty"`
		}

		deps := make(map[string]depStatus)
		allHealthy := true

		for _, checker := range checkers {
			if err := checker.Ping(c.Request.Context()); err != nil {
				deps[checker.Name()] = depStatus{Status: "unhealthy", Error: err.Error()}
				allHealthy = false
			} else {
				deps[checker.Name()] = depStatus{Status: "healthy"}
			}
		}

		status := "healthy"
		httpCode := http.StatusOK
		if !allHealthy {
			status = "degraded"
			httpCode = http.StatusServiceUnavailable
		}

		c.JSON(httpCode, gin.H{
			"status":       status,
			"dependencies": deps,
		})
	}
}

// bindJSON decodes, sanitizes and then validates the request body. Validation
// runs on the sanitized values so length limits hold for what is stored.
func bindJSON(c *gin.Context, req interface{}) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return bindError(err)
	}
	dto.SanitizeStruct(req)
	if err := binding.Validator.ValidateStruct(req); err != nil {
		return bindError(err)
	}
	return nil
}

// bindError turns a binding failure into a VAL_001 error, or VAL_002 when
// the body hit the size limit.
func bindError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperror.ErrBodyTooLarge()
	}
	return apperror.Validation(err.Error())
}
