package handler

import (
	"github.com/nithin1018/Village-Banking-App/internal/adapter/http/dto"
	"github.com/nithin1018/Village-Banking-App/internal/adapter/http/middleware"
	"github.com/nithin1018/Village-Banking-App/internal/core/ports"
	"github.com/nithin1018/Village-Banking-App/pkg/apperror"
	"github.com/nithin1018/Village-Banking-App/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const forgotPasswordMessage = "If the email is registered, a reset code has been sent"

// PasswordHandler handles the forgot, reset and change password flows.
type PasswordHandler struct {
	otpSvc  ports.OTPService
	authSvc ports.AuthService
	log     zerolog.Logger
}

// NewPasswordHandler creates a new PasswordHandler.
func NewPasswordHandler(otpSvc ports.OTPService, authSvc ports.AuthService, log zerolog.Logger) *PasswordHandler {
	return &PasswordHandler{otpSvc: otpSvc, authSvc: authSvc, log: log}
}

// Forgot handles POST /api/v1/auth/password/forgot. The response is the same
// whether or not the email is registered.
func (h *PasswordHandler) Forgot(c *gin.Context) {
	var req dto.ForgotPasswordRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	if err := h.otpSvc.Issue(c.Request.Context(), req.Email); err != nil {
		if !apperror.HasCode(err, "NOT_001") {
			h.log.Error().Err(err).Msg("otp issue failed")
			response.Error(c, err)
			return
		}
	}

	response.Accepted(c, dto.MessageResponse{Message: forgotPasswordMessage})
}

// Reset handles POST /api/v1/auth/password/reset.
func (h *PasswordHandler) Reset(c *gin.Context) {
	var req dto.ResetPasswordRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	if err := h.otpSvc.ResetPassword(c.Request.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.MessageResponse{Message: "Password has been reset"})
}

// Change handles POST /api/v1/auth/password/change.
func (h *PasswordHandler) Change(c *gin.Context) {
	userID, ok := middleware.UserIDFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.ChangePasswordRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	if err := h.authSvc.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.MessageResponse{Message: "Password changed"})
}
