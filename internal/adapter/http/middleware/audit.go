package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/nithin1018/Village-Banking-App/internal/core/domain"
	"github.com/nithin1018/Village-Banking-App/internal/core/ports"
	"github.com/nithin1018/Village-Banking-App/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLog records successful write operations once the handler has responded.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}
		if c.Request.Method != http.MethodPost || c.GetBool(CtxIdempotentReplay) {
			return
		}

		action, resourceType := mapRouteToAction(c.FullPath())
		if action == "" {
			return
		}

		var userID *uuid.UUID
		if id, ok := UserIDFrom(c); ok {
			userID = &id
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     status,
			"request_id": c.GetString(response.RequestIDKey),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			UserID:       userID,
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   c.GetString(CtxAuditResource),
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now().UTC(),
		})
	}
}

// CtxAuditResource lets a handler name the resource it created or changed.
const CtxAuditResource = "audit_resource_id"

func mapRouteToAction(route string) (domain.AuditAction, string) {
	switch route {
	case "/api/v1/auth/register":
		return domain.AuditActionRegister, "user"
	case "/api/v1/auth/login":
		return domain.AuditActionLogin, "session"
	case "/api/v1/auth/password/forgot":
		return domain.AuditActionOTPRequest, "user"
	case "/api/v1/auth/password/reset":
		return domain.AuditActionPasswordReset, "user"
	case "/api/v1/auth/password/change":
		return domain.AuditActionPasswordChange, "user"
	case "/api/v1/transactions":
		return domain.AuditActionTransaction, "transaction"
	}
	return "", ""
}
