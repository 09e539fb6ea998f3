package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler atiende el login de desarrollo: una sola credencial
// configurada por entorno, verificada con bcrypt, que emite el access
// token usado por el resto de los endpoints.
type AuthHandler struct {
	logger      *zap.Logger
	jwtSvc      *JWTService
	devEmail    string
	devPassHash string
	devUserID   string
}

func NewAuthHandler(logger *zap.Logger, jwtSvc *JWTService, devEmail, devPassHash string) *AuthHandler {
	return &AuthHandler{
		logger:      logger,
		jwtSvc:      jwtSvc,
		devEmail:    devEmail,
		devPassHash: devPassHash,
		devUserID:   uuid.NewString(),
	}
}

// Login maneja POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if h.devPassHash == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "login not configured"})
		return
	}
	if req.Email != h.devEmail {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(h.devPassHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := h.jwtSvc.Sign(h.devUserID, req.Email)
	if err != nil {
		h.logger.Error("sign token failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token})
}
