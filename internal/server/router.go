package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter configura el router de Gin con middlewares y rutas. Con
// jwtSvc nil el backend corre en modo abierto (desarrollo y tests); con
// un JWTService configurado todos los endpoints salvo el login exigen
// un bearer token.
func NewRouter(
	logger *zap.Logger,
	authH *AuthHandler,
	chatH *ChatHandler,
	streamH *StreamHandler,
	jwtSvc *JWTService,
) *gin.Engine {
	r := gin.New()
	r.Use(zapLoggerMiddleware(logger), gin.Recovery())

	if authH != nil {
		r.POST("/auth/login", authH.Login)
	}

	protected := r.Group("/")
	if jwtSvc != nil {
		protected.Use(JWTAuthMiddleware(jwtSvc))
	}

	protected.POST("/chats", chatH.CreateChat)
	protected.GET("/chats/:id", chatH.GetChat)
	protected.PATCH("/chats/:id/messages/:mid", chatH.EditMessage)
	protected.POST("/chats/:id/messages/:mid/feedback", chatH.SetFeedback)
	protected.POST("/chat/stream", streamH.Stream)

	return r
}
