package handlers

import (
	"github.com/YikKhai0303/ChatApp/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

type Routes struct {
	Auth      *AuthHandler
	Chat      *ChatHandler
	WS        *WSHandler
	Proxy     *ProxyHandler
	JWTSecret string
}

func (rt Routes) Mount(r *gin.Engine) {
	// Proxy, same paths as the functions deployment
	r.GET("/", rt.Proxy.Health)
	r.POST("/gemini", rt.Proxy.Generate)
	r.POST("/api/gemini", rt.Proxy.Generate)

	// Auth
	r.POST("/api/v1/auth/register", rt.Auth.Register)
	r.POST("/api/v1/auth/login", rt.Auth.Login)

	// WebSocket endpoint
	r.GET("/ws", rt.WS.Handle)

	// Protected routes
	authed := r.Group("/api/v1")
	authed.Use(middleware.AuthMiddleware(rt.JWTSecret))

	authed.POST("/auth/logout", rt.Auth.Logout)
	authed.GET("/me/selected-chatroom", rt.Auth.GetSelectedChatroom)
	authed.PUT("/me/selected-chatroom", rt.Auth.SetSelectedChatroom)

	authed.GET("/chatrooms", rt.Chat.ListChatrooms)
	authed.POST("/chatrooms", rt.Chat.CreateChatroom)
	authed.PATCH("/chatrooms/:id", rt.Chat.UpdateChatroom)
	authed.DELETE("/chatrooms/:id", rt.Chat.DeleteChatroom)

	authed.GET("/chatrooms/:id/messages", rt.Chat.ListMessages)
	authed.POST("/chatrooms/:id/messages", rt.Chat.SendMessage)
	authed.PATCH("/chatrooms/:id/messages/:messageId", rt.Chat.EditMessage)
	authed.DELETE("/chatrooms/:id/messages/:messageId", rt.Chat.DeleteMessage)

	authed.GET("/reply/stats", rt.Chat.ReplyStats)
}
