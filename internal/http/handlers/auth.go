package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/YikKhai0303/ChatApp/internal/http/middleware"
	"github.com/YikKhai0303/ChatApp/internal/models"
	"github.com/YikKhai0303/ChatApp/internal/store"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthHandler struct {
	DB        *gorm.DB
	Store     *store.Store
	JWTSecret string
}

type registerReq struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid body", "error": err.Error()})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid password", "error": err.Error()})
		return
	}

	u := models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
	}

	if err := h.DB.WithContext(c.Request.Context()).Create(&u).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "failed create user", "error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":    u.ID,
		"name":  u.Name,
		"email": u.Email,
	})
}

type loginReq struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid body", "error": err.Error()})
		return
	}

	var u models.User
	if err := h.DB.WithContext(c.Request.Context()).Where("email = ?", req.Email).First(&u).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "wrong email/password"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "wrong email/password"})
		return
	}

	tokenStr, err := middleware.IssueToken(u.ID, h.JWTSecret, time.Now())
	if err != nil {
		log.Printf("auth: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed create token"})
		return
	}

	selected := ""
	if u.SelectedChatroomID != nil {
		selected = *u.SelectedChatroomID
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": tokenStr,
		"user": gin.H{
			"id":                   u.ID,
			"name":                 u.Name,
			"email":                u.Email,
			"selected_chatroom_id": selected,
		},
	})
}

// Logout forgets the user's selected chatroom. Tokens are stateless, so the
// client drops its own copy.
func (h *AuthHandler) Logout(c *gin.Context) {
	userID := middleware.MustUserID(c)

	if err := h.Store.SetSelectedChatroom(c.Request.Context(), userID, ""); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type selectedReq struct {
	ChatroomID string `json:"chatroom_id"`
}

func (h *AuthHandler) GetSelectedChatroom(c *gin.Context) {
	userID := middleware.MustUserID(c)

	id, err := h.Store.SelectedChatroom(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chatroom_id": id})
}

// SetSelectedChatroom stores the room the client has open; an empty id clears
// the selection.
func (h *AuthHandler) SetSelectedChatroom(c *gin.Context) {
	userID := middleware.MustUserID(c)

	var req selectedReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid body", "error": err.Error()})
		return
	}

	if err := h.Store.SetSelectedChatroom(c.Request.Context(), userID, req.ChatroomID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chatroom_id": req.ChatroomID})
}
