package handlers

import (
	"log"
	"net/http"

	"github.com/YikKhai0303/ChatApp/internal/chat"
	"github.com/YikKhai0303/ChatApp/internal/http/middleware"
	"github.com/YikKhai0303/ChatApp/internal/reply"
	"github.com/YikKhai0303/ChatApp/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

type ChatHandler struct {
	Chat    *chat.Service
	Replies *reply.Coordinator
}

// respondError maps domain errors onto status codes. Anything unexpected is
// logged and reported without detail.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chat.ErrEmptyText),
		errors.Is(err, chat.ErrEmptyName),
		errors.Is(err, chat.ErrNotEditable),
		errors.Is(err, chat.ErrUnchanged):
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request", "error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "not found", "error": err.Error()})
	default:
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed", "error": "internal error"})
	}
}

type chatroomReq struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (h *ChatHandler) ListChatrooms(c *gin.Context) {
	userID := middleware.MustUserID(c)

	rooms, err := h.Chat.ListChatrooms(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rooms})
}

func (h *ChatHandler) CreateChatroom(c *gin.Context) {
	userID := middleware.MustUserID(c)

	var req chatroomReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid body", "error": err.Error()})
		return
	}

	room, err := h.Chat.CreateChatroom(c.Request.Context(), userID, req.Name, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": room})
}

func (h *ChatHandler) UpdateChatroom(c *gin.Context) {
	userID := middleware.MustUserID(c)

	var req chatroomReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid body", "error": err.Error()})
		return
	}

	room, err := h.Chat.UpdateChatroom(c.Request.Context(), userID, c.Param("id"), req.Name, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": room})
}

func (h *ChatHandler) DeleteChatroom(c *gin.Context) {
	userID := middleware.MustUserID(c)

	if err := h.Chat.DeleteChatroom(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ChatHandler) ListMessages(c *gin.Context) {
	userID := middleware.MustUserID(c)

	msgs, err := h.Chat.ListMessages(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": msgs})
}

type messageReq struct {
	Text string `json:"text"`
}

// SendMessage stores the user's message and the assistant's answer. The
// response arrives once both are stored.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID := middleware.MustUserID(c)

	var req messageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid body", "error": err.Error()})
		return
	}

	res, err := h.Chat.Send(c.Request.Context(), userID, c.Param("id"), req.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": res})
}

func (h *ChatHandler) EditMessage(c *gin.Context) {
	userID := middleware.MustUserID(c)

	var req messageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid body", "error": err.Error()})
		return
	}

	res, err := h.Chat.Edit(c.Request.Context(), userID, c.Param("id"), c.Param("messageId"), req.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": res})
}

func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	userID := middleware.MustUserID(c)

	if err := h.Chat.DeleteMessage(c.Request.Context(), userID, c.Param("id"), c.Param("messageId")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ChatHandler) ReplyStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.Replies.Stats()})
}
