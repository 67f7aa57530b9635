package chat

import (
	"context"
	"strings"

	"github.com/YikKhai0303/ChatApp/internal/models"
)

func (s *Service) CreateChatroom(ctx context.Context, ownerID uint, name, description string) (*models.Chatroom, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	return s.store.CreateChatroom(ctx, ownerID, name, strings.TrimSpace(description))
}

// UpdateChatroom replaces name and description; activity time is untouched.
func (s *Service) UpdateChatroom(ctx context.Context, ownerID uint, id, name, description string) (*models.Chatroom, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	return s.store.UpdateChatroom(ctx, ownerID, id, name, strings.TrimSpace(description))
}

// DeleteChatroom removes the room and, with it, every message in it.
func (s *Service) DeleteChatroom(ctx context.Context, ownerID uint, id string) error {
	return s.store.DeleteChatroom(ctx, ownerID, id)
}

func (s *Service) ListChatrooms(ctx context.Context, ownerID uint) ([]models.Chatroom, error) {
	return s.store.ListChatrooms(ctx, ownerID)
}

func (s *Service) ListMessages(ctx context.Context, ownerID uint, chatroomID string) ([]models.Message, error) {
	if _, err := s.store.GetChatroom(ctx, ownerID, chatroomID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, chatroomID)
}

func (s *Service) DeleteMessage(ctx context.Context, ownerID uint, chatroomID, messageID string) error {
	if _, err := s.store.GetChatroom(ctx, ownerID, chatroomID); err != nil {
		return err
	}
	return s.store.DeleteMessage(ctx, ownerID, chatroomID, messageID)
}
