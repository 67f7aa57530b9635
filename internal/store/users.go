package store

import (
	"context"

	"github.com/YikKhai0303/ChatApp/internal/models"

	"github.com/pkg/errors"
)

// SelectedChatroom returns the id of the room the user last opened, or "" if
// none is stored.
func (s *Store) SelectedChatroom(ctx context.Context, userID uint) (string, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Select("id", "selected_chatroom_id").First(&u, userID).Error; err != nil {
		return "", notFound(err)
	}
	if u.SelectedChatroomID == nil {
		return "", nil
	}
	return *u.SelectedChatroomID, nil
}

// SetSelectedChatroom stores the selection; an empty id clears it. A non-empty
// id must name a room owned by the user.
func (s *Store) SetSelectedChatroom(ctx context.Context, userID uint, chatroomID string) error {
	var value interface{}
	if chatroomID != "" {
		if _, err := s.GetChatroom(ctx, userID, chatroomID); err != nil {
			return err
		}
		value = chatroomID
	}

	err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("selected_chatroom_id", value).Error
	return errors.Wrap(err, "set selected chatroom")
}
