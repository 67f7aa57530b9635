package store

import (
	"context"

	"github.com/YikKhai0303/ChatApp/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

func (s *Store) CreateChatroom(ctx context.Context, ownerID uint, name, description string) (*models.Chatroom, error) {
	now := s.now()
	room := models.Chatroom{
		ID:              newID(),
		Name:            name,
		Description:     description,
		CreatedBy:       ownerID,
		CreatedAt:       now,
		LastMessageTime: now,
	}
	if err := s.db.WithContext(ctx).Create(&room).Error; err != nil {
		return nil, errors.Wrap(err, "create chatroom")
	}

	s.notify(Event{Kind: ChatroomsChanged, OwnerID: ownerID})
	return &room, nil
}

// GetChatroom returns ErrNotFound both for missing rooms and for rooms owned
// by someone else.
func (s *Store) GetChatroom(ctx context.Context, ownerID uint, id string) (*models.Chatroom, error) {
	var room models.Chatroom
	err := s.db.WithContext(ctx).
		Where("id = ? AND created_by = ?", id, ownerID).
		First(&room).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &room, nil
}

// ListChatrooms orders by most recent activity, newest room first on ties.
func (s *Store) ListChatrooms(ctx context.Context, ownerID uint) ([]models.Chatroom, error) {
	rooms := []models.Chatroom{}
	err := s.db.WithContext(ctx).
		Where("created_by = ?", ownerID).
		Order("last_message_time desc").
		Order("created_at desc").
		Find(&rooms).Error
	if err != nil {
		return nil, errors.Wrap(err, "list chatrooms")
	}
	return rooms, nil
}

func (s *Store) UpdateChatroom(ctx context.Context, ownerID uint, id, name, description string) (*models.Chatroom, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Chatroom{}).
		Where("id = ? AND created_by = ?", id, ownerID).
		Updates(map[string]interface{}{"name": name, "description": description})
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "update chatroom")
	}

	room, err := s.GetChatroom(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	s.notify(Event{Kind: ChatroomsChanged, OwnerID: ownerID})
	return room, nil
}

// TouchChatroom bumps the last-activity time to now.
func (s *Store) TouchChatroom(ctx context.Context, ownerID uint, id string) error {
	res := s.db.WithContext(ctx).
		Model(&models.Chatroom{}).
		Where("id = ? AND created_by = ?", id, ownerID).
		Update("last_message_time", s.now())
	if res.Error != nil {
		return errors.Wrap(res.Error, "touch chatroom")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	s.notify(Event{Kind: ChatroomsChanged, OwnerID: ownerID})
	return nil
}

// DeleteChatroom removes the room together with all of its messages and
// drops it from the owner's selection.
func (s *Store) DeleteChatroom(ctx context.Context, ownerID uint, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND created_by = ?", id, ownerID).Delete(&models.Chatroom{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		if err := tx.Where("chatroom_id = ?", id).Delete(&models.Message{}).Error; err != nil {
			return err
		}

		return tx.Model(&models.User{}).
			Where("id = ? AND selected_chatroom_id = ?", ownerID, id).
			Update("selected_chatroom_id", nil).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return errors.Wrap(err, "delete chatroom")
	}

	s.notify(Event{Kind: ChatroomsChanged, OwnerID: ownerID})
	s.notify(Event{Kind: MessagesChanged, OwnerID: ownerID, ChatroomID: id})
	return nil
}
