package store

import (
	"context"
	"time"

	"github.com/YikKhai0303/ChatApp/internal/models"

	"github.com/pkg/errors"
)

// ListMessages returns the room's messages in display order.
func (s *Store) ListMessages(ctx context.Context, chatroomID string) ([]models.Message, error) {
	msgs := []models.Message{}
	err := s.db.WithContext(ctx).
		Where("chatroom_id = ?", chatroomID).
		Order("timestamp asc").
		Order("id asc").
		Find(&msgs).Error
	if err != nil {
		return nil, errors.Wrap(err, "list messages")
	}
	return msgs, nil
}

func (s *Store) getMessage(ctx context.Context, chatroomID, id string) (*models.Message, error) {
	var msg models.Message
	err := s.db.WithContext(ctx).
		Where("id = ? AND chatroom_id = ?", id, chatroomID).
		First(&msg).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &msg, nil
}

// AddMessage appends a message stamped with ts, or with the current time when
// ts is zero.
func (s *Store) AddMessage(ctx context.Context, ownerID uint, chatroomID string, sender models.Sender, text string, ts time.Time) (*models.Message, error) {
	if ts.IsZero() {
		ts = s.now()
	}
	ts = ts.UTC()
	msg := models.Message{
		ID:         newID(),
		ChatroomID: chatroomID,
		Sender:     sender,
		Text:       text,
		Timestamp:  ts,
	}
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, errors.Wrap(err, "add message")
	}

	s.notify(Event{Kind: MessagesChanged, OwnerID: ownerID, ChatroomID: chatroomID})
	return &msg, nil
}

// UpdateMessageText rewrites the text in place; id and timestamp are kept.
func (s *Store) UpdateMessageText(ctx context.Context, ownerID uint, chatroomID, id, text string) error {
	res := s.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ? AND chatroom_id = ?", id, chatroomID).
		Update("text", text)
	if res.Error != nil {
		return errors.Wrap(res.Error, "update message")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	s.notify(Event{Kind: MessagesChanged, OwnerID: ownerID, ChatroomID: chatroomID})
	return nil
}

func (s *Store) DeleteMessage(ctx context.Context, ownerID uint, chatroomID, id string) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND chatroom_id = ?", id, chatroomID).
		Delete(&models.Message{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete message")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	s.notify(Event{Kind: MessagesChanged, OwnerID: ownerID, ChatroomID: chatroomID})
	return nil
}
