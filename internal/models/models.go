package models

import "time"

type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:120;not null" json:"name"`
	Email        string    `gorm:"size:190;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// last chatroom the user opened; cleared on logout
	SelectedChatroomID *string `gorm:"size:36" json:"selected_chatroom_id,omitempty"`
}

type Chatroom struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	Name            string    `gorm:"size:120;not null" json:"name"`
	Description     string    `gorm:"size:500" json:"description,omitempty"`
	CreatedBy       uint      `gorm:"index;not null" json:"created_by"`
	CreatedAt       time.Time `gorm:"index" json:"created_at"`
	LastMessageTime time.Time `gorm:"index" json:"last_message_time"`

	Messages []Message `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

type Message struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	ChatroomID string    `gorm:"index;size:36;not null" json:"chatroom_id"`
	Sender     Sender    `gorm:"size:10;not null" json:"sender"`
	Text       string    `gorm:"type:text;not null" json:"text"`
	Timestamp  time.Time `gorm:"index" json:"timestamp"`
}
