package ws

import (
	"context"
	"log"
	"time"

	"github.com/YikKhai0303/ChatApp/internal/models"
	"github.com/YikKhai0303/ChatApp/internal/store"
)

const (
	EventChatroomsChanged = "chatrooms:changed"
	EventMessagesChanged  = "messages:changed"

	reloadTimeout = 5 * time.Second
)

type Lister interface {
	ListChatrooms(ctx context.Context, ownerID uint) ([]models.Chatroom, error)
	ListMessages(ctx context.Context, chatroomID string) ([]models.Message, error)
}

type MessagesChanged struct {
	ChatroomID string           `json:"chatroom_id"`
	Messages   []models.Message `json:"messages"`
}

// Publisher turns store change events into full-list pushes, so a client
// always renders the store's own ordering.
type Publisher struct {
	hub    *Hub
	lister Lister
}

func NewPublisher(hub *Hub, lister Lister) *Publisher {
	return &Publisher{hub: hub, lister: lister}
}

// Handle is a store.Listener.
func (p *Publisher) Handle(ev store.Event) {
	if p.hub.ClientCount(ev.OwnerID) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
	defer cancel()

	switch ev.Kind {
	case store.ChatroomsChanged:
		rooms, err := p.lister.ListChatrooms(ctx, ev.OwnerID)
		if err != nil {
			log.Printf("ws: reload chatrooms for user %d: %v", ev.OwnerID, err)
			return
		}
		p.hub.BroadcastToUser(ev.OwnerID, Event{Type: EventChatroomsChanged, Data: rooms})

	case store.MessagesChanged:
		msgs, err := p.lister.ListMessages(ctx, ev.ChatroomID)
		if err != nil {
			log.Printf("ws: reload messages of %s: %v", ev.ChatroomID, err)
			return
		}
		p.hub.BroadcastToUser(ev.OwnerID, Event{
			Type: EventMessagesChanged,
			Data: MessagesChanged{ChatroomID: ev.ChatroomID, Messages: msgs},
		})
	}
}
