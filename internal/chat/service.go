// Package chat implements the conversation protocols: sending a message and
// getting the assistant's answer, editing a sent message and regenerating
// the answer, and the chatroom/message management around them.
package chat

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/YikKhai0303/ChatApp/internal/gemini"
	"github.com/YikKhai0303/ChatApp/internal/models"
	"github.com/YikKhai0303/ChatApp/internal/reply"
	"github.com/YikKhai0303/ChatApp/internal/store"

	"github.com/pkg/errors"
)

// WindowSize is how many earlier messages go into a conversation window.
const WindowSize = 6

var (
	ErrEmptyText   = errors.New("message text must not be empty")
	ErrEmptyName   = errors.New("chatroom name must not be empty")
	ErrNotEditable = errors.New("only user messages can be edited")
	ErrUnchanged   = errors.New("message text is unchanged")
)

type Store interface {
	CreateChatroom(ctx context.Context, ownerID uint, name, description string) (*models.Chatroom, error)
	GetChatroom(ctx context.Context, ownerID uint, id string) (*models.Chatroom, error)
	ListChatrooms(ctx context.Context, ownerID uint) ([]models.Chatroom, error)
	UpdateChatroom(ctx context.Context, ownerID uint, id, name, description string) (*models.Chatroom, error)
	DeleteChatroom(ctx context.Context, ownerID uint, id string) error
	TouchChatroom(ctx context.Context, ownerID uint, id string) error

	ListMessages(ctx context.Context, chatroomID string) ([]models.Message, error)
	AddMessage(ctx context.Context, ownerID uint, chatroomID string, sender models.Sender, text string, ts time.Time) (*models.Message, error)
	UpdateMessageText(ctx context.Context, ownerID uint, chatroomID, id, text string) error
	DeleteMessage(ctx context.Context, ownerID uint, chatroomID, id string) error
}

// Replier produces the assistant's answer for a window.
type Replier interface {
	Reply(ctx context.Context, scopeKey string, turns []gemini.Content) (string, error)
}

type Service struct {
	store   Store
	replier Replier
	scope   reply.Scope
}

func NewService(st Store, r Replier, scope reply.Scope) *Service {
	return &Service{store: st, replier: r, scope: scope}
}

// Role maps a stored sender onto the upstream role vocabulary.
func Role(sender models.Sender) string {
	if sender == models.SenderUser {
		return gemini.RoleUser
	}
	return gemini.RoleModel
}

// BuildWindow turns history plus the newly submitted text into upstream turns.
// history must already be cut to the window.
func BuildWindow(history []models.Message, text string) []gemini.Content {
	turns := make([]gemini.Content, 0, len(history)+1)
	for _, m := range history {
		turns = append(turns, gemini.NewContent(Role(m.Sender), m.Text))
	}
	return append(turns, gemini.NewContent(gemini.RoleUser, text))
}

// replyText never fails: any error is logged and the fallback is used.
func (s *Service) replyText(ctx context.Context, ownerID uint, chatroomID string, window []gemini.Content) string {
	text, err := s.replier.Reply(ctx, s.scope.Key(ownerID, chatroomID), window)
	if err != nil {
		var rl *reply.RateLimitError
		if errors.As(err, &rl) {
			log.Printf("chat: room %s: %v", chatroomID, rl)
		} else {
			log.Printf("chat: room %s: reply failed: %v", chatroomID, err)
		}
		return reply.FallbackReply
	}
	return text
}

func (s *Service) touch(ctx context.Context, ownerID uint, chatroomID string) {
	if err := s.store.TouchChatroom(ctx, ownerID, chatroomID); err != nil {
		log.Printf("chat: room %s: touch failed: %v", chatroomID, err)
	}
}

type SendResult struct {
	Message *models.Message `json:"message"`
	Reply   *models.Message `json:"reply"`
}

// Send appends a user message and then the assistant's answer. The answer is
// best effort: once the user message is stored, Send does not fail.
func (s *Service) Send(ctx context.Context, ownerID uint, chatroomID, text string) (*SendResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if _, err := s.store.GetChatroom(ctx, ownerID, chatroomID); err != nil {
		return nil, err
	}

	// the caller leaving must not abort the exchange half way
	ctx = context.WithoutCancel(ctx)

	snapshot, err := s.store.ListMessages(ctx, chatroomID)
	if err != nil {
		return nil, err
	}

	userMsg, err := s.store.AddMessage(ctx, ownerID, chatroomID, models.SenderUser, text, time.Time{})
	if err != nil {
		return nil, err
	}
	s.touch(ctx, ownerID, chatroomID)

	history := snapshot[max(0, len(snapshot)-WindowSize):]
	answer := s.replyText(ctx, ownerID, chatroomID, BuildWindow(history, text))

	res := &SendResult{Message: userMsg}
	aiMsg, err := s.store.AddMessage(ctx, ownerID, chatroomID, models.SenderAI, answer, time.Time{})
	if err != nil {
		log.Printf("chat: room %s: storing reply failed: %v", chatroomID, err)
		return res, nil
	}
	res.Reply = aiMsg
	s.touch(ctx, ownerID, chatroomID)
	return res, nil
}

type EditResult struct {
	Message *models.Message `json:"message"`
	Removed *models.Message `json:"removed,omitempty"`
	Reply   *models.Message `json:"reply"`
}

// CheckEdit reports whether msg may be rewritten to newText.
func CheckEdit(msg models.Message, newText string) error {
	if msg.Sender != models.SenderUser {
		return ErrNotEditable
	}
	newText = strings.TrimSpace(newText)
	if newText == "" {
		return ErrEmptyText
	}
	if newText == strings.TrimSpace(msg.Text) {
		return ErrUnchanged
	}
	return nil
}

// Edit rewrites a user message and regenerates the assistant answer that
// followed it. Positions come from a snapshot taken before the first write;
// nothing is locked, so concurrent writers can make it stale.
//
// The rewrite itself is never undone. If the regenerated answer cannot be
// stored, the answer removed earlier is put back with its original timestamp.
func (s *Service) Edit(ctx context.Context, ownerID uint, chatroomID, messageID, newText string) (*EditResult, error) {
	if _, err := s.store.GetChatroom(ctx, ownerID, chatroomID); err != nil {
		return nil, err
	}

	snapshot, err := s.store.ListMessages(ctx, chatroomID)
	if err != nil {
		return nil, err
	}
	idx := indexOf(snapshot, messageID)
	if idx < 0 {
		return nil, store.ErrNotFound
	}
	if err := CheckEdit(snapshot[idx], newText); err != nil {
		return nil, err
	}
	newText = strings.TrimSpace(newText)

	ctx = context.WithoutCancel(ctx)

	if err := s.store.UpdateMessageText(ctx, ownerID, chatroomID, messageID, newText); err != nil {
		return nil, errors.Wrap(err, "rewrite message")
	}
	edited := snapshot[idx]
	edited.Text = newText
	res := &EditResult{Message: &edited}

	var replyAt time.Time
	if idx+1 < len(snapshot) && snapshot[idx+1].Sender == models.SenderAI {
		next := snapshot[idx+1]
		replyAt = next.Timestamp
		if err := s.store.DeleteMessage(ctx, ownerID, chatroomID, next.ID); err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				return res, errors.Wrap(err, "remove previous reply")
			}
			// already gone; keep its slot in the order anyway
		} else {
			res.Removed = &next
		}
	}

	history := snapshot[max(0, idx-WindowSize):idx]
	answer := s.replyText(ctx, ownerID, chatroomID, BuildWindow(history, newText))

	aiMsg, err := s.store.AddMessage(ctx, ownerID, chatroomID, models.SenderAI, answer, replyAt)
	if err != nil {
		if res.Removed != nil {
			if _, rerr := s.store.AddMessage(ctx, ownerID, chatroomID, models.SenderAI, res.Removed.Text, res.Removed.Timestamp); rerr != nil {
				log.Printf("chat: room %s: restoring removed reply failed: %v", chatroomID, rerr)
			} else {
				res.Removed = nil
			}
		}
		return res, errors.Wrap(err, "store regenerated reply")
	}
	res.Reply = aiMsg

	s.touch(ctx, ownerID, chatroomID)
	return res, nil
}

func indexOf(msgs []models.Message, id string) int {
	for i := range msgs {
		if msgs[i].ID == id {
			return i
		}
	}
	return -1
}
