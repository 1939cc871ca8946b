package session

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("session not found")

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message одно сообщение диалога.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// History хронологическая история; system, если есть, всегда первым.
type History []Message

// Clone возвращает независимую копию истории.
func (h History) Clone() History {
	if h == nil {
		return nil
	}
	out := make(History, len(h))
	copy(out, h)
	return out
}

// System возвращает ведущее системное сообщение.
func (h History) System() (Message, bool) {
	if len(h) > 0 && h[0].Role == RoleSystem {
		return h[0], true
	}
	return Message{}, false
}

// Session строка хранилища: id, выбранная персона и история.
type Session struct {
	ID         string    `json:"id"`
	PromptName string    `json:"prompt_name"`
	History    History   `json:"history"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Store интерфейс хранилища сессий.
type Store interface {
	// Get возвращает сессию или ErrNotFound.
	Get(ctx context.Context, id string) (Session, error)

	// Create сохраняет новую сессию.
	Create(ctx context.Context, s Session) error

	// Update заменяет историю существующей сессии; ErrNotFound если её нет.
	Update(ctx context.Context, id string, history History) error
}
