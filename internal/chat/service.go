package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"chatrelay/internal/dispatch"
	"chatrelay/internal/prompts"
	"chatrelay/internal/session"
)

var (
	// ErrConfiguration нет хранилища или ключей; ни upstream, ни хранилище не вызываются.
	ErrConfiguration   = errors.New("service is not configured")
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrPersist ответ получен, но историю сохранить не удалось.
	ErrPersist = errors.New("persist session")
)

// Dispatcher отправляет историю upstream и всегда возвращает ответ.
type Dispatcher interface {
	Send(ctx context.Context, history session.History, persona string) dispatch.Result
}

// PromptCatalog источник системных промптов персон.
type PromptCatalog interface {
	Lookup(name string) (prompts.Persona, error)
	List() []prompts.Persona
}

// Reply ответ на сообщение пользователя.
type Reply struct {
	Text     string
	Fallback bool
}

// Service реализует операции чата поверх хранилища сессий и диспетчера.
type Service struct {
	store      session.Store
	prompts    PromptCatalog
	dispatcher Dispatcher
	storeErr   error
	configErr  error
	logger     *slog.Logger
	newID      func() string
}

type ServiceConfig struct {
	Store      session.Store
	Prompts    PromptCatalog
	Dispatcher Dispatcher
	// StoreErr проблема конфигурации хранилища; блокирует все операции.
	StoreErr error
	// ConfigErr полная проверка конфигурации; блокирует отправку сообщений.
	ConfigErr error
	Logger    *slog.Logger
}

func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      cfg.Store,
		prompts:    cfg.Prompts,
		dispatcher: cfg.Dispatcher,
		storeErr:   cfg.StoreErr,
		configErr:  cfg.ConfigErr,
		logger:     logger,
		newID:      uuid.NewString,
	}
}

// CreateSession создаёт сессию с единственным системным сообщением персоны.
func (s *Service) CreateSession(ctx context.Context, promptName string) (session.Session, error) {
	if err := s.storeReady(); err != nil {
		return session.Session{}, err
	}
	promptName = strings.TrimSpace(promptName)
	if promptName == "" {
		return session.Session{}, fmt.Errorf("%w: prompt_name is required", ErrInvalidArgument)
	}
	if s.prompts == nil {
		return session.Session{}, fmt.Errorf("%w: prompt catalog unavailable", ErrConfiguration)
	}
	persona, err := s.prompts.Lookup(promptName)
	if err != nil {
		return session.Session{}, err
	}

	sess := session.Session{
		ID:         s.newID(),
		PromptName: persona.Name,
		History:    session.History{{Role: session.RoleSystem, Content: persona.Content}},
	}
	if err := s.store.Create(ctx, sess); err != nil {
		return session.Session{}, fmt.Errorf("create session: %w", err)
	}
	s.logger.Info("chat session created", slog.String("chat_id", sess.ID), slog.String("prompt_name", sess.PromptName))
	return sess, nil
}

// SendMessage добавляет сообщение пользователя, получает ответ (модели или
// заготовку) и сохраняет историю. Если сохранить не удалось, ответ теряется.
func (s *Service) SendMessage(ctx context.Context, chatID, userMessage string) (Reply, error) {
	if err := s.storeReady(); err != nil {
		return Reply{}, err
	}
	if s.configErr != nil || s.dispatcher == nil {
		return Reply{}, fmt.Errorf("%w: %v", ErrConfiguration, s.configErr)
	}
	if strings.TrimSpace(chatID) == "" {
		return Reply{}, fmt.Errorf("%w: chat id is required", ErrInvalidArgument)
	}
	if strings.TrimSpace(userMessage) == "" {
		return Reply{}, fmt.Errorf("%w: userMessage is required", ErrInvalidArgument)
	}

	sess, err := s.store.Get(ctx, chatID)
	if err != nil {
		return Reply{}, fmt.Errorf("load session %s: %w", chatID, err)
	}

	history := append(sess.History.Clone(), session.Message{Role: session.RoleUser, Content: userMessage})
	res := s.dispatcher.Send(ctx, history, sess.PromptName)

	updated := append(res.History.Clone(), session.Message{Role: session.RoleAssistant, Content: res.Reply})
	if err := s.store.Update(ctx, chatID, updated); err != nil {
		s.logger.Error("failed to persist reply",
			slog.String("chat_id", chatID),
			slog.String("error", err.Error()))
		return Reply{}, fmt.Errorf("%w %s: %v", ErrPersist, chatID, err)
	}

	if res.Fallback() {
		s.logger.Warn("fallback reply returned",
			slog.String("chat_id", chatID),
			slog.String("state", string(res.State)),
			slog.Int("attempts", len(res.Attempts)))
	}
	return Reply{Text: res.Reply, Fallback: res.Fallback()}, nil
}

// GetSession возвращает сессию для перезагрузки UI.
func (s *Service) GetSession(ctx context.Context, chatID string) (session.Session, error) {
	if err := s.storeReady(); err != nil {
		return session.Session{}, err
	}
	sess, err := s.store.Get(ctx, chatID)
	if err != nil {
		return session.Session{}, fmt.Errorf("load session %s: %w", chatID, err)
	}
	return sess, nil
}

// Prompts список персон каталога.
func (s *Service) Prompts() []prompts.Persona {
	if s.prompts == nil {
		return []prompts.Persona{}
	}
	return s.prompts.List()
}

func (s *Service) storeReady() error {
	if s.storeErr != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, s.storeErr)
	}
	if s.store == nil {
		return fmt.Errorf("%w: session store unavailable", ErrConfiguration)
	}
	return nil
}
