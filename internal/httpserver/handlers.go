package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"chatrelay/internal/chat"
	"chatrelay/internal/middleware"
	"chatrelay/internal/prompts"
	"chatrelay/internal/session"
)

const maxBodyBytes = 1 << 20

// ChatService операции чата, которые нужны HTTP слою.
type ChatService interface {
	CreateSession(ctx context.Context, promptName string) (session.Session, error)
	SendMessage(ctx context.Context, chatID, userMessage string) (chat.Reply, error)
	GetSession(ctx context.Context, chatID string) (session.Session, error)
	Prompts() []prompts.Persona
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() {
		vld = validator.New()
		vld.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return vld
}

type createChatRequest struct {
	PromptName string `json:"prompt_name" validate:"required,max=200"`
}

type createChatResponse struct {
	ChatID     string `json:"chatId"`
	PromptName string `json:"prompt_name"`
}

type sendMessageRequest struct {
	UserMessage string `json:"userMessage" validate:"required,max=20000"`
}

type sendMessageResponse struct {
	AssistantReply string `json:"assistantReply"`
}

type sessionResponse struct {
	ChatID     string          `json:"chatId"`
	PromptName string          `json:"prompt_name"`
	History    session.History `json:"history"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

type handlers struct {
	svc    ChatService
	env    func() any
	logger *slog.Logger
}

func (h *handlers) createChat(w http.ResponseWriter, r *http.Request) {
	var req createChatRequest
	if !h.decode(w, r, &req) {
		return
	}
	sess, err := h.svc.CreateSession(r.Context(), req.PromptName)
	if err != nil {
		h.logFailure(r, "create chat failed", err)
		writeServiceError(w, err, "Prompt not found")
		return
	}
	WriteJSON(w, http.StatusCreated, createChatResponse{ChatID: sess.ID, PromptName: sess.PromptName})
}

func (h *handlers) sendMessage(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chat_id")
	var req sendMessageRequest
	if !h.decode(w, r, &req) {
		return
	}
	reply, err := h.svc.SendMessage(r.Context(), chatID, req.UserMessage)
	if err != nil {
		h.logFailure(r, "send message failed", err)
		writeServiceError(w, err, "Chat session not found.")
		return
	}
	WriteJSON(w, http.StatusOK, sendMessageResponse{AssistantReply: reply.Text})
}

func (h *handlers) getChat(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.GetSession(r.Context(), chi.URLParam(r, "chat_id"))
	if err != nil {
		h.logFailure(r, "get chat failed", err)
		writeServiceError(w, err, "Chat session not found.")
		return
	}
	history := sess.History
	if history == nil {
		history = session.History{}
	}
	WriteJSON(w, http.StatusOK, sessionResponse{
		ChatID:     sess.ID,
		PromptName: sess.PromptName,
		History:    history,
		CreatedAt:  sess.CreatedAt,
		UpdatedAt:  sess.UpdatedAt,
	})
}

func (h *handlers) listPrompts(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.svc.Prompts())
}

func (h *handlers) testEnv(w http.ResponseWriter, r *http.Request) {
	var report any
	if h.env != nil {
		report = h.env()
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"message":   "Environment variables check",
		"report":    report,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// decode читает JSON тело и проверяет его валидатором. При ошибке пишет 400.
func (h *handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteJSONError(w, http.StatusBadRequest, CodeBadRequest, "invalid json")
		return false
	}
	if err := getValidator().Struct(dst); err != nil {
		details := map[string]string{}
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			for _, fe := range ve {
				details[fe.Field()] = fe.Tag()
			}
		}
		writeErrorBody(w, http.StatusBadRequest, errorBody{Code: CodeBadRequest, Message: "validation failed", Details: details})
		return false
	}
	return true
}

func (h *handlers) logFailure(r *http.Request, msg string, err error) {
	level := slog.LevelWarn
	if !errors.Is(err, session.ErrNotFound) && !errors.Is(err, prompts.ErrNotFound) && !errors.Is(err, chat.ErrInvalidArgument) {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, msg,
		slog.String("request_id", middleware.GetRequestID(r.Context())),
		slog.String("error", err.Error()))
}
