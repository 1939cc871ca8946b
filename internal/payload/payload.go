package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"chatrelay/internal/gemini"
	"chatrelay/internal/session"
)

// DefaultBudget мягкий лимит оценочных токенов на запрос.
const DefaultBudget = 3000

const (
	trimStart  = 1
	trimWindow = 2
	minKeep    = 2
)

// DefaultGenerationConfig параметры генерации, общие для всех запросов.
var DefaultGenerationConfig = gemini.GenerationConfig{
	Temperature:     0.7,
	MaxOutputTokens: 1000,
}

// EstimateSize грубая оценка токенов: ceil(символы JSON истории / 4).
func EstimateSize(history session.History) int {
	if history == nil {
		history = session.History{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(history); err != nil {
		// Message состоит только из строк, кодирование не падает
		panic(fmt.Sprintf("payload: encode history: %v", err))
	}
	n := utf8.RuneCount(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
	return (n + 3) / 4
}

// Trim убирает самые старые сообщения после первого, пока оценка больше
// budget и сообщений больше двух. Первое сообщение и хвост сохраняются.
// Входной срез не изменяется.
func Trim(history session.History, budget int) session.History {
	out := history.Clone()
	for len(out) > minKeep && EstimateSize(out) > budget {
		n := trimWindow
		if len(out)-n < minKeep {
			n = len(out) - minKeep
		}
		out = append(out[:trimStart], out[trimStart+n:]...)
	}
	return out
}

// Build переводит историю в формат generateContent. Системное сообщение
// вкладывается в первый пользовательский turn.
func Build(history session.History) gemini.GenerateRequest {
	var (
		system    string
		hasSystem bool
		turns     = make(session.History, 0, len(history))
	)
	for _, m := range history {
		if m.Role == session.RoleSystem {
			if !hasSystem {
				system, hasSystem = m.Content, true
			}
			continue
		}
		turns = append(turns, m)
	}

	contents := make([]gemini.Content, 0, len(turns)+1)
	rest := turns
	if hasSystem {
		first := ""
		if len(turns) > 0 {
			first = turns[0].Content
			rest = turns[1:]
		}
		contents = append(contents, textContent(gemini.RoleUser, fmt.Sprintf("System: %s\n\nUser: %s", system, first)))
	}
	for _, m := range rest {
		contents = append(contents, textContent(mapRole(m.Role), m.Content))
	}

	return gemini.GenerateRequest{
		Contents:         contents,
		GenerationConfig: DefaultGenerationConfig,
	}
}

func mapRole(r session.Role) string {
	if r == session.RoleUser {
		return gemini.RoleUser
	}
	return gemini.RoleModel
}

func textContent(role, text string) gemini.Content {
	return gemini.Content{Role: role, Parts: []gemini.Part{{Text: text}}}
}
