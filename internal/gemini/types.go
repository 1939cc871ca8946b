package gemini

// Роли в формате generateContent.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Part текстовый фрагмент сообщения.
type Part struct {
	Text string `json:"text"`
}

// Content одно сообщение (turn) в запросе или ответе.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type GenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// GenerateRequest тело запроса generateContent.
type GenerateRequest struct {
	Contents         []Content        `json:"contents"`
	GenerationConfig GenerationConfig `json:"generationConfig"`
}

type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

// Response разобранный 2xx ответ. Все поля могут отсутствовать.
type Response struct {
	Candidates []Candidate `json:"candidates"`
}

// Text возвращает текст первой части первого кандидата.
// false, если текста нет или он пустой.
func (r *Response) Text() (string, bool) {
	if r == nil || len(r.Candidates) == 0 {
		return "", false
	}
	parts := r.Candidates[0].Content.Parts
	if len(parts) == 0 || parts[0].Text == "" {
		return "", false
	}
	return parts[0].Text, true
}
