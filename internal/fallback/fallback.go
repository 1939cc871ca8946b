package fallback

import (
	"strings"

	"chatrelay/internal/session"
)

// Voice голос заготовленного ответа.
type Voice string

const (
	VoiceHinglish Voice = "hinglish"
	VoiceEnglish  Voice = "english"
)

// DefaultMarker подстрока системного промпта, по которой узнаётся
// персона с голосом hinglish, если персона не передана явно.
const DefaultMarker = "Hitesh Choudhary"

const (
	hinglishReply = "Haan ji, saare Gemini API keys busy hain abhi. Chai piyenge aur thoda wait karenge? 😊\n\n" +
		"Meanwhile, aap apne question ko aur detail mein explain kar sakte hain. Main ready hun help karne ke liye!"
	englishReply = "Hey everyone! All Gemini API keys are overloaded right now. Let's chill and wait a bit! 😊\n\n" +
		"Meanwhile, you can explain your question in more detail. I'm ready to help once the APIs are back!"
)

// Responder выбирает заготовленный ответ, когда upstream недоступен.
// Не делает I/O и не трогает пул ключей.
type Responder struct {
	voices map[string]Voice
	marker string
}

// NewResponder принимает голоса персон по имени (из каталога промптов).
// Персоны без явного голоса определяются по marker в системном сообщении.
func NewResponder(voices map[string]Voice, marker string) *Responder {
	v := make(map[string]Voice, len(voices))
	for name, voice := range voices {
		v[strings.ToLower(strings.TrimSpace(name))] = voice
	}
	if marker == "" {
		marker = DefaultMarker
	}
	return &Responder{voices: v, marker: marker}
}

// Respond возвращает текст ответа для персоны persona и истории history.
func (r *Responder) Respond(persona string, history session.History) string {
	return Text(r.VoiceFor(persona, history))
}

// VoiceFor сначала ищет явную персону, затем маркер в системном сообщении.
// По умолчанию английский.
func (r *Responder) VoiceFor(persona string, history session.History) Voice {
	if v, ok := r.voices[strings.ToLower(strings.TrimSpace(persona))]; ok && v != "" {
		return v
	}
	if sys, ok := history.System(); ok && strings.Contains(sys.Content, r.marker) {
		return VoiceHinglish
	}
	return VoiceEnglish
}

// Text возвращает заготовку для голоса.
func Text(v Voice) string {
	if v == VoiceHinglish {
		return hinglishReply
	}
	return englishReply
}
