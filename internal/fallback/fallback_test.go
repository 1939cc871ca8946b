package fallback

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"chatrelay/internal/session"
)

func history(system string) session.History {
	h := session.History{}
	if system != "" {
		h = append(h, session.Message{Role: session.RoleSystem, Content: system})
	}
	return append(h, session.Message{Role: session.RoleUser, Content: "hello"})
}

func TestRespond_MarkerSelectsVoice(t *testing.T) {
	t.Parallel()
	r := NewResponder(nil, "")

	tests := []struct {
		name    string
		system  string
		persona string
		want    Voice
	}{
		{name: "marker present", system: "You are Hitesh Choudhary, a teacher", want: VoiceHinglish},
		{name: "marker absent", system: "You are Piyush Garg", want: VoiceEnglish},
		{name: "no system message", want: VoiceEnglish},
		{name: "unknown persona falls back to marker", system: "Hitesh Choudhary", persona: "nobody", want: VoiceHinglish},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, r.VoiceFor(tt.persona, history(tt.system)))
			assert.Equal(t, Text(tt.want), r.Respond(tt.persona, history(tt.system)))
		})
	}
}

func TestRespond_ExplicitPersonaWins(t *testing.T) {
	t.Parallel()
	r := NewResponder(map[string]Voice{"Hitesh": VoiceHinglish, "Piyush": VoiceEnglish}, "")

	assert.Equal(t, VoiceHinglish, r.VoiceFor("hitesh", history("no marker here")))
	assert.Equal(t, VoiceEnglish, r.VoiceFor("Piyush", history("mentions Hitesh Choudhary")))
}

func TestRespond_IsPure(t *testing.T) {
	t.Parallel()
	r := NewResponder(nil, "")
	h := history("You are Hitesh Choudhary")
	before := h.Clone()

	first := r.Respond("", h)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, r.Respond("", h))
	}
	assert.Equal(t, before, h)
}

func TestTexts(t *testing.T) {
	t.Parallel()
	assert.True(t, strings.HasPrefix(Text(VoiceHinglish), "Haan ji, saare Gemini API keys busy hain abhi."))
	assert.True(t, strings.HasPrefix(Text(VoiceEnglish), "Hey everyone! All Gemini API keys are overloaded right now."))
	assert.Contains(t, Text(VoiceEnglish), "\n\nMeanwhile, you can explain")
}
