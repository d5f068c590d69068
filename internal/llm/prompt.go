package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// FormatPrompt wraps a user prompt in the role-tagged chat template.
func FormatPrompt(prompt string) string {
	return "User: " + prompt + "\nAI:"
}

// GreetingPrompt asks the model to open a conversation about topic.
func GreetingPrompt(topic, targetLanguage string) string {
	lang := languageOrDefault(targetLanguage)
	return fmt.Sprintf(
		"You are a friendly %s tutor. Greet the learner in %s and start a short conversation about %q. "+
			"Keep it to two sentences and end with a question.",
		lang, lang, topic)
}

// FallbackGreeting is returned when the model cannot produce a greeting.
func FallbackGreeting(topic, targetLanguage string) string {
	return fmt.Sprintf("Hello! Let's practice %s together. Today's topic is %q. What would you like to say first?",
		languageOrDefault(targetLanguage), topic)
}

func languageOrDefault(lang string) string {
	if strings.TrimSpace(lang) == "" {
		return "English"
	}
	return lang
}

type generator interface {
	GenerateResponse(ctx context.Context, prompt, conversationID, targetLanguage string) *Stream
}

// greet drives g with the greeting prompt and degrades to the fallback text
// on any failure or empty output.
func greet(ctx context.Context, g generator, log zerolog.Logger, topic, targetLanguage string) string {
	text, err := g.GenerateResponse(ctx, GreetingPrompt(topic, targetLanguage), "", targetLanguage).Collect()
	text = strings.TrimSpace(text)
	if err != nil || text == "" {
		log.Warn().Err(err).Str("topic", topic).Msg("greeting generation failed; using fallback")
		return FallbackGreeting(topic, targetLanguage)
	}
	return text
}
