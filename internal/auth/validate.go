package auth

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// ValidateKey sanity-checks the shape of an API key before any network call
// spends it. An empty key is an error; an unfamiliar shape only warns.
func ValidateKey(provider, key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%s API key is empty", provider)
	}

	switch provider {
	case "gemini":
		if !strings.HasPrefix(key, "AIza") {
			log.Warn().Str("provider", provider).Msg("API key does not look like a Google API key")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			log.Warn().Str("provider", provider).Msg("API key does not look like an OpenAI key")
		}
	}
	return nil
}
