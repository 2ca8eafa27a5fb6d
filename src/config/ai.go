package config

import "time"

// AI describes the oracle providers. Primary and Secondary name entries in
// the ai/core provider registry.
type AI struct {
	Primary   string        `yaml:"primary"`
	Secondary string        `yaml:"secondary"`
	Model     string        `yaml:"model"`
	GeminiKey string        `yaml:"gemini_api_key"`
	GrokKey   string        `yaml:"grok_api_key"`
	Timeout   time.Duration `yaml:"timeout"`
}

// LoadAIFromEnv provides a simple env-only loader for tools that do not read
// the config file.
func LoadAIFromEnv() AI {
	ai := AI{}
	applyAIEnv(&ai)
	applyAIDefaults(&ai)
	return ai
}

func applyAIEnv(ai *AI) {
	envOverride(&ai.Primary, "AI_PRIMARY")
	envOverride(&ai.Secondary, "AI_SECONDARY")
	envOverride(&ai.Model, "AI_MODEL")
	envOverride(&ai.GeminiKey, "GEMINI_API_KEY")
	envOverride(&ai.GrokKey, "GROK_API_KEY")
	envOverrideDuration(&ai.Timeout, "AI_TIMEOUT")
}

func applyAIDefaults(ai *AI) {
	if ai.Primary == "" {
		ai.Primary = "gemini25"
	}
	if ai.Secondary == "" {
		ai.Secondary = "grok4"
	}
	if ai.Timeout <= 0 {
		ai.Timeout = 15 * time.Second
	}
	if IsPlaceholder(ai.GeminiKey) {
		ai.GeminiKey = ""
	}
	if IsPlaceholder(ai.GrokKey) {
		ai.GrokKey = ""
	}
}
