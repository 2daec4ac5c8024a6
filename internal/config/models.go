package config

// Providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// ModelInfo describes one entry in the model catalog.
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Provider    string `json:"provider"`
	Description string `json:"description"`
}

// AvailableModels is the catalog of models a session may select.
var AvailableModels = []ModelInfo{
	{
		ID:          "claude-sonnet-4-5-20250929",
		Name:        "Claude Sonnet 4.5",
		Provider:    ProviderAnthropic,
		Description: "Balanced performance and speed",
	},
	{
		ID:          "claude-opus-4-5-20251101",
		Name:        "Claude Opus 4.5",
		Provider:    ProviderAnthropic,
		Description: "Most capable model for complex reasoning",
	},
	{
		ID:          "gpt-5.2-2025-12-11",
		Name:        "GPT-5.2",
		Provider:    ProviderOpenAI,
		Description: "OpenAI's most capable model",
	},
	{
		ID:          "gpt-5-mini",
		Name:        "GPT-5 Mini",
		Provider:    ProviderOpenAI,
		Description: "Fast and efficient OpenAI model",
	},
	{
		ID:          "gpt-5-nano-2025-08-07",
		Name:        "GPT-5 Nano",
		Provider:    ProviderOpenAI,
		Description: "Ultra-fast model, ideal for sub-calls",
	},
}

// IsValidModel reports whether the model id is in the catalog.
func IsValidModel(modelID string) bool {
	for _, m := range AvailableModels {
		if m.ID == modelID {
			return true
		}
	}
	return false
}

// ModelProvider returns the provider for a model id. Unknown models
// default to Anthropic.
func ModelProvider(modelID string) string {
	for _, m := range AvailableModels {
		if m.ID == modelID {
			return m.Provider
		}
	}
	return ProviderAnthropic
}
