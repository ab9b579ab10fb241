package domain

// API key providers.
const (
	ProviderTavily = "tavily"
	ProviderOpenAI = "openai"
)

// APIKeys holds per-user provider credentials. An empty string means the key
// is absent.
type APIKeys struct {
	Tavily string `json:"tavily,omitempty"`
	OpenAI string `json:"openai,omitempty"`
}

// HasAll reports whether every required provider key is present.
func (k APIKeys) HasAll() bool {
	return k.Tavily != "" && k.OpenAI != ""
}

// Get returns the key for the named provider, or empty when unknown.
func (k APIKeys) Get(provider string) string {
	switch provider {
	case ProviderTavily:
		return k.Tavily
	case ProviderOpenAI:
		return k.OpenAI
	}
	return ""
}

// ValidProvider reports whether name is a known provider.
func ValidProvider(name string) bool {
	return name == ProviderTavily || name == ProviderOpenAI
}
