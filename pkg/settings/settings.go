// Package settings holds the configuration of the tutor host. Values come from flags,
// TIMMY_* environment variables and the config file, in that order of precedence.
package settings

import (
	"strings"
	"time"

	"github.com/go-go-golems/timmy/pkg/gateway"
	"github.com/go-go-golems/timmy/pkg/prompt"
	"github.com/go-go-golems/timmy/pkg/session"
	"github.com/go-go-golems/timmy/pkg/tutor"
	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type Settings struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model,omitempty"`
	BaseURL     string  `yaml:"base_url,omitempty"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens,omitempty"`

	OpenAIAPIKey    string `yaml:"openai_api_key,omitempty"`
	AnthropicAPIKey string `yaml:"anthropic_api_key,omitempty"`

	HistoryPolicy   string        `yaml:"history_policy"`
	RequestTimeout  time.Duration `yaml:"request_timeout,omitempty"`
	RollbackOnError bool          `yaml:"rollback_on_error,omitempty"`
	MaxSessions     int           `yaml:"max_sessions,omitempty"`
	SessionsFile    string        `yaml:"sessions_file,omitempty"`

	Address     string `yaml:"address"`
	MaxPDFBytes int64  `yaml:"max_pdf_bytes,omitempty"`
}

func (s *Settings) Clone() *Settings {
	return clone.Clone(s).(*Settings)
}

// AddFlags registers the settings flags on cmd.
func AddFlags(cmd *cobra.Command) {
	fs := cmd.PersistentFlags()
	fs.String("provider", gateway.ProviderOpenAI, "Completion provider (openai, anthropic, ollama, echo)")
	fs.String("model", "", "Model name (default depends on the provider)")
	fs.String("base-url", "", "Base URL of the completion API")
	fs.Float64("temperature", gateway.DefaultTemperature, "Sampling temperature")
	fs.Int("max-tokens", 0, "Maximum response tokens (0: provider default)")
	fs.String("openai-api-key", "", "OpenAI API key")
	fs.String("anthropic-api-key", "", "Anthropic API key")
	fs.String("history-policy", "all", "History sent to the model (all, last-N, tokens-N)")
	fs.Duration("request-timeout", 0, "Timeout of a single completion call (0: none)")
	fs.Bool("rollback-on-error", false, "Drop the user message from the history when its completion fails")
	fs.Int("max-sessions", 0, "Maximum number of live sessions, least recently used are evicted (0: unbounded)")
	fs.String("sessions-file", "", "Restore sessions from this file at startup and save them at shutdown")
	fs.Int64("max-pdf-bytes", 32<<20, "Largest accepted PDF upload")
}

// FromViper reads the settings from v.
func FromViper(v *viper.Viper) (*Settings, error) {
	s := &Settings{
		Provider:        strings.ToLower(v.GetString("provider")),
		Model:           v.GetString("model"),
		BaseURL:         v.GetString("base-url"),
		Temperature:     gateway.DefaultTemperature,
		MaxTokens:       v.GetInt("max-tokens"),
		OpenAIAPIKey:    v.GetString("openai-api-key"),
		AnthropicAPIKey: v.GetString("anthropic-api-key"),
		HistoryPolicy:   v.GetString("history-policy"),
		RequestTimeout:  v.GetDuration("request-timeout"),
		RollbackOnError: v.GetBool("rollback-on-error"),
		MaxSessions:     v.GetInt("max-sessions"),
		SessionsFile:    v.GetString("sessions-file"),
		Address:         v.GetString("address"),
		MaxPDFBytes:     v.GetInt64("max-pdf-bytes"),
	}
	if s.Provider == "" {
		s.Provider = gateway.ProviderOpenAI
	}
	if v.IsSet("temperature") {
		s.Temperature = v.GetFloat64("temperature")
	}
	if s.HistoryPolicy == "" {
		s.HistoryPolicy = "all"
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) Validate() error {
	switch s.Provider {
	case gateway.ProviderOpenAI, gateway.ProviderAnthropic, gateway.ProviderOllama, gateway.ProviderEcho:
	default:
		return errors.Errorf("unknown provider %q", s.Provider)
	}
	if s.Temperature < 0 || s.Temperature > 2 {
		return errors.Errorf("temperature %v out of range [0, 2]", s.Temperature)
	}
	if s.MaxSessions < 0 {
		return errors.Errorf("max-sessions must not be negative, got %d", s.MaxSessions)
	}
	if _, err := prompt.ParsePolicy(s.HistoryPolicy); err != nil {
		return err
	}
	return nil
}

func (s *Settings) GatewayConfig() gateway.Config {
	return gateway.Config{
		Provider:    s.Provider,
		Model:       s.Model,
		BaseURL:     s.BaseURL,
		Temperature: s.Temperature,
		MaxTokens:   s.MaxTokens,
	}
}

// Credential returns the API key of the configured provider.
func (s *Settings) Credential() string {
	switch s.Provider {
	case gateway.ProviderAnthropic:
		return s.AnthropicAPIKey
	case gateway.ProviderOpenAI:
		return s.OpenAIAPIKey
	default:
		return ""
	}
}

// ProviderName is the provider name shown to users.
func (s *Settings) ProviderName() string {
	switch s.Provider {
	case gateway.ProviderAnthropic:
		return "Anthropic"
	case gateway.ProviderOllama:
		return "Ollama"
	case gateway.ProviderEcho:
		return "Echo"
	default:
		return "OpenAI"
	}
}

// NewRegistry creates the session registry, restoring the sessions file if one is configured.
func (s *Settings) NewRegistry() (*session.Registry, error) {
	registry := session.NewRegistry(session.WithMaxSessions(s.MaxSessions))
	if s.SessionsFile == "" {
		return registry, nil
	}
	snapshot, err := session.NewFileStore(s.SessionsFile).Load()
	if err != nil {
		return nil, err
	}
	if err := registry.Restore(snapshot); err != nil {
		return nil, errors.Wrapf(err, "could not restore sessions from %s", s.SessionsFile)
	}
	return registry, nil
}

// NewTutor wires the gateway, prompt assembler and registry into a tutor service.
func (s *Settings) NewTutor(registry *session.Registry) (*tutor.Service, error) {
	config := s.GatewayConfig()
	gw, err := gateway.New(config)
	if err != nil {
		return nil, err
	}

	policy, err := prompt.ParsePolicy(s.HistoryPolicy)
	if err != nil {
		return nil, err
	}

	// copy so later changes to s do not leak into the running service
	credential := s.Credential()
	return tutor.NewService(registry, gw, tutor.StaticCredential(credential),
		tutor.WithAssembler(prompt.NewAssembler(prompt.WithHistoryPolicy(policy))),
		tutor.WithRequireCredential(config.RequiresCredential()),
		tutor.WithRollbackOnError(s.RollbackOnError),
		tutor.WithTimeout(s.RequestTimeout),
	), nil
}

// Redacted returns a copy with API keys masked, for logging.
func (s *Settings) Redacted() *Settings {
	ret := s.Clone()
	ret.OpenAIAPIKey = redact(ret.OpenAIAPIKey)
	ret.AnthropicAPIKey = redact(ret.AnthropicAPIKey)
	return ret
}

func redact(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:3] + "****" + key[len(key)-4:]
}
