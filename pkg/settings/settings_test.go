package settings

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-go-golems/timmy/pkg/gateway"
	"github.com/go-go-golems/timmy/pkg/session"
	"github.com/go-go-golems/timmy/pkg/tutor"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T, args ...string) *viper.Viper {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	AddFlags(cmd)
	require.NoError(t, cmd.PersistentFlags().Parse(args))

	v := viper.New()
	require.NoError(t, v.BindPFlags(cmd.PersistentFlags()))
	return v
}

func TestDefaults(t *testing.T) {
	s, err := FromViper(newViper(t))
	require.NoError(t, err)

	assert.Equal(t, gateway.ProviderOpenAI, s.Provider)
	assert.InDelta(t, 0.3, s.Temperature, 0.0001)
	assert.Equal(t, "all", s.HistoryPolicy)
	assert.Equal(t, 0, s.MaxSessions)
	assert.Equal(t, "OpenAI", s.ProviderName())
	assert.True(t, s.GatewayConfig().RequiresCredential())
}

func TestFlags(t *testing.T) {
	s, err := FromViper(newViper(t,
		"--provider", "Anthropic",
		"--anthropic-api-key", "sk-ant-123456789",
		"--openai-api-key", "sk-openai",
		"--temperature", "0.7",
		"--history-policy", "last-6",
		"--request-timeout", "30s",
		"--max-sessions", "10",
	))
	require.NoError(t, err)

	assert.Equal(t, gateway.ProviderAnthropic, s.Provider)
	assert.Equal(t, "sk-ant-123456789", s.Credential())
	assert.InDelta(t, 0.7, s.Temperature, 0.0001)
	assert.Equal(t, 30*time.Second, s.RequestTimeout)
	assert.Equal(t, 10, s.MaxSessions)
	assert.Equal(t, "Anthropic", s.ProviderName())
}

func TestEnvironment(t *testing.T) {
	t.Setenv("TIMMY_OPENAI_API_KEY", "sk-from-env")

	v := newViper(t)
	v.SetEnvPrefix("timmy")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	s, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", s.Credential())
}

func TestValidate(t *testing.T) {
	_, err := FromViper(newViper(t, "--provider", "telepathy"))
	assert.Error(t, err)

	_, err = FromViper(newViper(t, "--temperature", "3"))
	assert.Error(t, err)

	_, err = FromViper(newViper(t, "--history-policy", "some"))
	assert.Error(t, err)

	_, err = FromViper(newViper(t, "--max-sessions", "-1"))
	assert.Error(t, err)
}

func TestCloneAndRedacted(t *testing.T) {
	s := &Settings{Provider: "openai", OpenAIAPIKey: "sk-1234567890abcd", AnthropicAPIKey: "short"}
	c := s.Clone()
	c.Model = "changed"
	assert.Empty(t, s.Model)

	r := s.Redacted()
	assert.Equal(t, "sk-****abcd", r.OpenAIAPIKey)
	assert.Equal(t, "****", r.AnthropicAPIKey)
	assert.Equal(t, "sk-1234567890abcd", s.OpenAIAPIKey)
}

func TestNewTutorWithEchoProvider(t *testing.T) {
	s, err := FromViper(newViper(t, "--provider", "echo"))
	require.NoError(t, err)

	svc, err := s.NewTutor(session.NewRegistry())
	require.NoError(t, err)

	id, msg, err := svc.Start(context.Background(), "teach me go", "")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Contains(t, msg, "step 1")
}

func TestNewTutorMissingCredential(t *testing.T) {
	s, err := FromViper(newViper(t))
	require.NoError(t, err)

	svc, err := s.NewTutor(session.NewRegistry())
	require.NoError(t, err)

	_, _, err = svc.Start(context.Background(), "teach me go", "")
	assert.True(t, errors.Is(err, tutor.ErrConfiguration))
}

func TestNewRegistryRestoresSessions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.yaml")

	s, err := FromViper(newViper(t, "--provider", "echo", "--sessions-file", path))
	require.NoError(t, err)

	registry, err := s.NewRegistry()
	require.NoError(t, err)
	assert.Equal(t, 0, registry.Len())

	svc, err := s.NewTutor(registry)
	require.NoError(t, err)
	id, _, err := svc.Start(context.Background(), "teach me go", "")
	require.NoError(t, err)
	require.NoError(t, session.NewFileStore(path).Save(registry.Snapshot()))

	restored, err := s.NewRegistry()
	require.NoError(t, err)
	sess, err := restored.Get(id)
	require.NoError(t, err)
	assert.Equal(t, 1, sess.Len())
}

func TestInitViperReadsConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: echo\nhistory-policy: tokens-2000\n"), 0o644))

	v := newViper(t)
	require.NoError(t, InitViper(v, path))

	s, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, gateway.ProviderEcho, s.Provider)
	assert.Equal(t, "tokens-2000", s.HistoryPolicy)
}

func TestInitViperMissingExplicitFile(t *testing.T) {
	v := newViper(t)
	assert.Error(t, InitViper(v, filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("TIMMY_TEST_DOTENV=from-file\n"), 0o644))
	t.Setenv("TIMMY_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("TIMMY_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("TIMMY_TEST_DOTENV"))
}
