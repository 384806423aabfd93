package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "licitaflow.db", cfg.Store.DatabaseURL)
	assert.Equal(t, 720, cfg.Store.CacheTTLHours)
	assert.Equal(t, "anthropic", cfg.LLM.Backend)
	assert.Equal(t, 1024, cfg.LLM.MaxTokens)
	assert.InDelta(t, 0.1, cfg.LLM.Temperature, 0.001)
	assert.Equal(t, 3, cfg.LLM.Retry.MaxAttempts)
	assert.InDelta(t, 0.6, cfg.LLM.Breaker.FailureRatio, 0.001)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.ClassifyModel)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.ExtractModel)
	assert.Equal(t, 100, cfg.Anthropic.MaxBatchSize)
	assert.Equal(t, 3, cfg.Anthropic.SmallBatchThreshold)
	assert.Equal(t, "http://localhost:11434", cfg.Ollama.BaseURL)
	assert.Equal(t, "auto", cfg.PDFText.Provider)
	assert.Equal(t, "pdftotext", cfg.PDFText.PdfToTextPath)
	assert.Equal(t, 50, cfg.Security.MaxFileSizeMB)
	assert.Equal(t, 15000, cfg.Extract.MaxTextChars)
	assert.Equal(t, 2000, cfg.Classify.ContentChars)
	assert.Equal(t, 4, cfg.Classify.Workers)
	assert.Equal(t, 50, cfg.Classify.MaxBatchFiles)
	assert.InDelta(t, 0.5, cfg.Match.Threshold, 0.001)
	assert.InDelta(t, 0.7, cfg.Match.WarnConfidence, 0.001)
	assert.Equal(t, 30, cfg.Match.ExpiryWarningDays)
	assert.Equal(t, 90, cfg.Match.MaxIssuanceDays)
	assert.Equal(t, 3, cfg.Corpus.TopK)
	assert.Equal(t, "output", cfg.Output.Dir)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/licitaflow
llm:
  backend: ollama
log:
  level: debug
  format: console
server:
  port: 9090
match:
  threshold: 0.6
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/licitaflow", cfg.Store.DatabaseURL)
	assert.Equal(t, "ollama", cfg.LLM.Backend)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.InDelta(t, 0.6, cfg.Match.Threshold, 0.001)
	// Defaults still apply for unset values
	assert.Equal(t, 2000, cfg.Classify.ContentChars)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
llm:
  backend: anthropic
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("LICITA_LLM_BACKEND", "none")
	t.Setenv("LICITA_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "none", cfg.LLM.Backend)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("LICITA_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	return &Config{
		Store:    StoreConfig{Driver: "sqlite", DatabaseURL: "licitaflow.db"},
		LLM:      LLMConfig{Backend: "none", Temperature: 0.1},
		Classify: ClassifyConfig{Workers: 4},
		Match:    MatchConfig{Threshold: 0.5, WarnConfidence: 0.7},
		Server:   ServerConfig{Port: 8080},
	}
}

func TestValidate_AllPresent(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("analyze"))
}

func TestValidate_AnthropicRequiresKey(t *testing.T) {
	cfg := validDefaults()
	cfg.LLM.Backend = "anthropic"

	err := cfg.Validate("analyze")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key is required")

	cfg.Anthropic.Key = "sk-ant-key"
	assert.NoError(t, cfg.Validate("analyze"))
}

func TestValidate_UnknownBackend(t *testing.T) {
	cfg := validDefaults()
	cfg.LLM.Backend = "gpt"

	err := cfg.Validate("analyze")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm.backend must be one of")
}

func TestValidate_ServePort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")

	cfg.Server.Port = 9090
	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidate_PostgresRequiresURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("analyze")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidate_ThresholdBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Match.Threshold = -0.1
	err := cfg.Validate("analyze")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "match.threshold")

	cfg.Match.Threshold = 1.1
	err = cfg.Validate("analyze")
	require.Error(t, err)

	cfg.Match.Threshold = 0.5
	cfg.Match.WarnConfidence = 2.0
	err = cfg.Validate("analyze")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "match.warn_confidence")
}

func TestValidate_WorkerBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Classify.Workers = 0
	err := cfg.Validate("analyze")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "classify.workers must be between 1 and 32")

	cfg.Classify.Workers = 33
	err = cfg.Validate("analyze")
	require.Error(t, err)

	cfg.Classify.Workers = 32
	assert.NoError(t, cfg.Validate("analyze"))
}

func TestValidate_UnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidate_AccumulatesProblems(t *testing.T) {
	cfg := validDefaults()
	cfg.LLM.Backend = "anthropic"
	cfg.Match.Threshold = 5
	cfg.Classify.Workers = 0

	err := cfg.Validate("analyze")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key")
	assert.Contains(t, err.Error(), "match.threshold")
	assert.Contains(t, err.Error(), "classify.workers")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
