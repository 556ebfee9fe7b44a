package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrConfigFailed обозначает любую проблему с чтением или разбором config.yaml.
var ErrConfigFailed = errors.New("config: failed to load")

const (
	// DefaultAPIBaseURL указывает на локальный сервер разработки.
	DefaultAPIBaseURL = "http://localhost:8000/api"

	// EnvAPIBaseURL переопределяет адрес API поверх config.yaml.
	EnvAPIBaseURL = "TODODESK_API_URL"
)

// Config описывает пользовательские настройки приложения и вычисляемые пути.
type Config struct {
	APIBaseURL string `yaml:"api_base_url"`
	LogLevel   string `yaml:"log_level"`
	LogFile    string `yaml:"log_file"`
	StateFile  string `yaml:"state_file"`

	AppDir string `yaml:"-"`
}

// Error содержит дополнительный контекст при неудачной загрузке конфигурации.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ErrConfigFailed.Error()
	}
	return fmt.Sprintf("%v: %s: %v", ErrConfigFailed, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// DetectAppDir возвращает каталог, в котором находится исполняемый файл.
func DetectAppDir() (string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("detect executable: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(exePath)
	if err == nil {
		exePath = resolved
	}
	return filepath.Dir(exePath), nil
}

// DefaultPath возвращает путь к config.yaml относительно каталога приложения.
func DefaultPath(appDir string) string {
	return filepath.Join(appDir, "config.yaml")
}

// Load читает и валидирует YAML конфигурации, применяя appDir ко всем
// относительным путям. Отсутствующий файл — не ошибка: используются
// значения по умолчанию, чтобы клиент запускался без какой-либо настройки.
func Load(path string, appDir string) (*Config, error) {
	if path == "" {
		return nil, &Error{Path: path, Err: errors.New("config path is empty")}
	}
	if appDir == "" {
		return nil, &Error{Path: path, Err: errors.New("app directory is empty")}
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// конфигурации нет, остаются значения по умолчанию
	case err != nil:
		return nil, &Error{Path: path, Err: err}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, &Error{Path: path, Err: err}
		}
	}

	cfg.AppDir = appDir
	cfg.applyDefaults()
	cfg.applyEnv()
	cfg.applyAppDir()
	if err := cfg.validate(); err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	if err := cfg.ensureDirectories(); err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		c.APIBaseURL = DefaultAPIBaseURL
	}
	c.LogLevel = normalizeLogLevel(c.LogLevel)
	if strings.TrimSpace(c.LogFile) == "" {
		c.LogFile = filepath.Join("logs", "client.log")
	}
	if strings.TrimSpace(c.StateFile) == "" {
		c.StateFile = "session.json"
	}
}

func (c *Config) applyEnv() {
	if value := strings.TrimSpace(os.Getenv(EnvAPIBaseURL)); value != "" {
		c.APIBaseURL = value
	}
}

func (c *Config) applyAppDir() {
	if c.AppDir == "" {
		return
	}
	c.AppDir = filepath.Clean(c.AppDir)
	c.LogFile = makeAbsolute(c.LogFile, c.AppDir)
	c.StateFile = makeAbsolute(c.StateFile, c.AppDir)
}

func (c *Config) validate() error {
	switch {
	case c.APIBaseURL == "":
		return errors.New("api_base_url is required")
	case c.LogFile == "":
		return errors.New("log_file is required")
	case c.StateFile == "":
		return errors.New("state_file is required")
	case c.AppDir == "":
		return errors.New("app directory is unknown")
	}
	if _, ok := allowedLevels[c.LogLevel]; !ok {
		return fmt.Errorf("unsupported log_level %q", c.LogLevel)
	}
	return nil
}

func (c *Config) ensureDirectories() error {
	paths := []string{filepath.Dir(c.LogFile), filepath.Dir(c.StateFile)}
	for _, dir := range paths {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func makeAbsolute(path string, base string) string {
	if path == "" {
		return ""
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	if base == "" {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}

func normalizeLogLevel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "info"
	}
	return value
}

var allowedLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"error": {},
}
