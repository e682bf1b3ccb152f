package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvPathEnvVar    = "REGION_SELECT_ENV"
	OutputModeEnvVar = "OUTPUT_MODE"
	OutputClipboard  = "clipboard"
	OutputStdout     = "stdout"
	WindowingNative  = "native"
	WindowingHook    = "hook"

	DefaultHotkey        = "Ctrl+Alt+R"
	DefaultMoveModifier  = "space"
	DefaultDisplayPoll   = time.Second
	DefaultMagnifierSize = 120
)

type LoadOptions struct {
	OutputModeOverride string
	HotkeyOverride     string
}

type Config struct {
	EnableFileLogging   bool
	Hotkey              string
	OutputMode          string
	MoveModifier        string
	CaptureBackground   bool
	DisplayPollInterval time.Duration
	MagnifierSize       int
	Windowing           string
	NotifyOnCopy        bool
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Load configuration from sources in priority order:
	// 1) .env in the application (executable) directory
	// 2) If not found, use REGION_SELECT_ENV as a path to a config file
	envPath := resolveEnvPath()
	dotenvValues := readDotenvValues(envPath)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}

	hotkey := getEnvWithDefault("HOTKEY", DefaultHotkey)
	if override := strings.TrimSpace(opts.HotkeyOverride); override != "" {
		hotkey = override
	}

	cfg := &Config{
		EnableFileLogging:   strings.ToLower(os.Getenv("ENABLE_FILE_LOGGING")) == "true",
		Hotkey:              hotkey,
		OutputMode:          resolveOutputModeValue(opts, dotenvValues),
		MoveModifier:        strings.ToLower(getEnvWithDefault("MOVE_MODIFIER", DefaultMoveModifier)),
		CaptureBackground:   getBool("CAPTURE_BACKGROUND", true),
		DisplayPollInterval: time.Duration(getPositiveInt("DISPLAY_POLL_MS", int(DefaultDisplayPoll/time.Millisecond))) * time.Millisecond,
		MagnifierSize:       getPositiveInt("MAGNIFIER_SIZE", DefaultMagnifierSize),
		Windowing:           resolveWindowing(os.Getenv("WINDOWING")),
		NotifyOnCopy:        getBool("NOTIFY_ON_COPY", true),
	}

	return cfg, nil
}

func resolveEnvPath() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}

	execDir := filepath.Dir(execPath)
	exeEnv := filepath.Join(execDir, ".env")
	if _, err := os.Stat(exeEnv); err == nil {
		return exeEnv
	}

	if alt := os.Getenv(EnvPathEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func readDotenvValues(envPath string) map[string]string {
	if envPath == "" {
		return map[string]string{}
	}

	values, err := godotenv.Read(envPath)
	if err != nil {
		return map[string]string{}
	}

	return values
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return b
}

func getPositiveInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

func resolveOutputMode(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case OutputStdout:
		return OutputStdout
	default:
		return OutputClipboard
	}
}

// resolveOutputModeValue prefers the override, then the .env file, then the
// process environment.
func resolveOutputModeValue(opts LoadOptions, dotenvValues map[string]string) string {
	if override := strings.TrimSpace(opts.OutputModeOverride); override != "" {
		return resolveOutputMode(override)
	}
	if v := strings.TrimSpace(dotenvValues[OutputModeEnvVar]); v != "" {
		return resolveOutputMode(v)
	}
	return resolveOutputMode(os.Getenv(OutputModeEnvVar))
}

func resolveWindowing(value string) string {
	if strings.ToLower(strings.TrimSpace(value)) == WindowingHook {
		return WindowingHook
	}
	return WindowingNative
}
