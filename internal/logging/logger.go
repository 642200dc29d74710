// Package logging builds the slog loggers used by the portal and the
// account commands.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

const (
	EnvFormat = "LOG_FORMAT"
	EnvLevel  = "LOG_LEVEL"
	// EnvMaskEmails hides the local part of visitor emails. On unless set to a false value.
	EnvMaskEmails = "LOG_MASK_EMAILS"

	appName = "ecolearn"
)

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

type Config struct {
	Format     string
	Level      slog.Level
	MaskEmails bool
}

type BootstrapOptions struct {
	Command string
	Writer  io.Writer
}

func DefaultConfig() Config {
	return Config{Format: "json", Level: slog.LevelInfo, MaskEmails: true}
}

// LoadConfigFromEnv reads the LOG_* variables. Every invalid variable is
// reported, not only the first.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	var errs []error

	switch format := strings.ToLower(strings.TrimSpace(os.Getenv(EnvFormat))); format {
	case "":
	case "json", "text":
		cfg.Format = format
	default:
		errs = append(errs, fmt.Errorf("%s must be one of: json, text", EnvFormat))
	}

	if raw := strings.ToLower(strings.TrimSpace(os.Getenv(EnvLevel))); raw != "" {
		level, ok := levels[raw]
		if !ok {
			errs = append(errs, fmt.Errorf("%s must be one of: debug, info, warn, error", EnvLevel))
		}
		cfg.Level = level
	}

	if raw := strings.TrimSpace(os.Getenv(EnvMaskEmails)); raw != "" {
		mask, err := strconv.ParseBool(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s must be a boolean", EnvMaskEmails))
		}
		cfg.MaskEmails = mask || err != nil
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// New returns a logger tagged with the app name and the invoking command.
// Credentials never reach the output; emails are masked when cfg asks for it.
func New(cfg Config, writer io.Writer, command string) *slog.Logger {
	if writer == nil {
		writer = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: cfg.Level, ReplaceAttr: scrubber(cfg.MaskEmails)}

	var handler slog.Handler = slog.NewJSONHandler(writer, opts)
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(writer, opts)
	}

	command = strings.TrimSpace(command)
	if command == "" {
		command = appName
	}
	return slog.New(handler).With("app", appName, "command", command)
}

// Interactive returns the logger of account commands: text on w, warnings
// and above unless LOG_LEVEL asks for less.
func Interactive(w io.Writer, command string) *slog.Logger {
	cfg, err := LoadConfigFromEnv()
	if err != nil {
		cfg = DefaultConfig()
	}
	cfg.Format = "text"
	cfg.Level = max(cfg.Level, slog.LevelWarn)
	return New(cfg, w, command)
}

// ForVisitor scopes logger to one portal visitor. Only a prefix of the
// visitor id is logged.
func ForVisitor(logger *slog.Logger, visitorID string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if len(visitorID) > 8 {
		visitorID = visitorID[:8]
	}
	return logger.With("visitor", visitorID)
}

// BootstrapFromEnv installs the env-configured logger as the slog default.
func BootstrapFromEnv(opts BootstrapOptions) (*slog.Logger, error) {
	cfg, err := LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	logger := New(cfg, opts.Writer, opts.Command)
	slog.SetDefault(logger)
	return logger, nil
}

var credentialKeys = map[string]bool{
	"password":      true,
	"credential":    true,
	"token":         true,
	"authorization": true,
}

func scrubber(maskEmails bool) func([]string, slog.Attr) slog.Attr {
	return func(_ []string, a slog.Attr) slog.Attr {
		key := strings.ToLower(a.Key)
		switch {
		case credentialKeys[key]:
			return slog.String(a.Key, "[redacted]")
		case maskEmails && key == "email":
			return slog.String(a.Key, maskEmail(a.Value.String()))
		}
		return a
	}
}

// maskEmail keeps the first letter of the local part and the domain.
func maskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
