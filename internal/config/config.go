package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds all configuration for the application
type Config struct {
	// File paths
	DBPath       string
	KeywordsPath string

	// Server settings
	ServerHost string
	ServerPort int
	APIKey     string

	// Pipeline settings
	WebhookURL string
	Keywords   []string
	Interval   time.Duration

	// Log settings
	LogLevel zerolog.Level
}

// DefaultConfig returns an initial configuration with hardcoded defaults.
func DefaultConfig() *Config {
	logLevel, _ := zerolog.ParseLevel(DefaultLogLevel)

	return &Config{
		DBPath:       DefaultDBPath,
		KeywordsPath: DefaultKeywordsPath,
		ServerHost:   DefaultServerHost,
		ServerPort:   DefaultServerPort,
		APIKey:       GetEnvString("SCANNER_API_KEY", ""),
		WebhookURL:   GetEnvString("SCANNER_WEBHOOK_URL", ""),
		Keywords:     nil,
		Interval:     time.Duration(DefaultInterval) * time.Minute,
		LogLevel:     logLevel,
	}
}

// ListenAddr returns the formatted listen address for the HTTP server.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// ResolveKeywords fills c.Keywords, trying sources in order: an explicit
// comma-separated value (flag or env), the keywords file, and finally the
// built-in default list. The configured order is preserved: keywords are
// searched one at a time in exactly this order.
func (c *Config) ResolveKeywords(commaSeparated string) error {
	if commaSeparated != "" {
		c.Keywords = splitKeywords(commaSeparated)
		return nil
	}

	if _, err := os.Stat(c.KeywordsPath); err == nil {
		keywords, err := loadKeywordsFile(c.KeywordsPath)
		if err != nil {
			return fmt.Errorf("failed to load keywords file: %w", err)
		}
		c.Keywords = keywords
		return nil
	}

	c.Keywords = append([]string(nil), DefaultKeywords...)
	return nil
}

// loadKeywordsFile reads one keyword per line, skipping blanks and lines
// starting with '#'.
func loadKeywordsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var keywords []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		keywords = append(keywords, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(keywords) == 0 {
		return nil, fmt.Errorf("keywords file %s contains no keywords", path)
	}
	return keywords, nil
}

func splitKeywords(s string) []string {
	var keywords []string
	for _, part := range strings.Split(s, ",") {
		if kw := strings.TrimSpace(part); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return keywords
}
