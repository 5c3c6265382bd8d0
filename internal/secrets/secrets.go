// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads bot credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key
// name and the file contents (trimmed) are the value.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Key names recognised by the config loader.
const (
	TelegramBotToken = "telegram-bot-token"
	OpenAIAPIKey     = "openai-api-key"
	AnthropicAPIKey  = "anthropic-api-key"
	AllowedUsers     = "allowed-users"
)

// Secrets maps key names to values.
type Secrets map[string]string

// Get returns the value stored under key, or "".
func (s Secrets) Get(key string) string {
	return s[key]
}

// Keys returns the loaded key names without their values.
func (s Secrets) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	return keys
}

// Load reads all files in dir and returns their trimmed contents by filename.
// A missing directory is not an error; Load returns an empty set. Unreadable
// files are reported through warn (when non-nil) and skipped.
func Load(dir string, warn func(name string, err error)) (Secrets, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Secrets{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(Secrets)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			if warn != nil {
				warn(name, err)
			}
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}
