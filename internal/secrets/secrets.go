// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Key files read from the secrets directory.
const (
	ZoteroAPIKey   = "zotero-api-key"
	ZoteroUserID   = "zotero-user-id"
	OpenAlexAPIKey = "openalex-api-key"
	OpenAlexEmail  = "openalex-email"
	DatalabAPIKey  = "datalab-api-key"
)

// DefaultDir is the secrets directory relative to the working directory.
const DefaultDir = ".secrets"

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files produce a warning on stderr but do not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
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
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Fill sets each empty *dst to the secret named by its key. Values already
// set by configuration win.
func Fill(secrets map[string]string, targets map[string]*string) {
	for key, dst := range targets {
		if dst == nil || *dst != "" {
			continue
		}
		if v, ok := secrets[key]; ok {
			*dst = v
		}
	}
}
