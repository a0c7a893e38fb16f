// Package runtime wires the server-side pipeline: command intake, moderation,
// persistence, and fanout to connected participants. It orchestrates the
// system without containing business logic or domain rules.
package runtime

import (
	"bufio"
	"bytes"
	"embed"
	"io/fs"
	"strings"

	"task-chat/errors"
)

// BlockedTerms carries the result of the loading process including metadata for logging.
type BlockedTerms struct {
	Terms     []string
	Languages []string
}

// BlockedTermsLoader is responsible for reading and parsing blocked terms from embedded files.
type BlockedTermsLoader struct {
	fs embed.FS
}

// NewBlockedTermsLoader creates a new instance of BlockedTermsLoader with the provided embedded filesystem.
func NewBlockedTermsLoader(f embed.FS) *BlockedTermsLoader {
	return &BlockedTermsLoader{fs: f}
}

// LoadAll scans the given directory path in the embedded FS, identifying .txt files
// as language dictionaries and parsing their contents into a unique list of terms.
func (l *BlockedTermsLoader) LoadAll(path string) (*BlockedTerms, error) {
	entries, err := fs.ReadDir(l.fs, path)
	if err != nil {
		return nil, err
	}

	var languages []string
	uniqueTerms := make(map[string]struct{})

	for _, entry := range entries {
		// We only process files, skipping subdirectories
		if entry.IsDir() {
			continue
		}

		// Track the language based on the filename (e.g., "fr.txt" -> "fr")
		lang := strings.TrimSuffix(entry.Name(), ".txt")
		languages = append(languages, lang)

		data, err := l.fs.ReadFile(path + "/" + entry.Name())
		if err != nil {
			return nil, err
		}

		// Use a scanner to handle different line endings (\n vs \r\n) correctly
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				uniqueTerms[line] = struct{}{}
			}
		}

		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}

	if len(uniqueTerms) == 0 {
		return nil, errors.ErrEmptyWords
	}

	terms := make([]string, 0, len(uniqueTerms))
	for t := range uniqueTerms {
		terms = append(terms, t)
	}

	return &BlockedTerms{
		Terms:     terms,
		Languages: languages,
	}, nil
}
