/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package impostor

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// DefaultWords is the vocabulary used when no word list is configured.
var DefaultWords = []string{"lion", "tiger", "elephant", "giraffe", "zebra"}

type wordList struct {
	Words []string `yaml:"words"`
}

// LoadWords reads a YAML vocabulary of the form
//
//	words:
//	  - lion
//	  - tiger
func LoadWords(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading word list: %w", err)
	}

	var list wordList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parsing word list %s: %w", path, err)
	}

	words := make([]string, 0, len(list.Words))
	for _, w := range list.Words {
		words = append(words, strings.TrimSpace(w))
	}

	if err := ValidateWords(words); err != nil {
		return nil, fmt.Errorf("word list %s: %w", path, err)
	}

	return words, nil
}

// ValidateWords reports every problem with a vocabulary at once.
func ValidateWords(words []string) error {
	if len(words) == 0 {
		return errors.New("vocabulary is empty")
	}

	var err error
	seen := make(map[string]bool, len(words))
	for i, w := range words {
		switch {
		case w == "":
			err = multierr.Append(err, fmt.Errorf("entry %d is blank", i))
		case w == ImpostorRole:
			err = multierr.Append(err, fmt.Errorf("entry %d collides with the impostor role %q", i, ImpostorRole))
		case seen[w]:
			err = multierr.Append(err, fmt.Errorf("entry %d duplicates %q", i, w))
		}
		seen[w] = true
	}

	return err
}
