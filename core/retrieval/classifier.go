package retrieval

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/kukmin84ai/bibliotheca/helper"
	"github.com/kukmin84ai/bibliotheca/model"
	"gopkg.in/yaml.v3"
)

//go:embed keywords.yaml
var defaultKeywords []byte

// KeywordConfig holds the classification vocabulary.
type KeywordConfig struct {
	LongQueryTokens int      `yaml:"long_query_tokens"`
	Comparison      []string `yaml:"comparison"`
	Concept         []string `yaml:"concept"`
	Factual         []string `yaml:"factual"`
}

// Classifier assigns a query type using keyword heuristics.
type Classifier struct {
	config KeywordConfig
}

// DefaultClassifier uses the built-in keyword lists.
func DefaultClassifier() *Classifier {
	classifier, err := NewClassifierFromYAML(defaultKeywords)
	if err != nil {
		panic(fmt.Sprintf("invalid built-in classifier keywords: %v", err))
	}
	return classifier
}

// NewClassifier loads the keyword lists from a YAML file. An empty path
// uses the built-in lists.
func NewClassifier(path string) (*Classifier, error) {
	if path == "" {
		return DefaultClassifier(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, helper.NewError("read classifier keywords", err)
	}
	return NewClassifierFromYAML(data)
}

// NewClassifierFromYAML parses a keyword document. Missing categories stay
// empty, a missing threshold defaults to 8.
func NewClassifierFromYAML(data []byte) (*Classifier, error) {
	var config KeywordConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, helper.NewError("parse classifier keywords", err)
	}
	if config.LongQueryTokens <= 0 {
		config.LongQueryTokens = 8
	}

	lower := func(words []string) []string {
		out := make([]string, 0, len(words))
		for _, w := range words {
			if w = strings.ToLower(w); w != "" {
				out = append(out, w)
			}
		}
		return out
	}
	config.Comparison = lower(config.Comparison)
	config.Concept = lower(config.Concept)
	config.Factual = lower(config.Factual)

	return &Classifier{config: config}, nil
}

// Config returns the keyword configuration in use.
func (c *Classifier) Config() KeywordConfig {
	return c.config
}

// Classify returns the query type of query.
func (c *Classifier) Classify(query string) model.QueryType {
	lower := strings.ToLower(query)

	if containsAny(lower, c.config.Comparison) {
		return model.QueryTypeCrossBookComparison
	}
	if containsAny(lower, c.config.Concept) {
		return model.QueryTypeConceptExplanation
	}
	if containsAny(lower, c.config.Factual) {
		return model.QueryTypeFactLookup
	}

	if len(strings.Fields(query)) > c.config.LongQueryTokens {
		return model.QueryTypeConceptExplanation
	}
	return model.QueryTypeFactLookup
}

func containsAny(s string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(s, keyword) {
			return true
		}
	}
	return false
}
