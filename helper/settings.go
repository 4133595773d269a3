package helper

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const settingsEnvPrefix = "BIBLIO_"

// Knowledge graph backends.
const (
	GraphBackendFile     = "file"
	GraphBackendDatabase = "database"
)

// Log outputs.
const (
	LogOutputStdout = "stdout"
	LogOutputStderr = "stderr"
)

// Settings holds the application settings. Values are resolved from
// defaults, then an optional YAML file, then BIBLIO_* environment variables.
type Settings struct {
	// Chunking
	ChunkSizeSearch   int     `yaml:"chunk_size_search"`
	ChunkSizeParent   int     `yaml:"chunk_size_parent"`
	ChunkOverlap      int     `yaml:"chunk_overlap"`
	SemanticThreshold float64 `yaml:"semantic_threshold"`

	// Embedding
	EmbeddingModel     string `yaml:"embedding_model"`
	EmbeddingDimension int    `yaml:"embedding_dimension"`
	EmbeddingBatchSize int    `yaml:"embedding_batch_size"`
	ModelDir           string `yaml:"model_dir"`

	// Storage
	DataDir       string `yaml:"data_dir"`
	GraphStoreDir string `yaml:"graph_store_dir"`
	GraphSubject  string `yaml:"graph_subject"`
	GraphBackend  string `yaml:"graph_backend"`
	BackupDir     string `yaml:"backup_dir"`
	S3Bucket      string `yaml:"s3_bucket"`
	S3Region      string `yaml:"s3_region"`
	S3AccessKey   string `yaml:"s3_access_key"`
	S3SecretKey   string `yaml:"s3_secret_key"`

	// Retrieval
	ClassifierKeywordsFile string `yaml:"classifier_keywords_file"`
	DefaultTopK            int    `yaml:"default_top_k"`

	// Ingestion
	IngestWorkers int `yaml:"ingest_workers"`
	MaxTriplets   int `yaml:"max_triplets"`

	// LLM used for triplet extraction
	GeminiAPIKey string `yaml:"gemini_api_key"`
	GeminiModel  string `yaml:"gemini_model"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogOutput string `yaml:"log_output"`
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() *Settings {
	return &Settings{
		ChunkSizeSearch:    300,
		ChunkSizeParent:    900,
		ChunkOverlap:       50,
		SemanticThreshold:  0.75,
		EmbeddingModel:     "sentence-transformers/all-MiniLM-L6-v2",
		EmbeddingDimension: 384,
		EmbeddingBatchSize: 32,
		ModelDir:           "./models",
		DataDir:            "data",
		GraphStoreDir:      "./graph_store",
		GraphSubject:       "default",
		GraphBackend:       GraphBackendFile,
		BackupDir:          "./backups",
		S3Region:           "us-east-1",
		DefaultTopK:        10,
		IngestWorkers:      4,
		MaxTriplets:        12,
		GeminiModel:        "gemini-1.5-flash",
		LogLevel:           "info",
		LogOutput:          LogOutputStdout,
	}
}

// LoadSettings resolves the settings. path may be empty.
func LoadSettings(path string) (*Settings, error) {
	settings := DefaultSettings()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, NewError("read settings file", err)
		}
		if err := yaml.Unmarshal(data, settings); err != nil {
			return nil, NewError("parse settings file", err)
		}
	}

	_ = godotenv.Load()

	if err := settings.applyEnv(); err != nil {
		return nil, NewError("settings environment", err)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	return settings, nil
}

// Validate checks value ranges.
func (s *Settings) Validate() error {
	if s.ChunkSizeSearch <= 0 || s.ChunkSizeParent <= 0 {
		return NewError("validate settings", fmt.Errorf("chunk sizes must be positive"))
	}
	if s.ChunkOverlap < 0 || s.ChunkOverlap >= s.ChunkSizeSearch {
		return NewError("validate settings", fmt.Errorf("chunk overlap must be in [0, %d)", s.ChunkSizeSearch))
	}
	if s.SemanticThreshold < -1 || s.SemanticThreshold > 1 {
		return NewError("validate settings", fmt.Errorf("semantic threshold must be in [-1, 1]"))
	}
	if s.EmbeddingDimension <= 0 {
		return NewError("validate settings", fmt.Errorf("embedding dimension must be positive"))
	}
	if s.IngestWorkers <= 0 {
		s.IngestWorkers = 1
	}
	if s.GraphSubject == "" {
		s.GraphSubject = "default"
	}
	switch s.GraphBackend {
	case "":
		s.GraphBackend = GraphBackendFile
	case GraphBackendFile, GraphBackendDatabase:
	default:
		return NewError("validate settings", fmt.Errorf("unknown graph backend %q", s.GraphBackend))
	}
	switch s.LogOutput {
	case "":
		s.LogOutput = LogOutputStdout
	case LogOutputStdout, LogOutputStderr:
	default:
		return NewError("validate settings", fmt.Errorf("unknown log output %q", s.LogOutput))
	}
	return nil
}

// Logger returns the logger for the configured level and output.
func (s *Settings) Logger() *slog.Logger {
	if s.LogOutput == LogOutputStderr {
		return NewLoggerTo(os.Stderr, s.LogLevel)
	}
	return NewLogger(s.LogLevel)
}

func (s *Settings) applyEnv() error {
	ints := map[string]*int{
		"CHUNK_SIZE_SEARCH":    &s.ChunkSizeSearch,
		"CHUNK_SIZE_PARENT":    &s.ChunkSizeParent,
		"CHUNK_OVERLAP":        &s.ChunkOverlap,
		"EMBEDDING_DIMENSION":  &s.EmbeddingDimension,
		"EMBEDDING_BATCH_SIZE": &s.EmbeddingBatchSize,
		"DEFAULT_TOP_K":        &s.DefaultTopK,
		"INGEST_WORKERS":       &s.IngestWorkers,
		"MAX_TRIPLETS":         &s.MaxTriplets,
	}
	for key, target := range ints {
		value, ok := lookupEnv(key)
		if !ok {
			continue
		}
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s%s: %w", settingsEnvPrefix, key, err)
		}
		*target = parsed
	}

	if value, ok := lookupEnv("SEMANTIC_THRESHOLD"); ok {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%sSEMANTIC_THRESHOLD: %w", settingsEnvPrefix, err)
		}
		s.SemanticThreshold = parsed
	}

	strs := map[string]*string{
		"EMBEDDING_MODEL":          &s.EmbeddingModel,
		"MODEL_DIR":                &s.ModelDir,
		"DATA_DIR":                 &s.DataDir,
		"GRAPH_STORE_DIR":          &s.GraphStoreDir,
		"GRAPH_SUBJECT":            &s.GraphSubject,
		"GRAPH_BACKEND":            &s.GraphBackend,
		"BACKUP_DIR":               &s.BackupDir,
		"S3_BUCKET":                &s.S3Bucket,
		"S3_REGION":                &s.S3Region,
		"S3_ACCESS_KEY":            &s.S3AccessKey,
		"S3_SECRET_KEY":            &s.S3SecretKey,
		"CLASSIFIER_KEYWORDS_FILE": &s.ClassifierKeywordsFile,
		"GEMINI_API_KEY":           &s.GeminiAPIKey,
		"GEMINI_MODEL":             &s.GeminiModel,
		"LOG_LEVEL":                &s.LogLevel,
		"LOG_OUTPUT":               &s.LogOutput,
	}
	for key, target := range strs {
		if value, ok := lookupEnv(key); ok {
			*target = value
		}
	}

	return nil
}

func lookupEnv(key string) (string, bool) {
	value, ok := os.LookupEnv(settingsEnvPrefix + key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(value), true
}
