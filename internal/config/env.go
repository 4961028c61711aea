package config

import (
    "os"
    "strconv"
    "strings"
    "time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
    Level        string
    Pretty       bool
    File         string
    MaxSizeMB    int
    MaxBackups   int
    MaxAgeDays   int
    Compress     bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
    Send          bool
    APIKey        string
    OrgID         string
    Dataset       string
    FlushInterval time.Duration
}

// CorpusConfig defines where books live and where results go.
type CorpusConfig struct {
    BooksDir    string
    ResultsFile string
    LogsDir     string
    SizeWarnMB  int
    Workers     int
}

// GeminiConfig defines credential slots, task model lists and rotation policy
// for the remote inference service.
type GeminiConfig struct {
    APIKeys        []string // ordered credential slots, empty slots already removed
    ClassifyModels []string
    SegmentModels  []string
    MaxCycles      int
    AttemptPause   time.Duration
    BackoffBase    time.Duration
    BackoffCap     time.Duration
    BackoffJitter  time.Duration
    RequestTimeout time.Duration
}

// OllamaConfig defines the last-resort local inference endpoint.
type OllamaConfig struct {
    URL     string
    Model   string
    Timeout time.Duration
}

// ToolsConfig defines external PDF tool binaries and their call policy.
type ToolsConfig struct {
    PdftkBin     string
    GsBin        string
    QpdfBin      string
    DumpTimeout  time.Duration
    GsTimeout    time.Duration
    QpdfTimeout  time.Duration
    Retries      int
    RetryCap     time.Duration
}

// LayoutConfig bounds the visual layout scan.
type LayoutConfig struct {
    MaxPages int
}

// SegmentConfig defines segmentation output and execution policy.
type SegmentConfig struct {
    OutputDir      string
    CommandTimeout time.Duration
}

// MetricsConfig enables the optional metrics listener for long corpus runs.
type MetricsConfig struct {
    Addr string
}

// Config is the top-level configuration.
type Config struct {
    Logging LoggingConfig
    Axiom   AxiomConfig
    Corpus  CorpusConfig
    Gemini  GeminiConfig
    Ollama  OllamaConfig
    Tools   ToolsConfig
    Layout  LayoutConfig
    Segment SegmentConfig
    Metrics MetricsConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
    cfg := Config{}

    // Logging defaults
    cfg.Logging = LoggingConfig{
        Level:      getEnv("LOG_LEVEL", "info"),
        Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
        File:       getEnv("LOG_FILE", "logs/bookpipe.log"),
        MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
        MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
        MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
        Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
    }

    // Axiom defaults
    baseDataset := getEnv("AXIOM_DATASET", "dev")
    cfg.Axiom = AxiomConfig{
        Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
        APIKey:        getEnv("AXIOM_API_KEY", ""),
        OrgID:         getEnv("AXIOM_ORG_ID", ""),
        Dataset:       baseDataset + "_bookpipe",
        FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
    }

    // Corpus defaults
    cfg.Corpus = CorpusConfig{
        BooksDir:    getEnv("BOOKS_DIR", "BOOKS"),
        ResultsFile: getEnv("RESULTS_FILE", "book_classifications.jsonl"),
        LogsDir:     getEnv("LOGS_DIR", "logs"),
        SizeWarnMB:  parseInt(getEnv("SIZE_WARN_MB", "50"), 50),
        Workers:     parseInt(getEnv("WORKERS", "1"), 1),
    }
    if cfg.Corpus.Workers < 1 { cfg.Corpus.Workers = 1 }

    // Gemini rotation defaults
    cfg.Gemini = GeminiConfig{
        APIKeys:        keySlots("GEMINI_API_KEY", "GEMINI_API_KEY_2", "GEMINI_API_KEY_3"),
        ClassifyModels: parseList(getEnv("CLASSIFY_MODELS", "gemini-2.5-flash,gemini-2.5-pro")),
        SegmentModels:  parseList(getEnv("SEGMENT_MODELS", "gemini-2.5-pro")),
        MaxCycles:      parseInt(getEnv("ROTATION_MAX_CYCLES", "10"), 10),
        AttemptPause:   parseDuration(getEnv("ROTATION_ATTEMPT_PAUSE", "2s"), 2*time.Second),
        BackoffBase:    parseDuration(getEnv("ROTATION_BACKOFF_BASE", "60s"), 60*time.Second),
        BackoffCap:     parseDuration(getEnv("ROTATION_BACKOFF_CAP", "600s"), 600*time.Second),
        BackoffJitter:  parseDuration(getEnv("ROTATION_BACKOFF_JITTER", "5s"), 5*time.Second),
        RequestTimeout: parseDuration(getEnv("GEMINI_TIMEOUT", "120s"), 120*time.Second),
    }

    // Local fallback defaults
    cfg.Ollama = OllamaConfig{
        URL:     getEnv("OLLAMA_URL", "http://localhost:11434"),
        Model:   getEnv("OLLAMA_MODEL", "llama3.1"),
        Timeout: parseDuration(getEnv("OLLAMA_TIMEOUT", "300s"), 300*time.Second),
    }

    // External tool defaults
    cfg.Tools = ToolsConfig{
        PdftkBin:    getEnv("PDFTK_BIN", "pdftk"),
        GsBin:       getEnv("GS_BIN", "gs"),
        QpdfBin:     getEnv("QPDF_BIN", "qpdf"),
        DumpTimeout: parseDuration(getEnv("TOOL_TIMEOUT", "120s"), 120*time.Second),
        GsTimeout:   parseDuration(getEnv("GS_TIMEOUT", "300s"), 300*time.Second),
        QpdfTimeout: parseDuration(getEnv("QPDF_TIMEOUT", "120s"), 120*time.Second),
        Retries:     parseInt(getEnv("TOOL_RETRIES", "3"), 3),
        RetryCap:    parseDuration(getEnv("TOOL_RETRY_CAP", "15s"), 15*time.Second),
    }

    // Layout scan defaults
    cfg.Layout = LayoutConfig{
        MaxPages: parseInt(getEnv("LAYOUT_MAX_PAGES", "50"), 50),
    }

    // Segmentation defaults
    cfg.Segment = SegmentConfig{
        OutputDir:      getEnv("SEGMENT_OUTPUT_DIR", "segmented_output"),
        CommandTimeout: parseDuration(getEnv("SEGMENT_COMMAND_TIMEOUT", "120s"), 120*time.Second),
    }

    // Metrics listener (disabled unless set)
    cfg.Metrics = MetricsConfig{
        Addr: getEnv("METRICS_ADDR", ""),
    }

    return cfg
}

// keySlots collects credential slots in order, skipping unset ones.
func keySlots(names ...string) []string {
    var keys []string
    for _, n := range names {
        if v := strings.TrimSpace(os.Getenv(n)); v != "" {
            keys = append(keys, v)
        }
    }
    return keys
}

// Helpers
func getEnv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func parseInt(s string, def int) int {
    if s == "" { return def }
    if n, err := strconv.Atoi(s); err == nil { return n }
    return def
}

func parseBool(s string) bool {
    v := strings.ToLower(strings.TrimSpace(s))
    return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
    if s == "" { return def }
    if d, err := time.ParseDuration(s); err == nil { return d }
    return def
}

func parseList(s string) []string {
    var out []string
    for _, p := range strings.Split(s, ",") {
        if p = strings.TrimSpace(p); p != "" {
            out = append(out, p)
        }
    }
    return out
}

func devDefaultPretty() string {
    env := strings.ToLower(os.Getenv("ENVIRONMENT"))
    if env == "dev" || env == "development" || env == "local" { return "true" }
    return "false"
}
