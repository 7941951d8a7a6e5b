// Package blog ("beacon log") is the structured diagnostic logging pipeline.
// Every call writes synchronously to a local console sink (zerolog) and
// enqueues for a remote sink that batches entries to the ingestion service's
// log endpoint, each sink with its own level threshold. The remote queue has
// the same flush/requeue contract as the behavior tracker: snapshot swap,
// re-prepend on failure, at-least-once delivery.
package blog

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/summitroofing/beacon/internal/domain"
	"github.com/summitroofing/beacon/internal/wire"
)

const (
	defaultBatchSize     = 10
	defaultFlushInterval = 30 * time.Second
)

// Sender delivers one batch of log entries to the remote sink.
type Sender interface {
	Send(ctx context.Context, req *wire.LogRequest) error
}

// Config controls one Logger.
type Config struct {
	// ConsoleLevel and RemoteLevel are the per-sink minimum levels.
	ConsoleLevel domain.LogLevel
	RemoteLevel  domain.LogLevel

	// Endpoint of the remote log sink. When empty and Sender is nil the
	// remote sink is disabled and entries only reach the console.
	Endpoint string
	Sender   Sender

	BatchSize     int
	FlushInterval time.Duration

	Environment string
	Version     string
	SessionID   string

	// EnableRenderTiming gates the RenderTiming helper (it is chatty).
	EnableRenderTiming bool

	// ConsoleWriter defaults to stdout. Tests point it at a buffer.
	ConsoleWriter io.Writer
}

// Logger is the batching structured logger.
type Logger struct {
	cfg     Config
	console zerolog.Logger
	sender  Sender

	mu       sync.Mutex
	queue    []wire.LogEntry
	flushing bool
	userID   string

	closed    chan struct{}
	closeOnce sync.Once
}

// New creates a Logger and starts its periodic flush goroutine.
func New(cfg Config) *Logger {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultFlushInterval
	}
	if cfg.ConsoleWriter == nil {
		cfg.ConsoleWriter = os.Stdout
	}

	sender := cfg.Sender
	if sender == nil && cfg.Endpoint != "" {
		sender = &HTTPSender{Endpoint: cfg.Endpoint}
	}

	if cfg.SessionID == "" {
		cfg.SessionID = "sess_" + uuid.NewString()
	}

	l := &Logger{
		cfg:     cfg,
		console: zerolog.New(cfg.ConsoleWriter).With().Timestamp().Logger(),
		sender:  sender,
		closed:  make(chan struct{}),
	}

	go l.periodicFlush()

	return l
}

// SetUserID attaches a user identifier to subsequent entries.
func (l *Logger) SetUserID(userID string) {
	l.mu.Lock()
	l.userID = userID
	l.mu.Unlock()
}

// SessionID returns the session identifier stamped on every entry.
func (l *Logger) SessionID() string { return l.cfg.SessionID }

// Log records one entry. The message and metadata are sanitized of
// secret-looking values before either sink sees them.
func (l *Logger) Log(level domain.LogLevel, category domain.LogCategory, message string, metadata map[string]any, err error) {
	message = sanitizeMessage(message)
	metadata = sanitizeMetadata(metadata)

	var errStack string
	if err != nil {
		errStack = err.Error()
	}

	l.mu.Lock()
	userID := l.userID
	l.mu.Unlock()

	entry := wire.LogEntry{
		ID:          uuid.NewString(),
		Timestamp:   time.Now().UnixMilli(),
		Level:       level.String(),
		Category:    string(category),
		Message:     message,
		ErrorStack:  errStack,
		UserID:      userID,
		SessionID:   l.cfg.SessionID,
		Metadata:    metadata,
		Environment: l.cfg.Environment,
		Version:     l.cfg.Version,
	}

	if level >= l.cfg.ConsoleLevel {
		l.writeConsole(level, &entry)
	}

	if l.sender != nil && level >= l.cfg.RemoteLevel {
		l.enqueue(entry)
	}
}

func (l *Logger) writeConsole(level domain.LogLevel, entry *wire.LogEntry) {
	ev := l.console.WithLevel(consoleLevel(level)).
		Str("category", entry.Category).
		Str("session_id", entry.SessionID)
	if entry.UserID != "" {
		ev = ev.Str("user_id", entry.UserID)
	}
	if entry.ErrorStack != "" {
		ev = ev.Str("error", entry.ErrorStack)
	}
	if len(entry.Metadata) > 0 {
		ev = ev.Interface("metadata", entry.Metadata)
	}
	ev.Msg(entry.Message)
}

// consoleLevel maps the domain's ordinal levels onto zerolog's. Fatal maps to
// zerolog's fatal label without zerolog's os.Exit behavior (WithLevel does
// not terminate).
func consoleLevel(level domain.LogLevel) zerolog.Level {
	switch level {
	case domain.LevelDebug:
		return zerolog.DebugLevel
	case domain.LevelInfo:
		return zerolog.InfoLevel
	case domain.LevelWarn:
		return zerolog.WarnLevel
	case domain.LevelError:
		return zerolog.ErrorLevel
	case domain.LevelFatal:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

func (l *Logger) enqueue(entry wire.LogEntry) {
	l.mu.Lock()
	l.queue = append(l.queue, entry)
	full := len(l.queue) >= l.cfg.BatchSize
	l.mu.Unlock()

	if full {
		go func() { _ = l.Flush(context.Background(), false) }()
	}
}

// Pending reports how many entries await remote delivery.
func (l *Logger) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Flush delivers the queued entries to the remote sink. A flush already in
// progress makes this a no-op unless force is set. On failure the batch is
// re-inserted ahead of entries queued meanwhile.
func (l *Logger) Flush(ctx context.Context, force bool) error {
	l.mu.Lock()
	if (l.flushing && !force) || len(l.queue) == 0 || l.sender == nil {
		l.mu.Unlock()
		return nil
	}
	batch := l.queue
	l.queue = nil
	l.flushing = true
	l.mu.Unlock()

	err := l.sender.Send(ctx, &wire.LogRequest{
		SessionID: l.cfg.SessionID,
		Entries:   batch,
	})

	l.mu.Lock()
	l.flushing = false
	if err != nil {
		l.queue = append(batch, l.queue...)
	}
	l.mu.Unlock()

	if err != nil {
		return fmt.Errorf("blog.Logger.Flush: %w", err)
	}
	return nil
}

func (l *Logger) periodicFlush() {
	ticker := time.NewTicker(l.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.closed:
			return
		case <-ticker.C:
			_ = l.Flush(context.Background(), false)
		}
	}
}

// Close stops the periodic flush and forces a final delivery.
func (l *Logger) Close(ctx context.Context) error {
	var err error
	l.closeOnce.Do(func() {
		close(l.closed)
		err = l.Flush(ctx, true)
	})
	return err
}

// ---------------------------------------------------------------------------
// Process-wide singleton
// ---------------------------------------------------------------------------

var (
	defaultMu     sync.Mutex
	defaultLogger *Logger
)

// Init constructs the process-wide Logger on first call and returns the
// existing instance on every subsequent call, ignoring the new config.
func Init(cfg Config) *Logger {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = New(cfg)
	}
	return defaultLogger
}

// Default returns the singleton, initializing it with defaults if Init was
// never called.
func Default() *Logger {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = New(Config{})
	}
	return defaultLogger
}
