package memory

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/okian/tabletriage/internal/domain/model"
)

const (
	defaultEventBufSize    = 32 * 1024
	defaultEventFlushEvery = 1
)

// Decision outcomes.
const (
	OutcomeWin     = "win"
	OutcomeNeutral = "neutral"
	OutcomeFail    = "fail"
)

// Metrics are the objective components of a table.
type Metrics struct {
	Tabularity         float64 `json:"tabularity"`
	HeaderCompleteness float64 `json:"header_completeness"`
	PeriodHint         float64 `json:"period_hint"`
	NonEmptyRatio      float64 `json:"non_empty_ratio"`
}

// ShapeSnapshot records headers and row count around a decision.
type ShapeSnapshot struct {
	Headers []string `json:"headers"`
	DataLen int      `json:"data_len"`
}

// TriedRecipe is one op attempted during a decision.
type TriedRecipe struct {
	Op      string  `json:"op"`
	Gain    float64 `json:"gain"`
	GuardOK bool    `json:"guard_ok"`
}

// LearningEvent is one append-only decision record.
type LearningEvent struct {
	Timestamp        time.Time       `json:"ts"`
	RunID            string          `json:"run_id"`
	Dossier          string          `json:"dossier"`
	Page             *int            `json:"page"`
	TableIndex       int             `json:"table_index"`
	Stage            Stage           `json:"stage"`
	TableType        model.TableType `json:"table_type"`
	SignatureID      string          `json:"signature_id"`
	Signature        Signature       `json:"signature"`
	FamilyCandidates []string        `json:"family_candidates"`
	Family           string          `json:"family"`
	RecipesTried     []TriedRecipe   `json:"recipes_tried"`
	ChosenRecipe     string          `json:"chosen_recipe"`
	PreMetrics       Metrics         `json:"pre_metrics"`
	PostMetrics      Metrics         `json:"post_metrics"`
	GuardOK          bool            `json:"guard_ok"`
	Outcome          string          `json:"outcome"`
	Before           ShapeSnapshot   `json:"before"`
	After            ShapeSnapshot   `json:"after"`
	RewardProxy      float64         `json:"reward_proxy"`
	AcceptOverride   bool            `json:"accept_override"`
}

// EventSink receives learning events.
type EventSink interface {
	Write(ctx context.Context, ev LearningEvent) error
	Close() error
}

// EventLogOption configures an EventLog.
type EventLogOption func(*EventLog)

// WithEventBufSize sets the write buffer size.
func WithEventBufSize(bytes int) EventLogOption {
	return func(l *EventLog) {
		if bytes > 0 {
			l.bufSize = bytes
		}
	}
}

// WithEventMaxSize rotates the log to <path>.1 once it would exceed bytes.
// Zero disables rotation.
func WithEventMaxSize(bytes int64) EventLogOption {
	return func(l *EventLog) { l.maxSize = bytes }
}

// WithEventFlushEvery flushes the buffer after every n events. Values
// below one are ignored.
func WithEventFlushEvery(n int) EventLogOption {
	return func(l *EventLog) {
		if n > 0 {
			l.flushEvery = n
		}
	}
}

// EventLog appends events to a JSON-Lines file. It is safe for concurrent use.
type EventLog struct {
	mu      sync.Mutex
	path    string
	f       *os.File
	w       *bufio.Writer
	bufSize int
	maxSize int64
	written int64

	flushEvery int
	pending    int
}

// NewEventLog opens path for appending, creating parent directories.
func NewEventLog(path string, opts ...EventLogOption) (*EventLog, error) {
	l := &EventLog{path: path, bufSize: defaultEventBufSize, flushEvery: defaultEventFlushEvery}
	for _, opt := range opts {
		opt(l)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("event log: mkdir %s: %w", dir, err)
		}
	}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

// Write encodes ev as one line.
func (l *EventLog) Write(_ context.Context, ev LearningEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("event log: marshal: %w", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return fmt.Errorf("event log: %w", os.ErrClosed)
	}
	if l.maxSize > 0 && l.written+int64(len(data)) > l.maxSize {
		if err := l.rotate(); err != nil {
			return fmt.Errorf("event log: rotate: %w", err)
		}
	}
	n, err := l.w.Write(data)
	l.written += int64(n)
	if err != nil {
		return fmt.Errorf("event log: write: %w", err)
	}
	l.pending++
	if l.pending >= l.flushEvery {
		l.pending = 0
		if err := l.w.Flush(); err != nil {
			return fmt.Errorf("event log: flush: %w", err)
		}
	}
	return nil
}

// Flush pushes buffered events to the file.
func (l *EventLog) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return nil
	}
	l.pending = 0
	return l.w.Flush()
}

// Close flushes and closes the file. Further writes fail.
func (l *EventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return nil
	}
	err := l.w.Flush()
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	l.w, l.f = nil, nil
	if err != nil {
		return fmt.Errorf("event log: close: %w", err)
	}
	return nil
}

func (l *EventLog) open() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("event log: open %s: %w", l.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("event log: stat %s: %w", l.path, err)
	}
	l.f = f
	l.w = bufio.NewWriterSize(f, l.bufSize)
	l.written = info.Size()
	return nil
}

func (l *EventLog) rotate() error {
	if err := l.w.Flush(); err != nil {
		return err
	}
	if err := l.f.Close(); err != nil {
		return err
	}
	if err := os.Rename(l.path, l.path+".1"); err != nil {
		return err
	}
	return l.open()
}
