package models

import (
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
)

// IsTerminal reports whether no further transition is possible.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

type OperationKind string

const (
	KindTranslateText     OperationKind = "translate-text"
	KindTranslateDocument OperationKind = "translate-document"
	KindTranscribe        OperationKind = "transcribe"
	KindSynthesizeSpeech  OperationKind = "synthesize-speech"
	KindConvertFormat     OperationKind = "convert-format"
)

// OperationKinds lists every supported operation.
var OperationKinds = []OperationKind{
	KindTranslateText,
	KindTranslateDocument,
	KindTranscribe,
	KindSynthesizeSpeech,
	KindConvertFormat,
}

// Valid reports whether k is a known operation kind.
func (k OperationKind) Valid() bool {
	for _, known := range OperationKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Message is a timestamped progress line.
type Message struct {
	Time time.Time `json:"time"`
	Text string    `json:"text"`
}

// TaskError is the classified failure recorded on a failed task.
type TaskError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *TaskError) Error() string {
	return e.Kind + ": " + e.Message
}

// Params carries the validated inputs of a submission.
type Params struct {
	SourceLang   string   `json:"source_lang,omitempty"`
	TargetLangs  []string `json:"target_langs,omitempty"`
	Text         string   `json:"text,omitempty"`
	Files        []string `json:"files,omitempty"`
	Voice        string   `json:"voice,omitempty"`
	OutputFormat string   `json:"output_format,omitempty"`

	// WorkDir is the task's scratch directory; outputs are written here.
	WorkDir string `json:"-"`
}

type Task struct {
	ID          string        `json:"id"`
	Kind        OperationKind `json:"kind"`
	Status      TaskStatus    `json:"status"`
	Progress    int           `json:"progress"` // 0-100
	Messages    []Message     `json:"messages"`
	ResultFiles []string      `json:"result_files,omitempty"`
	Error       *TaskError    `json:"error,omitempty"`
	Params      Params        `json:"params"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	FinishedAt  *time.Time    `json:"finished_at,omitempty"`
}

func NewTask(kind OperationKind, params Params) *Task {
	now := time.Now()
	return &Task{
		ID:        uuid.New().String(),
		Kind:      kind,
		Status:    StatusPending,
		Messages:  []Message{},
		Params:    params,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Start moves a pending task to running. It returns false for any other state.
func (t *Task) Start() bool {
	if t.Status != StatusPending {
		return false
	}
	now := time.Now()
	t.Status = StatusRunning
	t.StartedAt = &now
	t.UpdatedAt = now
	return true
}

// AddMessage appends a progress line. Messages after a terminal transition are dropped.
func (t *Task) AddMessage(text string) bool {
	if t.Status.IsTerminal() {
		return false
	}
	now := time.Now()
	t.Messages = append(t.Messages, Message{Time: now, Text: text})
	t.UpdatedAt = now
	return true
}

// SetProgress records progress; it never moves backwards.
func (t *Task) SetProgress(pct int) bool {
	if t.Status.IsTerminal() || pct <= t.Progress {
		return false
	}
	if pct > 100 {
		pct = 100
	}
	t.Progress = pct
	t.UpdatedAt = time.Now()
	return true
}

// Complete records the result files. It applies at most once and requires
// at least one file.
func (t *Task) Complete(files []string) bool {
	if t.Status.IsTerminal() || len(files) == 0 {
		return false
	}
	now := time.Now()
	t.Status = StatusCompleted
	t.ResultFiles = append([]string(nil), files...)
	t.Progress = 100
	t.FinishedAt = &now
	t.UpdatedAt = now
	return true
}

// Fail records the error. It applies at most once.
func (t *Task) Fail(err *TaskError) bool {
	if t.Status.IsTerminal() || err == nil {
		return false
	}
	now := time.Now()
	t.Status = StatusFailed
	t.Error = err
	t.FinishedAt = &now
	t.UpdatedAt = now
	return true
}

// Clone returns a deep copy safe to hand to readers.
func (t *Task) Clone() *Task {
	c := *t
	c.Messages = make([]Message, len(t.Messages))
	copy(c.Messages, t.Messages)
	c.ResultFiles = append([]string(nil), t.ResultFiles...)
	c.Params.TargetLangs = append([]string(nil), t.Params.TargetLangs...)
	c.Params.Files = append([]string(nil), t.Params.Files...)
	if t.Error != nil {
		e := *t.Error
		c.Error = &e
	}
	if t.StartedAt != nil {
		s := *t.StartedAt
		c.StartedAt = &s
	}
	if t.FinishedAt != nil {
		f := *t.FinishedAt
		c.FinishedAt = &f
	}
	return &c
}

// Summary is the list view of a task.
type Summary struct {
	ID          string        `json:"id"`
	Kind        OperationKind `json:"kind"`
	Status      TaskStatus    `json:"status"`
	Progress    int           `json:"progress"`
	ResultCount int           `json:"result_count"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func (t *Task) Summary() Summary {
	return Summary{
		ID:          t.ID,
		Kind:        t.Kind,
		Status:      t.Status,
		Progress:    t.Progress,
		ResultCount: len(t.ResultFiles),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// LastMessage returns the most recent progress line, or "".
func (t *Task) LastMessage() string {
	if len(t.Messages) == 0 {
		return ""
	}
	return t.Messages[len(t.Messages)-1].Text
}

func (t *Task) StatusText() string {
	switch t.Status {
	case StatusPending:
		return "Queued"
	case StatusRunning:
		if msg := t.LastMessage(); msg != "" {
			return msg
		}
		return "Running..."
	case StatusCompleted:
		return "Completed!"
	case StatusFailed:
		if t.Error != nil {
			return "Failed: " + t.Error.Message
		}
		return "Failed"
	default:
		return string(t.Status)
	}
}

// StatusIcon returns an emoji icon representing the task status
func (t *Task) StatusIcon() string {
	return t.Status.Icon()
}

func (s TaskStatus) Icon() string {
	switch s {
	case StatusPending:
		return "⏳"
	case StatusRunning:
		return "🔄"
	case StatusCompleted:
		return "✅"
	case StatusFailed:
		return "❌"
	default:
		return "📄"
	}
}
