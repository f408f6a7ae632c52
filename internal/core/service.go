package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/csvparse/internal/config"
	"github.com/JonMunkholm/csvparse/internal/logging"
	"github.com/JonMunkholm/csvparse/internal/parser"
	"github.com/JonMunkholm/csvparse/internal/schema"
	"github.com/JonMunkholm/csvparse/internal/store"
)

var (
	// ErrUnknownSchema is returned when a request names an unregistered schema.
	ErrUnknownSchema = errors.New("unknown schema")

	// ErrPersist wraps failures to save a finished conversion.
	ErrPersist = errors.New("store failure")
)

// Recorder saves finished conversions. *store.Store implements it.
// A run and its row errors are saved together or not at all.
type Recorder interface {
	RecordConversion(ctx context.Context, run store.Run, errs []*parser.SchemaError) (int64, error)
}

// Request describes one conversion.
type Request struct {
	// Source names the input. It is the file path when Reader is nil and a
	// display name (such as the uploaded file name) otherwise.
	Source string

	// Reader supplies the content directly. Optional.
	Reader io.Reader

	// Schema is a registered schema name. Empty selects raw mode.
	Schema string
}

// Summary describes a finished conversion.
type Summary struct {
	parser.Summary
	BytesRead int64         `json:"bytesRead"`
	Duration  time.Duration `json:"durationNs"`
}

// Outcome is the result of a conversion. Exactly one of Rows (raw mode) and
// Records (validated mode) is set.
type Outcome struct {
	RunID   uuid.UUID                      `json:"runId"`
	Source  string                         `json:"source"`
	Schema  string                         `json:"schema,omitempty"`
	Rows    []parser.FieldRow              `json:"rows,omitempty"`
	Records []parser.Result[schema.Record] `json:"records,omitempty"`
	Summary Summary                        `json:"summary"`
}

// Rejections returns the schema errors in row order.
func (o *Outcome) Rejections() []*parser.SchemaError {
	return parser.Errors(o.Records)
}

// Service runs conversions with the configured options, limits and store.
type Service struct {
	opts     parser.Options
	timeout  time.Duration
	limiter  *Limiter
	recorder Recorder
	now      func() time.Time
}

// NewService returns a Service for cfg. rec may be nil to disable persistence.
func NewService(cfg *config.Config, rec Recorder) *Service {
	return &Service{
		opts:     cfg.Parse.Options(),
		timeout:  cfg.Convert.Timeout,
		limiter:  NewLimiter(cfg.Convert.MaxConcurrent, cfg.Convert.MaxWaitTime),
		recorder: rec,
		now:      time.Now,
	}
}

// Limiter returns the service's concurrency limiter.
func (s *Service) Limiter() *Limiter {
	return s.limiter
}

// Persisting reports whether finished runs are saved.
func (s *Service) Persisting() bool {
	return s.recorder != nil
}

// Convert reads the request's input, checks it against the named schema if
// any, and returns every row. Open and read failures return no outcome; row
// rejections are part of the outcome.
func (s *Service) Convert(ctx context.Context, req Request) (*Outcome, error) {
	var def schema.Definition
	if req.Schema != "" {
		var ok bool
		if def, ok = schema.Get(req.Schema); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSchema, req.Schema)
		}
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("convert %s: %w", req.Source, err)
	}
	defer s.limiter.Release()

	out := &Outcome{
		RunID:  uuid.New(),
		Source: req.Source,
		Schema: req.Schema,
	}
	logger := logging.WithFields(ctx, "run_id", out.RunID, "source", req.Source, "schema", req.Schema)
	started := s.now()

	lines, err := s.open(ctx, req)
	if err != nil {
		logger.Warn("conversion failed to open input", "error", err)
		return nil, err
	}
	defer lines.Close()

	if req.Schema == "" {
		rows, err := parser.ResolveRaw(lines)
		if err != nil {
			logger.Warn("conversion failed", "error", err, "lines", lines.Lines())
			return nil, err
		}
		out.Rows = rows
		out.Summary.Summary = parser.Summary{Rows: len(rows), Accepted: len(rows)}
	} else {
		records, err := parser.ResolveValidated(lines, def.Schema())
		if err != nil {
			logger.Warn("conversion failed", "error", err, "lines", lines.Lines())
			return nil, err
		}
		out.Records = records
		out.Summary.Summary = parser.Summarize(records)
	}

	finished := s.now()
	out.Summary.BytesRead = lines.BytesRead()
	out.Summary.Duration = finished.Sub(started)

	logger.Info("conversion finished",
		"rows", out.Summary.Rows,
		"accepted", out.Summary.Accepted,
		"rejected", out.Summary.Rejected,
		"bytes", out.Summary.BytesRead,
		"duration_ms", out.Summary.Duration.Milliseconds(),
	)

	if s.recorder != nil {
		if err := s.persist(ctx, out, started, finished); err != nil {
			logger.Error("failed to save conversion", "error", err)
			return out, err
		}
	}

	return out, nil
}

func (s *Service) open(ctx context.Context, req Request) (*parser.LineSource, error) {
	if req.Reader == nil {
		return parser.OpenLines(ctx, req.Source, s.opts)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return parser.NewLineSource(req.Reader, s.opts).WithName(req.Source), nil
}

func (s *Service) persist(ctx context.Context, out *Outcome, started, finished time.Time) error {
	run := store.Run{
		ID:         out.RunID,
		Source:     out.Source,
		Schema:     out.Schema,
		Rows:       out.Summary.Rows,
		Accepted:   out.Summary.Accepted,
		Rejected:   out.Summary.Rejected,
		BytesRead:  out.Summary.BytesRead,
		StartedAt:  started,
		FinishedAt: finished,
	}
	if _, err := s.recorder.RecordConversion(ctx, run, out.Rejections()); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

// ColumnInfo describes one column of a registered schema.
type ColumnInfo struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Required bool     `json:"required"`
	Enum     []string `json:"enum,omitempty"`
}

// SchemaInfo describes a registered schema for listings.
type SchemaInfo struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Columns     []ColumnInfo `json:"columns"`
}

// ListSchemas returns every registered schema, sorted by name.
func (s *Service) ListSchemas() []SchemaInfo {
	defs := schema.All()
	infos := make([]SchemaInfo, len(defs))
	for i, def := range defs {
		cols := make([]ColumnInfo, len(def.FieldSpecs))
		for j, spec := range def.FieldSpecs {
			cols[j] = ColumnInfo{
				Name:     spec.Name,
				Type:     spec.Type.String(),
				Required: spec.Required && !spec.AllowEmpty,
				Enum:     spec.EnumValues,
			}
		}
		infos[i] = SchemaInfo{Name: def.Name, Description: def.Description, Columns: cols}
	}
	return infos
}
