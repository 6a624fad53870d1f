package audit

import (
	"context"
	"log/slog"
)

// SlogSink writes each event as one structured log record at Info level, or Warn for
// unsuccessful operations.
type SlogSink struct {
	logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Emit(ctx context.Context, event Event) {
	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}

	attrs := []slog.Attr{
		slog.String("event", event.EventType),
		slog.Time("at", event.Timestamp),
		slog.Bool("success", event.Success),
	}
	if event.AccountID != "" {
		attrs = append(attrs, slog.String("account", event.AccountKind+":"+event.AccountID))
	}
	if event.ActorID != "" {
		attrs = append(attrs, slog.String("actor", event.ActorID))
	}
	if event.TenantID != "" {
		attrs = append(attrs, slog.String("tenant", event.TenantID))
	}
	if event.IP != "" {
		attrs = append(attrs, slog.String("ip", event.IP))
	}
	if event.Error != "" {
		attrs = append(attrs, slog.String("error", event.Error))
	}
	if len(event.ChangedFields) > 0 {
		attrs = append(attrs, slog.Any("changed", event.ChangedFields))
	}
	for k, v := range event.Metadata {
		attrs = append(attrs, slog.String("meta."+k, v))
	}

	s.logger.LogAttrs(ctx, level, "audit", attrs...)
}
