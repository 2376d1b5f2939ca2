// Copyright 2025 hostscan Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package output separates what commands report from how it is rendered.
// Commands emit events through Output; subscribers on an OutputEventStream
// render them as styled text, JSON lines or diagnostics.
package output

import (
	"context"
	"time"
)

type contextKey string

// OutputKey is the context key for the Output of a command.
const OutputKey contextKey = "output"

// OutputEventType defines the type of output event.
type OutputEventType string

const (
	// EventInfo is a general message, always visible.
	EventInfo OutputEventType = "info"

	EventError OutputEventType = "error"

	EventWarning OutputEventType = "warning"

	// EventTable carries headers and rows in Data.
	EventTable OutputEventType = "table"

	// EventProgress carries current/total in Data. A total of 0 means unknown.
	EventProgress OutputEventType = "progress"

	// EventDiag is diagnostic information, only visible with -v and up.
	EventDiag OutputEventType = "diag"
)

// OutputLevel is the verbosity of a diagnostic event.
type OutputLevel int

const (
	LevelNormal  OutputLevel = 0
	LevelVerbose OutputLevel = 1 // -v
	LevelDebug   OutputLevel = 2 // -vv
	LevelTrace   OutputLevel = 3 // -vvv
)

// String returns the label diagnostics are printed with.
func (l OutputLevel) String() string {
	switch l {
	case LevelNormal:
		return "NORMAL"
	case LevelVerbose:
		return "VERBOSE"
	case LevelDebug:
		return "DEBUG"
	default:
		return "TRACE"
	}
}

// OutputEvent is a single event emitted by a command.
type OutputEvent struct {
	Type  OutputEventType
	Level OutputLevel // only used for EventDiag

	Message  string
	Data     any
	Metadata map[string]any

	Timestamp time.Time
}

// Output is what commands report through. They never write to stdout
// directly.
type Output interface {
	Info(message string)
	Error(err error)
	Warning(message string)

	// Table emits rows under headers, e.g. the runs of a namespace.
	Table(headers []string, rows [][]string)

	// Progress reports current of total. total <= 0 when the end is unknown,
	// as for a streamed import.
	Progress(current, total int, message string)

	// Diag emits diagnostic information at the given verbosity.
	Diag(level OutputLevel, message string, metadata map[string]any)
}

// WithOutput stores out in ctx.
func WithOutput(ctx context.Context, out Output) context.Context {
	return context.WithValue(ctx, OutputKey, out)
}

// FromContext returns the Output stored in ctx, or false.
func FromContext(ctx context.Context) (Output, bool) {
	out, ok := ctx.Value(OutputKey).(Output)
	return out, ok
}
