// Copyright 2025 hostscan Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package output

import "time"

// DefaultOutput converts Output calls into events on a stream.
type DefaultOutput struct {
	stream *OutputEventStream
	now    func() time.Time
}

// NewDefaultOutput creates a DefaultOutput that emits to stream.
func NewDefaultOutput(stream *OutputEventStream) *DefaultOutput {
	return &DefaultOutput{stream: stream, now: time.Now}
}

func (o *DefaultOutput) emit(event OutputEvent) {
	event.Timestamp = o.now()
	o.stream.Emit(event)
}

func (o *DefaultOutput) Info(message string) {
	o.emit(OutputEvent{Type: EventInfo, Message: message})
}

func (o *DefaultOutput) Error(err error) {
	o.emit(OutputEvent{Type: EventError, Message: err.Error()})
}

func (o *DefaultOutput) Warning(message string) {
	o.emit(OutputEvent{Type: EventWarning, Message: message})
}

func (o *DefaultOutput) Table(headers []string, rows [][]string) {
	o.emit(OutputEvent{
		Type: EventTable,
		Data: map[string]any{
			"headers": headers,
			"rows":    rows,
		},
	})
}

func (o *DefaultOutput) Progress(current, total int, message string) {
	o.emit(OutputEvent{
		Type:    EventProgress,
		Message: message,
		Data: map[string]any{
			"current": current,
			"total":   total,
		},
	})
}

func (o *DefaultOutput) Diag(level OutputLevel, message string, metadata map[string]any) {
	o.emit(OutputEvent{
		Type:     EventDiag,
		Level:    level,
		Message:  message,
		Metadata: metadata,
	})
}
