// Copyright 2025 hostscan Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package subscribers

import (
	"encoding/json"
	"io"
	"time"

	"github.com/hostscan/hostscan/pkg/output"
)

// JSONFormatter emits one JSON object per event (JSON Lines), used with
// --json.
type JSONFormatter struct {
	encoder *json.Encoder
}

func NewJSONFormatter(writer io.Writer) *JSONFormatter {
	return &JSONFormatter{encoder: json.NewEncoder(writer)}
}

func (s *JSONFormatter) Name() string {
	return "json-formatter"
}

// ShouldHandle accepts everything but diagnostics.
func (s *JSONFormatter) ShouldHandle(event output.OutputEvent) bool {
	return event.Type != output.EventDiag
}

func (s *JSONFormatter) Handle(event output.OutputEvent) {
	jsonEvent := map[string]any{
		"type":      event.Type,
		"timestamp": event.Timestamp.Format(time.RFC3339),
	}
	if event.Message != "" {
		jsonEvent["message"] = event.Message
	}
	if event.Data != nil {
		jsonEvent["data"] = event.Data
	}
	if len(event.Metadata) > 0 {
		jsonEvent["metadata"] = event.Metadata
	}

	// Encoding errors (broken pipe) drop the event.
	_ = s.encoder.Encode(jsonEvent)
}
