// Copyright 2025 hostscan Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package subscribers

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/hostscan/hostscan/pkg/output"
)

// DiagnosticSubscriber prints diagnostic events up to a verbosity level, as
// "[LEVEL] hh:mm:ss message key:value ...".
type DiagnosticSubscriber struct {
	level  output.OutputLevel
	writer io.Writer
}

func NewDiagnosticSubscriber(level output.OutputLevel, writer io.Writer) *DiagnosticSubscriber {
	return &DiagnosticSubscriber{level: level, writer: writer}
}

func (s *DiagnosticSubscriber) Name() string {
	return "diagnostic-subscriber"
}

func (s *DiagnosticSubscriber) ShouldHandle(event output.OutputEvent) bool {
	return event.Type == output.EventDiag && event.Level <= s.level
}

func (s *DiagnosticSubscriber) Handle(event output.OutputEvent) {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s %s", event.Level, event.Timestamp.Format("15:04:05"), event.Message)
	for _, key := range slices.Sorted(maps.Keys(event.Metadata)) {
		fmt.Fprintf(&b, " %s:%v", key, event.Metadata[key])
	}
	b.WriteByte('\n')
	_, _ = io.WriteString(s.writer, b.String())
}
