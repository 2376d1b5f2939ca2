// Copyright 2025 hostscan Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package output

import "sync"

// OutputSubscriber renders events. Handle cannot fail; subscribers drop what
// they cannot write.
type OutputSubscriber interface {
	Name() string
	ShouldHandle(event OutputEvent) bool
	Handle(event OutputEvent)
}

// OutputEventStream fans events out to subscribers in subscription order.
// Emit is safe for concurrent use; events are delivered one at a time.
type OutputEventStream struct {
	mu          sync.Mutex
	subscribers []OutputSubscriber
}

func NewOutputEventStream() *OutputEventStream {
	return &OutputEventStream{}
}

// Subscribe adds a subscriber.
func (s *OutputEventStream) Subscribe(sub OutputSubscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, sub)
}

// Emit delivers event to every subscriber that wants it.
func (s *OutputEventStream) Emit(event OutputEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subscribers {
		if sub.ShouldHandle(event) {
			sub.Handle(event)
		}
	}
}

func (s *OutputEventStream) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}
