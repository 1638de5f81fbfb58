package telerelay

import (
	"context"
	"regexp"
	"slices"
	"sync"
)

// HandlerFunc is the function signature for new-message handlers.
type HandlerFunc func(ctx context.Context, msg *Message) error

// Filter defines conditions for when a handler should be invoked.
type Filter struct {
	// Chats filters by Bot-API style chat IDs.
	// Empty means all chats.
	Chats []int64

	// Incoming filters for incoming messages only.
	Incoming bool

	// Outgoing filters for outgoing messages only.
	Outgoing bool

	// Pattern, if set, must match the message text.
	Pattern *regexp.Regexp

	// Custom is a custom filter function.
	// Return true to process the message, false to skip.
	Custom func(msg *Message) bool
}

func (f *Filter) matches(msg *Message) bool {
	if len(f.Chats) > 0 && !slices.Contains(f.Chats, msg.ChatID) {
		return false
	}

	if f.Incoming && msg.Out {
		return false
	}
	if f.Outgoing && !msg.Out {
		return false
	}

	if f.Pattern != nil && !f.Pattern.MatchString(msg.Raw) {
		return false
	}

	if f.Custom != nil && !f.Custom(msg) {
		return false
	}

	return true
}

// Subscription is the handle returned when a handler is registered.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Cancel removes the handler. Safe to call more than once.
func (s *Subscription) Cancel() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

type handler struct {
	fn     HandlerFunc
	filter Filter
}

// handlerSet is a registry of subscriptions safe for concurrent use.
type handlerSet struct {
	mu       sync.RWMutex
	next     int
	handlers map[int]handler
	order    []int
}

func (s *handlerSet) add(filter Filter, fn HandlerFunc) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handlers == nil {
		s.handlers = make(map[int]handler)
	}
	id := s.next
	s.next++
	s.handlers[id] = handler{fn: fn, filter: filter}
	s.order = append(s.order, id)

	return &Subscription{cancel: func() { s.remove(id) }}
}

func (s *handlerSet) remove(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.handlers, id)
	s.order = slices.DeleteFunc(s.order, func(v int) bool { return v == id })
}

// match returns the handlers whose filter accepts msg, in registration order.
func (s *handlerSet) match(msg *Message) []HandlerFunc {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []HandlerFunc
	for _, id := range s.order {
		h := s.handlers[id]
		if h.filter.matches(msg) {
			out = append(out, h.fn)
		}
	}
	return out
}

func (s *handlerSet) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
