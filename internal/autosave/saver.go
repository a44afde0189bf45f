package autosave

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// AnswerEdit is one pending answer change for one question.
type AnswerEdit struct {
	AttemptID  uint
	QuestionID uint
	AnswerData string
	Timestamp  time.Time
}

// Transport is the preferred low-latency channel (the websocket session).
type Transport interface {
	Connected() bool
	Send(edit AnswerEdit) error
}

// Fallback is the plain request/response path used when the transport is
// down. Both paths converge on the same server-side upsert.
type Fallback interface {
	Save(edit AnswerEdit) error
}

// BufferStore is the durable local buffer keeping unsynced edits across a
// reload. MemoryBuffer backs tests; a real client persists to disk.
type BufferStore interface {
	Put(questionID uint, edit AnswerEdit)
	Delete(questionID uint)
	All() map[uint]AnswerEdit
}

type MemoryBuffer struct {
	mu    sync.Mutex
	edits map[uint]AnswerEdit
}

func NewMemoryBuffer() *MemoryBuffer {
	return &MemoryBuffer{edits: make(map[uint]AnswerEdit)}
}

func (b *MemoryBuffer) Put(questionID uint, edit AnswerEdit) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.edits[questionID] = edit
}

func (b *MemoryBuffer) Delete(questionID uint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.edits, questionID)
}

func (b *MemoryBuffer) All() map[uint]AnswerEdit {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[uint]AnswerEdit, len(b.edits))
	for k, v := range b.edits {
		out[k] = v
	}
	return out
}

// Saver is the client side of the autosave pipeline: edits are buffered
// locally, coalesced per question over a debounce window, then flushed over
// the transport with the fallback as second path. A failed edit is re-queued,
// giving at-least-once delivery; the server's idempotent upsert absorbs the
// duplicates.
type Saver struct {
	attemptID uint
	mu        sync.Mutex
	pending   map[uint]AnswerEdit
	debouncer *Debouncer
	transport Transport
	fallback  Fallback
	buffer    BufferStore
}

func NewSaver(attemptID uint, window time.Duration, transport Transport, fallback Fallback, buffer BufferStore) *Saver {
	if buffer == nil {
		buffer = NewMemoryBuffer()
	}
	s := &Saver{
		attemptID: attemptID,
		pending:   make(map[uint]AnswerEdit),
		transport: transport,
		fallback:  fallback,
		buffer:    buffer,
	}
	s.debouncer = NewDebouncer(window, s.Flush)
	return s
}

// SaveAnswer records an edit. Later edits to the same question overwrite the
// pending one; edits to different questions coexist.
func (s *Saver) SaveAnswer(questionID uint, answerData string) {
	edit := AnswerEdit{
		AttemptID:  s.attemptID,
		QuestionID: questionID,
		AnswerData: answerData,
		Timestamp:  time.Now(),
	}
	s.buffer.Put(questionID, edit)

	s.mu.Lock()
	s.pending[questionID] = edit
	s.mu.Unlock()

	s.debouncer.Trigger()
}

// Restore re-queues everything left in the local buffer, recovering edits
// that never reached the server before a reload.
func (s *Saver) Restore() {
	restored := s.buffer.All()
	if len(restored) == 0 {
		return
	}
	s.mu.Lock()
	for questionID, edit := range restored {
		if _, exists := s.pending[questionID]; !exists {
			s.pending[questionID] = edit
		}
	}
	s.mu.Unlock()
	s.debouncer.Trigger()
}

// Flush sends every pending edit. Normally invoked by the debouncer; exposed
// so a client can force a sync before submitting.
func (s *Saver) Flush() {
	s.mu.Lock()
	batch := s.pending
	s.pending = make(map[uint]AnswerEdit)
	s.mu.Unlock()

	for questionID, edit := range batch {
		if err := s.send(edit); err != nil {
			log.Warn().Err(err).Uint("questionID", questionID).Msg("Autosave failed, re-queueing edit")
			s.requeue(questionID, edit)
			continue
		}
		s.buffer.Delete(questionID)
	}
}

func (s *Saver) send(edit AnswerEdit) error {
	if s.transport != nil && s.transport.Connected() {
		return s.transport.Send(edit)
	}
	return s.fallback.Save(edit)
}

// requeue keeps the failed edit pending unless a newer edit for the question
// arrived while the flush ran.
func (s *Saver) requeue(questionID uint, edit AnswerEdit) {
	s.mu.Lock()
	if _, exists := s.pending[questionID]; !exists {
		s.pending[questionID] = edit
	}
	s.mu.Unlock()
	s.debouncer.Trigger()
}

// PendingCount reports how many questions still have unsynced edits.
func (s *Saver) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close stops the debounce timer and runs one final flush.
func (s *Saver) Close() {
	s.debouncer.Stop()
	s.Flush()
}
