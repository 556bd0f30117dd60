package session

import (
	"errors"
	"strings"
	"sync"

	"pdf-chat-rag/internal/models"

	"github.com/google/uuid"
)

// State is where a session is in the question/answer cycle
type State int

const (
	// Idle accepts a new question
	Idle State = iota
	// Pending holds a submitted question that has not been answered yet
	Pending
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	default:
		return "unknown"
	}
}

var (
	ErrQuestionPending = errors.New("a question is already being answered")
	ErrEmptyQuestion   = errors.New("question is empty")
	ErrNotPending      = errors.New("no question is pending")
)

// Session is one user's conversation: the chat history, the question being
// answered and the documents this user indexed.
type Session struct {
	ID string

	mu       sync.Mutex
	state    State
	pending  string
	messages []models.Message
	docs     []string
}

// New creates an idle session with a random ID
func New() *Session {
	return &Session{ID: uuid.NewString()}
}

// Submit records q as the user's next message and moves to Pending
func (s *Session) Submit(q string) error {
	if strings.TrimSpace(q) == "" {
		return ErrEmptyQuestion
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Pending {
		return ErrQuestionPending
	}

	s.messages = append(s.messages, models.Message{Role: models.RoleUser, Content: q})
	s.pending = q
	s.state = Pending
	return nil
}

// Resolve records answer as the assistant reply and returns to Idle
func (s *Session) Resolve(answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Pending {
		return ErrNotPending
	}

	s.messages = append(s.messages, models.Message{Role: models.RoleAssistant, Content: answer})
	s.pending = ""
	s.state = Idle
	return nil
}

// PendingQuestion returns the question awaiting an answer, if any
func (s *Session) PendingQuestion() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending, s.state == Pending
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Messages returns a copy of the history in order
func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// MarkIndexed records that docID was uploaded in this session
func (s *Session) MarkIndexed(docID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, docID)
}

// HasDocument reports whether any document was uploaded in this session
func (s *Session) HasDocument() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs) > 0
}

// LatestDocument returns the most recently uploaded document ID
func (s *Session) LatestDocument() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.docs) == 0 {
		return "", false
	}
	return s.docs[len(s.docs)-1], true
}

// Store holds sessions by ID
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewStore creates an empty session store
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Get returns the session with id, or nil
func (st *Store) Get(id string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.sessions[id]
}

// GetOrCreate returns the session with id, creating a fresh one when id is
// unknown. The second return value is false when a new session was created.
func (st *Store) GetOrCreate(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if s, ok := st.sessions[id]; ok {
		return s, true
	}

	s := New()
	st.sessions[s.ID] = s
	return s, false
}

// Len reports how many sessions exist
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
