package telegram

import (
	"sync"
	"time"
)

// StateKind identifies what kind of input a chat is waiting for.
type StateKind string

const (
	StateAwaitLogin    StateKind = "AWAIT_LOGIN"
	StateAwaitRegister StateKind = "AWAIT_REGISTER"
)

// chatStateTTL bounds how long a prompt stays armed. A stale credential
// prompt silently expires instead of swallowing an unrelated message.
const chatStateTTL = 5 * time.Minute

// ChatState is a pending conversational step for one chat, e.g. awaiting
// credentials after /login. State is in-memory only and expires on its own.
type ChatState struct {
	Kind      StateKind
	ExpiresAt time.Time
}

// ChatStates tracks pending conversational state per chat.
type ChatStates struct {
	mu     sync.Mutex
	states map[int64]ChatState
}

// NewChatStates creates an empty state registry.
func NewChatStates() *ChatStates {
	return &ChatStates{states: make(map[int64]ChatState)}
}

// Set arms a pending state for a chat, replacing any previous one.
func (cs *ChatStates) Set(chatID int64, kind StateKind) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.states[chatID] = ChatState{
		Kind:      kind,
		ExpiresAt: time.Now().Add(chatStateTTL),
	}
}

// GetActive returns the pending state for a chat if one exists and has not
// expired. Expired states are dropped on access.
func (cs *ChatStates) GetActive(chatID int64) (ChatState, bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	state, ok := cs.states[chatID]
	if !ok {
		return ChatState{}, false
	}
	if time.Now().After(state.ExpiresAt) {
		delete(cs.states, chatID)
		return ChatState{}, false
	}
	return state, true
}

// Clear removes the pending state for a chat.
func (cs *ChatStates) Clear(chatID int64) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	delete(cs.states, chatID)
}
