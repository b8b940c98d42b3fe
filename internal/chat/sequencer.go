package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dkoval/workshop-labs/internal/domain"
	"github.com/dkoval/workshop-labs/internal/retry"
)

// ErrNoCredential is returned when a chat request arrives before the session
// supplied an API credential.
var ErrNoCredential = errors.New("chat credential not set for session")

// ErrUnknownSection is returned for sections without a script.
var ErrUnknownSection = errors.New("no chat script for section")

// Turn is the sequencer's answer to one user reply.
type Turn struct {
	// Assistant is the full assistant turn: the model reply, plus the next
	// scripted follow-up while any remain.
	Assistant string `json:"assistant"`

	// Extracted holds section field values pulled from the transcript so far.
	Extracted map[string]string `json:"extracted,omitempty"`

	// FollowUpsLeft counts scripted prompts not yet issued.
	FollowUpsLeft int `json:"follow_ups_left"`
}

// conversation is the per-(session, section) cursor state.
type conversation struct {
	transcript []domain.ChatMessage
	cursor     int // follow-ups already issued
}

// sessionState holds a session's in-memory chat state. The provider wraps
// the credential; dropping the state is what ends the credential's lifetime.
type sessionState struct {
	provider Provider
	convos   map[domain.Section]*conversation
}

// Sequencer walks each section's scripted prompts, requesting one model
// reply per user message and advancing the linear cursor afterwards.
type Sequencer struct {
	factory ProviderFactory
	scripts map[domain.Section]Script
	policy  retry.Policy

	mu              sync.Mutex
	defaultProvider Provider // server-wide credential, optional
	sessions        map[string]*sessionState
}

// NewSequencer creates a sequencer. scripts may be nil for the defaults.
func NewSequencer(factory ProviderFactory, scripts map[domain.Section]Script) *Sequencer {
	if scripts == nil {
		scripts = DefaultScripts()
	}
	return &Sequencer{
		factory: factory,
		scripts: scripts,
		policy: retry.Policy{
			MaxAttempts: 3,
			Delay:       2 * time.Second,
			Exponential: true,
			Classify:    retry.IsTransient,
		},
		sessions: make(map[string]*sessionState),
	}
}

// SetCredential stores the caller-supplied API credential for a session.
// The key never touches the store or the logs.
func (q *Sequencer) SetCredential(sessionID, apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return fmt.Errorf("credential cannot be empty")
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	state := q.sessions[sessionID]
	if state == nil {
		state = &sessionState{convos: make(map[domain.Section]*conversation)}
		q.sessions[sessionID] = state
	}
	state.provider = q.factory(apiKey)
	return nil
}

// SetDefaultCredential installs a server-wide credential used by sessions
// that did not supply their own.
func (q *Sequencer) SetDefaultCredential(apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return fmt.Errorf("credential cannot be empty")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.defaultProvider = q.factory(apiKey)
	return nil
}

// HasCredential reports whether the session can issue chat requests.
func (q *Sequencer) HasCredential(sessionID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.defaultProvider != nil {
		return true
	}
	state := q.sessions[sessionID]
	return state != nil && state.provider != nil
}

// CloseSession drops all chat state for a session, ending the credential's
// in-memory lifetime.
func (q *Sequencer) CloseSession(sessionID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.sessions, sessionID)
}

// Transcript returns a copy of the section's transcript and the number of
// follow-ups not yet issued. The opening prompt is seeded on first access.
func (q *Sequencer) Transcript(sessionID string, section domain.Section) ([]domain.ChatMessage, int, error) {
	script, ok := q.scripts[section]
	if !ok {
		return nil, 0, ErrUnknownSection
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	convo := q.convo(sessionID, section, script)

	out := make([]domain.ChatMessage, len(convo.transcript))
	copy(out, convo.transcript)
	return out, len(script.FollowUps) - convo.cursor, nil
}

// Reply processes one user message: request a model reply to it, then
// advance to the next scripted follow-up if any remain. Each user reply
// yields exactly one assistant turn.
func (q *Sequencer) Reply(ctx context.Context, sessionID string, section domain.Section, userMsg string) (*Turn, error) {
	script, ok := q.scripts[section]
	if !ok {
		return nil, ErrUnknownSection
	}

	q.mu.Lock()
	provider := q.defaultProvider
	if state := q.sessions[sessionID]; state != nil && state.provider != nil {
		provider = state.provider
	}
	if provider == nil {
		q.mu.Unlock()
		return nil, ErrNoCredential
	}
	convo := q.convo(sessionID, section, script)
	convo.transcript = append(convo.transcript, domain.ChatMessage{
		Role:    domain.RoleUser,
		Content: userMsg,
		Section: section,
	})
	snapshot := make([]domain.ChatMessage, len(convo.transcript))
	copy(snapshot, convo.transcript)
	q.mu.Unlock()

	system := systemPrompt(section)
	reply, err := retry.Do(ctx, q.policy, func(ctx context.Context) (string, error) {
		return provider.Complete(ctx, system, snapshot)
	})
	if err != nil {
		return nil, fmt.Errorf("assistant reply: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	assistant := reply
	if convo.cursor < len(script.FollowUps) {
		assistant = strings.TrimSpace(reply) + "\n\n" + script.FollowUps[convo.cursor]
		convo.cursor++
	}
	convo.transcript = append(convo.transcript, domain.ChatMessage{
		Role:    domain.RoleAssistant,
		Content: assistant,
		Section: section,
	})

	return &Turn{
		Assistant:     assistant,
		Extracted:     ExtractFields(convo.transcript, section),
		FollowUpsLeft: len(script.FollowUps) - convo.cursor,
	}, nil
}

// convo returns the conversation for a (session, section), seeding the
// opening prompt on first access. Caller must hold q.mu.
func (q *Sequencer) convo(sessionID string, section domain.Section, script Script) *conversation {
	state := q.sessions[sessionID]
	if state == nil {
		state = &sessionState{convos: make(map[domain.Section]*conversation)}
		q.sessions[sessionID] = state
	}
	convo := state.convos[section]
	if convo == nil {
		convo = &conversation{
			transcript: []domain.ChatMessage{{
				Role:    domain.RoleAssistant,
				Content: script.Opening,
				Section: section,
			}},
		}
		state.convos[section] = convo
	}
	return convo
}

func systemPrompt(section domain.Section) string {
	var b strings.Builder
	b.WriteString("You are a friendly brand-workshop facilitator helping a participant fill in the \"")
	b.WriteString(string(section))
	b.WriteString("\" section. Keep replies short and conversational. ")
	b.WriteString("When the participant settles on an answer, restate it on its own line as \"")
	fields := section.Fields()
	for i, f := range fields {
		if i > 0 {
			b.WriteString("\", \"")
		}
		b.WriteString(strings.ReplaceAll(f, "_", " "))
		b.WriteString(": <value>")
	}
	b.WriteString("\" so the form can pick it up.")
	return b.String()
}
