// ABOUTME: Message is one persisted conversation turn half (human or ai) within a thread
// ABOUTME: ThreadInfo summarises a stored conversation for listings
package models

import (
	"fmt"
	"strings"
	"time"
)

// Role identifies who produced a message
type Role string

const (
	RoleSystem Role = "system"
	RoleHuman  Role = "human"
	RoleAI     Role = "ai"
)

// IsValid checks if the role is a known message role
func (r Role) IsValid() bool {
	switch r {
	case RoleSystem, RoleHuman, RoleAI:
		return true
	}
	return false
}

// Message is a single entry in a conversation thread
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMessage creates a timestamped message
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content, CreatedAt: time.Now().UTC()}
}

// Validate checks role and content before persisting
func (m Message) Validate() error {
	if !m.Role.IsValid() {
		return fmt.Errorf("invalid message role %q", m.Role)
	}
	if m.Role == RoleHuman && strings.TrimSpace(m.Content) == "" {
		return fmt.Errorf("%w: human message cannot be empty", ErrInvalidInput)
	}
	return nil
}

// ThreadInfo describes a stored conversation thread
type ThreadInfo struct {
	ID           string    `json:"id"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewSessionID returns an id in the session_YYYYMMDD_HHMMSS form used by the chat surfaces
func NewSessionID(now time.Time) string {
	return "session_" + now.Format("20060102_150405")
}
