package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Context represents the persisted UI context: the account and conversation
// the client reopens on start.
type Context struct {
	// AccountID is the currently active account.
	AccountID string `yaml:"account,omitempty"`
	// AccountName is the human-readable account label (for display).
	AccountName string `yaml:"account_name,omitempty"`
	// ConversationID is the last open conversation.
	ConversationID int64 `yaml:"conversation,omitempty"`
	// ConversationTitle is the conversation title (for display).
	ConversationTitle string `yaml:"conversation_title,omitempty"`
	// UpdatedAt is when the context was last modified.
	UpdatedAt time.Time `yaml:"updated_at,omitempty"`
}

// IsEmpty returns true if no context is set.
func (c *Context) IsEmpty() bool {
	return c.AccountID == "" && c.ConversationID == 0
}

// HasAccount returns true if an account is set.
func (c *Context) HasAccount() bool {
	return c.AccountID != ""
}

// HasConversation returns true if a conversation is set.
func (c *Context) HasConversation() bool {
	return c.ConversationID != 0
}

// Clear removes all context.
func (c *Context) Clear() {
	c.AccountID = ""
	c.AccountName = ""
	c.ConversationID = 0
	c.ConversationTitle = ""
	c.UpdatedAt = time.Now()
}

// SetAccount sets the account context.
func (c *Context) SetAccount(id, name string) {
	c.AccountID = id
	c.AccountName = name
	// Conversations are per account, so the selection resets with it.
	c.ConversationID = 0
	c.ConversationTitle = ""
	c.UpdatedAt = time.Now()
}

// SetConversation sets the conversation context.
func (c *Context) SetConversation(id int64, title string) {
	c.ConversationID = id
	c.ConversationTitle = title
	c.UpdatedAt = time.Now()
}

// String returns a human-readable representation of the context.
func (c *Context) String() string {
	if c.IsEmpty() {
		return "(no context set)"
	}
	var parts []string
	if c.HasAccount() {
		name := c.AccountName
		if name == "" {
			name = shortID(c.AccountID)
		}
		parts = append(parts, fmt.Sprintf("account:%s", name))
	}
	if c.HasConversation() {
		title := c.ConversationTitle
		if title == "" {
			title = fmt.Sprintf("%d", c.ConversationID)
		}
		parts = append(parts, fmt.Sprintf("conversation:%s", title))
	}
	if len(parts) == 0 {
		return "(no context set)"
	}
	result := parts[0]
	for i := 1; i < len(parts); i++ {
		result += " " + parts[i]
	}
	return result
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// ContextStore manages loading and saving context.
type ContextStore struct {
	path string
	mu   sync.RWMutex
}

// NewContextStore creates a new context store.
// If path is empty, uses the default path (~/.config/skald/context.yaml).
func NewContextStore(path string) *ContextStore {
	if path == "" {
		homeDir, _ := os.UserHomeDir()
		path = filepath.Join(homeDir, ".config", "skald", "context.yaml")
	}
	return &ContextStore{path: path}
}

// DefaultContextStore returns a context store using the default path.
func DefaultContextStore() *ContextStore {
	return NewContextStore("")
}

// Path returns the context file path.
func (s *ContextStore) Path() string {
	return s.path
}

// Load reads the context from disk.
// Returns an empty context if the file doesn't exist.
func (s *ContextStore) Load() (*Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := &Context{}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return ctx, nil
		}
		return nil, fmt.Errorf("failed to read context file: %w", err)
	}

	if err := yaml.Unmarshal(data, ctx); err != nil {
		return nil, fmt.Errorf("failed to parse context file: %w", err)
	}

	return ctx, nil
}

// Save writes the context to disk.
func (s *ContextStore) Save(ctx *Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Ensure directory exists
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create context directory: %w", err)
	}

	data, err := yaml.Marshal(ctx)
	if err != nil {
		return fmt.Errorf("failed to serialize context: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write context file: %w", err)
	}

	return nil
}

// Clear removes the context file.
func (s *ContextStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove context file: %w", err)
	}
	return nil
}
