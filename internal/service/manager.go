package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/elderquery/elderquery/internal/config"
	"github.com/elderquery/elderquery/internal/domain"
)

// Notice is a user-visible notification, delivered to the UI with the next
// state fetch and then dropped.
type Notice struct {
	Title   string    `json:"title"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Snapshot is an immutable view of manager state for the HTTP layer.
type Snapshot struct {
	Conversations []domain.Conversation `json:"conversations"`
	ActiveID      string                `json:"activeId,omitempty"`
	SignedIn      bool                  `json:"signedIn"`
	Initialized   bool                  `json:"initialized"`
	Syncing       bool                  `json:"syncing"`
	Processing    bool                  `json:"processing"`
	Notices       []Notice              `json:"notices,omitempty"`
}

// ConversationManager owns the in-memory conversation list and the active
// conversation, and keeps whichever store the current identity selects in
// step with every mutation.
//
// Mutating operations are serialized: a load (sync) or an in-flight query
// rejects overlapping mutations with ErrSyncing / ErrBusy instead of racing.
type ConversationManager struct {
	stores   *StoreSelector
	pipeline Pipeline
	keys     *APIKeyService

	mu            sync.Mutex
	conversations []domain.Conversation
	activeID      string
	identity      string
	initialized   bool
	syncing       bool
	processing    bool

	noticeMu sync.Mutex
	notices  []Notice
}

func NewConversationManager(stores *StoreSelector, pipeline Pipeline, keys *APIKeyService) *ConversationManager {
	return &ConversationManager{
		stores:   stores,
		pipeline: pipeline,
		keys:     keys,
	}
}

// SetIdentity reacts to the session provider reporting a new identity; an
// empty identity means signed out. It rebinds the store selector, loads the
// bound store, and on first sign-in migrates any local conversations into the
// remote store. Load failures surface a notice and keep whatever is already
// in memory.
func (m *ConversationManager) SetIdentity(ctx context.Context, identity string) error {
	m.mu.Lock()
	if m.processing {
		m.mu.Unlock()
		return domain.ErrBusy
	}
	if m.syncing {
		m.mu.Unlock()
		return domain.ErrSyncing
	}
	if identity != "" && !m.stores.HasRemote() {
		m.mu.Unlock()
		return domain.ErrRemoteUnavailable
	}
	m.syncing = true
	m.identity = identity
	m.mu.Unlock()

	m.stores.Bind(identity)
	st, owner := m.stores.Active()

	loaded, err := st.LoadAll(ctx, owner)
	if err != nil {
		slog.Error("load conversations", "error", err, "signed_in", identity != "")
		m.notify("Error", "Failed to load past conversations")
		m.finishSync()
		return nil
	}

	if identity != "" && len(loaded) == 0 {
		if migrated := m.migrateLocal(ctx, identity); migrated != nil {
			loaded = migrated
		}
	}
	if identity != "" {
		m.migrateLocalKeys(ctx, identity)
	}

	m.mu.Lock()
	m.conversations = loaded
	m.activeID = ""
	m.syncing = false
	m.initialized = true
	m.mu.Unlock()
	return nil
}

// migrateLocal performs the one-time local-to-remote copy on first
// authenticated load. Parent rows go first so children can reference them.
// Best-effort and never retried: the local store is cleared afterwards
// whatever happened.
func (m *ConversationManager) migrateLocal(ctx context.Context, identity string) []domain.Conversation {
	local := m.stores.Local()
	remote := m.stores.Remote()

	convs, err := local.LoadAll(ctx, "")
	if err != nil {
		slog.Error("load local conversations for migration", "error", err)
		return nil
	}
	if len(convs) == 0 {
		return nil
	}

	slog.Info("migrating local conversations to remote store", "count", len(convs))
	for _, conv := range convs {
		if err := remote.UpsertConversation(ctx, identity, conv); err != nil {
			slog.Error("migrate conversation", "error", err, "conversation_id", conv.ID)
			continue
		}
		for _, msg := range conv.Messages {
			if err := remote.InsertMessage(ctx, identity, conv.ID, msg); err != nil {
				slog.Error("migrate message", "error", err, "conversation_id", conv.ID)
			}
		}
		if len(conv.SearchResults) > 0 {
			if err := remote.ReplaceSearchResults(ctx, identity, conv.ID, conv.SearchResults); err != nil {
				slog.Error("migrate search results", "error", err, "conversation_id", conv.ID)
			}
		}
		if len(conv.YouTubeResults) > 0 {
			if err := remote.ReplaceYouTubeResults(ctx, identity, conv.ID, conv.YouTubeResults); err != nil {
				slog.Error("migrate youtube results", "error", err, "conversation_id", conv.ID)
			}
		}
	}

	if err := local.Clear(ctx, ""); err != nil {
		slog.Error("clear local conversations after migration", "error", err)
	}
	return convs
}

// migrateLocalKeys copies locally stored API keys into the remote row when
// the remote row has none.
func (m *ConversationManager) migrateLocalKeys(ctx context.Context, identity string) {
	remote := m.stores.Remote()

	remoteKeys, err := remote.GetAPIKeys(ctx, identity)
	if err != nil {
		slog.Error("load remote api keys", "error", err)
		return
	}

	localKeys, err := m.stores.Local().GetAPIKeys(ctx, "")
	if err != nil {
		slog.Error("load local api keys", "error", err)
		return
	}

	if remoteKeys.Tavily == "" && localKeys.Tavily != "" {
		if err := remote.SetAPIKey(ctx, identity, domain.ProviderTavily, localKeys.Tavily); err != nil {
			slog.Error("migrate tavily key", "error", err)
		}
	}
	if remoteKeys.OpenAI == "" && localKeys.OpenAI != "" {
		if err := remote.SetAPIKey(ctx, identity, domain.ProviderOpenAI, localKeys.OpenAI); err != nil {
			slog.Error("migrate openai key", "error", err)
		}
	}
}

// CreateConversation builds a fresh conversation and prepends it to the list.
// It does not become active; the caller decides that.
func (m *ConversationManager) CreateConversation(ctx context.Context) (domain.Conversation, error) {
	m.mu.Lock()
	if err := m.readyLocked(); err != nil {
		m.mu.Unlock()
		return domain.Conversation{}, err
	}
	conv := domain.NewConversation()
	m.conversations = append([]domain.Conversation{conv}, m.conversations...)
	m.mu.Unlock()

	st, owner := m.stores.Active()
	if err := st.UpsertConversation(ctx, owner, conv); err != nil {
		slog.Error("save conversation", "error", err, "conversation_id", conv.ID)
		m.notify("Error", "Failed to save conversation")
	}
	return conv.Clone(), nil
}

// SubmitQuery runs one full query turn: user message, pipeline, assistant
// message plus fresh result sets. The user message is appended (and
// persisted) before the pipeline runs; an answer failure keeps it and adds
// nothing else.
func (m *ConversationManager) SubmitQuery(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ErrEmptyQuery
	}

	if err := m.keys.Require(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	if err := m.readyLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	m.processing = true
	defer m.endProcessing()

	st, owner := m.stores.Active()

	created := false
	conv := m.findLocked(m.activeID)
	if conv == nil {
		c := domain.NewConversation()
		m.conversations = append([]domain.Conversation{c}, m.conversations...)
		m.activeID = c.ID
		conv = &m.conversations[0]
		created = true
	}

	userMsg := domain.NewMessage(domain.RoleUser, text)
	firstMessage := len(conv.Messages) == 0
	if firstMessage {
		conv.Title = domain.TitleFromQuery(text)
	}
	conv.Messages = append(conv.Messages, userMsg)
	conv.UpdatedAt = userMsg.CreatedAt

	convID := conv.ID
	meta := domain.Conversation{
		ID:        conv.ID,
		Title:     conv.Title,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
	}
	history := append([]domain.Message(nil), conv.Messages...)
	m.mu.Unlock()

	if created || firstMessage {
		if err := st.UpsertConversation(ctx, owner, meta); err != nil {
			slog.Error("save conversation", "error", err, "conversation_id", convID)
			m.notify("Error", "Failed to save conversation")
		}
	}
	if err := st.InsertMessage(ctx, owner, convID, userMsg); err != nil {
		slog.Error("save message", "error", err, "conversation_id", convID)
		m.notify("Error", "Failed to save message")
	}

	var (
		answer    string
		answerErr error
		results   []domain.SearchResult
		videos    []domain.YouTubeResult
	)

	// The three pipeline calls are independent; search failures degrade to
	// empty result sets, only an answer failure aborts the turn.
	g := new(errgroup.Group)
	g.Go(func() error {
		answer, answerErr = m.pipeline.GenerateAnswer(ctx, text, history)
		return nil
	})
	g.Go(func() error {
		r, err := m.pipeline.Search(ctx, text)
		if err != nil {
			slog.Error("web search", "error", err)
			m.notify("Search Failed", "Failed to perform search")
			return nil
		}
		results = r
		return nil
	})
	g.Go(func() error {
		v, err := m.pipeline.SearchYouTube(ctx, text)
		if err != nil {
			slog.Error("youtube search", "error", err)
			m.notify("YouTube Search Failed", "Failed to search YouTube")
			return nil
		}
		videos = v
		return nil
	})
	_ = g.Wait()

	if answerErr != nil {
		slog.Error("process query", "error", answerErr, "conversation_id", convID)
		m.notify("Processing Failed", "Failed to process your question. Please try again.")
		return nil
	}

	assistantMsg := domain.NewMessage(domain.RoleAssistant, answer)

	m.mu.Lock()
	if conv := m.findLocked(convID); conv != nil {
		conv.Messages = append(conv.Messages, assistantMsg)
		conv.SearchResults = results
		conv.YouTubeResults = videos
		conv.UpdatedAt = assistantMsg.CreatedAt
	}
	m.mu.Unlock()

	// Each remaining write is independently best-effort: a failure is
	// reported, never rolled back, and never stops the others.
	if err := st.InsertMessage(ctx, owner, convID, assistantMsg); err != nil {
		slog.Error("save assistant message", "error", err, "conversation_id", convID)
		m.notify("Error", "Failed to save message")
	}
	if err := st.ReplaceSearchResults(ctx, owner, convID, results); err != nil {
		slog.Error("save search results", "error", err, "conversation_id", convID)
		m.notify("Error", "Failed to save search results")
	}
	if err := st.ReplaceYouTubeResults(ctx, owner, convID, videos); err != nil {
		slog.Error("save youtube results", "error", err, "conversation_id", convID)
		m.notify("Error", "Failed to save video results")
	}
	if err := st.TouchConversation(ctx, owner, convID, assistantMsg.CreatedAt); err != nil {
		slog.Error("touch conversation", "error", err, "conversation_id", convID)
	}
	return nil
}

// SwitchConversation makes the identified conversation active. Unknown ids
// are ignored: the current active conversation stays.
func (m *ConversationManager) SwitchConversation(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findLocked(id) != nil {
		m.activeID = id
	}
}

// DeleteConversation removes the conversation from memory and from the bound
// store. The in-memory removal happens regardless of the store outcome; a
// store failure only surfaces a notice.
func (m *ConversationManager) DeleteConversation(ctx context.Context, id string) error {
	m.mu.Lock()
	if err := m.readyLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	out := m.conversations[:0]
	for _, c := range m.conversations {
		if c.ID != id {
			out = append(out, c)
		}
	}
	m.conversations = out
	if m.activeID == id {
		m.activeID = ""
	}
	m.mu.Unlock()

	st, owner := m.stores.Active()
	if err := st.DeleteConversation(ctx, owner, id); err != nil {
		slog.Error("delete conversation", "error", err, "conversation_id", id)
		m.notify("Error", "Failed to delete conversation")
	}
	return nil
}

// Snapshot returns a deep copy of the current state and drains pending
// notices.
func (m *ConversationManager) Snapshot() Snapshot {
	m.mu.Lock()
	snap := Snapshot{
		Conversations: make([]domain.Conversation, len(m.conversations)),
		ActiveID:      m.activeID,
		SignedIn:      m.identity != "",
		Initialized:   m.initialized,
		Syncing:       m.syncing,
		Processing:    m.processing,
	}
	for i, c := range m.conversations {
		snap.Conversations[i] = c.Clone()
	}
	m.mu.Unlock()

	m.noticeMu.Lock()
	snap.Notices = m.notices
	m.notices = nil
	m.noticeMu.Unlock()
	return snap
}

// readyLocked gates mutating operations: the manager accepts them only after
// the first load, outside a sync, and with no query in flight.
func (m *ConversationManager) readyLocked() error {
	switch {
	case !m.initialized:
		return domain.ErrNotInitialized
	case m.syncing:
		return domain.ErrSyncing
	case m.processing:
		return domain.ErrBusy
	}
	return nil
}

func (m *ConversationManager) findLocked(id string) *domain.Conversation {
	if id == "" {
		return nil
	}
	for i := range m.conversations {
		if m.conversations[i].ID == id {
			return &m.conversations[i]
		}
	}
	return nil
}

func (m *ConversationManager) finishSync() {
	m.mu.Lock()
	m.syncing = false
	m.initialized = true
	m.mu.Unlock()
}

func (m *ConversationManager) endProcessing() {
	m.mu.Lock()
	m.processing = false
	m.mu.Unlock()
}

func (m *ConversationManager) notify(title, message string) {
	m.noticeMu.Lock()
	defer m.noticeMu.Unlock()
	m.notices = append(m.notices, Notice{Title: title, Message: message, Time: time.Now()})
	if len(m.notices) > config.MaxPendingNotices {
		m.notices = m.notices[len(m.notices)-config.MaxPendingNotices:]
	}
}
