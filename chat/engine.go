package chat

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mbeoliero/kit/log"

	"github.com/mbeoliero/parley/pkg/idgen"
	"github.com/mbeoliero/parley/realtime"
	"github.com/mbeoliero/parley/rest"
)

// ScopeConversations is the error scope for conversation-list fetches
const ScopeConversations = "conversations"

// Options configures the Engine
type Options struct {
	API         API
	Channel     Channel
	LocalUserId string
	// PageSize is the message page size for fetches (default 50)
	PageSize int
	// TypingTimeout is the local debounce before a typing burst emits its
	// stop event (default 1500ms)
	TypingTimeout time.Duration
	// MaxUploadSize rejects media sends before any network call (default 5MB)
	MaxUploadSize int64
}

func (o *Options) defaults() {
	if o.PageSize == 0 {
		o.PageSize = 50
	}
	if o.TypingTimeout == 0 {
		o.TypingTimeout = 1500 * time.Millisecond
	}
	if o.MaxUploadSize == 0 {
		o.MaxUploadSize = 5 << 20
	}
}

type subRef struct {
	event string
	id    int
}

// Engine is the single source of truth for conversation state. It
// reconciles REST snapshots, realtime deltas and local actions; the UI only
// reads its accessors and forwards intents into it.
type Engine struct {
	api           API
	ch            Channel
	localUserId   string
	pageSize      int
	typingTimeout time.Duration
	maxUpload     int64

	mu            sync.Mutex
	conversations []*rest.Conversation
	index         map[string]*rest.Conversation
	activeId      string
	activePage    int
	messages      []*Message
	typing        map[string]map[string]string // conversationId -> userId -> username
	loading       bool
	errs          map[string]error
	selectSeq     uint64

	typingTimers map[string]*time.Timer
	typingLive   map[string]bool
	typingGen    map[string]uint64

	subs []subRef
}

// NewEngine creates an Engine. Call Bind to attach it to the channel's
// inbound events.
func NewEngine(opts Options) *Engine {
	opts.defaults()
	return &Engine{
		api:           opts.API,
		ch:            opts.Channel,
		localUserId:   opts.LocalUserId,
		pageSize:      opts.PageSize,
		typingTimeout: opts.TypingTimeout,
		maxUpload:     opts.MaxUploadSize,
		index:         make(map[string]*rest.Conversation),
		typing:        make(map[string]map[string]string),
		errs:          make(map[string]error),
		typingTimers:  make(map[string]*time.Timer),
		typingLive:    make(map[string]bool),
		typingGen:     make(map[string]uint64),
	}
}

// Bind subscribes the engine's reducers to the channel's inbound events
func (e *Engine) Bind() {
	handlers := []struct {
		event string
		h     realtime.Handler
	}{
		{realtime.EventMessageNew, e.onMessageNew},
		{realtime.EventMessageEdited, e.onMessageEdited},
		{realtime.EventMessageDeleted, e.onMessageDeleted},
		{realtime.EventTypingStart, e.onTypingStart},
		{realtime.EventTypingStop, e.onTypingStop},
		{realtime.EventNotificationMessage, e.onNotification},
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range handlers {
		id := e.ch.Subscribe(s.event, s.h)
		e.subs = append(e.subs, subRef{event: s.event, id: id})
	}
}

// Close detaches the engine from the channel and drops all state
func (e *Engine) Close() {
	e.mu.Lock()
	subs := e.subs
	e.subs = nil
	e.mu.Unlock()

	for _, s := range subs {
		e.ch.Unsubscribe(s.event, s.id)
	}
	e.Reset()
}

// Reset drops all conversation state, used on logout
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range e.typingTimers {
		t.Stop()
	}
	e.conversations = nil
	e.index = make(map[string]*rest.Conversation)
	e.activeId = ""
	e.activePage = 0
	e.messages = nil
	e.typing = make(map[string]map[string]string)
	e.loading = false
	e.errs = make(map[string]error)
	e.typingTimers = make(map[string]*time.Timer)
	e.typingLive = make(map[string]bool)
	e.typingGen = make(map[string]uint64)
}

// LoadConversations fetches the conversation list. Known conversations are
// updated in place so there is never more than one entity per identifier;
// a fetch failure leaves prior state untouched.
func (e *Engine) LoadConversations(ctx context.Context) error {
	e.mu.Lock()
	e.loading = true
	e.mu.Unlock()

	convs, err := e.api.ListConversations(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.loading = false
	if err != nil {
		e.errs[ScopeConversations] = err
		log.Error("chat: fetch conversations failed: %v", err)
		return err
	}
	delete(e.errs, ScopeConversations)

	merged := make([]*rest.Conversation, 0, len(convs))
	for _, c := range convs {
		if cur, ok := e.index[c.Id]; ok {
			*cur = *c
			merged = append(merged, cur)
		} else {
			e.index[c.Id] = c
			merged = append(merged, c)
		}
	}
	e.conversations = merged
	return nil
}

// SelectConversation makes a conversation active: leaves the previous room,
// fetches the first message page, joins the new room and marks it read.
// Selecting again before a prior fetch resolves supersedes it; the stale
// result is discarded by the sequence token.
func (e *Engine) SelectConversation(ctx context.Context, conversationId string) error {
	e.mu.Lock()
	conv, ok := e.index[conversationId]
	if !ok {
		e.mu.Unlock()
		return ErrUnknownConversation
	}
	prev := e.activeId
	e.selectSeq++
	seq := e.selectSeq
	e.activeId = conversationId
	e.activePage = 1
	e.messages = nil
	e.loading = true
	delete(e.errs, conversationId)
	e.mu.Unlock()

	if prev != "" && prev != conversationId {
		// Best effort: silently dropped if the channel is down
		e.ch.Emit(realtime.EventRoomLeave, &realtime.RoomPayload{ConversationId: prev})
	}

	msgs, err := e.api.ListMessages(ctx, conversationId, 1, e.pageSize)

	e.mu.Lock()
	if e.selectSeq != seq {
		// Superseded by a newer selection; drop the result
		e.mu.Unlock()
		return nil
	}
	e.loading = false
	if err != nil {
		e.errs[conversationId] = err
		e.mu.Unlock()
		log.Error("chat: fetch messages for %s failed: %v", conversationId, err)
		return err
	}

	// Events that arrived while the fetch was in flight are already in
	// e.messages; the page goes first, the accrued events keep their
	// arrival order after it, deduplicated by identifier
	list := make([]*Message, 0, len(msgs)+len(e.messages))
	seen := make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		list = append(list, &Message{Message: *m, State: MessageConfirmed})
		seen[m.Id] = struct{}{}
	}
	for _, m := range e.messages {
		if _, dup := seen[m.Id]; dup {
			continue
		}
		list = append(list, m)
	}
	e.messages = list

	// Unread resets optimistically; a failed mark-read is not rolled back,
	// re-opening the conversation retries it. The join emit happens under
	// the lock so a newer selection cannot order ahead of it.
	conv.UnreadCount = 0
	e.ch.Emit(realtime.EventRoomJoin, &realtime.RoomPayload{ConversationId: conversationId})
	e.mu.Unlock()

	if err := e.api.MarkRead(ctx, conversationId); err != nil {
		log.Warn("chat: mark read %s failed: %v", conversationId, err)
	}

	return nil
}

// LoadOlderMessages fetches the next page for the active conversation and
// prepends it, deduplicating against already loaded identifiers.
func (e *Engine) LoadOlderMessages(ctx context.Context) error {
	e.mu.Lock()
	if e.activeId == "" || e.loading {
		e.mu.Unlock()
		return nil
	}
	id := e.activeId
	seq := e.selectSeq
	page := e.activePage + 1
	e.loading = true
	e.mu.Unlock()

	msgs, err := e.api.ListMessages(ctx, id, page, e.pageSize)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.selectSeq != seq {
		return nil
	}
	e.loading = false
	if err != nil {
		e.errs[id] = err
		log.Error("chat: fetch page %d for %s failed: %v", page, id, err)
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	e.activePage = page

	seen := make(map[string]struct{}, len(e.messages))
	for _, m := range e.messages {
		seen[m.Id] = struct{}{}
	}
	older := make([]*Message, 0, len(msgs))
	for _, m := range msgs {
		if _, dup := seen[m.Id]; dup {
			continue
		}
		older = append(older, &Message{Message: *m, State: MessageConfirmed})
	}
	e.messages = append(older, e.messages...)
	return nil
}

// CreatePrivateConversation creates (or resolves) a one-to-one conversation
// and inserts it at the head of the list if new
func (e *Engine) CreatePrivateConversation(ctx context.Context, userId string) (*rest.Conversation, error) {
	conv, err := e.api.CreatePrivateConversation(ctx, userId)
	if err != nil {
		return nil, err
	}
	return e.insertConversation(conv), nil
}

// CreateGroupConversation creates a group conversation and inserts it at
// the head of the list
func (e *Engine) CreateGroupConversation(ctx context.Context, req *rest.CreateGroupRequest) (*rest.Conversation, error) {
	conv, err := e.api.CreateGroupConversation(ctx, req)
	if err != nil {
		return nil, err
	}
	return e.insertConversation(conv), nil
}

func (e *Engine) insertConversation(conv *rest.Conversation) *rest.Conversation {
	e.mu.Lock()
	defer e.mu.Unlock()
	cur, ok := e.index[conv.Id]
	if !ok {
		e.index[conv.Id] = conv
		e.conversations = append([]*rest.Conversation{conv}, e.conversations...)
		cur = conv
	}
	return copyConversation(cur)
}

// SendText sends a plain text message through the realtime channel. There
// is no optimistic echo: the message renders when the server echoes it back
// as message:new on the active room. Returns ErrNotConnected while the
// channel is down rather than silently dropping the send.
func (e *Engine) SendText(conversationId, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyContent
	}

	e.mu.Lock()
	_, known := e.index[conversationId]
	e.mu.Unlock()
	if !known {
		return ErrUnknownConversation
	}
	if e.ch.State() != realtime.StateConnected {
		return ErrNotConnected
	}

	// Sending ends the current typing burst
	e.stopTypingBurst(conversationId)

	clientMsgId, err := idgen.NextID()
	if err != nil {
		log.Warn("chat: client msg id generation failed: %v", err)
	}
	return e.ch.Emit(realtime.EventMessageSend, &SendMessagePayload{
		ConversationId: conversationId,
		Content:        content,
		ClientMsgId:    clientMsgId,
	})
}

// SendMedia uploads an image or file through the REST collaborator and, on
// success, appends the created record immediately without waiting for any
// realtime echo.
func (e *Engine) SendMedia(ctx context.Context, conversationId, caption, filename string, file io.Reader, size int64) (*Message, error) {
	if size <= 0 {
		return nil, ErrEmptyFile
	}
	if size > e.maxUpload {
		return nil, ErrFileTooLarge
	}
	e.mu.Lock()
	_, known := e.index[conversationId]
	e.mu.Unlock()
	if !known {
		return nil, ErrUnknownConversation
	}

	e.stopTypingBurst(conversationId)

	msg, err := e.api.SendMedia(ctx, conversationId, caption, filename, file)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	stored := &Message{Message: *msg, State: MessageConfirmed}
	if e.activeId == conversationId && e.findActiveLocked(msg.Id) == nil {
		e.messages = append(e.messages, stored)
	}
	if conv := e.index[conversationId]; conv != nil {
		conv.LastMessage = msg
		conv.UpdatedAt = msg.CreatedAt
	}
	ret := *stored
	return &ret, nil
}

// EditMessage edits a message through the REST collaborator and patches the
// local copy immediately; the echoed realtime event is a no-op against it.
func (e *Engine) EditMessage(ctx context.Context, messageId, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyContent
	}

	msg, err := e.api.EditMessage(ctx, messageId, content)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if m := e.findActiveLocked(messageId); m != nil && m.State != MessageTombstoned {
		m.Content = msg.Content
		m.Edited = true
	}
	e.patchSummaryLocked(msg)
	return nil
}

// DeleteMessage soft-deletes a message through the REST collaborator and
// tombstones the local copy in place; the entry keeps its list position.
func (e *Engine) DeleteMessage(ctx context.Context, messageId string) error {
	if err := e.api.DeleteMessage(ctx, messageId); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.tombstoneLocked(messageId)
	return nil
}

// IsOnline reports whether a user is in the channel's presence set
func (e *Engine) IsOnline(userId string) bool {
	return e.ch.IsOnline(userId)
}

// ===== Accessors (snapshots, never live references) =====

// Conversations returns the ordered conversation list as value copies
func (e *Engine) Conversations() []*rest.Conversation {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*rest.Conversation, len(e.conversations))
	for i, c := range e.conversations {
		out[i] = copyConversation(c)
	}
	return out
}

// Conversation returns a copy of a conversation by identifier, or nil
func (e *Engine) Conversation(conversationId string) *rest.Conversation {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.index[conversationId]
	if c == nil {
		return nil
	}
	return copyConversation(c)
}

// ActiveId returns the active conversation identifier, or ""
func (e *Engine) ActiveId() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeId
}

// ActiveConversation returns a copy of the active conversation, or nil
func (e *Engine) ActiveConversation() *rest.Conversation {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.activeId == "" {
		return nil
	}
	c := e.index[e.activeId]
	if c == nil {
		return nil
	}
	return copyConversation(c)
}

// Messages returns the active conversation's message list as value copies
func (e *Engine) Messages() []*Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Message, len(e.messages))
	for i, m := range e.messages {
		cp := *m
		out[i] = &cp
	}
	return out
}

// TypingUsers returns the display names currently typing in the active
// conversation, sorted for stable rendering
func (e *Engine) TypingUsers() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.activeId == "" {
		return nil
	}
	room := e.typing[e.activeId]
	if len(room) == 0 {
		return nil
	}
	names := make([]string, 0, len(room))
	for _, name := range room {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Loading reports whether a fetch is in flight
func (e *Engine) Loading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loading
}

// Err returns the absorbed read-path error for a scope (a conversation
// identifier or ScopeConversations), or nil
func (e *Engine) Err(scope string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.errs[scope]
}

// ClearErr clears the error flag for a scope
func (e *Engine) ClearErr(scope string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.errs, scope)
}

// ===== internal =====

// copyConversation returns a value copy safe to read outside the lock. The
// reducers mutate the conversation and its last-message summary in place,
// so both are copied.
func copyConversation(c *rest.Conversation) *rest.Conversation {
	cp := *c
	if c.LastMessage != nil {
		lm := *c.LastMessage
		cp.LastMessage = &lm
	}
	return &cp
}

func (e *Engine) findActiveLocked(messageId string) *Message {
	for _, m := range e.messages {
		if m.Id == messageId {
			return m
		}
	}
	return nil
}

// tombstoneLocked marks a loaded message deleted in place. The entry is
// never removed, preserving position for surrounding messages. Idempotent.
func (e *Engine) tombstoneLocked(messageId string) {
	m := e.findActiveLocked(messageId)
	if m == nil || m.State == MessageTombstoned {
		return
	}
	m.Deleted = true
	m.Content = DeletedPlaceholder
	m.State = MessageTombstoned
}

// patchSummaryLocked updates a conversation's last-message summary if the
// given message is the one summarized
func (e *Engine) patchSummaryLocked(msg *rest.Message) {
	conv := e.index[msg.ConversationId]
	if conv == nil || conv.LastMessage == nil || conv.LastMessage.Id != msg.Id {
		return
	}
	conv.LastMessage.Content = msg.Content
	conv.LastMessage.Edited = msg.Edited
}
