package engine

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sajib-dev/fixmate/backend/internal/models"
)

const messagesCollection = "messages"

// ConversationEventType classifies conversation-store events.
type ConversationEventType string

const (
	MessageAdded   ConversationEventType = "message_added"
	MessageDeleted ConversationEventType = "message_deleted"
	MessagesRead   ConversationEventType = "messages_read"
)

// ConversationEvent is emitted after a conversation's state changed.
type ConversationEvent struct {
	Type           ConversationEventType
	ConversationID string
	Message        models.Message // zero for MessagesRead
}

// ConversationStore owns conversations and their ordered message sequences.
// Conversations are derived state: they are keyed by the participant pair
// and rebuilt from message history alone, so nothing is lost if the
// conversation summary itself is never persisted.
type ConversationStore struct {
	store DocumentStore
	locks *keyedMutex

	mu    sync.RWMutex
	convs map[string]*conversationState

	subMu    sync.Mutex
	subSeq   int
	subs     map[int]func(ConversationEvent)
	onChange []func()
}

type conversationState struct {
	conv  models.Conversation
	seq   []*models.Message // ordered by (timestamp, id)
	index map[string]*models.Message
}

func NewConversationStore(store DocumentStore) *ConversationStore {
	return &ConversationStore{
		store: store,
		locks: newKeyedMutex(),
		convs: make(map[string]*conversationState),
		subs:  make(map[int]func(ConversationEvent)),
	}
}

// Subscribe registers fn for conversation events and returns its cancel
// function.
func (s *ConversationStore) Subscribe(fn func(ConversationEvent)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subSeq++
	id := s.subSeq
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

// OnChange registers fn to run after any mutation that altered store state.
func (s *ConversationStore) OnChange(fn func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.onChange = append(s.onChange, fn)
}

func (s *ConversationStore) notifyChanged() {
	s.subMu.Lock()
	fns := append([]func(){}, s.onChange...)
	s.subMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (s *ConversationStore) emit(ev ConversationEvent) {
	s.subMu.Lock()
	fns := make([]func(ConversationEvent), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// EnsureConversation returns the conversation for the unordered pair (a, b),
// creating it if this is the first contact. Idempotent and symmetric:
// EnsureConversation(a, b) and EnsureConversation(b, a) resolve to the same
// conversation and never create two.
func (s *ConversationStore) EnsureConversation(a, b string) (models.Conversation, error) {
	if a == "" || b == "" {
		return models.Conversation{}, ErrUnauthenticated
	}
	if a == b {
		return models.Conversation{}, ErrUnauthorized
	}
	id := models.ConversationID(a, b)
	unlock := s.locks.Lock(id)
	defer unlock()

	s.mu.Lock()
	if cs, ok := s.convs[id]; ok {
		out := cloneConversation(&cs.conv)
		s.mu.Unlock()
		return out, nil
	}
	pair := []string{a, b}
	sort.Strings(pair)
	cs := &conversationState{
		conv: models.Conversation{
			ID:            id,
			Participants:  [2]string{pair[0], pair[1]},
			HasNewMessage: map[string]bool{pair[0]: false, pair[1]: false},
		},
		index: make(map[string]*models.Message),
	}
	s.convs[id] = cs
	out := cloneConversation(&cs.conv)
	s.mu.Unlock()
	s.notifyChanged()
	return out, nil
}

// SendMessage appends a message from senderID to the conversation. The
// optimistic copy is visible to readers before the store acknowledges the
// write; the change-stream replay of the same id later replaces it in
// place. A failed store write rolls the optimistic copy back and surfaces
// the error.
func (s *ConversationStore) SendMessage(ctx context.Context, conversationID, senderID, text string) (models.Message, error) {
	if senderID == "" {
		return models.Message{}, ErrUnauthenticated
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, ErrEmptyMessage
	}

	unlock := s.locks.Lock(conversationID)
	defer unlock()

	s.mu.RLock()
	cs, ok := s.convs[conversationID]
	s.mu.RUnlock()
	if !ok {
		return models.Message{}, ErrNotFound
	}
	if !cs.conv.HasParticipant(senderID) {
		return models.Message{}, ErrUnauthorized
	}

	msg := models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		ReceiverID:     cs.conv.Other(senderID),
		Text:           text,
		Timestamp:      time.Now(),
	}

	// Optimistic local append, before the store round-trip.
	s.mu.Lock()
	cs.insert(&msg)
	s.mu.Unlock()
	s.notifyChanged()

	if _, err := s.store.Insert(ctx, messagesCollection, messageFields(&msg)); err != nil {
		s.mu.Lock()
		cs.remove(msg.ID)
		s.mu.Unlock()
		s.notifyChanged()
		return models.Message{}, err
	}

	s.emit(ConversationEvent{Type: MessageAdded, ConversationID: conversationID, Message: msg})
	return msg, nil
}

// ApplyRemoteMessage merges a remotely confirmed message into the local
// sequence. Message identity, not position, is the dedup key: a message
// whose id already exists locally (the optimistic copy, or a replayed
// event) is replaced in place rather than duplicated. The containing
// conversation is derived from the message itself if not yet known.
func (s *ConversationStore) ApplyRemoteMessage(msg *models.Message) {
	unlock := s.locks.Lock(msg.ConversationID)
	defer unlock()

	s.mu.Lock()
	cs, ok := s.convs[msg.ConversationID]
	if !ok {
		pair := []string{msg.SenderID, msg.ReceiverID}
		sort.Strings(pair)
		cs = &conversationState{
			conv: models.Conversation{
				ID:            msg.ConversationID,
				Participants:  [2]string{pair[0], pair[1]},
				HasNewMessage: map[string]bool{pair[0]: false, pair[1]: false},
			},
			index: make(map[string]*models.Message),
		}
		s.convs[msg.ConversationID] = cs
	}
	cp := *msg
	existing, existed := cs.index[msg.ID]
	if existed {
		if *existing == cp {
			s.mu.Unlock()
			return
		}
		cs.removeKeepSummary(msg.ID)
	}
	cs.insert(&cp)
	s.mu.Unlock()

	s.notifyChanged()
	if !existed {
		s.emit(ConversationEvent{Type: MessageAdded, ConversationID: msg.ConversationID, Message: cp})
	}
}

// MarkRead flips every message not sent by readerID to read and clears the
// reader's new-message flag. Idempotent: a fully read conversation is a
// no-op, not an error.
func (s *ConversationStore) MarkRead(ctx context.Context, conversationID, readerID string) error {
	if readerID == "" {
		return ErrUnauthenticated
	}
	unlock := s.locks.Lock(conversationID)
	defer unlock()

	s.mu.Lock()
	cs, ok := s.convs[conversationID]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if !cs.conv.HasParticipant(readerID) {
		s.mu.Unlock()
		return ErrUnauthorized
	}
	var flipped []string
	for _, m := range cs.seq {
		if m.SenderID != readerID && !m.IsRead {
			m.IsRead = true
			flipped = append(flipped, m.ID)
		}
	}
	cs.refreshFlags()
	s.mu.Unlock()

	if len(flipped) == 0 {
		return nil
	}
	s.notifyChanged()
	for _, id := range flipped {
		if err := s.store.Update(ctx, messagesCollection, id, map[string]any{"is_read": true}); err != nil {
			return err
		}
	}
	s.emit(ConversationEvent{Type: MessagesRead, ConversationID: conversationID})
	return nil
}

// DeleteMessage removes a message from the sequence. The conversation's
// lastMessage/lastMessageTimestamp are intentionally left as a cache of the
// last send event and are not recomputed.
func (s *ConversationStore) DeleteMessage(ctx context.Context, messageID, conversationID string) error {
	unlock := s.locks.Lock(conversationID)
	defer unlock()

	s.mu.Lock()
	cs, ok := s.convs[conversationID]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	msg, ok := cs.index[messageID]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	removed := *msg
	cs.removeKeepSummary(messageID)
	s.mu.Unlock()
	s.notifyChanged()

	if err := s.store.Delete(ctx, messagesCollection, messageID); err != nil {
		return err
	}
	s.emit(ConversationEvent{Type: MessageDeleted, ConversationID: conversationID, Message: removed})
	return nil
}

// RemoveRemoteByID applies a removal observed on the change stream, which
// carries only the document id. Ids already deleted locally are ignored.
func (s *ConversationStore) RemoveRemoteByID(messageID string) {
	s.mu.RLock()
	var conversationID string
	for id, cs := range s.convs {
		if _, present := cs.index[messageID]; present {
			conversationID = id
			break
		}
	}
	s.mu.RUnlock()
	if conversationID == "" {
		return
	}

	unlock := s.locks.Lock(conversationID)
	defer unlock()

	s.mu.Lock()
	cs, ok := s.convs[conversationID]
	if ok {
		if _, present := cs.index[messageID]; present {
			cs.removeKeepSummary(messageID)
		} else {
			ok = false
		}
	}
	s.mu.Unlock()
	if ok {
		s.notifyChanged()
		s.emit(ConversationEvent{Type: MessageDeleted, ConversationID: conversationID})
	}
}

// Get returns a copy of the conversation, or ErrNotFound.
func (s *ConversationStore) Get(conversationID string) (models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cs, ok := s.convs[conversationID]
	if !ok {
		return models.Conversation{}, ErrNotFound
	}
	return cloneConversation(&cs.conv), nil
}

// Conversations returns the user's conversations, most recent activity
// first.
func (s *ConversationStore) Conversations(userID string) []models.Conversation {
	s.mu.RLock()
	var out []models.Conversation
	for _, cs := range s.convs {
		if cs.conv.HasParticipant(userID) {
			out = append(out, cloneConversation(&cs.conv))
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastMessageTimestamp.Equal(out[j].LastMessageTimestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].LastMessageTimestamp.After(out[j].LastMessageTimestamp)
	})
	return out
}

// All returns copies of every conversation, most recent activity first.
func (s *ConversationStore) All() []models.Conversation {
	s.mu.RLock()
	out := make([]models.Conversation, 0, len(s.convs))
	for _, cs := range s.convs {
		out = append(out, cloneConversation(&cs.conv))
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastMessageTimestamp.Equal(out[j].LastMessageTimestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].LastMessageTimestamp.After(out[j].LastMessageTimestamp)
	})
	return out
}

// UnreadConversations returns the user's conversations that currently carry
// the new-message flag for them.
func (s *ConversationStore) UnreadConversations(userID string) []models.Conversation {
	var out []models.Conversation
	for _, conv := range s.Conversations(userID) {
		if conv.HasNewMessage[userID] {
			out = append(out, conv)
		}
	}
	return out
}

// Messages returns a copy of the conversation's ordered message sequence.
func (s *ConversationStore) Messages(conversationID string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cs, ok := s.convs[conversationID]
	if !ok {
		return nil
	}
	out := make([]models.Message, len(cs.seq))
	for i, m := range cs.seq {
		out[i] = *m
	}
	return out
}

// insert places msg at its ordered position and refreshes the summary and
// read flags.
func (cs *conversationState) insert(msg *models.Message) {
	i := sort.Search(len(cs.seq), func(i int) bool { return msg.Before(cs.seq[i]) })
	cs.seq = append(cs.seq, nil)
	copy(cs.seq[i+1:], cs.seq[i:])
	cs.seq[i] = msg
	cs.index[msg.ID] = msg

	last := cs.seq[len(cs.seq)-1]
	cs.conv.LastMessage = last.Text
	cs.conv.LastMessageTimestamp = last.Timestamp
	cs.refreshFlags()
}

// remove drops the message and recomputes the summary. Used only to roll
// back a failed optimistic send.
func (cs *conversationState) remove(id string) {
	cs.removeKeepSummary(id)
	if len(cs.seq) == 0 {
		cs.conv.LastMessage = ""
		cs.conv.LastMessageTimestamp = time.Time{}
		return
	}
	last := cs.seq[len(cs.seq)-1]
	cs.conv.LastMessage = last.Text
	cs.conv.LastMessageTimestamp = last.Timestamp
}

// removeKeepSummary drops the message but leaves the conversation summary
// untouched.
func (cs *conversationState) removeKeepSummary(id string) {
	if _, ok := cs.index[id]; !ok {
		return
	}
	delete(cs.index, id)
	for i, m := range cs.seq {
		if m.ID == id {
			cs.seq = append(cs.seq[:i], cs.seq[i+1:]...)
			break
		}
	}
	cs.refreshFlags()
}

// refreshFlags recomputes each participant's new-message flag from the
// sequence: set while any message addressed to them is unread.
func (cs *conversationState) refreshFlags() {
	for _, p := range cs.conv.Participants {
		unread := false
		for _, m := range cs.seq {
			if m.SenderID != p && !m.IsRead {
				unread = true
				break
			}
		}
		cs.conv.HasNewMessage[p] = unread
	}
}

func cloneConversation(c *models.Conversation) models.Conversation {
	cp := *c
	cp.HasNewMessage = make(map[string]bool, len(c.HasNewMessage))
	for k, v := range c.HasNewMessage {
		cp.HasNewMessage[k] = v
	}
	return cp
}

func messageFields(msg *models.Message) map[string]any {
	return map[string]any{
		"_id":             msg.ID,
		"conversation_id": msg.ConversationID,
		"sender_id":       msg.SenderID,
		"receiver_id":     msg.ReceiverID,
		"text":            msg.Text,
		"timestamp":       msg.Timestamp,
		"is_read":         msg.IsRead,
	}
}
