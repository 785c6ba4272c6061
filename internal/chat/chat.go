// Package chat implements the messaging core: deterministic conversation
// identity, the append-only message ledger, and read-side composition of
// conversations and messages with item and user summaries.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/campusfound/board-service/internal/board"
	"github.com/campusfound/board-service/internal/model"
	registrykv "github.com/campusfound/board-service/internal/registry/kv"
	"github.com/charmbracelet/log"
)

// Service exposes the conversation registry and message ledger over the
// shared KV store. It holds no state of its own beyond a monotonic clock.
type Service struct {
	kv    registrykv.Store
	dir   board.Directory
	clock *monotonicClock
	now   func() time.Time
}

// NewService creates a chat service over the given KV backend and directory.
func NewService(kv registrykv.Store, dir board.Directory) *Service {
	return NewServiceWithClock(kv, dir, time.Now)
}

// NewServiceWithClock is NewService with an injected clock, for tests.
func NewServiceWithClock(kv registrykv.Store, dir board.Directory, now func() time.Time) *Service {
	return &Service{kv: kv, dir: dir, clock: newMonotonicClock(now), now: now}
}

// StartConversation creates (or returns) the conversation between the caller
// and the owner of itemID. Creation is idempotent: the derived id is the
// natural key, so repeated calls, from either side, resolve to one record and
// never rewrite its timestamps or duplicate index entries. Starting a
// conversation about one's own item is rejected.
func (s *Service) StartConversation(ctx context.Context, callerUserID, itemID string) (*model.Conversation, bool, error) {
	item, err := s.dir.GetItem(ctx, itemID)
	if err != nil {
		return nil, false, err
	}
	if item.OwnerUserID == callerUserID {
		return nil, false, &registrykv.ForbiddenError{Message: "cannot start a conversation about your own item"}
	}

	convID := ConversationID(callerUserID, item.OwnerUserID, itemID)
	if existing, err := s.getConversation(ctx, convID); err == nil {
		return existing, false, nil
	} else if !isNotFound(err) {
		return nil, false, err
	}

	now := s.now().UTC().Truncate(time.Millisecond)
	conv := &model.Conversation{
		ID:            convID,
		ItemID:        itemID,
		Participants:  SortParticipants(callerUserID, item.OwnerUserID),
		CreatedAt:     now,
		LastMessageAt: now,
	}
	if err := s.put(ctx, conversationKey(convID), conv); err != nil {
		return nil, false, err
	}
	for _, participant := range conv.Participants {
		if err := s.kv.Set(ctx, userConversationKey(participant, convID), []byte(convID)); err != nil {
			return nil, false, err
		}
	}
	log.Info("Conversation started", "conversation", convID, "item", itemID, "caller", callerUserID)
	return conv, true, nil
}

// ListConversations returns the caller's conversations, most recent activity
// first, each joined with item and counterpart summaries. Index entries whose
// conversation no longer resolves are dropped rather than failing the read.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]model.ConversationView, error) {
	ids, err := s.kv.GetByPrefix(ctx, userConversationScanPrefix(userID))
	if err != nil {
		return nil, err
	}

	conversations := make([]model.Conversation, 0, len(ids))
	for _, id := range ids {
		conv, err := s.getConversation(ctx, string(id))
		if err != nil {
			if isNotFound(err) {
				log.Warn("Dropping dangling conversation index entry", "user", userID, "conversation", string(id))
				continue
			}
			return nil, err
		}
		conversations = append(conversations, *conv)
	}
	sort.Slice(conversations, func(i, j int) bool {
		if conversations[i].LastMessageAt.Equal(conversations[j].LastMessageAt) {
			return conversations[i].ID < conversations[j].ID
		}
		return conversations[i].LastMessageAt.After(conversations[j].LastMessageAt)
	})

	views := make([]model.ConversationView, 0, len(conversations))
	for _, conv := range conversations {
		views = append(views, s.composeConversation(ctx, conv, userID))
	}
	return views, nil
}

// Send appends a message to a conversation. The caller must be a participant
// and the text must be non-blank. The message is persisted before the
// conversation's freshness is bumped; the bump takes the max of the existing
// and new timestamps so a racing earlier message can never move it backward.
func (s *Service) Send(ctx context.Context, callerUserID, conversationID, text string) (*model.Message, error) {
	conv, err := s.getConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(callerUserID) {
		return nil, &registrykv.ForbiddenError{Message: "not a participant of this conversation"}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &registrykv.ValidationError{Field: "text", Message: "must not be blank"}
	}

	at := s.clock.Next()
	msg := &model.Message{
		ID:             messageID(conversationID, at),
		ConversationID: conversationID,
		SenderID:       callerUserID,
		Text:           text,
		CreatedAt:      at,
	}
	if err := s.put(ctx, messageKey(msg.ID), msg); err != nil {
		return nil, err
	}

	err = s.kv.Swap(ctx, conversationKey(conversationID), func(value []byte, found bool) ([]byte, error) {
		if !found {
			return nil, &registrykv.NotFoundError{Resource: "conversation", ID: conversationID}
		}
		var current model.Conversation
		if err := json.Unmarshal(value, &current); err != nil {
			return nil, err
		}
		if msg.CreatedAt.After(current.LastMessageAt) {
			current.LastMessageAt = msg.CreatedAt
		}
		return json.Marshal(&current)
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ListMessages returns the full message history of a conversation in
// chronological order, each joined with the sender's display name. The caller
// must be a participant.
func (s *Service) ListMessages(ctx context.Context, callerUserID, conversationID string) ([]model.MessageView, error) {
	conv, err := s.getConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(callerUserID) {
		return nil, &registrykv.ForbiddenError{Message: "not a participant of this conversation"}
	}

	raw, err := s.kv.GetByPrefix(ctx, messageScanPrefix(conversationID))
	if err != nil {
		return nil, err
	}
	messages := make([]model.Message, 0, len(raw))
	for _, data := range raw {
		var msg model.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warn("Skipping undecodable message record", "conversation", conversationID, "err", err)
			continue
		}
		messages = append(messages, msg)
	}
	// The store returns values in unspecified order; chronological order is
	// re-established here, ties broken by id.
	sort.Slice(messages, func(i, j int) bool {
		if messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].ID < messages[j].ID
		}
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})

	senders := map[string]string{}
	views := make([]model.MessageView, 0, len(messages))
	for _, msg := range messages {
		name, seen := senders[msg.SenderID]
		if !seen {
			name = board.UnknownUserName
			if sender, err := s.dir.GetUser(ctx, msg.SenderID); err == nil {
				name = sender.Name
			}
			senders[msg.SenderID] = name
		}
		views = append(views, model.MessageView{Message: msg, SenderName: name})
	}
	return views, nil
}

// composeConversation joins item and counterpart summaries onto a
// conversation. Missing joins degrade to placeholders; reads stay up even
// when referential integrity doesn't.
func (s *Service) composeConversation(ctx context.Context, conv model.Conversation, viewerUserID string) model.ConversationView {
	view := model.ConversationView{Conversation: conv}

	if item, err := s.dir.GetItem(ctx, conv.ItemID); err == nil {
		view.Item = &model.ItemSummary{
			ID:          item.ID,
			OwnerUserID: item.OwnerUserID,
			Title:       item.Title,
			Status:      item.Status,
			ImageURL:    item.ImageURL,
		}
	}

	otherID := conv.OtherParticipant(viewerUserID)
	if otherID != "" {
		summary := &model.UserSummary{ID: otherID, Name: board.UnknownUserName}
		if other, err := s.dir.GetUser(ctx, otherID); err == nil {
			summary.Name = other.Name
			summary.Email = other.Email
		}
		view.OtherUser = summary
	}
	return view
}

func (s *Service) getConversation(ctx context.Context, conversationID string) (*model.Conversation, error) {
	data, err := s.kv.Get(ctx, conversationKey(conversationID))
	if err != nil {
		if errors.Is(err, registrykv.ErrKeyNotFound) {
			return nil, &registrykv.NotFoundError{Resource: "conversation", ID: conversationID}
		}
		return nil, err
	}
	var conv model.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *Service) put(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, key, data)
}

func isNotFound(err error) bool {
	var notFound *registrykv.NotFoundError
	return errors.As(err, &notFound)
}
