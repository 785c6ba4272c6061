package chat

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Key schema for the messaging side of the KV namespace.
const (
	conversationKeyPrefix     = "conversation:"
	userConversationKeyPrefix = "userConversation:"
	messageKeyPrefix          = "message:"
)

// ConversationID derives the natural key of a conversation from its user pair
// and item. The pair is sorted first, so the derivation is symmetric: either
// participant as caller yields the same id, which is what makes conversation
// creation idempotent.
func ConversationID(userA, userB, itemID string) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return userA + "_" + userB + "_" + itemID
}

// SortParticipants returns the pair sorted ascending, the stored order.
func SortParticipants(userA, userB string) [2]string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return [2]string{userA, userB}
}

func conversationKey(conversationID string) string {
	return conversationKeyPrefix + conversationID
}

func userConversationKey(userID, conversationID string) string {
	return userConversationKeyPrefix + userID + ":" + conversationID
}

func userConversationScanPrefix(userID string) string {
	return userConversationKeyPrefix + userID + ":"
}

// messageID composes a message id whose lexicographic order matches
// chronological order within a conversation: conversation id, then the
// zero-padded millisecond timestamp, then a random uniquifier for sends that
// land on the same millisecond across instances. Message keys are the id with
// the message prefix, so ordered retrieval is a plain prefix scan.
func messageID(conversationID string, at time.Time) string {
	return fmt.Sprintf("%s:%013d:%s", conversationID, at.UnixMilli(), uuid.NewString())
}

func messageKey(messageID string) string {
	return messageKeyPrefix + messageID
}

func messageScanPrefix(conversationID string) string {
	return messageKeyPrefix + conversationID + ":"
}

// monotonicClock hands out strictly increasing millisecond timestamps within
// this process, so two sends in the same wall-clock millisecond still get
// distinct, ordered ids. Across instances the uniquifier keeps ids total.
type monotonicClock struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func newMonotonicClock(now func() time.Time) *monotonicClock {
	return &monotonicClock{now: now}
}

func (c *monotonicClock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	ms := c.now().UnixMilli()
	if ms <= c.last {
		ms = c.last + 1
	}
	c.last = ms
	return time.UnixMilli(ms).UTC()
}
