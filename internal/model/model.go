package model

import "time"

// ItemStatus says whether an item was lost by its owner or found by them.
type ItemStatus string

const (
	ItemStatusLost  ItemStatus = "lost"
	ItemStatusFound ItemStatus = "found"
)

// Valid reports whether the status is one of the known values.
func (s ItemStatus) Valid() bool {
	return s == ItemStatusLost || s == ItemStatusFound
}

// User is a board member. Created at signup, immutable thereafter.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Item is a posted lost-or-found listing.
type Item struct {
	ID          string     `json:"id"`
	OwnerUserID string     `json:"ownerUserId"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Category    string     `json:"category,omitempty"`
	Status      ItemStatus `json:"status"`
	ImageURL    string     `json:"imageUrl,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Conversation is a thread between exactly two users about one item.
// Participants are stored sorted ascending so the pair is order-independent.
type Conversation struct {
	ID            string    `json:"id"`
	ItemID        string    `json:"itemId"`
	Participants  [2]string `json:"participants"`
	CreatedAt     time.Time `json:"createdAt"`
	LastMessageAt time.Time `json:"lastMessageAt"`
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID string) bool {
	return c.Participants[0] == userID || c.Participants[1] == userID
}

// OtherParticipant returns the participant that is not userID. When userID is
// not a participant it returns the empty string.
func (c *Conversation) OtherParticipant(userID string) string {
	switch userID {
	case c.Participants[0]:
		return c.Participants[1]
	case c.Participants[1]:
		return c.Participants[0]
	default:
		return ""
	}
}

// Message is one chat message in a conversation. Immutable once written.
// The ID sorts lexicographically in chronological order within a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"createdAt"`
}

// UserSummary is the join-friendly slice of a user for read-side composition.
type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// ItemSummary is the join-friendly slice of an item.
type ItemSummary struct {
	ID          string     `json:"id"`
	OwnerUserID string     `json:"ownerUserId"`
	Title       string     `json:"title"`
	Status      ItemStatus `json:"status"`
	ImageURL    string     `json:"imageUrl,omitempty"`
}

// ItemView is an item enriched with its owner's display fields.
type ItemView struct {
	Item
	UserName  string `json:"userName"`
	UserEmail string `json:"userEmail,omitempty"`
}

// ConversationView is a conversation enriched with item and counterpart
// summaries for listing.
type ConversationView struct {
	Conversation
	Item      *ItemSummary `json:"item,omitempty"`
	OtherUser *UserSummary `json:"otherUser,omitempty"`
}

// MessageView is a message enriched with the sender's display name.
type MessageView struct {
	Message
	SenderName string `json:"senderName"`
}
