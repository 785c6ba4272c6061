package chat_test

import (
	"context"
	"testing"
	"time"

	"github.com/campusfound/board-service/internal/board"
	"github.com/campusfound/board-service/internal/chat"
	"github.com/campusfound/board-service/internal/model"
	"github.com/campusfound/board-service/internal/plugin/kv/memory"
	registrykv "github.com/campusfound/board-service/internal/registry/kv"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	kv    registrykv.Store
	board *board.Store
	chat  *chat.Service
}

func setup(t *testing.T) *fixture {
	t.Helper()
	kv := memory.New()
	boardStore := board.NewStore(kv)
	return &fixture{
		kv:    kv,
		board: boardStore,
		chat:  chat.NewService(kv, boardStore),
	}
}

func (f *fixture) user(t *testing.T, id, name string) *model.User {
	t.Helper()
	user, err := f.board.EnsureUser(context.Background(), id, id+"@campus.edu", name)
	require.NoError(t, err)
	return user
}

func (f *fixture) item(t *testing.T, ownerID, title string) *model.Item {
	t.Helper()
	item, err := f.board.CreateItem(context.Background(), ownerID, model.Item{
		Title:  title,
		Status: model.ItemStatusLost,
	})
	require.NoError(t, err)
	return item
}

func TestStartConversation_Idempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.user(t, "alice", "Alice")
	f.user(t, "bob", "Bob")
	item := f.item(t, "bob", "Blue backpack")

	first, created, err := f.chat.StartConversation(ctx, "alice", item.ID)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, chat.ConversationID("alice", "bob", item.ID), first.ID)
	require.Equal(t, [2]string{"alice", "bob"}, first.Participants)
	require.Equal(t, first.CreatedAt, first.LastMessageAt)

	second, created, err := f.chat.StartConversation(ctx, "alice", item.ID)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, first.CreatedAt, second.CreatedAt)
	require.Equal(t, first.LastMessageAt, second.LastMessageAt)

	// Both sides see exactly one conversation.
	for _, userID := range []string{"alice", "bob"} {
		views, err := f.chat.ListConversations(ctx, userID)
		require.NoError(t, err)
		require.Len(t, views, 1)
		require.Equal(t, first.ID, views[0].ID)
	}
}

func TestStartConversation_OwnItemForbidden(t *testing.T) {
	f := setup(t)
	f.user(t, "bob", "Bob")
	item := f.item(t, "bob", "Blue backpack")

	_, _, err := f.chat.StartConversation(context.Background(), "bob", item.ID)
	var forbidden *registrykv.ForbiddenError
	require.ErrorAs(t, err, &forbidden)
}

func TestStartConversation_UnknownItem(t *testing.T) {
	f := setup(t)
	f.user(t, "alice", "Alice")

	_, _, err := f.chat.StartConversation(context.Background(), "alice", "no-such-item")
	var notFound *registrykv.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestSend_AppendsAndBumpsFreshness(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.user(t, "alice", "Alice")
	f.user(t, "bob", "Bob")
	item := f.item(t, "bob", "Blue backpack")

	conv, _, err := f.chat.StartConversation(ctx, "alice", item.ID)
	require.NoError(t, err)

	first, err := f.chat.Send(ctx, "alice", conv.ID, "is this still around?")
	require.NoError(t, err)
	second, err := f.chat.Send(ctx, "bob", conv.ID, "yes, at the front desk")
	require.NoError(t, err)
	require.True(t, second.CreatedAt.After(first.CreatedAt))

	msgs, err := f.chat.ListMessages(ctx, "alice", conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, first.ID, msgs[0].ID)
	require.Equal(t, second.ID, msgs[1].ID)
	require.Equal(t, "Alice", msgs[0].SenderName)
	require.Equal(t, "Bob", msgs[1].SenderName)

	views, err := f.chat.ListConversations(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Equal(t, second.CreatedAt, views[0].LastMessageAt)
}

func TestSend_SameMillisecondKeepsOrder(t *testing.T) {
	frozen := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	kv := memory.New()
	boardStore := board.NewStore(kv)
	svc := chat.NewServiceWithClock(kv, boardStore, func() time.Time { return frozen })
	ctx := context.Background()

	_, err := boardStore.EnsureUser(ctx, "alice", "", "Alice")
	require.NoError(t, err)
	item, err := boardStore.CreateItem(ctx, "bob", model.Item{Title: "Keys", Status: model.ItemStatusFound})
	require.NoError(t, err)
	conv, _, err := svc.StartConversation(ctx, "alice", item.ID)
	require.NoError(t, err)

	var sent []string
	for _, text := range []string{"one", "two", "three"} {
		msg, err := svc.Send(ctx, "alice", conv.ID, text)
		require.NoError(t, err)
		sent = append(sent, msg.ID)
	}

	msgs, err := svc.ListMessages(ctx, "alice", conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for i, msg := range msgs {
		require.Equal(t, sent[i], msg.ID)
	}
	require.Equal(t, "one", msgs[0].Text)
	require.Equal(t, "three", msgs[2].Text)
}

func TestSend_NonParticipantForbidden(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.user(t, "alice", "Alice")
	f.user(t, "bob", "Bob")
	f.user(t, "carol", "Carol")
	item := f.item(t, "bob", "Blue backpack")

	conv, _, err := f.chat.StartConversation(ctx, "alice", item.ID)
	require.NoError(t, err)

	_, err = f.chat.Send(ctx, "carol", conv.ID, "let me in")
	var forbidden *registrykv.ForbiddenError
	require.ErrorAs(t, err, &forbidden)

	_, err = f.chat.ListMessages(ctx, "carol", conv.ID)
	require.ErrorAs(t, err, &forbidden)

	// The rejected send left no trace.
	msgs, err := f.chat.ListMessages(ctx, "alice", conv.ID)
	require.NoError(t, err)
	require.Empty(t, msgs)
}

func TestSend_BlankTextRejected(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.user(t, "alice", "Alice")
	item := f.item(t, "bob", "Blue backpack")
	conv, _, err := f.chat.StartConversation(ctx, "alice", item.ID)
	require.NoError(t, err)

	_, err = f.chat.Send(ctx, "alice", conv.ID, "   \t  ")
	var validation *registrykv.ValidationError
	require.ErrorAs(t, err, &validation)
	require.Equal(t, "text", validation.Field)

	msgs, err := f.chat.ListMessages(ctx, "alice", conv.ID)
	require.NoError(t, err)
	require.Empty(t, msgs)
}

func TestSend_UnknownConversation(t *testing.T) {
	f := setup(t)
	_, err := f.chat.Send(context.Background(), "alice", "no-such-conv", "hello")
	var notFound *registrykv.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestListConversations_MostRecentActivityFirst(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.user(t, "alice", "Alice")
	f.user(t, "bob", "Bob")
	f.user(t, "carol", "Carol")
	bobItem := f.item(t, "bob", "Blue backpack")
	carolItem := f.item(t, "carol", "Water bottle")

	first, _, err := f.chat.StartConversation(ctx, "alice", bobItem.ID)
	require.NoError(t, err)
	second, _, err := f.chat.StartConversation(ctx, "alice", carolItem.ID)
	require.NoError(t, err)

	// A message in the older conversation moves it to the top.
	_, err = f.chat.Send(ctx, "alice", first.ID, "still have it?")
	require.NoError(t, err)

	views, err := f.chat.ListConversations(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, views, 2)
	require.Equal(t, first.ID, views[0].ID)
	require.Equal(t, second.ID, views[1].ID)

	require.NotNil(t, views[0].Item)
	require.Equal(t, "Blue backpack", views[0].Item.Title)
	require.NotNil(t, views[0].OtherUser)
	require.Equal(t, "bob", views[0].OtherUser.ID)
	require.Equal(t, "Bob", views[0].OtherUser.Name)
}

func TestListConversations_DropsDanglingIndexEntries(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.user(t, "alice", "Alice")
	item := f.item(t, "bob", "Blue backpack")
	conv, _, err := f.chat.StartConversation(ctx, "alice", item.ID)
	require.NoError(t, err)

	// An index entry whose conversation record is gone is skipped, not fatal.
	require.NoError(t, f.kv.Set(ctx, "userConversation:alice:ghost", []byte("ghost")))

	views, err := f.chat.ListConversations(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Equal(t, conv.ID, views[0].ID)
}

func TestListMessages_UnknownSenderPlaceholder(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.user(t, "alice", "Alice")
	// carol owns the item but never signed up.
	item := f.item(t, "carol", "Umbrella")
	conv, _, err := f.chat.StartConversation(ctx, "alice", item.ID)
	require.NoError(t, err)

	_, err = f.chat.Send(ctx, "carol", conv.ID, "found it by the library")
	require.NoError(t, err)

	msgs, err := f.chat.ListMessages(ctx, "alice", conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, board.UnknownUserName, msgs[0].SenderName)
}
