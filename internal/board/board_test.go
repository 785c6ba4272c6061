package board_test

import (
	"context"
	"testing"
	"time"

	"github.com/campusfound/board-service/internal/board"
	"github.com/campusfound/board-service/internal/model"
	"github.com/campusfound/board-service/internal/plugin/kv/memory"
	registrykv "github.com/campusfound/board-service/internal/registry/kv"
	"github.com/stretchr/testify/require"
)

func TestEnsureUser_ImmutableAfterSignup(t *testing.T) {
	store := board.NewStore(memory.New())
	ctx := context.Background()

	first, err := store.EnsureUser(ctx, "alice", "alice@campus.edu", "Alice")
	require.NoError(t, err)
	require.Equal(t, "Alice", first.Name)

	// Repeat signup with different details returns the original profile.
	second, err := store.EnsureUser(ctx, "alice", "other@campus.edu", "Alicia")
	require.NoError(t, err)
	require.Equal(t, "Alice", second.Name)
	require.Equal(t, "alice@campus.edu", second.Email)
	require.Equal(t, first.CreatedAt, second.CreatedAt)
}

func TestEnsureUser_NameDefaultsToID(t *testing.T) {
	store := board.NewStore(memory.New())
	user, err := store.EnsureUser(context.Background(), "bob", "", "  ")
	require.NoError(t, err)
	require.Equal(t, "bob", user.Name)
}

func TestEnsureUser_BlankIDRejected(t *testing.T) {
	store := board.NewStore(memory.New())
	_, err := store.EnsureUser(context.Background(), "  ", "", "Bob")
	var validation *registrykv.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestGetUser_NotFound(t *testing.T) {
	store := board.NewStore(memory.New())
	_, err := store.GetUser(context.Background(), "nobody")
	var notFound *registrykv.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestCreateItem_Validation(t *testing.T) {
	store := board.NewStore(memory.New())
	ctx := context.Background()
	var validation *registrykv.ValidationError

	_, err := store.CreateItem(ctx, "alice", model.Item{Title: "  ", Status: model.ItemStatusLost})
	require.ErrorAs(t, err, &validation)
	require.Equal(t, "title", validation.Field)

	_, err = store.CreateItem(ctx, "alice", model.Item{Title: "Keys", Status: "misplaced"})
	require.ErrorAs(t, err, &validation)
	require.Equal(t, "status", validation.Field)
}

func TestCreateItem_AssignsOwnerAndID(t *testing.T) {
	store := board.NewStore(memory.New())
	ctx := context.Background()

	item, err := store.CreateItem(ctx, "alice", model.Item{
		Title:       "  Red scarf  ",
		Description: "Wool, slightly frayed",
		Category:    "clothing",
		Status:      model.ItemStatusFound,
	})
	require.NoError(t, err)
	require.NotEmpty(t, item.ID)
	require.Equal(t, "alice", item.OwnerUserID)
	require.Equal(t, "Red scarf", item.Title)
	require.False(t, item.CreatedAt.IsZero())

	got, err := store.GetItem(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, item.ID, got.ID)
}

func TestListItems_NewestFirstWithOwnerJoin(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := board.NewStoreWithClock(memory.New(), func() time.Time {
		now = now.Add(time.Second)
		return now
	})
	ctx := context.Background()

	_, err := store.EnsureUser(ctx, "alice", "alice@campus.edu", "Alice")
	require.NoError(t, err)

	older, err := store.CreateItem(ctx, "alice", model.Item{Title: "Keys", Status: model.ItemStatusLost})
	require.NoError(t, err)
	newer, err := store.CreateItem(ctx, "ghost", model.Item{Title: "Umbrella", Status: model.ItemStatusFound})
	require.NoError(t, err)

	views, err := store.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, views, 2)
	require.Equal(t, newer.ID, views[0].ID)
	require.Equal(t, older.ID, views[1].ID)

	// Missing owner degrades to the placeholder instead of failing the read.
	require.Equal(t, board.UnknownUserName, views[0].UserName)
	require.Equal(t, "Alice", views[1].UserName)
	require.Equal(t, "alice@campus.edu", views[1].UserEmail)
}

func TestListItemsFor_OnlyOwnItems(t *testing.T) {
	store := board.NewStore(memory.New())
	ctx := context.Background()

	mine, err := store.CreateItem(ctx, "alice", model.Item{Title: "Keys", Status: model.ItemStatusLost})
	require.NoError(t, err)
	_, err = store.CreateItem(ctx, "bob", model.Item{Title: "Umbrella", Status: model.ItemStatusFound})
	require.NoError(t, err)

	views, err := store.ListItemsFor(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Equal(t, mine.ID, views[0].ID)
}

func TestListItemsFor_DropsDanglingIndexEntries(t *testing.T) {
	kv := memory.New()
	store := board.NewStore(kv)
	ctx := context.Background()

	item, err := store.CreateItem(ctx, "alice", model.Item{Title: "Keys", Status: model.ItemStatusLost})
	require.NoError(t, err)
	require.NoError(t, kv.Set(ctx, "userItem:alice:ghost", []byte("ghost")))

	views, err := store.ListItemsFor(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Equal(t, item.ID, views[0].ID)
}
