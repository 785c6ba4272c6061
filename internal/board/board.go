// Package board owns the listing side of the lost-and-found: items and the
// user profiles they are joined against. The messaging core consumes it only
// through the Directory interface.
package board

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/campusfound/board-service/internal/model"
	registrykv "github.com/campusfound/board-service/internal/registry/kv"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// UnknownUserName is the placeholder shown when a joined user no longer resolves.
const UnknownUserName = "Unknown"

// Directory is the lookup surface the messaging core depends on.
type Directory interface {
	GetItem(ctx context.Context, itemID string) (*model.Item, error)
	GetUser(ctx context.Context, userID string) (*model.User, error)
}

// Store persists items and user profiles in the shared KV store.
type Store struct {
	kv  registrykv.Store
	now func() time.Time
}

// NewStore creates a board store over the given KV backend.
func NewStore(kv registrykv.Store) *Store {
	return &Store{kv: kv, now: time.Now}
}

// NewStoreWithClock is NewStore with an injected clock, for tests.
func NewStoreWithClock(kv registrykv.Store, now func() time.Time) *Store {
	return &Store{kv: kv, now: now}
}

var _ Directory = (*Store)(nil)

// EnsureUser records a user profile on first sight and returns it. Profiles
// are immutable after signup, so an existing record wins over new input.
func (s *Store) EnsureUser(ctx context.Context, userID, email, name string) (*model.User, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, &registrykv.ValidationError{Field: "id", Message: "must not be blank"}
	}
	if existing, err := s.GetUser(ctx, userID); err == nil {
		return existing, nil
	} else if !isNotFound(err) {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = userID
	}
	user := &model.User{
		ID:        userID,
		Email:     strings.TrimSpace(email),
		Name:      name,
		CreatedAt: s.now().UTC(),
	}
	if err := s.put(ctx, userKey(userID), user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetUser returns the user profile, or NotFoundError.
func (s *Store) GetUser(ctx context.Context, userID string) (*model.User, error) {
	var user model.User
	if err := s.get(ctx, userKey(userID), &user); err != nil {
		if errors.Is(err, registrykv.ErrKeyNotFound) {
			return nil, &registrykv.NotFoundError{Resource: "user", ID: userID}
		}
		return nil, err
	}
	return &user, nil
}

// CreateItem posts a new listing owned by ownerUserID. The item record is
// written before its index entry so a torn write leaves a reachable entity,
// never a dangling pointer the readers can't resolve.
func (s *Store) CreateItem(ctx context.Context, ownerUserID string, item model.Item) (*model.Item, error) {
	item.Title = strings.TrimSpace(item.Title)
	if item.Title == "" {
		return nil, &registrykv.ValidationError{Field: "title", Message: "must not be blank"}
	}
	if !item.Status.Valid() {
		return nil, &registrykv.ValidationError{Field: "status", Message: "must be lost or found"}
	}

	item.ID = uuid.NewString()
	item.OwnerUserID = ownerUserID
	item.CreatedAt = s.now().UTC()

	if err := s.put(ctx, itemKey(item.ID), &item); err != nil {
		return nil, err
	}
	if err := s.kv.Set(ctx, userItemKey(ownerUserID, item.ID), []byte(item.ID)); err != nil {
		return nil, err
	}
	return &item, nil
}

// GetItem returns the item, or NotFoundError.
func (s *Store) GetItem(ctx context.Context, itemID string) (*model.Item, error) {
	var item model.Item
	if err := s.get(ctx, itemKey(itemID), &item); err != nil {
		if errors.Is(err, registrykv.ErrKeyNotFound) {
			return nil, &registrykv.NotFoundError{Resource: "item", ID: itemID}
		}
		return nil, err
	}
	return &item, nil
}

// ListItems returns all listings, newest first, with owner display fields
// joined. A missing owner degrades to the Unknown placeholder.
func (s *Store) ListItems(ctx context.Context) ([]model.ItemView, error) {
	raw, err := s.kv.GetByPrefix(ctx, itemKeyPrefix)
	if err != nil {
		return nil, err
	}
	items := make([]model.Item, 0, len(raw))
	for _, data := range raw {
		var item model.Item
		if err := json.Unmarshal(data, &item); err != nil {
			log.Warn("Skipping undecodable item record", "err", err)
			continue
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return s.composeItems(ctx, items), nil
}

// ListItemsFor returns the caller's own listings, newest first. Index entries
// whose backing item no longer resolves are dropped.
func (s *Store) ListItemsFor(ctx context.Context, userID string) ([]model.ItemView, error) {
	ids, err := s.kv.GetByPrefix(ctx, userItemScanPrefix(userID))
	if err != nil {
		return nil, err
	}
	items := make([]model.Item, 0, len(ids))
	for _, id := range ids {
		item, err := s.GetItem(ctx, string(id))
		if err != nil {
			if isNotFound(err) {
				log.Warn("Dropping dangling item index entry", "user", userID, "item", string(id))
				continue
			}
			return nil, err
		}
		items = append(items, *item)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return s.composeItems(ctx, items), nil
}

// composeItems attaches owner name/email. Owners are looked up once each.
func (s *Store) composeItems(ctx context.Context, items []model.Item) []model.ItemView {
	owners := map[string]*model.User{}
	views := make([]model.ItemView, 0, len(items))
	for _, item := range items {
		owner, seen := owners[item.OwnerUserID]
		if !seen {
			owner, _ = s.GetUser(ctx, item.OwnerUserID)
			owners[item.OwnerUserID] = owner
		}
		view := model.ItemView{Item: item, UserName: UnknownUserName}
		if owner != nil {
			view.UserName = owner.Name
			view.UserEmail = owner.Email
		}
		views = append(views, view)
	}
	return views
}

func (s *Store) put(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, key, data)
}

func (s *Store) get(ctx context.Context, key string, out any) error {
	data, err := s.kv.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func isNotFound(err error) bool {
	var notFound *registrykv.NotFoundError
	return errors.As(err, &notFound)
}
