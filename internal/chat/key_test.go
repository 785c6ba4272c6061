package chat

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConversationID_Symmetric(t *testing.T) {
	a := ConversationID("alice", "bob", "item-1")
	b := ConversationID("bob", "alice", "item-1")
	require.Equal(t, a, b)
	require.Equal(t, "alice_bob_item-1", a)
}

func TestConversationID_DistinctPerItem(t *testing.T) {
	require.NotEqual(t,
		ConversationID("alice", "bob", "item-1"),
		ConversationID("alice", "bob", "item-2"),
	)
}

func TestSortParticipants(t *testing.T) {
	require.Equal(t, [2]string{"alice", "bob"}, SortParticipants("bob", "alice"))
	require.Equal(t, [2]string{"alice", "bob"}, SortParticipants("alice", "bob"))
}

func TestMessageID_LexicographicMatchesChronological(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ids := []string{
		messageID("conv", base),
		messageID("conv", base.Add(time.Millisecond)),
		messageID("conv", base.Add(time.Second)),
		messageID("conv", base.Add(time.Hour)),
	}
	require.True(t, sort.StringsAreSorted(ids))
}

func TestMonotonicClock_StrictlyIncreasing(t *testing.T) {
	frozen := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := newMonotonicClock(func() time.Time { return frozen })

	first := clock.Next()
	second := clock.Next()
	third := clock.Next()

	require.True(t, second.After(first))
	require.True(t, third.After(second))
	require.Equal(t, int64(1), second.UnixMilli()-first.UnixMilli())
}

func TestMonotonicClock_FollowsWallClockForward(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := newMonotonicClock(func() time.Time { return now })

	first := clock.Next()
	now = now.Add(5 * time.Second)
	second := clock.Next()

	require.Equal(t, int64(5000), second.UnixMilli()-first.UnixMilli())
}
