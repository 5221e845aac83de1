package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChamsBouzaiene/petchat/internal/engine"
)

func TestStoreGetUnknownSessionIsEmpty(t *testing.T) {
	store := NewStore()

	turns := store.Get("nobody")
	require.NotNil(t, turns)
	assert.Empty(t, turns)
	assert.Equal(t, 0, store.Len("nobody"))
	assert.Equal(t, 0, store.Count())
}

func TestStoreAppendPreservesOrder(t *testing.T) {
	store := NewStore()
	store.Append("s1", UserTurn("hi"))
	store.Append("s1", AssistantTurn("hello"))
	store.Append("s1", UserTurn("how is my cat?"))

	got := store.Get("s1")
	want := []Turn{
		{Role: engine.RoleUser, Content: "hi"},
		{Role: engine.RoleAssistant, Content: "hello"},
		{Role: engine.RoleUser, Content: "how is my cat?"},
	}
	assert.Equal(t, want, got)
	assert.Equal(t, 1, store.Count())
}

func TestStoreGetReturnsCopy(t *testing.T) {
	store := NewStore()
	store.Append("s1", UserTurn("original"))

	got := store.Get("s1")
	got[0].Content = "mutated"

	assert.Equal(t, "original", store.Get("s1")[0].Content)
}

func TestStoreClear(t *testing.T) {
	store := NewStore()
	store.Append("s1", UserTurn("hi"))
	store.Append("s1", AssistantTurn("hello"))
	store.Append("s2", UserTurn("other"))

	store.Clear("s1")
	store.Clear("missing")

	assert.Empty(t, store.Get("s1"))
	assert.Len(t, store.Get("s2"), 1)
	assert.Empty(t, store.Get("missing"))
}

func TestStoreSessionsAreIsolated(t *testing.T) {
	store := NewStore()
	store.Append("a", UserTurn("for a"))
	store.Append("b", UserTurn("for b"))

	assert.Equal(t, "for a", store.Get("a")[0].Content)
	assert.Equal(t, "for b", store.Get("b")[0].Content)
}

func TestStoreCloseDropsSessions(t *testing.T) {
	store := NewStore()
	store.Append("s1", UserTurn("hi"))
	require.NoError(t, store.Close())

	assert.Empty(t, store.Get("s1"))
	store.Append("s1", UserTurn("after close"))
	assert.Empty(t, store.Get("s1"))

	release := store.Lock("s1")
	release()
}

func TestStoreLockSerializesTurns(t *testing.T) {
	store := NewStore()
	const workers = 20

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			release := store.Lock("shared")
			defer release()
			store.Append("shared", UserTurn(fmt.Sprintf("q%d", i)))
			store.Append("shared", AssistantTurn(fmt.Sprintf("a%d", i)))
		}(i)
	}
	wg.Wait()

	turns := store.Get("shared")
	require.Len(t, turns, workers*2)
	for i := 0; i < len(turns); i += 2 {
		require.Equal(t, engine.RoleUser, turns[i].Role)
		require.Equal(t, engine.RoleAssistant, turns[i+1].Role)
		assert.Equal(t, "a"+turns[i].Content[1:], turns[i+1].Content, "pair %d interleaved", i/2)
	}
}

func TestResolveID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: DefaultID},
		{in: "   ", want: DefaultID},
		{in: " abc ", want: "abc"},
		{in: "session-1", want: "session-1"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveID(tt.in))
		})
	}
}
