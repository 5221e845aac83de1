package history

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChamsBouzaiene/petchat/internal/engine"
	"github.com/ChamsBouzaiene/petchat/internal/session"
)

func numberedTurns(n int) []session.Turn {
	turns := make([]session.Turn, 0, n)
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			turns = append(turns, session.UserTurn(fmt.Sprintf("turn-%02d", i)))
		} else {
			turns = append(turns, session.AssistantTurn(fmt.Sprintf("turn-%02d", i)))
		}
	}
	return turns
}

func TestBuildTextSubmissionKeepsLastTwenty(t *testing.T) {
	turns := numberedTurns(25)

	got := DefaultPolicy().BuildTextSubmission(turns)

	require.Len(t, got, 20)
	assert.Equal(t, turns[5:], got)
	assert.Equal(t, "turn-05", got[0].Content)
	assert.Equal(t, "turn-24", got[19].Content)
}

func TestBuildTextSubmissionIsBoundedSuffix(t *testing.T) {
	for _, n := range []int{0, 1, 7, 19, 20, 21, 40} {
		for _, window := range []int{1, 3, 20} {
			t.Run(fmt.Sprintf("n=%d/window=%d", n, window), func(t *testing.T) {
				turns := numberedTurns(n)
				got := Policy{TextWindow: window}.BuildTextSubmission(turns)

				require.LessOrEqual(t, len(got), window)
				require.NotNil(t, got)
				assert.Equal(t, turns[len(turns)-len(got):], got)
			})
		}
	}
}

func TestBuildTextSubmissionDoesNotAlias(t *testing.T) {
	turns := numberedTurns(3)
	got := DefaultPolicy().BuildTextSubmission(turns)
	got[0].Content = "changed"
	assert.Equal(t, "turn-00", turns[0].Content)
}

func TestBuildVideoContextSubmission(t *testing.T) {
	turns := numberedTurns(15)
	turns = append(turns, session.Turn{Role: engine.RoleSystem, Content: "not history"})
	turns = append(turns, session.UserTurn("   "))

	got := DefaultPolicy().BuildVideoContextSubmission(turns)

	require.Len(t, got, 10)
	assert.Equal(t, turns[5:15], got)
	for _, turn := range got {
		assert.NotEqual(t, engine.RoleSystem, turn.Role)
	}
}

func TestPolicyFallsBackToDefaults(t *testing.T) {
	turns := numberedTurns(30)
	p := Policy{TextWindow: -1}

	assert.Len(t, p.BuildTextSubmission(turns), DefaultTextWindow)
	assert.Len(t, p.BuildVideoContextSubmission(turns), DefaultVideoWindow)
}

func TestRecordTextTurn(t *testing.T) {
	store := session.NewStore()
	DefaultPolicy().RecordTextTurn(store, "s1", "hi", "hello")

	assert.Equal(t, []session.Turn{
		{Role: engine.RoleUser, Content: "hi"},
		{Role: engine.RoleAssistant, Content: "hello"},
	}, store.Get("s1"))
}

func TestRecordVideoTurnAlwaysAppendsPair(t *testing.T) {
	tests := []struct {
		name        string
		caption     string
		assistant   string
		wantContent string
	}{
		{name: "success with caption", caption: "is my dog anxious?", assistant: "The dog looks relaxed.", wantContent: "[uploaded video] is my dog anxious?"},
		{name: "error without caption", caption: "", assistant: "Sorry, an error occurred while analyzing the video: boom", wantContent: "[uploaded video] " + DefaultVideoCaption},
		{name: "blank caption", caption: "  \t", assistant: "ok", wantContent: "[uploaded video] " + DefaultVideoCaption},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := session.NewStore()
			store.Append("s1", session.UserTurn("earlier"))

			DefaultPolicy().RecordVideoTurn(store, "s1", tt.caption, tt.assistant)

			turns := store.Get("s1")
			require.Len(t, turns, 3)
			assert.Equal(t, engine.RoleUser, turns[1].Role)
			assert.True(t, strings.HasPrefix(turns[1].Content, VideoMarker))
			assert.Equal(t, tt.wantContent, turns[1].Content)
			assert.Equal(t, session.AssistantTurn(tt.assistant), turns[2])
		})
	}
}
