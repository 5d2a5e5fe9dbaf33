package prompt

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/dperrin/vidrag/internal/core"
)

func passage(text string, index int) core.RetrievedResult {
	return core.RetrievedResult{
		Score:      1 - float32(index)*0.1,
		Text:       text,
		VideoID:    "vid",
		ChunkIndex: index,
	}
}

func turn(role, content string) core.ConversationTurn {
	return core.ConversationTurn{Role: role, Content: content, Timestamp: time.Now()}
}

func TestBuildFallbackWhenNoPassages(t *testing.T) {
	b := NewBuilder(3, 12000)
	got := b.Build("What is discussed?", nil, []core.ConversationTurn{turn(core.RoleUser, "hi")})

	if !strings.Contains(got, NoContextMarker) {
		t.Error("fallback prompt missing the no-relevant-information marker")
	}
	if !strings.Contains(got, "What is discussed?") {
		t.Error("fallback prompt missing the question")
	}
	if strings.Contains(got, "Context from the video") {
		t.Error("fallback prompt must not contain a retrieved-context section")
	}
}

func TestBuildIncludesPassagesInRankOrder(t *testing.T) {
	b := NewBuilder(3, 12000)
	got := b.Build("q", []core.RetrievedResult{
		passage("first ranked passage", 0),
		passage("second ranked passage", 1),
	}, nil)

	i := strings.Index(got, "first ranked passage")
	j := strings.Index(got, "second ranked passage")
	if i < 0 || j < 0 {
		t.Fatal("passages missing from prompt")
	}
	if i > j {
		t.Error("passages out of rank order")
	}
	if !strings.Contains(got, "\n\n---\n\n") {
		t.Error("passages not separated by the delimiter")
	}
	if strings.Contains(got, NoContextMarker) {
		t.Error("regular prompt must not carry the fallback marker")
	}
}

func TestBuildHistoryWindow(t *testing.T) {
	b := NewBuilder(3, 12000)
	history := []core.ConversationTurn{
		turn(core.RoleUser, "oldest question"),
		turn(core.RoleAssistant, "oldest answer"),
		turn(core.RoleUser, "recent question"),
		turn(core.RoleAssistant, "recent answer"),
	}
	got := b.Build("q", []core.RetrievedResult{passage("ctx", 0)}, history)

	if strings.Contains(got, "oldest question") {
		t.Error("turn outside the history window leaked into the prompt")
	}
	for _, want := range []string{"oldest answer", "recent question", "recent answer"} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing recent turn %q", want)
		}
	}
	if !strings.Contains(got, "user: recent question") {
		t.Error("history turns not rendered as role-prefixed lines")
	}
}

func TestBuildEmptyHistory(t *testing.T) {
	b := NewBuilder(3, 12000)
	got := b.Build("q", []core.RetrievedResult{passage("ctx", 0)}, nil)
	if !strings.Contains(got, "No prior conversation.") {
		t.Error("empty history placeholder missing")
	}
}

func TestBuildDropsLowestRankedToFitBudget(t *testing.T) {
	big := strings.Repeat("a", 400)
	b := NewBuilder(3, 900)
	got := b.Build("q", []core.RetrievedResult{
		passage(big+"-one", 0),
		passage(big+"-two", 1),
		passage(big+"-three", 2),
	}, nil)

	if !strings.Contains(got, big+"-one") {
		t.Error("highest-ranked passage was dropped")
	}
	if strings.Contains(got, big+"-three") {
		t.Error("lowest-ranked passage should be dropped first")
	}
	// Passages are dropped whole, never cut: any passage present must be
	// present in full.
	for _, suffix := range []string{"-one", "-two"} {
		idx := strings.Index(got, "a"+suffix)
		if idx >= 0 && !strings.Contains(got, big+suffix) {
			t.Errorf("passage %s was truncated mid-text", suffix)
		}
	}
}

func TestBuildKeepsTopPassageEvenOverBudget(t *testing.T) {
	big := strings.Repeat("b", 2000)
	b := NewBuilder(3, 100)
	got := b.Build("q", []core.RetrievedResult{passage(big, 0)}, nil)
	if !strings.Contains(got, big) {
		t.Error("sole passage must be kept whole rather than truncated")
	}
	if utf8.RuneCountInString(got) < 2000 {
		t.Error("top passage appears to have been cut")
	}
}
