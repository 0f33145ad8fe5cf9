package widget_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/chat-popup/backend/internal/service/widget"
)

func TestFeedDropsOldestWhenFull(t *testing.T) {
	w, _ := newTestWidget(t, nil)
	feed := widget.NewFeed(w, 2)
	defer feed.Close()

	w.TogglePopup()
	w.SetDraft("a")
	w.SetDraft("ab")

	first := <-feed.Events()
	second := <-feed.Events()
	assert.Equal(t, "a", first.State.Draft)
	assert.Equal(t, "ab", second.State.Draft)
	assert.Empty(t, feed.Events())
}

func TestFeedStopsAfterClose(t *testing.T) {
	w, _ := newTestWidget(t, nil)
	feed := widget.NewFeed(w, 4)

	feed.Close()
	feed.Close()
	w.TogglePopup()

	assert.Empty(t, feed.Events())
}

func TestFeedReceivesClosedEvent(t *testing.T) {
	w, _ := newTestWidget(t, nil)
	feed := widget.NewFeed(w, 4)
	defer feed.Close()

	w.Close()

	require.Len(t, feed.Events(), 1)
	ev := <-feed.Events()
	assert.Equal(t, widget.EventClosed, ev.Kind)
}
