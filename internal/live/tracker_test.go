package live

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker_NotifyReachesWatchers(t *testing.T) {
	tr := NewTracker()
	ch, stop := tr.Watch("a", "b")
	defer stop()

	tr.Notify("b")
	select {
	case <-ch:
	default:
		t.Fatal("expected invalidation")
	}
}

func TestTracker_IgnoresOtherTables(t *testing.T) {
	tr := NewTracker()
	ch, stop := tr.Watch("a")
	defer stop()

	tr.Notify("z")
	select {
	case <-ch:
		t.Fatal("unexpected invalidation")
	default:
	}
}

func TestTracker_Coalesces(t *testing.T) {
	tr := NewTracker()
	ch, stop := tr.Watch("a")
	defer stop()

	tr.Notify("a")
	tr.Notify("a")
	tr.Notify("a")

	<-ch
	select {
	case <-ch:
		t.Fatal("notifications should coalesce into one pending signal")
	default:
	}
}

func TestTracker_StopUnregisters(t *testing.T) {
	tr := NewTracker()
	_, stop := tr.Watch("a", "b")
	assert.Equal(t, 1, tr.Watchers("a"))

	stop()
	stop()
	assert.Equal(t, 0, tr.Watchers("a"))
	assert.Equal(t, 0, tr.Watchers("b"))
}
