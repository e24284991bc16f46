package xenopsd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/xapi-core/xapi-core/pkg/model"
)

func TestSuppressionWindow(t *testing.T) {
	s := NewSuppression()
	ref := model.NewRef()

	assert.False(t, s.Active(ref))
	s.Begin(ref, 30*time.Millisecond)
	assert.True(t, s.Active(ref))

	time.Sleep(45 * time.Millisecond)
	assert.False(t, s.Active(ref))
}

func TestReentrantSuppressionExtendsRatherThanStacks(t *testing.T) {
	s := NewSuppression()
	ref := model.NewRef()

	s.Begin(ref, 20*time.Millisecond)
	s.Begin(ref, 200*time.Millisecond) // re-entrant call while first window open

	time.Sleep(50 * time.Millisecond)
	assert.True(t, s.Active(ref), "second Begin should have extended the window, not been ignored")
}

func TestSuppressionClear(t *testing.T) {
	s := NewSuppression()
	ref := model.NewRef()
	s.Begin(ref, time.Minute)
	s.Clear(ref)
	assert.False(t, s.Active(ref))
}

func TestTaskBridgeTrackAndResolve(t *testing.T) {
	b := NewTaskBridge()
	b.Track("xenops-1", "xapi-task-ref")

	ref, ok := b.Resolve("xenops-1")
	assert.True(t, ok)
	assert.Equal(t, "xapi-task-ref", ref)

	_, ok = b.Resolve("xenops-1")
	assert.False(t, ok)
}

func TestCachePushedRoundTrip(t *testing.T) {
	c := NewCache()
	vmRef := model.NewRef()
	c.SetPushed(VMMetadata{VMRef: vmRef, UUID: "abc"})

	md, ok := c.Pushed(vmRef)
	assert.True(t, ok)
	assert.Equal(t, "abc", md.UUID)

	c.ClearPushed(vmRef)
	_, ok = c.Pushed(vmRef)
	assert.False(t, ok)
}
