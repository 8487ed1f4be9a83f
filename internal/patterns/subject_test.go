package patterns

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingObserver struct {
	n atomic.Int32
}

func (c *countingObserver) Observe(interface{}) {
	c.n.Add(1)
}

func TestSubject_NotifyAndUnsubscribe(t *testing.T) {
	s := NewSubject()

	obs := &countingObserver{}
	var got []interface{}
	fn := func(e interface{}) { got = append(got, e) }

	require.NoError(t, s.Subscribe(obs))
	require.NoError(t, s.Subscribe(fn))

	s.Notify("a")
	assert.Equal(t, int32(1), obs.n.Load())
	assert.Equal(t, []interface{}{"a"}, got)

	require.NoError(t, s.Unsubscribe(obs))
	require.NoError(t, s.Unsubscribe(fn))
	s.Notify("b")
	assert.Equal(t, int32(1), obs.n.Load())
	assert.Len(t, got, 1)

	assert.Error(t, s.Unsubscribe(obs))
}

func TestSubject_RejectsUnknownObserver(t *testing.T) {
	s := NewSubject()
	assert.Error(t, s.Subscribe(42))
}
