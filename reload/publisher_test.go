package reload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PinkeshGjr/PIRService/testutil"
)

func TestCurrentBeforePublish(t *testing.T) {
	p := NewPublisher(nil)
	assert.False(t, p.Ready())

	_, err := p.Current()
	assert.ErrorIs(t, err, ErrNoGeneration)
}

func TestPublishAndBorrow(t *testing.T) {
	_, scheme := testutil.NewCompactScheme(t)
	gen := testutil.NewGeneration(t, scheme, 2, 8)

	p := NewPublisher(nil)
	p.Publish(gen)
	assert.True(t, p.Ready())

	got, err := p.Current()
	require.NoError(t, err)
	assert.Equal(t, gen.ID, got.ID)
	assert.Equal(t, int64(1), got.Borrows())
	got.Release()
	assert.Equal(t, int64(0), got.Borrows())
}

func TestPublishRetiresPredecessorAfterDrain(t *testing.T) {
	_, scheme := testutil.NewCompactScheme(t)
	gen1 := testutil.NewGeneration(t, scheme, 2, 8)
	gen2 := testutil.NewGeneration(t, scheme, 2, 12)

	released := 0
	gen1.SetReleaseHook(func() { released++ })

	p := NewPublisher(nil)
	p.Publish(gen1)

	// A query borrows gen1 and is still in flight when gen2 lands.
	inFlight, err := p.Current()
	require.NoError(t, err)

	p.Publish(gen2)
	assert.Equal(t, 0, released, "borrowed predecessor must survive the swap")

	// New queries see gen2 immediately.
	current, err := p.Current()
	require.NoError(t, err)
	assert.Equal(t, gen2.ID, current.ID)
	current.Release()

	// The in-flight query still reads gen1's data, then releases it.
	_, err = inFlight.Packed(0)
	require.NoError(t, err)
	inFlight.Release()
	assert.Equal(t, 1, released)
}

func TestPublishUnborrowedPredecessorReleasesImmediately(t *testing.T) {
	_, scheme := testutil.NewCompactScheme(t)
	gen1 := testutil.NewGeneration(t, scheme, 2, 8)
	gen2 := testutil.NewGeneration(t, scheme, 2, 12)

	released := 0
	gen1.SetReleaseHook(func() { released++ })

	p := NewPublisher(nil)
	p.Publish(gen1)
	p.Publish(gen2)
	assert.Equal(t, 1, released)
}
