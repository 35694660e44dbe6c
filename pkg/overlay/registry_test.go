package overlay

import (
	"errors"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(max int) (*Registry, *fakeContainer, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(epoch)
	c := newFakeContainer()
	return NewRegistry(max, c, fakeVisuals, clock), c, clock
}

func TestRegistry_AdmissionControl(t *testing.T) {
	r, c, _ := newTestRegistry(2)
	a, b, cc := LngLat{Lng: 10, Lat: 10}, LngLat{Lng: 20, Lat: 20}, LngLat{Lng: 30, Lat: 30}

	idA, err := r.Place(a, Point{})
	require.NoError(t, err)
	idB, err := r.Place(b, Point{})
	require.NoError(t, err)

	id, err := r.Place(cc, Point{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAdmissionRejected))
	assert.Empty(t, id)

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, 2, c.Len())
	anchors := []LngLat{}
	for _, e := range r.Snapshot() {
		anchors = append(anchors, e.Anchor)
	}
	assert.Equal(t, []LngLat{a, b}, anchors)
	assert.NotEqual(t, idA, idB)
}

func TestRegistry_NeverExceedsMax(t *testing.T) {
	for _, max := range []int{1, 3, 10} {
		r, c, _ := newTestRegistry(max)
		for i := 0; i < max*3; i++ {
			_, _ = r.Place(LngLat{Lng: float64(i)}, Point{})
			assert.LessOrEqual(t, r.Len(), max)
			assert.Equal(t, r.Len(), c.Len())
		}
		assert.Equal(t, max, r.Len())
	}
}

func TestRegistry_PlaceMountsPositionedVisual(t *testing.T) {
	r, c, clock := newTestRegistry(5)

	id, err := r.Place(LngLat{Lng: 1, Lat: 2}, Point{X: 30, Y: 40})
	require.NoError(t, err)

	e, ok := r.Get(id)
	require.True(t, ok)
	assert.Equal(t, clock.Now(), e.CreatedAt)
	v := e.Visual.(*fakeVisual)
	assert.Equal(t, Point{X: 30, Y: 40}, v.pos)
	assert.Equal(t, id, v.id)
	assert.Equal(t, 1, c.Len())
}

func TestRegistry_RemoveReleasesOnceAndIsIdempotent(t *testing.T) {
	r, c, _ := newTestRegistry(5)
	id, err := r.Place(LngLat{}, Point{})
	require.NoError(t, err)
	v := c.all()[0]

	assert.True(t, r.Remove(id))
	assert.False(t, r.Remove(id))
	assert.False(t, r.Remove("missing"))

	assert.Equal(t, 1, v.releases)
	assert.Zero(t, c.Len())
	assert.Zero(t, r.Len())
}

func TestRegistry_RemoveFreesCapacity(t *testing.T) {
	r, _, _ := newTestRegistry(1)
	id, err := r.Place(LngLat{}, Point{})
	require.NoError(t, err)

	_, err = r.Place(LngLat{}, Point{})
	require.ErrorIs(t, err, ErrAdmissionRejected)

	r.Remove(id)
	_, err = r.Place(LngLat{}, Point{})
	require.NoError(t, err)
}

func TestRegistry_ForEachToleratesRemoval(t *testing.T) {
	r, _, _ := newTestRegistry(10)
	var ids []ID
	for i := 0; i < 6; i++ {
		id, err := r.Place(LngLat{Lng: float64(i)}, Point{})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	visits := map[ID]int{}
	r.ForEach(func(e Entity) {
		visits[e.ID]++
		// Remove the current entry and the one after it.
		r.Remove(e.ID)
		for i, id := range ids {
			if id == e.ID && i+1 < len(ids) {
				r.Remove(ids[i+1])
			}
		}
	})

	assert.Equal(t, map[ID]int{ids[0]: 1, ids[2]: 1, ids[4]: 1}, visits)
	assert.Zero(t, r.Len())
}

func TestRegistry_Clear(t *testing.T) {
	r, c, _ := newTestRegistry(10)
	for i := 0; i < 4; i++ {
		_, err := r.Place(LngLat{}, Point{})
		require.NoError(t, err)
	}

	assert.Equal(t, 4, r.Clear())
	assert.Zero(t, r.Len())
	assert.Zero(t, c.Len())
	for _, v := range c.all() {
		assert.Equal(t, 1, v.releases)
	}
}

func TestRegistry_ForEachYieldsCopies(t *testing.T) {
	r, _, _ := newTestRegistry(5)
	id, err := r.Place(LngLat{Lng: 1, Lat: 2}, Point{})
	require.NoError(t, err)

	r.ForEach(func(e Entity) { e.Anchor = LngLat{Lng: 99, Lat: 9} })

	e, ok := r.Get(id)
	require.True(t, ok)
	assert.Equal(t, LngLat{Lng: 1, Lat: 2}, e.Anchor)
}
