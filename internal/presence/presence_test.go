package presence

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/example/ambulance-dispatch/internal/models"
)

func TestMemoryRegistryImplicitEntry(t *testing.T) {
	r := NewMemoryRegistry()

	_, ok := r.Get("d1")
	require.False(t, ok)

	r.SetAvailability("d1", true)
	e, ok := r.Get("d1")
	require.True(t, ok)
	require.True(t, e.Available)
	require.Nil(t, e.Location)
	require.False(t, e.Updated.IsZero())
}

func TestMemoryRegistryLocationKeepsAvailability(t *testing.T) {
	r := NewMemoryRegistry()
	r.SetAvailability("d1", true)
	r.UpdateLocation("d1", models.Coord{Lat: 12.97, Lon: 77.59})

	e, ok := r.Get("d1")
	require.True(t, ok)
	require.True(t, e.Available)
	require.NotNil(t, e.Location)
	require.InDelta(t, 12.97, e.Location.Lat, 1e-9)

	r.SetAvailability("d1", false)
	e, _ = r.Get("d1")
	require.False(t, e.Available)
	require.NotNil(t, e.Location, "availability flips must not clear the last location")
}
