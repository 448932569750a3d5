package geo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/example/ambulance-dispatch/internal/models"
)

func TestDistanceKmZero(t *testing.T) {
	p := models.Coord{Lat: 12.9716, Lon: 77.5946}
	require.Zero(t, DistanceKm(p, p))
}

func TestDistanceKmSymmetric(t *testing.T) {
	a := models.Coord{Lat: 12.9716, Lon: 77.5946}
	b := models.Coord{Lat: 12.9352, Lon: 77.6245}
	require.InDelta(t, DistanceKm(a, b), DistanceKm(b, a), 1e-12)
}

func TestDistanceKmKnownPair(t *testing.T) {
	// Bangalore city center to Koramangala, roughly 5.2 km apart.
	a := models.Coord{Lat: 12.9716, Lon: 77.5946}
	b := models.Coord{Lat: 12.9352, Lon: 77.6245}
	d := DistanceKm(a, b)
	require.Greater(t, d, 4.5)
	require.Less(t, d, 6.0)
}

func TestDistanceKmSubKilometer(t *testing.T) {
	// ~0.0045 degrees latitude is about 500 m.
	a := models.Coord{Lat: 12.9716, Lon: 77.5946}
	b := models.Coord{Lat: 12.9761, Lon: 77.5946}
	d := DistanceKm(a, b)
	require.InDelta(t, 0.5, d, 0.05)
}
