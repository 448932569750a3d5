package presence

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/ambulance-dispatch/internal/models"
)

// RedisRegistry keeps driver presence in Redis: a GEO set for coordinates
// plus a meta hash per driver for availability. Updates are best-effort;
// a failed write leaves the previous entry in place, which the next
// announcement corrects.
type RedisRegistry struct {
	client *redis.Client
	geoKey string
	ctx    context.Context
}

func NewRedisRegistry(addr, password, geoKey string) *RedisRegistry {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisRegistry{client: c, geoKey: geoKey, ctx: context.Background()}
}

func (r *RedisRegistry) SetAvailability(driverID string, available bool) {
	_ = r.client.HSet(r.ctx, metaKey(driverID), map[string]interface{}{
		"available": strconv.FormatBool(available),
		"updated":   time.Now().Format(time.RFC3339),
	}).Err()
}

func (r *RedisRegistry) UpdateLocation(driverID string, loc models.Coord) {
	_, _ = r.client.GeoAdd(r.ctx, r.geoKey, &redis.GeoLocation{
		Longitude: loc.Lon,
		Latitude:  loc.Lat,
		Name:      driverID,
	}).Result()
	_ = r.client.HSet(r.ctx, metaKey(driverID), map[string]interface{}{
		"updated": time.Now().Format(time.RFC3339),
	}).Err()
}

func (r *RedisRegistry) Get(driverID string) (Entry, bool) {
	meta, err := r.client.HGetAll(r.ctx, metaKey(driverID)).Result()
	if err != nil || len(meta) == 0 {
		return Entry{}, false
	}
	e := Entry{DriverID: driverID}
	if v, ok := meta["available"]; ok {
		e.Available = v == "true"
	}
	if v, ok := meta["updated"]; ok {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			e.Updated = t
		}
	}
	if pos, err := r.client.GeoPos(r.ctx, r.geoKey, driverID).Result(); err == nil && len(pos) == 1 && pos[0] != nil {
		e.Location = &models.Coord{Lat: pos[0].Latitude, Lon: pos[0].Longitude}
	}
	return e, true
}

func metaKey(id string) string { return "driver:presence:" + id }
