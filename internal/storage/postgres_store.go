package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/example/ambulance-dispatch/internal/models"
)

// PostgresStore persists bookings and users. The conditional update is a
// single UPDATE guarded by the expected prior state, so the accept race is
// settled by the database, not by read-then-write in the handler.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Insert(ctx context.Context, b models.Booking) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO bookings(id, rider_id, driver_id, pickup_lat, pickup_lon, pickup_address, notes, status, created_at)
		 VALUES($1,$2,NULLIF($3,''),$4,$5,$6,$7,$8,$9)`,
		b.ID, b.RiderID, b.DriverID, b.Pickup.Lat, b.Pickup.Lon, b.Pickup.Address, b.Notes, b.Status, b.CreatedAt)
	return err
}

func (p *PostgresStore) FindByID(ctx context.Context, id string) (models.Booking, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT id, rider_id, COALESCE(driver_id,''), pickup_lat, pickup_lon, pickup_address, notes, status, created_at
		 FROM bookings WHERE id=$1`, id)
	return scanBooking(row)
}

func (p *PostgresStore) FindOne(ctx context.Context, f BookingFilter) (models.Booking, error) {
	out, err := p.Find(ctx, f, true)
	if err != nil {
		return models.Booking{}, err
	}
	if len(out) == 0 {
		return models.Booking{}, ErrNotFound
	}
	return out[0], nil
}

func (p *PostgresStore) Find(ctx context.Context, f BookingFilter, newestFirst bool) ([]models.Booking, error) {
	where := []string{"TRUE"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.RiderID != "" {
		where = append(where, "rider_id="+arg(f.RiderID))
	}
	if f.DriverID != "" {
		where = append(where, "driver_id="+arg(f.DriverID))
	}
	if len(f.Statuses) > 0 {
		where = append(where, "status = ANY("+arg(pq.Array(statusStrings(f.Statuses)))+")")
	}
	if len(f.ExcludeStatuses) > 0 {
		where = append(where, "NOT (status = ANY("+arg(pq.Array(statusStrings(f.ExcludeStatuses)))+"))")
	}
	order := "ORDER BY created_at DESC"
	if !newestFirst {
		order = "ORDER BY created_at ASC"
	}
	query := `SELECT id, rider_id, COALESCE(driver_id,''), pickup_lat, pickup_lon, pickup_address, notes, status, created_at
		 FROM bookings WHERE ` + strings.Join(where, " AND ") + " " + order

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (p *PostgresStore) UpdateConditional(ctx context.Context, id string, expectStatus models.Status, expectNoDriver bool, upd BookingUpdate) (bool, error) {
	set, args := buildSet(upd)
	if len(set) == 0 {
		return false, errors.New("empty update")
	}
	args = append(args, id, string(expectStatus))
	query := fmt.Sprintf(`UPDATE bookings SET %s WHERE id=$%d AND status=$%d`,
		strings.Join(set, ", "), len(args)-1, len(args))
	if expectNoDriver {
		query += " AND driver_id IS NULL"
	}
	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (p *PostgresStore) Update(ctx context.Context, id string, upd BookingUpdate) error {
	set, args := buildSet(upd)
	if len(set) == 0 {
		return errors.New("empty update")
	}
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE bookings SET %s WHERE id=$%d`, strings.Join(set, ", "), len(args))
	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func buildSet(upd BookingUpdate) ([]string, []any) {
	set := []string{}
	args := []any{}
	if upd.Status != nil {
		args = append(args, string(*upd.Status))
		set = append(set, fmt.Sprintf("status=$%d", len(args)))
	}
	if upd.DriverID != nil {
		args = append(args, *upd.DriverID)
		set = append(set, fmt.Sprintf("driver_id=NULLIF($%d,'')", len(args)))
	}
	return set, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (models.Booking, error) {
	var b models.Booking
	err := row.Scan(&b.ID, &b.RiderID, &b.DriverID, &b.Pickup.Lat, &b.Pickup.Lon, &b.Pickup.Address, &b.Notes, &b.Status, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Booking{}, ErrNotFound
	}
	return b, err
}

func statusStrings(in []models.Status) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

func (p *PostgresStore) InsertUser(ctx context.Context, u models.User) error {
	var lat, lon sql.NullFloat64
	if u.Location != nil {
		lat = sql.NullFloat64{Float64: u.Location.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: u.Location.Lon, Valid: true}
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO users(id, name, phone, role, fcm_token, available, location_lat, location_lon)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8)`,
		u.ID, u.Name, u.Phone, u.Role, u.FCMToken, u.Available, lat, lon)
	return err
}

func (p *PostgresStore) FindUserByID(ctx context.Context, id string) (models.User, error) {
	var u models.User
	var lat, lon sql.NullFloat64
	err := p.db.QueryRowContext(ctx,
		`SELECT id, name, phone, role, COALESCE(fcm_token,''), available, location_lat, location_lon
		 FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.Name, &u.Phone, &u.Role, &u.FCMToken, &u.Available, &lat, &lon)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	if lat.Valid && lon.Valid {
		u.Location = &models.Coord{Lat: lat.Float64, Lon: lon.Float64}
	}
	return u, nil
}

func (p *PostgresStore) SetFCMToken(ctx context.Context, id, token string) error {
	return p.execUser(ctx, `UPDATE users SET fcm_token=$2 WHERE id=$1`, id, token)
}

func (p *PostgresStore) SetAvailability(ctx context.Context, id string, available bool) error {
	return p.execUser(ctx, `UPDATE users SET available=$2 WHERE id=$1`, id, available)
}

func (p *PostgresStore) SetUserLocation(ctx context.Context, id string, loc models.Coord) error {
	return p.execUser(ctx, `UPDATE users SET location_lat=$2, location_lon=$3 WHERE id=$1`, id, loc.Lat, loc.Lon)
}

func (p *PostgresStore) execUser(ctx context.Context, query string, args ...any) error {
	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
