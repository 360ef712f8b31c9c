// README: Entity store backed by PostgreSQL (pgxpool); InTx wraps one pgx transaction.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"weride/internal/types"
)

const uniqueViolation = "23505"

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Postgres struct {
	pool *pgxpool.Pool
	pgReader
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool, pgReader: pgReader{q: pool}}
}

var _ Store = (*Postgres)(nil)

func (p *Postgres) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(&pgTx{pgReader: pgReader{q: tx}}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type pgReader struct {
	q querier
}

type pgTx struct {
	pgReader
}

type scanner interface {
	Scan(dest ...any) error
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	}
	return err
}

// ---------------------------------------------------------------------------
// users / drivers
// ---------------------------------------------------------------------------

const userCols = `id, name, phone, email, role, rating, rating_count, total_rides, is_active, created_at`

func scanUser(row scanner) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Name, &u.Phone, &u.Email, &u.Role, &u.Rating, &u.RatingCount,
		&u.TotalRides, &u.Active, &u.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (r pgReader) GetUser(ctx context.Context, id types.ID) (*User, error) {
	return scanUser(r.q.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, string(id)))
}

func (r pgReader) GetUserByPhone(ctx context.Context, phone string) (*User, error) {
	return scanUser(r.q.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE phone = $1`, phone))
}

func (t *pgTx) LockUser(ctx context.Context, id types.ID) (*User, error) {
	return scanUser(t.q.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1 FOR UPDATE`, string(id)))
}

func (t *pgTx) CreateUser(ctx context.Context, u *User) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO users (`+userCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		string(u.ID), u.Name, u.Phone, u.Email, string(u.Role), u.Rating, u.RatingCount,
		u.TotalRides, u.Active, u.CreatedAt,
	)
	return mapErr(err)
}

func (t *pgTx) UpdateUser(ctx context.Context, u *User) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE users
		SET name = $2, phone = $3, email = $4, role = $5, rating = $6,
		    rating_count = $7, total_rides = $8, is_active = $9
		WHERE id = $1`,
		string(u.ID), u.Name, u.Phone, u.Email, string(u.Role), u.Rating,
		u.RatingCount, u.TotalRides, u.Active,
	)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const driverCols = `user_id, vehicle, license_plate, is_online, current_lat, current_lng, last_location_update, hourly_rate`

func scanDriver(row scanner) (*Driver, error) {
	var d Driver
	var lat, lng *float64
	if err := row.Scan(&d.UserID, &d.Vehicle, &d.LicensePlate, &d.Online, &lat, &lng,
		&d.PositionAt, &d.HourlyRate); err != nil {
		return nil, mapErr(err)
	}
	d.Position = colsPoint(lat, lng)
	return &d, nil
}

func (r pgReader) GetDriver(ctx context.Context, userID types.ID) (*Driver, error) {
	return scanDriver(r.q.QueryRow(ctx, `SELECT `+driverCols+` FROM drivers WHERE user_id = $1`, string(userID)))
}

func (r pgReader) ListOnlineDrivers(ctx context.Context) ([]*Driver, error) {
	rows, err := r.q.Query(ctx, `SELECT `+driverCols+` FROM drivers WHERE is_online ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (t *pgTx) UpsertDriver(ctx context.Context, d *Driver) error {
	lat, lng := pointCols(d.Position)
	_, err := t.q.Exec(ctx, `
		INSERT INTO drivers (`+driverCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			vehicle = EXCLUDED.vehicle,
			license_plate = EXCLUDED.license_plate,
			is_online = EXCLUDED.is_online,
			current_lat = EXCLUDED.current_lat,
			current_lng = EXCLUDED.current_lng,
			last_location_update = EXCLUDED.last_location_update,
			hourly_rate = EXCLUDED.hourly_rate`,
		string(d.UserID), d.Vehicle, d.LicensePlate, d.Online, lat, lng, d.PositionAt, d.HourlyRate,
	)
	return mapErr(err)
}

// ---------------------------------------------------------------------------
// rides
// ---------------------------------------------------------------------------

const rideCols = `id, passenger_id, driver_id, pickup_address, destination_address,
	pickup_lat, pickup_lng, destination_lat, destination_lng,
	price_offer, final_price, currency, status,
	requested_at, accepted_at, pickup_at, started_at, completed_at, cancelled_at, cancel_reason,
	arrival_call_made, safety_check_made, feedback_call_made`

func scanRide(row scanner) (*Ride, error) {
	var r Ride
	var driverID *string
	var pLat, pLng, dLat, dLng *float64
	var finalPrice *int64
	var currency string
	if err := row.Scan(
		&r.ID, &r.PassengerID, &driverID, &r.Pickup, &r.Destination,
		&pLat, &pLng, &dLat, &dLng,
		&r.PriceOffer.Amount, &finalPrice, &currency, &r.Status,
		&r.RequestedAt, &r.AcceptedAt, &r.PickupAt, &r.StartedAt, &r.CompletedAt, &r.CancelledAt, &r.CancelReason,
		&r.ArrivalCallMade, &r.SafetyCheckMade, &r.FeedbackCallMade,
	); err != nil {
		return nil, mapErr(err)
	}
	r.DriverID = stringPtrToID(driverID)
	r.PickupPoint = colsPoint(pLat, pLng)
	r.DestinationPoint = colsPoint(dLat, dLng)
	r.PriceOffer.Currency = currency
	if finalPrice != nil {
		r.FinalPrice = &types.Money{Amount: *finalPrice, Currency: currency}
	}
	return &r, nil
}

func (r pgReader) queryRides(ctx context.Context, sql string, args ...any) ([]*Ride, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ride)
	}
	return out, rows.Err()
}

func (r pgReader) GetRide(ctx context.Context, id types.ID) (*Ride, error) {
	return scanRide(r.q.QueryRow(ctx, `SELECT `+rideCols+` FROM rides WHERE id = $1`, string(id)))
}

func (r pgReader) ListRidesByStatus(ctx context.Context, statuses ...RideStatus) ([]*Ride, error) {
	return r.queryRides(ctx, `
		SELECT `+rideCols+` FROM rides
		WHERE status = ANY($1)
		ORDER BY requested_at, id`, statusStrings(statuses))
}

func (r pgReader) FindActiveRideByDriver(ctx context.Context, driverID types.ID) (*Ride, error) {
	return scanRide(r.q.QueryRow(ctx, `
		SELECT `+rideCols+` FROM rides
		WHERE driver_id = $1 AND status = ANY($2)
		ORDER BY accepted_at DESC
		LIMIT 1`, string(driverID), statusStrings(ActiveDriverStatuses)))
}

func (t *pgTx) LockRide(ctx context.Context, id types.ID) (*Ride, error) {
	return scanRide(t.q.QueryRow(ctx, `SELECT `+rideCols+` FROM rides WHERE id = $1 FOR UPDATE`, string(id)))
}

func (t *pgTx) CreateRide(ctx context.Context, r *Ride) error {
	pLat, pLng := pointCols(r.PickupPoint)
	dLat, dLng := pointCols(r.DestinationPoint)
	_, err := t.q.Exec(ctx, `
		INSERT INTO rides (`+rideCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		        $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`,
		string(r.ID), string(r.PassengerID), idPtrToString(r.DriverID), r.Pickup, r.Destination,
		pLat, pLng, dLat, dLng,
		r.PriceOffer.Amount, moneyAmount(r.FinalPrice), r.PriceOffer.Currency, string(r.Status),
		r.RequestedAt, r.AcceptedAt, r.PickupAt, r.StartedAt, r.CompletedAt, r.CancelledAt, r.CancelReason,
		r.ArrivalCallMade, r.SafetyCheckMade, r.FeedbackCallMade,
	)
	return mapErr(err)
}

func (t *pgTx) UpdateRide(ctx context.Context, r *Ride) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE rides
		SET driver_id = $2, final_price = $3, status = $4,
		    accepted_at = $5, pickup_at = $6, started_at = $7, completed_at = $8,
		    cancelled_at = $9, cancel_reason = $10,
		    arrival_call_made = $11, safety_check_made = $12, feedback_call_made = $13,
		    pickup_lat = $14, pickup_lng = $15, destination_lat = $16, destination_lng = $17
		WHERE id = $1`,
		string(r.ID), idPtrToString(r.DriverID), moneyAmount(r.FinalPrice), string(r.Status),
		r.AcceptedAt, r.PickupAt, r.StartedAt, r.CompletedAt,
		r.CancelledAt, r.CancelReason,
		r.ArrivalCallMade, r.SafetyCheckMade, r.FeedbackCallMade,
		latOf(r.PickupPoint), lngOf(r.PickupPoint), latOf(r.DestinationPoint), lngOf(r.DestinationPoint),
	)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// offers
// ---------------------------------------------------------------------------

const offerCols = `id, ride_id, driver_id, offered_price, currency, eta_minutes, message, status, created_at, resolved_at`

func scanOffer(row scanner) (*Offer, error) {
	var o Offer
	if err := row.Scan(&o.ID, &o.RideID, &o.DriverID, &o.Price.Amount, &o.Price.Currency,
		&o.ETAMinutes, &o.Note, &o.Status, &o.CreatedAt, &o.ResolvedAt); err != nil {
		return nil, mapErr(err)
	}
	return &o, nil
}

func (r pgReader) GetOffer(ctx context.Context, id types.ID) (*Offer, error) {
	return scanOffer(r.q.QueryRow(ctx, `SELECT `+offerCols+` FROM ride_offers WHERE id = $1`, string(id)))
}

func (r pgReader) ListOffersByRide(ctx context.Context, rideID types.ID) ([]*Offer, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+offerCols+` FROM ride_offers
		WHERE ride_id = $1
		ORDER BY created_at, id`, string(rideID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (t *pgTx) CreateOffer(ctx context.Context, o *Offer) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO ride_offers (`+offerCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		string(o.ID), string(o.RideID), string(o.DriverID), o.Price.Amount, o.Price.Currency,
		o.ETAMinutes, o.Note, string(o.Status), o.CreatedAt, o.ResolvedAt,
	)
	return mapErr(err)
}

func (t *pgTx) UpdateOffer(ctx context.Context, o *Offer) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE ride_offers SET status = $2, resolved_at = $3 WHERE id = $1`,
		string(o.ID), string(o.Status), o.ResolvedAt,
	)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// tracking, ratings, events, dispatch log
// ---------------------------------------------------------------------------

func (r pgReader) ListTracking(ctx context.Context, rideID types.ID) ([]*TrackingPoint, error) {
	rows, err := r.q.Query(ctx, `
		SELECT seq, ride_id, driver_id, driver_lat, driver_lng, recorded_at
		FROM ride_tracking WHERE ride_id = $1 ORDER BY seq`, string(rideID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*TrackingPoint
	for rows.Next() {
		var p TrackingPoint
		if err := rows.Scan(&p.Seq, &p.RideID, &p.DriverID, &p.Position.Lat, &p.Position.Lng, &p.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (t *pgTx) AppendTracking(ctx context.Context, p *TrackingPoint) error {
	row := t.q.QueryRow(ctx, `
		INSERT INTO ride_tracking (ride_id, driver_id, driver_lat, driver_lng, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING seq`,
		string(p.RideID), string(p.DriverID), p.Position.Lat, p.Position.Lng, p.RecordedAt,
	)
	return mapErr(row.Scan(&p.Seq))
}

func (r pgReader) GetRatingByRater(ctx context.Context, rideID, raterID types.ID) (*Rating, error) {
	var v Rating
	err := r.q.QueryRow(ctx, `
		SELECT id, ride_id, rater_id, rated_id, score, comment, created_at
		FROM ratings WHERE ride_id = $1 AND rater_id = $2`, string(rideID), string(raterID),
	).Scan(&v.ID, &v.RideID, &v.RaterID, &v.RatedID, &v.Score, &v.Comment, &v.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &v, nil
}

func (t *pgTx) CreateRating(ctx context.Context, v *Rating) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO ratings (id, ride_id, rater_id, rated_id, score, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(v.ID), string(v.RideID), string(v.RaterID), string(v.RatedID), v.Score, v.Comment, v.CreatedAt,
	)
	return mapErr(err)
}

func (r pgReader) ListEvents(ctx context.Context, rideID types.ID) ([]*Event, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, ride_id, from_status, to_status, trigger_name, actor_type, actor_id, note, created_at
		FROM ride_state_events WHERE ride_id = $1 ORDER BY id`, string(rideID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Event
	for rows.Next() {
		var e Event
		var actorID *string
		if err := rows.Scan(&e.ID, &e.RideID, &e.FromStatus, &e.ToStatus, &e.Trigger, &e.ActorType,
			&actorID, &e.Note, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ActorID = stringPtrToID(actorID)
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (t *pgTx) AppendEvent(ctx context.Context, e *Event) error {
	row := t.q.QueryRow(ctx, `
		INSERT INTO ride_state_events (ride_id, from_status, to_status, trigger_name, actor_type, actor_id, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		string(e.RideID), string(e.FromStatus), string(e.ToStatus), e.Trigger, e.ActorType,
		idPtrToString(e.ActorID), e.Note, e.CreatedAt,
	)
	return mapErr(row.Scan(&e.ID))
}

func (r pgReader) ListDispatches(ctx context.Context, rideID types.ID) ([]*Dispatch, error) {
	rows, err := r.q.Query(ctx, `
		SELECT seq, ride_id, destination, kind, template, medium, status, delivery_id, error, created_at
		FROM dispatch_log WHERE ride_id = $1 ORDER BY seq`, string(rideID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Dispatch
	for rows.Next() {
		var d Dispatch
		if err := rows.Scan(&d.Seq, &d.RideID, &d.Destination, &d.Kind, &d.Template, &d.Medium,
			&d.Status, &d.DeliveryID, &d.Error, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

func (t *pgTx) AppendDispatch(ctx context.Context, d *Dispatch) error {
	row := t.q.QueryRow(ctx, `
		INSERT INTO dispatch_log (ride_id, destination, kind, template, medium, status, delivery_id, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING seq`,
		string(d.RideID), d.Destination, d.Kind, d.Template, d.Medium, string(d.Status),
		d.DeliveryID, d.Error, d.CreatedAt,
	)
	return mapErr(row.Scan(&d.Seq))
}

func statusStrings(statuses []RideStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func moneyAmount(m *types.Money) *int64 {
	if m == nil {
		return nil
	}
	n := m.Amount
	return &n
}

func latOf(p *types.Point) *float64 {
	lat, _ := pointCols(p)
	return lat
}

func lngOf(p *types.Point) *float64 {
	_, lng := pointCols(p)
	return lng
}
