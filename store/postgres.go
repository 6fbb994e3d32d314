package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// PostgresConfig configures the bun-backed store.
type PostgresConfig struct {
	DSN          string        `envconfig:"DSN" split_words:"true" required:"true"`
	MaxOpenConns int           `envconfig:"MAX_OPEN_CONNS" split_words:"true" default:"8"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" split_words:"true" default:"5s"`
}

// PostgresStore persists travel entities in Postgres through bun.
type PostgresStore struct {
	db *bun.DB
}

var _ TravelStore = (*PostgresStore)(nil)

func NewPostgresStore(cfg PostgresConfig) (*PostgresStore, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(cfg.DSN),
		pgdriver.WithDialTimeout(cfg.DialTimeout),
	))
	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)

	db := bun.NewDB(sqldb, pgdialect.New())
	return &PostgresStore{db: db}, nil
}

// DB exposes the underlying handle for migrations and seeding.
func (s *PostgresStore) DB() *bun.DB {
	return s.db
}

func (s *PostgresStore) CreateTRF(ctx context.Context, trf *TRF) error {
	now := time.Now().UTC()
	if trf.CreatedAt.IsZero() {
		trf.CreatedAt = now
	}
	trf.UpdatedAt = now
	if _, err := s.db.NewInsert().Model(trf).Exec(ctx); err != nil {
		return fmt.Errorf("insert trf: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTRF(ctx context.Context, trfNumber string) (*TRF, error) {
	trf := new(TRF)
	err := s.db.NewSelect().Model(trf).Where("trf_number = ?", trfNumber).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTRFNotFound
		}
		return nil, fmt.Errorf("select trf: %w", err)
	}
	return trf, nil
}

func (s *PostgresStore) ListTRFs(ctx context.Context, filter TRFFilter) ([]*TRF, error) {
	var trfs []*TRF
	q := s.db.NewSelect().Model(&trfs).Order("created_at DESC")
	if filter.EmployeeID != "" {
		q = q.Where("employee_id = ?", filter.EmployeeID)
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN (?)", bun.In(filter.Statuses))
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list trfs: %w", err)
	}
	return trfs, nil
}

func (s *PostgresStore) CountTRFs(ctx context.Context) (int, error) {
	count, err := s.db.NewSelect().Model((*TRF)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count trfs: %w", err)
	}
	return count, nil
}

// Transition applies the mutation under an optimistic status guard: the
// UPDATE carries WHERE status = expect, so of two concurrent writers
// only one sees a row affected.
func (s *PostgresStore) Transition(ctx context.Context, trfNumber string, expect Status, apply func(*TRF) error) (*TRF, error) {
	trf, err := s.GetTRF(ctx, trfNumber)
	if err != nil {
		return nil, err
	}
	if trf.Status != expect {
		return nil, fmt.Errorf("%w: status=%s expected=%s", ErrStatusConflict, trf.Status, expect)
	}
	if err := apply(trf); err != nil {
		return nil, err
	}
	trf.UpdatedAt = time.Now().UTC()

	res, err := s.db.NewUpdate().
		Model(trf).
		Where("trf_number = ?", trfNumber).
		Where("status = ?", expect).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("update trf: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: concurrent transition won on %s", ErrStatusConflict, trfNumber)
	}
	return trf, nil
}

func (s *PostgresStore) SearchFlights(ctx context.Context, q FlightQuery) ([]*Flight, error) {
	var flights []*Flight
	query := s.db.NewSelect().
		Model(&flights).
		Relation("Airline").
		Where("flight.origin_city = ?", q.OriginCity).
		Where("flight.destination_city = ?", q.DestinationCity).
		Where("flight.departure_date = ?", q.DepartureDate).
		Where("flight.is_available = TRUE")
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, fmt.Errorf("search flights: %w", err)
	}
	return flights, nil
}

func (s *PostgresStore) GetFlight(ctx context.Context, id int64) (*Flight, error) {
	flight := new(Flight)
	err := s.db.NewSelect().Model(flight).Relation("Airline").Where("flight.id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFlightNotFound
		}
		return nil, fmt.Errorf("select flight: %w", err)
	}
	return flight, nil
}

// ReserveFlight claims the flight with the availability check folded
// into the UPDATE, so a concurrent booking cannot claim it twice.
func (s *PostgresStore) ReserveFlight(ctx context.Context, id int64) error {
	res, err := s.db.NewUpdate().
		Model((*Flight)(nil)).
		Set("is_available = FALSE").
		Where("id = ?", id).
		Where("is_available = TRUE").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("reserve flight: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		if _, err := s.GetFlight(ctx, id); err != nil {
			return err
		}
		return ErrFlightUnavailable
	}
	return nil
}

func (s *PostgresStore) SearchHotels(ctx context.Context, q HotelQuery) ([]*Hotel, error) {
	var hotels []*Hotel
	query := s.db.NewSelect().
		Model(&hotels).
		Where("city = ?", q.City).
		Where("is_active = TRUE")
	if q.MinRating > 0 {
		query = query.Where("rating >= ?", q.MinRating)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, fmt.Errorf("search hotels: %w", err)
	}
	return hotels, nil
}

func (s *PostgresStore) GetHotel(ctx context.Context, id int64) (*Hotel, error) {
	hotel := new(Hotel)
	err := s.db.NewSelect().Model(hotel).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrHotelNotFound
		}
		return nil, fmt.Errorf("select hotel: %w", err)
	}
	return hotel, nil
}

func (s *PostgresStore) AvailableRooms(ctx context.Context, hotelID int64, checkIn, checkOut time.Time) ([]*HotelRoom, error) {
	var rooms []*HotelRoom
	err := s.db.NewSelect().
		Model(&rooms).
		Where("hotel_id = ?", hotelID).
		Where("date >= ?", checkIn).
		Where("date < ?", checkOut).
		Where("is_available = TRUE").
		Order("date ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("available rooms: %w", err)
	}
	return rooms, nil
}

// ReserveRooms claims every room inside one transaction; if any night
// was taken in the meantime the whole claim rolls back.
func (s *PostgresStore) ReserveRooms(ctx context.Context, roomIDs []int64) error {
	if len(roomIDs) == 0 {
		return nil
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*HotelRoom)(nil)).
			Set("is_available = FALSE").
			Where("id IN (?)", bun.In(roomIDs)).
			Where("is_available = TRUE").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("reserve rooms: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected != int64(len(roomIDs)) {
			return ErrRoomUnavailable
		}
		return nil
	})
}

func (s *PostgresStore) LatestTravelBooking(ctx context.Context, trfID int64) (*TravelBooking, error) {
	booking := new(TravelBooking)
	err := s.db.NewSelect().
		Model(booking).
		Where("trf_id = ?", trfID).
		Order("booking_date DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("select travel booking: %w", err)
	}
	return booking, nil
}

func (s *PostgresStore) CreateTravelBooking(ctx context.Context, b *TravelBooking) error {
	if b.BookingDate.IsZero() {
		b.BookingDate = time.Now().UTC()
	}
	if _, err := s.db.NewInsert().Model(b).Exec(ctx); err != nil {
		return fmt.Errorf("insert travel booking: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateTravelBooking(ctx context.Context, b *TravelBooking) error {
	if _, err := s.db.NewUpdate().Model(b).WherePK().Exec(ctx); err != nil {
		return fmt.Errorf("update travel booking: %w", err)
	}
	return nil
}

func (s *PostgresStore) TravelBookingsForTRF(ctx context.Context, trfID int64) ([]*TravelBooking, error) {
	var bookings []*TravelBooking
	err := s.db.NewSelect().
		Model(&bookings).
		Relation("FlightBookings").
		Relation("FlightBookings.Flight").
		Relation("HotelBookings").
		Relation("HotelBookings.Room").
		Relation("HotelBookings.Room.Hotel").
		Where("travel_booking.trf_id = ?", trfID).
		Order("travel_booking.booking_date DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list travel bookings: %w", err)
	}
	return bookings, nil
}

func (s *PostgresStore) CreateFlightBooking(ctx context.Context, b *FlightBooking) error {
	if b.BookedAt.IsZero() {
		b.BookedAt = time.Now().UTC()
	}
	if _, err := s.db.NewInsert().Model(b).Exec(ctx); err != nil {
		return fmt.Errorf("insert flight booking: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateHotelBooking(ctx context.Context, b *HotelBooking) error {
	if b.BookedAt.IsZero() {
		b.BookedAt = time.Now().UTC()
	}
	if _, err := s.db.NewInsert().Model(b).Exec(ctx); err != nil {
		return fmt.Errorf("insert hotel booking: %w", err)
	}
	return nil
}
