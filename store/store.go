package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrTRFNotFound     = errors.New("travel request not found")
	ErrFlightNotFound  = errors.New("flight not found")
	ErrHotelNotFound   = errors.New("hotel not found")
	ErrBookingNotFound = errors.New("booking not found")

	// ErrFlightUnavailable and ErrRoomUnavailable are returned by the
	// reserve operations when another booking claimed the inventory
	// first.
	ErrFlightUnavailable = errors.New("flight no longer available")
	ErrRoomUnavailable   = errors.New("room no longer available")

	// ErrStatusConflict is returned when a compare-and-set transition
	// loses: the TRF was not in the expected status at commit time.
	ErrStatusConflict = errors.New("trf status conflict")
)

// TRFFilter narrows ListTRFs.
type TRFFilter struct {
	EmployeeID string
	Statuses   []Status
	Limit      int
}

// FlightQuery matches available flights on an exact route and date.
type FlightQuery struct {
	OriginCity      string
	DestinationCity string
	DepartureDate   time.Time
	Limit           int
}

// HotelQuery matches active hotels in a city.
type HotelQuery struct {
	City      string
	MinRating int
	Limit     int
}

// TravelStore is the persistence contract for travel requests, bookings
// and reference inventory. Transition is the single mutation path for a
// TRF after creation: it must apply the guard check and the update as
// one atomic unit so concurrent writers cannot both win.
type TravelStore interface {
	CreateTRF(ctx context.Context, trf *TRF) error
	GetTRF(ctx context.Context, trfNumber string) (*TRF, error)
	ListTRFs(ctx context.Context, filter TRFFilter) ([]*TRF, error)
	CountTRFs(ctx context.Context) (int, error)

	// Transition loads the TRF, verifies its status equals expect,
	// applies the mutation and persists it, failing with
	// ErrStatusConflict if another writer got there first.
	Transition(ctx context.Context, trfNumber string, expect Status, apply func(*TRF) error) (*TRF, error)

	SearchFlights(ctx context.Context, q FlightQuery) ([]*Flight, error)
	GetFlight(ctx context.Context, id int64) (*Flight, error)
	// ReserveFlight claims a flight for a booking: the availability
	// check and the flip happen as one atomic unit, so of two
	// concurrent bookings only one wins; the loser gets
	// ErrFlightUnavailable.
	ReserveFlight(ctx context.Context, id int64) error

	SearchHotels(ctx context.Context, q HotelQuery) ([]*Hotel, error)
	GetHotel(ctx context.Context, id int64) (*Hotel, error)
	AvailableRooms(ctx context.Context, hotelID int64, checkIn, checkOut time.Time) ([]*HotelRoom, error)
	// ReserveRooms claims every listed room or none of them, failing
	// with ErrRoomUnavailable when any is already taken.
	ReserveRooms(ctx context.Context, roomIDs []int64) error

	LatestTravelBooking(ctx context.Context, trfID int64) (*TravelBooking, error)
	CreateTravelBooking(ctx context.Context, b *TravelBooking) error
	UpdateTravelBooking(ctx context.Context, b *TravelBooking) error
	TravelBookingsForTRF(ctx context.Context, trfID int64) ([]*TravelBooking, error)
	CreateFlightBooking(ctx context.Context, b *FlightBooking) error
	CreateHotelBooking(ctx context.Context, b *HotelBooking) error
}
