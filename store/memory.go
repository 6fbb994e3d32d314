package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a mutex-guarded TravelStore. It backs tests and local
// runs without a database; the compare-and-set semantics match the
// Postgres implementation.
type MemoryStore struct {
	mu sync.Mutex

	trfs    map[string]*TRF // keyed by trf_number
	nextTRF int64

	airlines map[int64]*Airline
	flights  map[int64]*Flight
	hotels   map[int64]*Hotel
	rooms    map[int64]*HotelRoom

	travelBookings map[int64]*TravelBooking
	flightBookings map[int64]*FlightBooking
	hotelBookings  map[int64]*HotelBooking
	nextID         int64
}

var _ TravelStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		trfs:           make(map[string]*TRF),
		airlines:       make(map[int64]*Airline),
		flights:        make(map[int64]*Flight),
		hotels:         make(map[int64]*Hotel),
		rooms:          make(map[int64]*HotelRoom),
		travelBookings: make(map[int64]*TravelBooking),
		flightBookings: make(map[int64]*FlightBooking),
		hotelBookings:  make(map[int64]*HotelBooking),
	}
}

func (s *MemoryStore) allocID() int64 {
	s.nextID++
	return s.nextID
}

func copyTRF(trf *TRF) *TRF {
	clone := *trf
	return &clone
}

// The copy helpers keep callers off the structs the store mutates
// under its own lock.
func copyFlight(f *Flight) *Flight {
	clone := *f
	if f.Airline != nil {
		airline := *f.Airline
		clone.Airline = &airline
	}
	return &clone
}

func copyHotel(h *Hotel) *Hotel {
	clone := *h
	return &clone
}

func copyRoom(r *HotelRoom) *HotelRoom {
	clone := *r
	if r.Hotel != nil {
		hotel := *r.Hotel
		clone.Hotel = &hotel
	}
	return &clone
}

func copyTravelBooking(b *TravelBooking) *TravelBooking {
	clone := *b
	clone.FlightBookings = nil
	clone.HotelBookings = nil
	return &clone
}

func (s *MemoryStore) CreateTRF(ctx context.Context, trf *TRF) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.trfs[trf.TRFNumber]; exists {
		return fmt.Errorf("duplicate trf number %s", trf.TRFNumber)
	}
	s.nextTRF++
	trf.ID = s.nextTRF
	now := time.Now().UTC()
	if trf.CreatedAt.IsZero() {
		trf.CreatedAt = now
	}
	trf.UpdatedAt = now
	s.trfs[trf.TRFNumber] = copyTRF(trf)
	return nil
}

func (s *MemoryStore) GetTRF(ctx context.Context, trfNumber string) (*TRF, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trf, ok := s.trfs[trfNumber]
	if !ok {
		return nil, ErrTRFNotFound
	}
	return copyTRF(trf), nil
}

func (s *MemoryStore) ListTRFs(ctx context.Context, filter TRFFilter) ([]*TRF, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*TRF
	for _, trf := range s.trfs {
		if filter.EmployeeID != "" && trf.EmployeeID != filter.EmployeeID {
			continue
		}
		if len(filter.Statuses) > 0 {
			match := false
			for _, st := range filter.Statuses {
				if trf.Status == st {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, copyTRF(trf))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) CountTRFs(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.trfs), nil
}

func (s *MemoryStore) Transition(ctx context.Context, trfNumber string, expect Status, apply func(*TRF) error) (*TRF, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trf, ok := s.trfs[trfNumber]
	if !ok {
		return nil, ErrTRFNotFound
	}
	if trf.Status != expect {
		return nil, fmt.Errorf("%w: status=%s expected=%s", ErrStatusConflict, trf.Status, expect)
	}
	clone := copyTRF(trf)
	if err := apply(clone); err != nil {
		return nil, err
	}
	clone.UpdatedAt = time.Now().UTC()
	if clone.TRFNumber != trfNumber {
		delete(s.trfs, trfNumber)
	}
	s.trfs[clone.TRFNumber] = clone
	return copyTRF(clone), nil
}

// AddAirline, AddFlight, AddHotel and AddRoom seed reference inventory.
func (s *MemoryStore) AddAirline(a *Airline) *Airline {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == 0 {
		a.ID = s.allocID()
	}
	s.airlines[a.ID] = a
	return a
}

func (s *MemoryStore) AddFlight(f *Flight) *Flight {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.ID == 0 {
		f.ID = s.allocID()
	}
	if f.Airline == nil {
		f.Airline = s.airlines[f.AirlineID]
	}
	s.flights[f.ID] = f
	return f
}

func (s *MemoryStore) AddHotel(h *Hotel) *Hotel {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h.ID == 0 {
		h.ID = s.allocID()
	}
	s.hotels[h.ID] = h
	return h
}

func (s *MemoryStore) AddRoom(r *HotelRoom) *HotelRoom {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == 0 {
		r.ID = s.allocID()
	}
	if r.Hotel == nil {
		r.Hotel = s.hotels[r.HotelID]
	}
	s.rooms[r.ID] = r
	return r
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func (s *MemoryStore) SearchFlights(ctx context.Context, q FlightQuery) ([]*Flight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Flight
	for _, f := range s.flights {
		if !f.IsAvailable {
			continue
		}
		if f.OriginCity != q.OriginCity || f.DestinationCity != q.DestinationCity {
			continue
		}
		if !sameDay(f.DepartureDate, q.DepartureDate) {
			continue
		}
		out = append(out, copyFlight(f))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *MemoryStore) GetFlight(ctx context.Context, id int64) (*Flight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flights[id]
	if !ok {
		return nil, ErrFlightNotFound
	}
	return copyFlight(f), nil
}

func (s *MemoryStore) ReserveFlight(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flights[id]
	if !ok {
		return ErrFlightNotFound
	}
	if !f.IsAvailable {
		return ErrFlightUnavailable
	}
	f.IsAvailable = false
	return nil
}

func (s *MemoryStore) SearchHotels(ctx context.Context, q HotelQuery) ([]*Hotel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Hotel
	for _, h := range s.hotels {
		if !h.IsActive || h.City != q.City {
			continue
		}
		if q.MinRating > 0 && h.Rating < q.MinRating {
			continue
		}
		out = append(out, copyHotel(h))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *MemoryStore) GetHotel(ctx context.Context, id int64) (*Hotel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hotels[id]
	if !ok {
		return nil, ErrHotelNotFound
	}
	return copyHotel(h), nil
}

func (s *MemoryStore) AvailableRooms(ctx context.Context, hotelID int64, checkIn, checkOut time.Time) ([]*HotelRoom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*HotelRoom
	for _, r := range s.rooms {
		if r.HotelID != hotelID || !r.IsAvailable {
			continue
		}
		if r.Date.Before(checkIn) || !r.Date.Before(checkOut) {
			continue
		}
		out = append(out, copyRoom(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *MemoryStore) ReserveRooms(ctx context.Context, roomIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// All-or-nothing: verify every room first so a partial claim never
	// leaks.
	for _, id := range roomIDs {
		r, ok := s.rooms[id]
		if !ok || !r.IsAvailable {
			return ErrRoomUnavailable
		}
	}
	for _, id := range roomIDs {
		s.rooms[id].IsAvailable = false
	}
	return nil
}

func (s *MemoryStore) LatestTravelBooking(ctx context.Context, trfID int64) (*TravelBooking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *TravelBooking
	for _, b := range s.travelBookings {
		if b.TRFID != trfID {
			continue
		}
		if latest == nil || b.BookingDate.After(latest.BookingDate) {
			latest = b
		}
	}
	if latest == nil {
		return nil, ErrBookingNotFound
	}
	return copyTravelBooking(latest), nil
}

func (s *MemoryStore) CreateTravelBooking(ctx context.Context, b *TravelBooking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == 0 {
		b.ID = s.allocID()
	}
	if b.BookingDate.IsZero() {
		b.BookingDate = time.Now().UTC()
	}
	s.travelBookings[b.ID] = copyTravelBooking(b)
	return nil
}

func (s *MemoryStore) UpdateTravelBooking(ctx context.Context, b *TravelBooking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.travelBookings[b.ID]; !ok {
		return ErrBookingNotFound
	}
	s.travelBookings[b.ID] = copyTravelBooking(b)
	return nil
}

func (s *MemoryStore) TravelBookingsForTRF(ctx context.Context, trfID int64) ([]*TravelBooking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*TravelBooking
	for _, b := range s.travelBookings {
		if b.TRFID != trfID {
			continue
		}
		clone := copyTravelBooking(b)
		for _, fb := range s.flightBookings {
			if fb.TravelBookingID == b.ID {
				fbc := *fb
				if f, ok := s.flights[fb.FlightID]; ok {
					fbc.Flight = copyFlight(f)
				}
				clone.FlightBookings = append(clone.FlightBookings, &fbc)
			}
		}
		for _, hb := range s.hotelBookings {
			if hb.TravelBookingID == b.ID {
				hbc := *hb
				if r, ok := s.rooms[hb.RoomID]; ok {
					hbc.Room = copyRoom(r)
				}
				clone.HotelBookings = append(clone.HotelBookings, &hbc)
			}
		}
		out = append(out, clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookingDate.After(out[j].BookingDate) })
	return out, nil
}

func (s *MemoryStore) CreateFlightBooking(ctx context.Context, b *FlightBooking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == 0 {
		b.ID = s.allocID()
	}
	if b.BookedAt.IsZero() {
		b.BookedAt = time.Now().UTC()
	}
	clone := *b
	s.flightBookings[b.ID] = &clone
	return nil
}

func (s *MemoryStore) CreateHotelBooking(ctx context.Context, b *HotelBooking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == 0 {
		b.ID = s.allocID()
	}
	if b.BookedAt.IsZero() {
		b.BookedAt = time.Now().UTC()
	}
	clone := *b
	s.hotelBookings[b.ID] = &clone
	return nil
}
