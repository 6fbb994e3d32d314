package tool

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	contractx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/agent/contract"
	storex "github.com/kmaneesh/Corporate-Travel-Approval-Agent/store"
)

// approvedTRF creates a TRF and walks it through the whole chain so it
// sits in the travel desk queue.
func approvedTRF(t *testing.T, h *harness) string {
	t.Helper()
	number := submittedTRF(t, h)
	for _, role := range contractx.ApprovalChain {
		if _, err := h.machine.Approve(context.Background(), number, role, ""); err != nil {
			t.Fatalf("Approve(%s) error = %v", role, err)
		}
	}
	return number
}

func seedFlight(h *harness, day time.Time) *storex.Flight {
	airline := h.store.AddAirline(&storex.Airline{
		Code: "YA", Name: "Yash Air", IsPreferred: true, CorporateDiscount: 18, IsActive: true,
	})
	return h.store.AddFlight(&storex.Flight{
		AirlineID:       airline.ID,
		FlightNumber:    "YA101",
		OriginCity:      "Mumbai",
		DestinationCity: "Delhi",
		DepartureDate:   day,
		DepartureTime:   "07:30",
		ArrivalDate:     day,
		ArrivalTime:     "09:50",
		DurationMinutes: 140,
		EconomyPrice:    5800,
		BusinessPrice:   16000,
		IsDirect:        true,
		IsAvailable:     true,
	})
}

func seedHotelRooms(h *harness, start time.Time, nights int) *storex.Hotel {
	hotel := h.store.AddHotel(&storex.Hotel{
		Name: "Grandview Delhi", Rating: 5, City: "Delhi", Country: "India",
		CorporateDiscount: 20, IsActive: true,
	})
	for d := 0; d < nights; d++ {
		h.store.AddRoom(&storex.HotelRoom{
			HotelID:         hotel.ID,
			RoomType:        "standard",
			Occupancy:       2,
			Date:            start.AddDate(0, 0, d),
			BasePrice:       9500,
			DiscountedPrice: 7600,
			IsAvailable:     true,
		})
	}
	return hotel
}

var departure = time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)

func TestSearchFlightsRequiresApprovedTRF(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	number := submittedTRF(t, h)
	seedFlight(h, departure)

	env := h.execErr(t, asRole(contractx.RoleTravelDesk), "search_flights", map[string]any{
		"trf_number":       number,
		"origin_city":      "Mumbai",
		"destination_city": "Delhi",
		"departure_date":   "2026-04-10",
	})
	if env.Error != contractx.CodeStateConflict {
		t.Fatalf("error code = %s, want state conflict", env.Error)
	}
}

func TestSearchFlightsAppliesCorporateDiscount(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	number := approvedTRF(t, h)
	seedFlight(h, departure)

	env := h.exec(t, asRole(contractx.RoleTravelDesk), "search_flights", map[string]any{
		"trf_number":       number,
		"origin_city":      "Mumbai",
		"destination_city": "Delhi",
		"departure_date":   "2026-04-10",
	})
	d := data(t, env)
	flights, _ := d["available_flights"].([]map[string]any)
	if len(flights) != 1 {
		t.Fatalf("got %d flights, want 1", len(flights))
	}
	// 5800 economy less the 18% corporate discount.
	if flights[0]["price"] != 4756.0 {
		t.Fatalf("price = %v, want 4756", flights[0]["price"])
	}
	if d["booking_status"] != "available" {
		t.Fatalf("booking_status = %v", d["booking_status"])
	}
}

func TestSearchFlightsNoAvailability(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	number := approvedTRF(t, h)
	// Inventory only five days out; exact-date search misses it.
	seedFlight(h, departure.AddDate(0, 0, 5))

	env := h.exec(t, asRole(contractx.RoleTravelDesk), "search_flights", map[string]any{
		"trf_number":       number,
		"origin_city":      "Mumbai",
		"destination_city": "Delhi",
		"departure_date":   "2026-04-10",
	})
	if data(t, env)["booking_status"] != "no_flights_available" {
		t.Fatalf("expected no availability")
	}
}

func TestSearchAlternateFlightsWidensTheWindow(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	number := approvedTRF(t, h)
	seedFlight(h, departure.AddDate(0, 0, 2))

	env := h.exec(t, asRole(contractx.RoleTravelDesk), "search_alternate_flights", map[string]any{
		"trf_number":       number,
		"origin_city":      "Mumbai",
		"destination_city": "Delhi",
		"departure_date":   "2026-04-10",
	})
	flights, _ := data(t, env)["available_flights"].([]map[string]any)
	if len(flights) != 1 {
		t.Fatalf("alternate search found %d flights, want 1", len(flights))
	}
	if flights[0]["departure_date"] != "2026-04-12" {
		t.Fatalf("departure = %v", flights[0]["departure_date"])
	}
}

func TestConfirmFlightBooking(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	number := approvedTRF(t, h)
	flight := seedFlight(h, departure)

	env := h.exec(t, asRole(contractx.RoleTravelDesk), "confirm_flight_booking", map[string]any{
		"trf_number": number,
		"flight_id":  float64(flight.ID),
	})
	d := data(t, env)
	pnr, _ := d["pnr"].(string)
	if !strings.HasPrefix(pnr, "PNR") {
		t.Fatalf("pnr = %q", pnr)
	}
	if d["total_cost"] != 4756.0 {
		t.Fatalf("total cost = %v", d["total_cost"])
	}

	// Booked flight is taken out of inventory.
	updated, _ := h.store.GetFlight(context.Background(), flight.ID)
	if updated.IsAvailable {
		t.Fatalf("flight still available after booking")
	}

	// First booking moves the TRF into processing.
	trf, _ := h.store.GetTRF(context.Background(), number)
	if trf.Status != storex.StatusProcessing {
		t.Fatalf("status = %s, want processing", trf.Status)
	}

	// Booking aggregate carries the fare.
	booking, err := h.store.LatestTravelBooking(context.Background(), trf.ID)
	if err != nil {
		t.Fatalf("LatestTravelBooking() error = %v", err)
	}
	if booking.TotalFlightCost != 4756 || booking.TotalCost != 4756 {
		t.Fatalf("booking totals = %v / %v", booking.TotalFlightCost, booking.TotalCost)
	}

	// The same flight cannot be booked twice.
	env = h.execErr(t, asRole(contractx.RoleTravelDesk), "confirm_flight_booking", map[string]any{
		"trf_number": number,
		"flight_id":  float64(flight.ID),
	})
	if env.Error != contractx.CodeStateConflict {
		t.Fatalf("error code = %s, want state conflict", env.Error)
	}
}

func TestConfirmFlightBookingConcurrentClaims(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	// Two fully approved trips racing for the last seat on one flight.
	numbers := []string{approvedTRF(t, h), approvedTRF(t, h)}
	flight := seedFlight(h, departure)

	results := make([]contractx.ToolResult, len(numbers))
	var wg sync.WaitGroup
	for i, number := range numbers {
		wg.Add(1)
		go func(i int, number string) {
			defer wg.Done()
			results[i] = h.registry.Execute(context.Background(), asRole(contractx.RoleTravelDesk), contractx.ToolCall{
				ID:   "c" + strconv.Itoa(i),
				Name: "confirm_flight_booking",
				Args: map[string]any{"trf_number": number, "flight_id": float64(flight.ID)},
			})
		}(i, number)
	}
	wg.Wait()

	booked, conflicted := 0, 0
	for _, res := range results {
		env, ok := res.Result.(envelope)
		if !ok {
			t.Fatalf("result is not an envelope: %#v", res.Result)
		}
		if env.Success {
			booked++
			continue
		}
		if env.Error != contractx.CodeStateConflict {
			t.Fatalf("loser error code = %s, want state conflict", env.Error)
		}
		conflicted++
	}
	if booked != 1 || conflicted != 1 {
		t.Fatalf("booked = %d, conflicted = %d, want exactly one of each", booked, conflicted)
	}

	updated, _ := h.store.GetFlight(context.Background(), flight.ID)
	if updated.IsAvailable {
		t.Fatalf("flight still available after the race")
	}
}

func TestConfirmFlightBookingRouteMismatch(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	number := approvedTRF(t, h)
	airline := h.store.AddAirline(&storex.Airline{Code: "SG", Name: "Singapore Global", CorporateDiscount: 14, IsActive: true})
	wrong := h.store.AddFlight(&storex.Flight{
		AirlineID:       airline.ID,
		FlightNumber:    "SG900",
		OriginCity:      "Mumbai",
		DestinationCity: "Singapore",
		DepartureDate:   departure,
		DepartureTime:   "23:55",
		ArrivalDate:     departure.AddDate(0, 0, 1),
		ArrivalTime:     "06:30",
		DurationMinutes: 330,
		EconomyPrice:    32000,
		IsAvailable:     true,
	})

	env := h.execErr(t, asRole(contractx.RoleTravelDesk), "confirm_flight_booking", map[string]any{
		"trf_number": number,
		"flight_id":  float64(wrong.ID),
	})
	if env.Error != contractx.CodeValidation {
		t.Fatalf("error code = %s, want validation", env.Error)
	}
}

func TestConfirmHotelBooking(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	number := approvedTRF(t, h)
	hotel := seedHotelRooms(h, departure, 3)

	env := h.exec(t, asRole(contractx.RoleTravelDesk), "confirm_hotel_booking", map[string]any{
		"trf_number":     number,
		"hotel_id":       float64(hotel.ID),
		"check_in_date":  "2026-04-10",
		"check_out_date": "2026-04-12",
	})
	d := data(t, env)
	confirmation, _ := d["hotel_confirmation_number"].(string)
	if !strings.HasPrefix(confirmation, "HB") {
		t.Fatalf("confirmation = %q", confirmation)
	}
	// Two nights at the discounted rate.
	if d["total_cost"] != 15200.0 {
		t.Fatalf("total cost = %v, want 15200", d["total_cost"])
	}

	// The two booked nights are gone; the third survives.
	rooms, _ := h.store.AvailableRooms(context.Background(), hotel.ID, departure, departure.AddDate(0, 0, 3))
	if len(rooms) != 1 {
		t.Fatalf("expected 1 remaining night, got %d", len(rooms))
	}

	trf, _ := h.store.GetTRF(context.Background(), number)
	if trf.Status != storex.StatusProcessing {
		t.Fatalf("status = %s, want processing", trf.Status)
	}
}

func TestConfirmHotelBookingInsufficientNights(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	number := approvedTRF(t, h)
	hotel := seedHotelRooms(h, departure, 1)

	env := h.execErr(t, asRole(contractx.RoleTravelDesk), "confirm_hotel_booking", map[string]any{
		"trf_number":     number,
		"hotel_id":       float64(hotel.ID),
		"check_in_date":  "2026-04-10",
		"check_out_date": "2026-04-13",
	})
	if env.Error != contractx.CodeStateConflict {
		t.Fatalf("error code = %s, want state conflict", env.Error)
	}
}

func TestSearchAlternateHotelsSlidesTheStay(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	number := approvedTRF(t, h)
	// Rooms exist only two days after the requested stay.
	seedHotelRooms(h, departure.AddDate(0, 0, 2), 2)

	env := h.exec(t, asRole(contractx.RoleTravelDesk), "search_alternate_hotels", map[string]any{
		"trf_number":     number,
		"city":           "Delhi",
		"check_in_date":  "2026-04-10",
		"check_out_date": "2026-04-12",
	})
	hotels, _ := data(t, env)["available_hotels"].([]map[string]any)
	if len(hotels) != 1 {
		t.Fatalf("alternate search found %d hotels, want 1", len(hotels))
	}
	if hotels[0]["check_in_date"] != "2026-04-12" {
		t.Fatalf("shifted check-in = %v", hotels[0]["check_in_date"])
	}
}

func TestSharedBookingAggregateAcrossFlightAndHotel(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	number := approvedTRF(t, h)
	flight := seedFlight(h, departure)
	hotel := seedHotelRooms(h, departure, 2)

	h.exec(t, asRole(contractx.RoleTravelDesk), "confirm_flight_booking", map[string]any{
		"trf_number": number,
		"flight_id":  float64(flight.ID),
	})
	h.exec(t, asRole(contractx.RoleTravelDesk), "confirm_hotel_booking", map[string]any{
		"trf_number":     number,
		"hotel_id":       float64(hotel.ID),
		"check_in_date":  "2026-04-10",
		"check_out_date": "2026-04-12",
	})

	trf, _ := h.store.GetTRF(context.Background(), number)
	booking, err := h.store.LatestTravelBooking(context.Background(), trf.ID)
	if err != nil {
		t.Fatalf("LatestTravelBooking() error = %v", err)
	}
	if booking.TotalFlightCost != 4756 {
		t.Fatalf("flight cost = %v", booking.TotalFlightCost)
	}
	if booking.TotalHotelCost != 15200 {
		t.Fatalf("hotel cost = %v", booking.TotalHotelCost)
	}
	if booking.TotalCost != 19956 {
		t.Fatalf("total cost = %v", booking.TotalCost)
	}
}

func TestMarkTRFCompleted(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	number := approvedTRF(t, h)
	flight := seedFlight(h, departure)
	h.exec(t, asRole(contractx.RoleTravelDesk), "confirm_flight_booking", map[string]any{
		"trf_number": number,
		"flight_id":  float64(flight.ID),
	})

	env := h.exec(t, asRole(contractx.RoleTravelDesk), "mark_trf_completed", map[string]any{
		"trf_number": number,
		"comments":   "itinerary sent to traveler",
	})
	d := data(t, env)
	if d["status"] != storex.StatusCompleted {
		t.Fatalf("status = %v", d["status"])
	}

	// Completed TRFs cannot take more bookings.
	env = h.execErr(t, asRole(contractx.RoleTravelDesk), "search_flights", map[string]any{
		"trf_number":       number,
		"origin_city":      "Mumbai",
		"destination_city": "Delhi",
		"departure_date":   "2026-04-10",
	})
	if env.Error != contractx.CodeStateConflict {
		t.Fatalf("error code = %s, want state conflict", env.Error)
	}
}
