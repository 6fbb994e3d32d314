package tool

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/kmaneesh/Corporate-Travel-Approval-Agent/agent/contract"
	storex "github.com/kmaneesh/Corporate-Travel-Approval-Agent/store"
)

// alternateDayWindow is how far search_alternate_* looks around the
// requested date, in days each direction.
const alternateDayWindow = 3

func (r *Registry) registerBookingTools() {
	flightParams := map[string]*schema.ParameterInfo{
		"trf_number":       {Type: schema.String, Desc: "TRF number the booking is for", Required: true},
		"origin_city":      {Type: schema.String, Desc: "Origin city", Required: true},
		"destination_city": {Type: schema.String, Desc: "Destination city", Required: true},
		"departure_date":   {Type: schema.String, Desc: "Departure date, YYYY-MM-DD", Required: true},
		"cabin_class":      {Type: schema.String, Desc: "economy, premium_economy, business or first; default economy"},
		"max_results":      {Type: schema.Integer, Desc: "Maximum results, default 5"},
	}

	r.register(Descriptor{
		Info: &schema.ToolInfo{
			Name:        "search_flights",
			Desc:        "Search available flights for an approved TRF on the exact requested date. Returns flight ids for confirm_flight_booking.",
			ParamsOneOf: schema.NewParamsOneOfByParams(flightParams),
		},
		run: func(ctx context.Context, deps Deps, id contractx.Identity, args map[string]any) (any, string, error) {
			return runSearchFlights(ctx, deps, args, 0)
		},
	})

	r.register(Descriptor{
		Info: &schema.ToolInfo{
			Name:        "search_alternate_flights",
			Desc:        "Search flights within three days either side of the requested date, for when the exact date has no availability.",
			ParamsOneOf: schema.NewParamsOneOfByParams(flightParams),
		},
		run: func(ctx context.Context, deps Deps, id contractx.Identity, args map[string]any) (any, string, error) {
			return runSearchFlights(ctx, deps, args, alternateDayWindow)
		},
	})

	r.register(Descriptor{
		Info: &schema.ToolInfo{
			Name: "confirm_flight_booking",
			Desc: "Book a specific flight for a TRF using a flight id from search results. Creates the PNR and marks the flight unavailable.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"trf_number":           {Type: schema.String, Desc: "TRF number", Required: true},
				"flight_id":            {Type: schema.Integer, Desc: "Flight id from search_flights", Required: true},
				"cabin_class":          {Type: schema.String, Desc: "Cabin class, default economy"},
				"number_of_passengers": {Type: schema.Integer, Desc: "Passenger count, default 1"},
			}),
		},
		Mutating: true,
		run:      runConfirmFlightBooking,
	})

	hotelParams := map[string]*schema.ParameterInfo{
		"trf_number":     {Type: schema.String, Desc: "TRF number the booking is for", Required: true},
		"city":           {Type: schema.String, Desc: "City to stay in", Required: true},
		"check_in_date":  {Type: schema.String, Desc: "Check-in date, YYYY-MM-DD", Required: true},
		"check_out_date": {Type: schema.String, Desc: "Check-out date, YYYY-MM-DD", Required: true},
		"min_rating":     {Type: schema.Integer, Desc: "Minimum star rating, default 3"},
		"max_results":    {Type: schema.Integer, Desc: "Maximum results, default 5"},
	}

	r.register(Descriptor{
		Info: &schema.ToolInfo{
			Name:        "search_hotels",
			Desc:        "Search hotels with nightly availability for the full stay. Returns hotel ids for confirm_hotel_booking.",
			ParamsOneOf: schema.NewParamsOneOfByParams(hotelParams),
		},
		run: func(ctx context.Context, deps Deps, id contractx.Identity, args map[string]any) (any, string, error) {
			return runSearchHotels(ctx, deps, args, 0)
		},
	})

	r.register(Descriptor{
		Info: &schema.ToolInfo{
			Name:        "search_alternate_hotels",
			Desc:        "Search hotels sliding the stay window up to three days either direction, for when the requested dates have no availability.",
			ParamsOneOf: schema.NewParamsOneOfByParams(hotelParams),
		},
		run: func(ctx context.Context, deps Deps, id contractx.Identity, args map[string]any) (any, string, error) {
			return runSearchHotels(ctx, deps, args, alternateDayWindow)
		},
	})

	r.register(Descriptor{
		Info: &schema.ToolInfo{
			Name: "confirm_hotel_booking",
			Desc: "Book a hotel for a TRF: reserves the cheapest available room for every night of the stay and issues a confirmation number.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"trf_number":       {Type: schema.String, Desc: "TRF number", Required: true},
				"hotel_id":         {Type: schema.Integer, Desc: "Hotel id from search_hotels", Required: true},
				"check_in_date":    {Type: schema.String, Desc: "Check-in date, YYYY-MM-DD", Required: true},
				"check_out_date":   {Type: schema.String, Desc: "Check-out date, YYYY-MM-DD", Required: true},
				"number_of_guests": {Type: schema.Integer, Desc: "Guest count, default 1"},
				"special_requests": {Type: schema.String, Desc: "Free-form requests passed to the hotel"},
			}),
		},
		Mutating: true,
		run:      runConfirmHotelBooking,
	})

	r.register(Descriptor{
		Info: &schema.ToolInfo{
			Name: "mark_trf_completed",
			Desc: "Mark a TRF's travel arrangements complete. Closes the workflow; only valid from the travel desk queue or processing.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"trf_number": {Type: schema.String, Desc: "TRF number", Required: true},
				"comments":   {Type: schema.String, Desc: "Closing comments"},
			}),
		},
		Mutating: true,
		run:      runMarkTRFCompleted,
	})
}

// bookableTRF loads a TRF and checks it has cleared the approval chain.
func bookableTRF(ctx context.Context, deps Deps, trfNumber string) (*storex.TRF, error) {
	trf, err := deps.Store.GetTRF(ctx, trfNumber)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("TRF %s not found", trfNumber))
	}
	if trf.Status != storex.StatusPendingTravelDesk && trf.Status != storex.StatusProcessing {
		return nil, fmt.Errorf("%w: TRF %s must be fully approved before booking, current status %s", contractx.ErrStateConflict, trfNumber, trf.Status)
	}
	return trf, nil
}

func cabinArg(args map[string]any) (storex.CabinClass, error) {
	raw, err := stringArg(args, "cabin_class", false)
	if err != nil {
		return "", err
	}
	if raw == "" {
		return storex.CabinEconomy, nil
	}
	switch cabin := storex.CabinClass(raw); cabin {
	case storex.CabinEconomy, storex.CabinPremiumEconomy, storex.CabinBusiness, storex.CabinFirst:
		return cabin, nil
	default:
		return "", fmt.Errorf("%w: unknown cabin class %q", contractx.ErrValidation, raw)
	}
}

func runSearchFlights(ctx context.Context, deps Deps, args map[string]any, window int) (any, string, error) {
	trfNumber, err := stringArg(args, "trf_number", true)
	if err != nil {
		return nil, "", err
	}
	trf, err := bookableTRF(ctx, deps, trfNumber)
	if err != nil {
		return nil, "", err
	}
	origin, err := stringArg(args, "origin_city", true)
	if err != nil {
		return nil, "", err
	}
	destination, err := stringArg(args, "destination_city", true)
	if err != nil {
		return nil, "", err
	}
	date, _, err := dateArg(args, "departure_date", true)
	if err != nil {
		return nil, "", err
	}
	cabin, err := cabinArg(args)
	if err != nil {
		return nil, "", err
	}
	limit, err := intArg(args, "max_results", 5)
	if err != nil {
		return nil, "", err
	}

	var options []map[string]any
	for offset := -window; offset <= window; offset++ {
		day := date.AddDate(0, 0, offset)
		flights, err := deps.Store.SearchFlights(ctx, storex.FlightQuery{
			OriginCity:      origin,
			DestinationCity: destination,
			DepartureDate:   day,
			Limit:           limit,
		})
		if err != nil {
			return nil, "", err
		}
		for _, f := range flights {
			if len(options) >= limit {
				break
			}
			opt, err := flightOption(ctx, deps, f, cabin)
			if err != nil {
				return nil, "", err
			}
			options = append(options, opt)
		}
	}

	data := map[string]any{
		"trf_number":        trf.TRFNumber,
		"employee_name":     trf.EmployeeName,
		"route":             fmt.Sprintf("%s to %s", origin, destination),
		"available_flights": options,
	}
	if len(options) == 0 {
		data["booking_status"] = "no_flights_available"
		return data, "No flights available", nil
	}
	data["booking_status"] = "available"
	return data, fmt.Sprintf("Found %d flights. Use flight_id with confirm_flight_booking to book.", len(options)), nil
}

// flightOption projects a flight with the corporate-discounted fare.
func flightOption(ctx context.Context, deps Deps, f *storex.Flight, cabin storex.CabinClass) (map[string]any, error) {
	price := f.PriceFor(cabin)
	var discount float64
	airlineName, airlineCode := "", ""
	if f.Airline != nil {
		discount = price * f.Airline.CorporateDiscount / 100
		airlineName, airlineCode = f.Airline.Name, f.Airline.Code
	}
	return map[string]any{
		"flight_id":        f.ID,
		"flight_number":    f.FlightNumber,
		"airline":          airlineName,
		"airline_code":     airlineCode,
		"origin_city":      f.OriginCity,
		"destination_city": f.DestinationCity,
		"departure_date":   f.DepartureDate.Format(dateLayout),
		"departure_time":   f.DepartureTime,
		"arrival_date":     f.ArrivalDate.Format(dateLayout),
		"arrival_time":     f.ArrivalTime,
		"duration":         fmt.Sprintf("%dh %dm", f.DurationMinutes/60, f.DurationMinutes%60),
		"price":            round2(price - discount),
		"cabin_class":      cabin,
		"is_direct":        f.IsDirect,
	}, nil
}

func runConfirmFlightBooking(ctx context.Context, deps Deps, id contractx.Identity, args map[string]any) (any, string, error) {
	trfNumber, err := stringArg(args, "trf_number", true)
	if err != nil {
		return nil, "", err
	}
	trf, err := bookableTRF(ctx, deps, trfNumber)
	if err != nil {
		return nil, "", err
	}
	flightID, err := intArg(args, "flight_id", 0)
	if err != nil {
		return nil, "", err
	}
	if flightID <= 0 {
		return nil, "", fmt.Errorf("%w: flight_id is required", contractx.ErrValidation)
	}
	cabin, err := cabinArg(args)
	if err != nil {
		return nil, "", err
	}
	passengers, err := intArg(args, "number_of_passengers", 1)
	if err != nil {
		return nil, "", err
	}
	if passengers < 1 {
		passengers = 1
	}

	flight, err := deps.Store.GetFlight(ctx, int64(flightID))
	if err != nil {
		return nil, "", notFound(err, fmt.Sprintf("flight %d not found", flightID))
	}
	if !equalCity(flight.OriginCity, trf.OriginCity) || !equalCity(flight.DestinationCity, trf.DestinationCity) {
		return nil, "", fmt.Errorf("%w: flight does not match the TRF route", contractx.ErrValidation)
	}
	if !sameDate(flight.DepartureDate, trf.DepartureDate) {
		return nil, "", fmt.Errorf("%w: flight date does not match the TRF departure date", contractx.ErrValidation)
	}

	// Claim the seat before writing any booking rows; the store makes
	// the check-and-flip atomic so two bookings cannot share a flight.
	if err := deps.Store.ReserveFlight(ctx, flight.ID); err != nil {
		if errors.Is(err, storex.ErrFlightUnavailable) {
			return nil, "", fmt.Errorf("%w: flight %s is no longer available", contractx.ErrStateConflict, flight.FlightNumber)
		}
		return nil, "", err
	}

	price := flight.PriceFor(cabin)
	var discountRate float64
	if flight.Airline != nil {
		discountRate = flight.Airline.CorporateDiscount
	}
	baseTotal := round2(price * float64(passengers))
	discountTotal := round2(price * discountRate / 100 * float64(passengers))
	finalFare := round2(baseTotal - discountTotal)

	now := deps.Now()
	booking, err := ensureTravelBooking(ctx, deps, trf, now)
	if err != nil {
		return nil, "", err
	}

	pnr := fmt.Sprintf("PNR%s%d", now.Format("20060102150405"), flight.ID)
	fb := &storex.FlightBooking{
		PNR:             pnr,
		TravelBookingID: booking.ID,
		FlightID:        flight.ID,
		CabinClass:      cabin,
		PassengerName:   trf.EmployeeName,
		BaseFare:        baseTotal,
		DiscountApplied: discountTotal,
		FinalFare:       finalFare,
		Status:          storex.BookingConfirmed,
		BookedAt:        now,
	}
	if err := deps.Store.CreateFlightBooking(ctx, fb); err != nil {
		return nil, "", err
	}

	booking.TotalFlightCost = round2(booking.TotalFlightCost + finalFare)
	booking.TotalCost = round2(booking.TotalCost + finalFare)
	booking.Status = storex.BookingConfirmed
	booking.ConfirmationDate = &now
	if err := deps.Store.UpdateTravelBooking(ctx, booking); err != nil {
		return nil, "", err
	}

	if _, err := deps.Machine.StartProcessing(ctx, trf.TRFNumber); err != nil {
		return nil, "", err
	}

	data := map[string]any{
		"trf_number":        trf.TRFNumber,
		"employee_name":     trf.EmployeeName,
		"route":             fmt.Sprintf("%s to %s", flight.OriginCity, flight.DestinationCity),
		"booking_status":    "booked",
		"booking_reference": booking.BookingNumber,
		"pnr":               pnr,
		"flight_number":     flight.FlightNumber,
		"cabin_class":       cabin,
		"total_cost":        finalFare,
	}
	return data, fmt.Sprintf("Flight %s booked. PNR: %s", flight.FlightNumber, pnr), nil
}

func runSearchHotels(ctx context.Context, deps Deps, args map[string]any, window int) (any, string, error) {
	trfNumber, err := stringArg(args, "trf_number", true)
	if err != nil {
		return nil, "", err
	}
	trf, err := bookableTRF(ctx, deps, trfNumber)
	if err != nil {
		return nil, "", err
	}
	city, err := stringArg(args, "city", true)
	if err != nil {
		return nil, "", err
	}
	checkIn, checkOut, nights, err := stayDates(args)
	if err != nil {
		return nil, "", err
	}
	minRating, err := intArg(args, "min_rating", 3)
	if err != nil {
		return nil, "", err
	}
	limit, err := intArg(args, "max_results", 5)
	if err != nil {
		return nil, "", err
	}

	hotels, err := deps.Store.SearchHotels(ctx, storex.HotelQuery{
		City:      city,
		MinRating: minRating,
		Limit:     limit,
	})
	if err != nil {
		return nil, "", err
	}

	var options []map[string]any
	for _, h := range hotels {
		// Slide the stay window until every night has a room. Window 0
		// means only the requested dates are tried.
		for offset := 0; offset <= window*2; offset++ {
			shift := shiftFor(offset)
			in := checkIn.AddDate(0, 0, shift)
			out := checkOut.AddDate(0, 0, shift)
			rooms, err := deps.Store.AvailableRooms(ctx, h.ID, in, out)
			if err != nil {
				return nil, "", err
			}
			if len(rooms) < nights {
				continue
			}
			total := 0.0
			for _, room := range rooms[:nights] {
				total += room.DiscountedPrice
			}
			options = append(options, map[string]any{
				"hotel_id":       h.ID,
				"hotel_name":     h.Name,
				"city":           h.City,
				"rating":         h.Rating,
				"room_type":      rooms[0].RoomType,
				"check_in_date":  in.Format(dateLayout),
				"check_out_date": out.Format(dateLayout),
				"per_night_rate": round2(rooms[0].DiscountedPrice),
				"total_nights":   nights,
				"total_cost":     round2(total),
				"amenities":      h.Amenities,
			})
			break
		}
	}

	data := map[string]any{
		"trf_number":       trf.TRFNumber,
		"employee_name":    trf.EmployeeName,
		"available_hotels": options,
	}
	if len(options) == 0 {
		data["booking_status"] = "no_hotels_available"
		return data, fmt.Sprintf("No hotels available in %s", city), nil
	}
	data["booking_status"] = "available"
	return data, fmt.Sprintf("Found %d hotels. Use hotel_id with confirm_hotel_booking to book.", len(options)), nil
}

func runConfirmHotelBooking(ctx context.Context, deps Deps, id contractx.Identity, args map[string]any) (any, string, error) {
	trfNumber, err := stringArg(args, "trf_number", true)
	if err != nil {
		return nil, "", err
	}
	trf, err := bookableTRF(ctx, deps, trfNumber)
	if err != nil {
		return nil, "", err
	}
	hotelID, err := intArg(args, "hotel_id", 0)
	if err != nil {
		return nil, "", err
	}
	if hotelID <= 0 {
		return nil, "", fmt.Errorf("%w: hotel_id is required", contractx.ErrValidation)
	}
	checkIn, checkOut, nights, err := stayDates(args)
	if err != nil {
		return nil, "", err
	}
	guests, err := intArg(args, "number_of_guests", 1)
	if err != nil {
		return nil, "", err
	}
	if guests < 1 {
		guests = 1
	}
	specialRequests, err := stringArg(args, "special_requests", false)
	if err != nil {
		return nil, "", err
	}

	hotel, err := deps.Store.GetHotel(ctx, int64(hotelID))
	if err != nil {
		return nil, "", notFound(err, fmt.Sprintf("hotel %d not found", hotelID))
	}

	rooms, err := deps.Store.AvailableRooms(ctx, hotel.ID, checkIn, checkOut)
	if err != nil {
		return nil, "", err
	}
	if len(rooms) < nights {
		return nil, "", fmt.Errorf("%w: hotel %s no longer has availability for all dates", contractx.ErrStateConflict, hotel.Name)
	}
	rooms = rooms[:nights]

	total := 0.0
	roomIDs := make([]int64, 0, len(rooms))
	for _, room := range rooms {
		total += room.DiscountedPrice
		roomIDs = append(roomIDs, room.ID)
	}
	total = round2(total)

	// Claim every night atomically; a concurrent booking racing for the
	// same rooms leaves exactly one winner.
	if err := deps.Store.ReserveRooms(ctx, roomIDs); err != nil {
		if errors.Is(err, storex.ErrRoomUnavailable) {
			return nil, "", fmt.Errorf("%w: hotel %s no longer has availability for all dates", contractx.ErrStateConflict, hotel.Name)
		}
		return nil, "", err
	}

	now := deps.Now()
	booking, err := ensureTravelBooking(ctx, deps, trf, now)
	if err != nil {
		return nil, "", err
	}

	confirmation := fmt.Sprintf("HB%s%d", now.Format("20060102150405"), hotel.ID)
	hb := &storex.HotelBooking{
		ConfirmationNumber: confirmation,
		TravelBookingID:    booking.ID,
		RoomID:             rooms[0].ID,
		GuestName:          trf.EmployeeName,
		CheckInDate:        checkIn,
		CheckOutDate:       checkOut,
		Nights:             nights,
		Guests:             guests,
		PerNightRate:       round2(total / float64(nights)),
		TotalRoomCost:      total,
		FinalCost:          total,
		Status:             storex.BookingConfirmed,
		SpecialRequest:     specialRequests,
		BookedAt:           now,
	}
	if err := deps.Store.CreateHotelBooking(ctx, hb); err != nil {
		return nil, "", err
	}

	booking.TotalHotelCost = round2(booking.TotalHotelCost + total)
	booking.TotalCost = round2(booking.TotalCost + total)
	booking.Status = storex.BookingConfirmed
	booking.ConfirmationDate = &now
	if err := deps.Store.UpdateTravelBooking(ctx, booking); err != nil {
		return nil, "", err
	}

	if _, err := deps.Machine.StartProcessing(ctx, trf.TRFNumber); err != nil {
		return nil, "", err
	}

	data := map[string]any{
		"trf_number":                trf.TRFNumber,
		"employee_name":             trf.EmployeeName,
		"booking_status":            "booked",
		"booking_reference":         booking.BookingNumber,
		"hotel_confirmation_number": confirmation,
		"hotel_name":                hotel.Name,
		"check_in_date":             checkIn.Format(dateLayout),
		"check_out_date":            checkOut.Format(dateLayout),
		"total_cost":                total,
	}
	return data, fmt.Sprintf("Hotel %s booked. Confirmation: %s", hotel.Name, confirmation), nil
}

func runMarkTRFCompleted(ctx context.Context, deps Deps, id contractx.Identity, args map[string]any) (any, string, error) {
	trfNumber, err := stringArg(args, "trf_number", true)
	if err != nil {
		return nil, "", err
	}
	comments, err := stringArg(args, "comments", false)
	if err != nil {
		return nil, "", err
	}
	trf, err := deps.Machine.Complete(ctx, trfNumber, comments)
	if err != nil {
		return nil, "", notFound(err, fmt.Sprintf("TRF %s not found", trfNumber))
	}
	data := summarizeTRF(trf)
	data["final_approved_at"] = trf.FinalApprovedAt
	return data, fmt.Sprintf("TRF %s completed", trf.TRFNumber), nil
}

// ensureTravelBooking returns the TRF's latest booking aggregate,
// creating one on first use.
func ensureTravelBooking(ctx context.Context, deps Deps, trf *storex.TRF, now time.Time) (*storex.TravelBooking, error) {
	booking, err := deps.Store.LatestTravelBooking(ctx, trf.ID)
	if err == nil {
		return booking, nil
	}
	if !errors.Is(err, storex.ErrBookingNotFound) {
		return nil, err
	}
	booking = &storex.TravelBooking{
		BookingNumber:      fmt.Sprintf("TB%s%d", now.Format("20060102150405"), trf.ID),
		TRFID:              trf.ID,
		TravelerName:       trf.EmployeeName,
		TravelerEmail:      trf.EmployeeEmail,
		TravelerEmployeeID: trf.EmployeeID,
		Status:             storex.BookingPending,
		BookingDate:        now,
	}
	if err := deps.Store.CreateTravelBooking(ctx, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

func stayDates(args map[string]any) (checkIn, checkOut time.Time, nights int, err error) {
	checkIn, _, err = dateArg(args, "check_in_date", true)
	if err != nil {
		return
	}
	checkOut, _, err = dateArg(args, "check_out_date", true)
	if err != nil {
		return
	}
	if !checkOut.After(checkIn) {
		err = fmt.Errorf("%w: check_out_date must be after check_in_date", contractx.ErrValidation)
		return
	}
	nights = int(checkOut.Sub(checkIn).Hours() / 24)
	return
}

// shiftFor walks offsets outward: 0, +1, -1, +2, -2, ...
func shiftFor(offset int) int {
	if offset == 0 {
		return 0
	}
	half := (offset + 1) / 2
	if offset%2 == 1 {
		return half
	}
	return -half
}

func equalCity(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func sameDate(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
