package store

import (
	"strconv"
	"time"
)

type seedRoute struct {
	origin      string
	destination string
	basePrice   float64
	duration    int
	airline     string
	departs     string
}

var seedAirlines = []*Airline{
	{Code: "YA", Name: "Yash Air", Country: "India", IsPreferred: true, CorporateDiscount: 18, IsActive: true},
	{Code: "AI", Name: "Air India Corporate", Country: "India", IsPreferred: true, CorporateDiscount: 12, IsActive: true},
	{Code: "SG", Name: "Singapore Global", Country: "Singapore", IsPreferred: true, CorporateDiscount: 14, IsActive: true},
	{Code: "EK", Name: "Emirates Connect", Country: "United Arab Emirates", IsPreferred: false, CorporateDiscount: 10, IsActive: true},
}

var seedRoutes = []seedRoute{
	{"Mumbai", "Delhi", 5800, 140, "YA", "07:30"},
	{"Mumbai", "Delhi", 6100, 140, "AI", "18:15"},
	{"Delhi", "Mumbai", 5900, 145, "YA", "09:00"},
	{"Delhi", "Bengaluru", 6200, 150, "YA", "10:45"},
	{"Bengaluru", "Delhi", 6400, 155, "AI", "14:20"},
	{"Mumbai", "Singapore", 32000, 330, "SG", "23:55"},
	{"Singapore", "Mumbai", 31500, 340, "SG", "08:10"},
	{"Delhi", "Dubai", 26000, 240, "EK", "04:30"},
	{"Dubai", "Delhi", 25500, 235, "EK", "21:40"},
}

type seedHotel struct {
	name     string
	chain    string
	rating   int
	city     string
	country  string
	discount float64
	base     float64
}

var seedHotels = []seedHotel{
	{"Grandview Delhi Central", "Grandview", 5, "Delhi", "India", 20, 9500},
	{"Grandview Mumbai Bay", "Grandview", 5, "Mumbai", "India", 20, 11000},
	{"CityStay Bengaluru Tech Park", "CityStay", 4, "Bengaluru", "India", 15, 6500},
	{"Marina Crest Singapore", "Marina Crest", 5, "Singapore", "Singapore", 12, 18000},
	{"Desert Pearl Dubai", "Desert Pearl", 4, "Dubai", "United Arab Emirates", 10, 14000},
}

// SeedDemoInventory populates an in-memory store with daily flight and
// room inventory for the given window, starting today. Meant for local
// runs without Postgres.
func SeedDemoInventory(s *MemoryStore, days int) {
	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	byCode := make(map[string]*Airline, len(seedAirlines))
	for _, a := range seedAirlines {
		byCode[a.Code] = s.AddAirline(&Airline{
			Code: a.Code, Name: a.Name, Country: a.Country,
			IsPreferred: a.IsPreferred, CorporateDiscount: a.CorporateDiscount, IsActive: true,
		})
	}

	for day := 0; day < days; day++ {
		date := start.AddDate(0, 0, day)
		for i, r := range seedRoutes {
			airline := byCode[r.airline]
			arrival := date
			economy := r.basePrice
			s.AddFlight(&Flight{
				AirlineID:           airline.ID,
				Airline:             airline,
				FlightNumber:        r.airline + strconv.Itoa(100+i*7),
				OriginCity:          r.origin,
				DestinationCity:     r.destination,
				DepartureDate:       date,
				DepartureTime:       r.departs,
				ArrivalDate:         arrival,
				ArrivalTime:         r.departs,
				DurationMinutes:     r.duration,
				EconomyPrice:        economy,
				PremiumEconomyPrice: economy * 1.6,
				BusinessPrice:       economy * 2.8,
				FirstPrice:          economy * 4.2,
				IsDirect:            true,
				IsAvailable:         true,
			})
		}
	}

	for _, h := range seedHotels {
		hotel := s.AddHotel(&Hotel{
			Name: h.name, Chain: h.chain, Rating: h.rating,
			City: h.city, Country: h.country,
			CorporateDiscount: h.discount,
			Amenities:         []string{"wifi", "breakfast", "gym"},
			IsActive:          true,
		})
		for day := 0; day < days; day++ {
			date := start.AddDate(0, 0, day)
			for _, roomType := range []string{"standard", "deluxe"} {
				base := h.base
				if roomType == "deluxe" {
					base *= 1.5
				}
				s.AddRoom(&HotelRoom{
					HotelID:         hotel.ID,
					Hotel:           hotel,
					RoomType:        roomType,
					Occupancy:       2,
					Date:            date,
					BasePrice:       base,
					DiscountedPrice: base * (1 - h.discount/100),
					IsAvailable:     true,
				})
			}
		}
	}
}
