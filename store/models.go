package store

import (
	"time"

	"github.com/uptrace/bun"
)

type TravelType string

const (
	TravelDomestic      TravelType = "domestic"
	TravelInternational TravelType = "international"
)

// Status is the travel request workflow state. Transitions are guarded
// by agent/workflow; the store only enforces the compare-and-set.
type Status string

const (
	StatusDraft             Status = "draft"
	StatusPendingIRM        Status = "pending_irm"
	StatusPendingSRM        Status = "pending_srm"
	StatusPendingBUH        Status = "pending_buh"
	StatusPendingSSUH       Status = "pending_ssuh"
	StatusPendingBGH        Status = "pending_bgh"
	StatusPendingSSGH       Status = "pending_ssgh"
	StatusPendingCFO        Status = "pending_cfo"
	StatusPendingTravelDesk Status = "pending_travel_desk"
	StatusProcessing        Status = "processing"
	StatusRejected          Status = "rejected"
	StatusCompleted         Status = "completed"
)

// IsTerminal reports whether no further transition is legal.
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusCompleted
}

// StageApproval is one approval stage's record on a TRF. ApprovedAt is
// immutable once set.
type StageApproval struct {
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	Comments   string     `json:"comments,omitempty"`
}

// TRF is the travel requisition form. Draft numbers carry the DRAFT-
// prefix; submission moves the number into the submitted namespace.
type TRF struct {
	bun.BaseModel `bun:"table:travel_requisition_forms"`

	ID        int64  `bun:"id,pk,autoincrement" json:"id"`
	TRFNumber string `bun:"trf_number,notnull,unique" json:"trf_number"`

	EmployeeID          string `bun:"employee_id,notnull" json:"employee_id"`
	EmployeeName        string `bun:"employee_name,notnull" json:"employee_name"`
	EmployeeEmail       string `bun:"employee_email,notnull" json:"employee_email"`
	EmployeePhone       string `bun:"employee_phone" json:"employee_phone,omitempty"`
	EmployeeDepartment  string `bun:"employee_department" json:"employee_department,omitempty"`
	EmployeeDesignation string `bun:"employee_designation" json:"employee_designation,omitempty"`
	EmployeeLocation    string `bun:"employee_location" json:"employee_location,omitempty"`

	TravelType      TravelType `bun:"travel_type,notnull" json:"travel_type"`
	Purpose         string     `bun:"purpose,notnull" json:"purpose"`
	OriginCity      string     `bun:"origin_city,notnull" json:"origin_city"`
	DestinationCity string     `bun:"destination_city,notnull" json:"destination_city"`
	DepartureDate   time.Time  `bun:"departure_date,notnull" json:"departure_date"`
	ReturnDate      *time.Time `bun:"return_date" json:"return_date,omitempty"`
	EstimatedCost   float64    `bun:"estimated_cost" json:"estimated_cost,omitempty"`

	Status Status `bun:"status,notnull" json:"status"`

	IRMApprovedAt        *time.Time `bun:"irm_approved_at" json:"irm_approved_at,omitempty"`
	IRMComments          string     `bun:"irm_comments" json:"irm_comments,omitempty"`
	SRMApprovedAt        *time.Time `bun:"srm_approved_at" json:"srm_approved_at,omitempty"`
	SRMComments          string     `bun:"srm_comments" json:"srm_comments,omitempty"`
	BUHApprovedAt        *time.Time `bun:"buh_approved_at" json:"buh_approved_at,omitempty"`
	BUHComments          string     `bun:"buh_comments" json:"buh_comments,omitempty"`
	SSUHApprovedAt       *time.Time `bun:"ssuh_approved_at" json:"ssuh_approved_at,omitempty"`
	SSUHComments         string     `bun:"ssuh_comments" json:"ssuh_comments,omitempty"`
	BGHApprovedAt        *time.Time `bun:"bgh_approved_at" json:"bgh_approved_at,omitempty"`
	BGHComments          string     `bun:"bgh_comments" json:"bgh_comments,omitempty"`
	SSGHApprovedAt       *time.Time `bun:"ssgh_approved_at" json:"ssgh_approved_at,omitempty"`
	SSGHComments         string     `bun:"ssgh_comments" json:"ssgh_comments,omitempty"`
	CFOApprovedAt        *time.Time `bun:"cfo_approved_at" json:"cfo_approved_at,omitempty"`
	CFOComments          string     `bun:"cfo_comments" json:"cfo_comments,omitempty"`
	TravelDeskApprovedAt *time.Time `bun:"travel_desk_approved_at" json:"travel_desk_approved_at,omitempty"`
	TravelDeskComments   string     `bun:"travel_desk_comments" json:"travel_desk_comments,omitempty"`

	FinalApprovedAt *time.Time `bun:"final_approved_at" json:"final_approved_at,omitempty"`
	RejectionReason string     `bun:"rejection_reason" json:"rejection_reason,omitempty"`
	RejectedBy      string     `bun:"rejected_by" json:"rejected_by,omitempty"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

type Airline struct {
	bun.BaseModel `bun:"table:airlines"`

	ID                int64   `bun:"id,pk,autoincrement" json:"id"`
	Code              string  `bun:"code,notnull,unique" json:"code"`
	Name              string  `bun:"name,notnull" json:"name"`
	Country           string  `bun:"country" json:"country,omitempty"`
	IsPreferred       bool    `bun:"is_preferred" json:"is_preferred"`
	CorporateDiscount float64 `bun:"corporate_discount" json:"corporate_discount"`
	IsActive          bool    `bun:"is_active,default:true" json:"is_active"`
}

type CabinClass string

const (
	CabinEconomy        CabinClass = "economy"
	CabinPremiumEconomy CabinClass = "premium_economy"
	CabinBusiness       CabinClass = "business"
	CabinFirst          CabinClass = "first"
)

type Flight struct {
	bun.BaseModel `bun:"table:flight_inventory"`

	ID        int64    `bun:"id,pk,autoincrement" json:"id"`
	AirlineID int64    `bun:"airline_id,notnull" json:"airline_id"`
	Airline   *Airline `bun:"rel:belongs-to,join:airline_id=id" json:"airline,omitempty"`

	FlightNumber    string `bun:"flight_number,notnull" json:"flight_number"`
	OriginCity      string `bun:"origin_city,notnull" json:"origin_city"`
	DestinationCity string `bun:"destination_city,notnull" json:"destination_city"`

	DepartureDate   time.Time `bun:"departure_date,notnull" json:"departure_date"`
	DepartureTime   string    `bun:"departure_time,notnull" json:"departure_time"`
	ArrivalDate     time.Time `bun:"arrival_date,notnull" json:"arrival_date"`
	ArrivalTime     string    `bun:"arrival_time,notnull" json:"arrival_time"`
	DurationMinutes int       `bun:"duration_minutes,notnull" json:"duration_minutes"`

	EconomyPrice        float64 `bun:"economy_price,notnull" json:"economy_price"`
	PremiumEconomyPrice float64 `bun:"premium_economy_price" json:"premium_economy_price,omitempty"`
	BusinessPrice       float64 `bun:"business_price" json:"business_price,omitempty"`
	FirstPrice          float64 `bun:"first_price" json:"first_price,omitempty"`

	IsDirect    bool `bun:"is_direct,default:true" json:"is_direct"`
	IsAvailable bool `bun:"is_available,default:true" json:"is_available"`
}

// PriceFor picks the fare for a cabin class, falling back to economy
// when the class is unpriced.
func (f *Flight) PriceFor(cabin CabinClass) float64 {
	var price float64
	switch cabin {
	case CabinPremiumEconomy:
		price = f.PremiumEconomyPrice
	case CabinBusiness:
		price = f.BusinessPrice
	case CabinFirst:
		price = f.FirstPrice
	default:
		price = f.EconomyPrice
	}
	if price <= 0 {
		price = f.EconomyPrice
	}
	return price
}

type Hotel struct {
	bun.BaseModel `bun:"table:hotels"`

	ID                int64    `bun:"id,pk,autoincrement" json:"id"`
	Name              string   `bun:"name,notnull" json:"name"`
	Chain             string   `bun:"chain" json:"chain,omitempty"`
	Rating            int      `bun:"rating" json:"rating"`
	City              string   `bun:"city,notnull" json:"city"`
	Country           string   `bun:"country,notnull" json:"country"`
	CorporateDiscount float64  `bun:"corporate_discount" json:"corporate_discount"`
	Amenities         []string `bun:"amenities,type:jsonb" json:"amenities,omitempty"`
	IsActive          bool     `bun:"is_active,default:true" json:"is_active"`
}

// HotelRoom is one night of bookable inventory for one room type.
type HotelRoom struct {
	bun.BaseModel `bun:"table:hotel_room_inventory"`

	ID      int64  `bun:"id,pk,autoincrement" json:"id"`
	HotelID int64  `bun:"hotel_id,notnull" json:"hotel_id"`
	Hotel   *Hotel `bun:"rel:belongs-to,join:hotel_id=id" json:"hotel,omitempty"`

	RoomType        string    `bun:"room_type,notnull" json:"room_type"`
	Occupancy       int       `bun:"occupancy,default:2" json:"occupancy"`
	Date            time.Time `bun:"date,notnull" json:"date"`
	BasePrice       float64   `bun:"base_price,notnull" json:"base_price"`
	DiscountedPrice float64   `bun:"discounted_price,notnull" json:"discounted_price"`
	IsAvailable     bool      `bun:"is_available,default:true" json:"is_available"`
}

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// TravelBooking aggregates every flight and hotel booked for one TRF.
type TravelBooking struct {
	bun.BaseModel `bun:"table:travel_bookings"`

	ID            int64  `bun:"id,pk,autoincrement" json:"id"`
	BookingNumber string `bun:"booking_number,notnull,unique" json:"booking_number"`
	TRFID         int64  `bun:"trf_id,notnull" json:"trf_id"`

	TravelerName       string `bun:"traveler_name,notnull" json:"traveler_name"`
	TravelerEmail      string `bun:"traveler_email,notnull" json:"traveler_email"`
	TravelerEmployeeID string `bun:"traveler_employee_id" json:"traveler_employee_id,omitempty"`

	Status          BookingStatus `bun:"status,notnull" json:"status"`
	TotalFlightCost float64       `bun:"total_flight_cost" json:"total_flight_cost"`
	TotalHotelCost  float64       `bun:"total_hotel_cost" json:"total_hotel_cost"`
	TotalCost       float64       `bun:"total_cost" json:"total_cost"`

	BookingDate      time.Time  `bun:"booking_date,notnull,default:current_timestamp" json:"booking_date"`
	ConfirmationDate *time.Time `bun:"confirmation_date" json:"confirmation_date,omitempty"`

	FlightBookings []*FlightBooking `bun:"rel:has-many,join:id=travel_booking_id" json:"flight_bookings,omitempty"`
	HotelBookings  []*HotelBooking  `bun:"rel:has-many,join:id=travel_booking_id" json:"hotel_bookings,omitempty"`
}

type FlightBooking struct {
	bun.BaseModel `bun:"table:flight_bookings"`

	ID              int64   `bun:"id,pk,autoincrement" json:"id"`
	PNR             string  `bun:"pnr,notnull,unique" json:"pnr"`
	TravelBookingID int64   `bun:"travel_booking_id,notnull" json:"travel_booking_id"`
	FlightID        int64   `bun:"flight_id,notnull" json:"flight_id"`
	Flight          *Flight `bun:"rel:belongs-to,join:flight_id=id" json:"flight,omitempty"`

	CabinClass      CabinClass    `bun:"cabin_class,notnull" json:"cabin_class"`
	PassengerName   string        `bun:"passenger_name,notnull" json:"passenger_name"`
	BaseFare        float64       `bun:"base_fare,notnull" json:"base_fare"`
	DiscountApplied float64       `bun:"discount_applied" json:"discount_applied"`
	FinalFare       float64       `bun:"final_fare,notnull" json:"final_fare"`
	Status          BookingStatus `bun:"status,notnull" json:"status"`
	BookedAt        time.Time     `bun:"booked_at,notnull,default:current_timestamp" json:"booked_at"`
}

type HotelBooking struct {
	bun.BaseModel `bun:"table:hotel_bookings"`

	ID                 int64      `bun:"id,pk,autoincrement" json:"id"`
	ConfirmationNumber string     `bun:"confirmation_number,notnull,unique" json:"confirmation_number"`
	TravelBookingID    int64      `bun:"travel_booking_id,notnull" json:"travel_booking_id"`
	RoomID             int64      `bun:"room_id,notnull" json:"room_id"`
	Room               *HotelRoom `bun:"rel:belongs-to,join:room_id=id" json:"room,omitempty"`

	GuestName      string        `bun:"guest_name,notnull" json:"guest_name"`
	CheckInDate    time.Time     `bun:"check_in_date,notnull" json:"check_in_date"`
	CheckOutDate   time.Time     `bun:"check_out_date,notnull" json:"check_out_date"`
	Nights         int           `bun:"number_of_nights,notnull" json:"number_of_nights"`
	Guests         int           `bun:"number_of_guests,default:1" json:"number_of_guests"`
	PerNightRate   float64       `bun:"per_night_rate,notnull" json:"per_night_rate"`
	TotalRoomCost  float64       `bun:"total_room_cost,notnull" json:"total_room_cost"`
	FinalCost      float64       `bun:"final_cost,notnull" json:"final_cost"`
	Status         BookingStatus `bun:"status,notnull" json:"status"`
	SpecialRequest string        `bun:"special_requests" json:"special_requests,omitempty"`
	BookedAt       time.Time     `bun:"booked_at,notnull,default:current_timestamp" json:"booked_at"`
}
