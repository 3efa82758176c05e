/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data
  carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/voyago/travel-engine/booking"
	"github.com/voyago/travel-engine/inventory"
	"github.com/voyago/travel-engine/settlement"
)

// =============================================================================
// BOOKING
// =============================================================================

// CreateBookingRequest carries exactly one of the item blocks; the kind
// field selects which.
type CreateBookingRequest struct {
	Kind   string                `json:"kind"`
	Tour   *booking.TourItems    `json:"tour,omitempty"`
	Flight *booking.FlightItems  `json:"flight,omitempty"`
	Hotel  *booking.HotelItems   `json:"hotel,omitempty"`
	Custom *CustomBookingRequest `json:"custom,omitempty"`
}

// CustomBookingRequest books a saved custom package with the seat/room
// selections chosen now.
type CustomBookingRequest struct {
	PackageID string                    `json:"package_id"`
	Flights   []booking.FlightSelection `json:"flights,omitempty"`
	Hotels    []booking.HotelSelection  `json:"hotels,omitempty"`
}

// TransitionRequest is the admin status-change body.
type TransitionRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

type BookingDTO struct {
	ID            string        `json:"id"`
	UserID        string        `json:"user_id"`
	Kind          string        `json:"kind"`
	Items         booking.Items `json:"items"`
	TotalPrice    string        `json:"total_price"`
	Status        string        `json:"status"`
	PaymentStatus string        `json:"payment_status"`
	RefundStatus  string        `json:"refund_status,omitempty"`
	RefundAmount  string        `json:"refund_amount,omitempty"`
	RefundReason  string        `json:"refund_reason,omitempty"`
	ConfirmedAt   *time.Time    `json:"confirmed_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

func toBookingDTO(b *booking.Booking) BookingDTO {
	dto := BookingDTO{
		ID:            b.ID,
		UserID:        b.UserID,
		Kind:          string(b.Kind),
		Items:         b.Items,
		TotalPrice:    b.TotalPrice.StringFixed(2),
		Status:        string(b.Status),
		PaymentStatus: string(b.PaymentStatus),
		ConfirmedAt:   b.ConfirmedAt,
		CreatedAt:     b.CreatedAt,
	}
	if b.RefundStatus != booking.RefundNone {
		dto.RefundStatus = string(b.RefundStatus)
		dto.RefundAmount = b.RefundAmount.StringFixed(2)
		dto.RefundReason = b.RefundReason
	}
	return dto
}

// =============================================================================
// CUSTOM PACKAGES
// =============================================================================

type PackageRequest struct {
	FlightIDs        []string `json:"flight_ids"`
	HotelIDs         []string `json:"hotel_ids"`
	EntertainmentIDs []string `json:"entertainment_ids"`
}

type PackageDTO struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	FlightIDs        []string  `json:"flight_ids"`
	HotelIDs         []string  `json:"hotel_ids"`
	EntertainmentIDs []string  `json:"entertainment_ids"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// SavePackageResponse carries the saved package plus the non-fatal
// warnings about dropped references.
type SavePackageResponse struct {
	Package  PackageDTO `json:"package"`
	Warnings []string   `json:"warnings,omitempty"`
}

func toPackageDTO(p *booking.CustomPackage) PackageDTO {
	return PackageDTO{
		ID:               p.ID,
		UserID:           p.UserID,
		FlightIDs:        p.FlightIDs,
		HotelIDs:         p.HotelIDs,
		EntertainmentIDs: p.EntertainmentIDs,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

// =============================================================================
// SETTLEMENT
// =============================================================================

type CreatePlanRequest struct {
	Installments int `json:"installments"`
}

type InstallmentDTO struct {
	ID        string     `json:"id"`
	Number    int        `json:"number"`
	Amount    string     `json:"amount"`
	Status    string     `json:"status"`
	DueDate   time.Time  `json:"due_date"`
	InvoiceID string     `json:"invoice_id"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
}

type PlanDTO struct {
	ID           string           `json:"id"`
	BookingID    string           `json:"booking_id"`
	Mode         string           `json:"mode"`
	Total        string           `json:"total"`
	Settled      bool             `json:"settled"`
	Installments []InstallmentDTO `json:"installments"`
}

// SessionDTO wraps a payment session; Plan rides along on initiation so
// the client sees the obligation it is paying.
type SessionDTO struct {
	Session *settlement.Session `json:"session,omitempty"`
	Plan    *PlanDTO            `json:"plan,omitempty"`
	Paid    bool                `json:"paid,omitempty"`
}

func toPlanDTO(p *settlement.Plan) PlanDTO {
	dto := PlanDTO{
		ID:        p.ID,
		BookingID: p.BookingID,
		Mode:      string(p.Mode),
		Total:     p.Total.StringFixed(2),
		Settled:   p.Settled(),
	}
	for _, in := range p.Installments {
		dto.Installments = append(dto.Installments, InstallmentDTO{
			ID:        in.ID,
			Number:    in.Number,
			Amount:    in.Amount.StringFixed(2),
			Status:    string(in.Status),
			DueDate:   in.DueDate,
			InvoiceID: in.InvoiceID,
			PaidAt:    in.PaidAt,
		})
	}
	return dto
}

// =============================================================================
// REFUNDS
// =============================================================================

type RefundRequest struct {
	BookingID string `json:"booking_id"`
	Reason    string `json:"reason"`
}

type ResolveRefundRequest struct {
	Decision string `json:"decision"` // "approved" or "rejected"
}

// =============================================================================
// INVENTORY
// =============================================================================

type FlightDTO struct {
	ID            string    `json:"id"`
	AirlineName   string    `json:"airline_name"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	Date          time.Time `json:"date"`
	EconomyPrice  string    `json:"economy_price"`
	BusinessPrice string    `json:"business_price"`
	EconomySeats  int       `json:"economy_seats"`
	BusinessSeats int       `json:"business_seats"`
}

func toFlightDTO(f inventory.Flight) FlightDTO {
	return FlightDTO{
		ID:            f.ID,
		AirlineName:   f.AirlineName,
		From:          f.From,
		To:            f.To,
		Date:          f.Date,
		EconomyPrice:  f.EconomyPrice.StringFixed(2),
		BusinessPrice: f.BusinessPrice.StringFixed(2),
		EconomySeats:  f.EconomySeats,
		BusinessSeats: f.BusinessSeats,
	}
}

type RoomTypeDTO struct {
	Name          string `json:"name"`
	PricePerNight string `json:"price_per_night"`
	Count         int    `json:"count"`
}

type HotelDTO struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Location       string        `json:"location"`
	PricePerNight  string        `json:"price_per_night"`
	RoomsAvailable int           `json:"rooms_available"`
	RoomTypes      []RoomTypeDTO `json:"room_types"`
}

func toHotelDTO(h inventory.Hotel) HotelDTO {
	dto := HotelDTO{
		ID:             h.ID,
		Name:           h.Name,
		Location:       h.Location,
		PricePerNight:  h.PricePerNight.StringFixed(2),
		RoomsAvailable: h.RoomsAvailable,
	}
	for _, r := range h.RoomTypes {
		dto.RoomTypes = append(dto.RoomTypes, RoomTypeDTO{
			Name:          r.Name,
			PricePerNight: r.PricePerNight.StringFixed(2),
			Count:         r.Count,
		})
	}
	return dto
}

type EntertainmentDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Price    string `json:"price"`
	Slots    int    `json:"slots"`
}

func toEntertainmentDTO(e inventory.Entertainment) EntertainmentDTO {
	return EntertainmentDTO{
		ID:       e.ID,
		Name:     e.Name,
		Location: e.Location,
		Price:    e.Price.StringFixed(2),
		Slots:    e.Slots,
	}
}

type TourPackageDTO struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Location     string `json:"location"`
	Duration     string `json:"duration"`
	Price        string `json:"price"`
	Availability int    `json:"availability"`
}

func toTourPackageDTO(t inventory.TourPackage) TourPackageDTO {
	return TourPackageDTO{
		ID:           t.ID,
		Title:        t.Title,
		Location:     t.Location,
		Duration:     t.Duration,
		Price:        t.Price.StringFixed(2),
		Availability: t.Availability,
	}
}

// Admin create payloads. Prices come in as strings so clients never send
// binary floats for money.

type CreateFlightRequest struct {
	ID            string    `json:"id,omitempty"`
	AirlineName   string    `json:"airline_name"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	Date          time.Time `json:"date"`
	EconomyPrice  string    `json:"economy_price"`
	BusinessPrice string    `json:"business_price"`
	EconomySeats  int       `json:"economy_seats"`
	BusinessSeats int       `json:"business_seats"`
}

type CreateHotelRequest struct {
	ID            string                  `json:"id,omitempty"`
	Name          string                  `json:"name"`
	Location      string                  `json:"location"`
	PricePerNight string                  `json:"price_per_night"`
	RoomTypes     []CreateRoomTypeRequest `json:"room_types"`
}

type CreateRoomTypeRequest struct {
	Name          string `json:"name"`
	PricePerNight string `json:"price_per_night"`
	Count         int    `json:"count"`
}

type CreateEntertainmentRequest struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Price    string `json:"price"`
	Slots    int    `json:"slots"`
}

type CreateTourPackageRequest struct {
	ID           string `json:"id,omitempty"`
	Title        string `json:"title"`
	Location     string `json:"location"`
	Duration     string `json:"duration"`
	Price        string `json:"price"`
	Availability int    `json:"availability"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
