/*
handlers.go - HTTP handlers for the travel booking engine

PURPOSE:
  Exposes the booking, settlement, and refund services over REST. Handles
  HTTP request/response, JSON serialization, and delegates everything
  else to the domain services.

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input shape (domain rules live in the services)
  3. Call the service
  4. Serialize response
  5. Map domain errors to status codes

ERROR HANDLING:
  - 400: malformed body, missing fields
  - 401: missing/invalid token (auth.go)
  - 403: non-admin on admin route, or foreign resource
  - 404: NotFoundError
  - 409: capacity, duplicate request, illegal transition, mode conflict
  - 502: payment session could not be created
  - 500: everything else

SEE ALSO:
  - dto.go:    request/response shapes
  - server.go: routing and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/voyago/travel-engine/booking"
	"github.com/voyago/travel-engine/inventory"
	"github.com/voyago/travel-engine/refund"
	"github.com/voyago/travel-engine/settlement"
	"github.com/voyago/travel-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      *sqlite.Store
	Bookings   *booking.Service
	Settlement *settlement.Service
	Refunds    *refund.Service
}

func NewHandler(store *sqlite.Store, bookings *booking.Service, settle *settlement.Service, refunds *refund.Service) *Handler {
	return &Handler{
		Store:      store,
		Bookings:   bookings,
		Settlement: settle,
		Refunds:    refunds,
	}
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeDomainError maps a service error to its HTTP status.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case booking.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case booking.IsInvalidSelection(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, settlement.ErrPaymentInitiation):
		writeError(w, http.StatusBadGateway, err.Error())
	case booking.IsConflict(err) || settlement.IsConflict(err):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func identity(w http.ResponseWriter, r *http.Request) (Identity, bool) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no identity on request")
	}
	return id, ok
}

// =============================================================================
// BOOKINGS
// =============================================================================

// CreateBooking dispatches on the request kind to the matching item
// variant. Exactly one item block must be present.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var req CreateBookingRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var b *booking.Booking
	var err error
	switch booking.Kind(req.Kind) {
	case booking.KindTourPackage:
		if req.Tour == nil {
			writeError(w, http.StatusBadRequest, "tour block required for kind tour_package")
			return
		}
		b, err = h.Bookings.Create(r.Context(), id.UserID, *req.Tour)

	case booking.KindFlight:
		if req.Flight == nil {
			writeError(w, http.StatusBadRequest, "flight block required for kind flight")
			return
		}
		if req.Flight.Qty <= 0 || !req.Flight.SeatClass.Valid() {
			writeError(w, http.StatusBadRequest, "flight booking needs a valid seat class and positive qty")
			return
		}
		b, err = h.Bookings.Create(r.Context(), id.UserID, *req.Flight)

	case booking.KindHotel:
		if req.Hotel == nil {
			writeError(w, http.StatusBadRequest, "hotel block required for kind hotel")
			return
		}
		if req.Hotel.Rooms <= 0 {
			writeError(w, http.StatusBadRequest, "hotel booking needs a positive room count")
			return
		}
		b, err = h.Bookings.Create(r.Context(), id.UserID, *req.Hotel)

	case booking.KindCustom:
		if req.Custom == nil {
			writeError(w, http.StatusBadRequest, "custom block required for kind custom")
			return
		}
		b, err = h.Bookings.BookCustom(r.Context(), id.UserID, req.Custom.PackageID, req.Custom.Flights, req.Custom.Hotels)

	default:
		writeError(w, http.StatusBadRequest, "unknown booking kind "+req.Kind)
		return
	}

	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingDTO(b))
}

func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	bookings, err := h.Bookings.ListByUser(r.Context(), id.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]BookingDTO, 0, len(bookings))
	for i := range bookings {
		dtos = append(dtos, toBookingDTO(&bookings[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ownBooking loads the booking and enforces that the caller owns it or is
// an admin.
func (h *Handler) ownBooking(w http.ResponseWriter, r *http.Request, bookingID string) (*booking.Booking, Identity, bool) {
	id, ok := identity(w, r)
	if !ok {
		return nil, id, false
	}
	b, err := h.Bookings.Get(r.Context(), bookingID)
	if err != nil {
		writeDomainError(w, err)
		return nil, id, false
	}
	if b.UserID != id.UserID && !id.Admin {
		writeError(w, http.StatusForbidden, "not your booking")
		return nil, id, false
	}
	return b, id, true
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	b, _, ok := h.ownBooking(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(b))
}

func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	b, id, ok := h.ownBooking(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	cancelled, err := h.Bookings.Cancel(r.Context(), b.ID, id.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(cancelled))
}

// TransitionBooking is the admin status override.
func (h *Handler) TransitionBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var req TransitionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	to := booking.Status(req.Status)
	if !to.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status "+req.Status)
		return
	}
	b, err := h.Bookings.TransitionStatus(r.Context(), chi.URLParam(r, "id"), to, req.Reason, id.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(b))
}

// =============================================================================
// CUSTOM PACKAGES
// =============================================================================

func (h *Handler) CreatePackage(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var req PackageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := h.Bookings.SaveCustomPackage(r.Context(), id.UserID, req.FlightIDs, req.HotelIDs, req.EntertainmentIDs)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, SavePackageResponse{
		Package:  toPackageDTO(result.Package),
		Warnings: result.Warnings,
	})
}

func (h *Handler) ListPackages(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	pkgs, err := h.Bookings.ListCustomPackagesByUser(r.Context(), id.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]PackageDTO, 0, len(pkgs))
	for i := range pkgs {
		dtos = append(dtos, toPackageDTO(&pkgs[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ownPackage(w http.ResponseWriter, r *http.Request) (*booking.CustomPackage, Identity, bool) {
	id, ok := identity(w, r)
	if !ok {
		return nil, id, false
	}
	pkg, err := h.Bookings.GetCustomPackage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return nil, id, false
	}
	if pkg.UserID != id.UserID && !id.Admin {
		writeError(w, http.StatusForbidden, "not your package")
		return nil, id, false
	}
	return pkg, id, true
}

func (h *Handler) UpdatePackage(w http.ResponseWriter, r *http.Request) {
	pkg, _, ok := h.ownPackage(w, r)
	if !ok {
		return
	}
	var req PackageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := h.Bookings.UpdateCustomPackage(r.Context(), pkg.ID, req.FlightIDs, req.HotelIDs, req.EntertainmentIDs)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SavePackageResponse{
		Package:  toPackageDTO(result.Package),
		Warnings: result.Warnings,
	})
}

func (h *Handler) DeletePackage(w http.ResponseWriter, r *http.Request) {
	pkg, _, ok := h.ownPackage(w, r)
	if !ok {
		return
	}
	if err := h.Bookings.DeleteCustomPackage(r.Context(), pkg.ID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BookPackage is the direct booking route for a saved package.
func (h *Handler) BookPackage(w http.ResponseWriter, r *http.Request) {
	pkg, id, ok := h.ownPackage(w, r)
	if !ok {
		return
	}
	var req CustomBookingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	b, err := h.Bookings.BookCustom(r.Context(), id.UserID, pkg.ID, req.Flights, req.Hotels)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingDTO(b))
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	b, _, ok := h.ownBooking(w, r, chi.URLParam(r, "bookingID"))
	if !ok {
		return
	}
	var req CreatePlanRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Installments < 2 {
		writeError(w, http.StatusBadRequest, "installment plan needs at least 2 installments")
		return
	}
	plan, err := h.Settlement.CreatePlan(r.Context(), b.ID, req.Installments)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPlanDTO(plan))
}

func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	b, _, ok := h.ownBooking(w, r, chi.URLParam(r, "bookingID"))
	if !ok {
		return
	}
	plan, err := h.Settlement.GetPlan(r.Context(), b.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanDTO(plan))
}

func (h *Handler) PayInstallment(w http.ResponseWriter, r *http.Request) {
	if _, ok := identity(w, r); !ok {
		return
	}
	session, err := h.Settlement.PayInstallment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionDTO{Session: session})
}

func (h *Handler) ConfirmInstallment(w http.ResponseWriter, r *http.Request) {
	if _, ok := identity(w, r); !ok {
		return
	}
	plan, err := h.Settlement.ConfirmInstallment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dto := toPlanDTO(plan)
	writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) InitiateFullPayment(w http.ResponseWriter, r *http.Request) {
	b, _, ok := h.ownBooking(w, r, chi.URLParam(r, "bookingID"))
	if !ok {
		return
	}
	session, plan, err := h.Settlement.InitiateFullPayment(r.Context(), b.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	planDTO := toPlanDTO(plan)
	// A nil session with a plan means the booking is already settled.
	writeJSON(w, http.StatusOK, SessionDTO{Session: session, Plan: &planDTO, Paid: session == nil})
}

func (h *Handler) ConfirmFullPayment(w http.ResponseWriter, r *http.Request) {
	b, _, ok := h.ownBooking(w, r, chi.URLParam(r, "bookingID"))
	if !ok {
		return
	}
	confirmed, err := h.Settlement.ConfirmFullPayment(r.Context(), b.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(confirmed))
}

// =============================================================================
// REFUNDS
// =============================================================================

func (h *Handler) RequestRefund(w http.ResponseWriter, r *http.Request) {
	var req RefundRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.BookingID == "" {
		writeError(w, http.StatusBadRequest, "booking_id is required")
		return
	}
	b, _, ok := h.ownBooking(w, r, req.BookingID)
	if !ok {
		return
	}
	updated, err := h.Refunds.Request(r.Context(), b.ID, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingDTO(updated))
}

func (h *Handler) ResolveRefund(w http.ResponseWriter, r *http.Request) {
	var req ResolveRefundRequest
	if !decodeBody(w, r, &req) {
		return
	}
	decision := booking.RefundStatus(req.Decision)
	if decision != booking.RefundApproved && decision != booking.RefundRejected {
		writeError(w, http.StatusBadRequest, "decision must be approved or rejected")
		return
	}
	b, err := h.Refunds.Resolve(r.Context(), chi.URLParam(r, "bookingID"), decision)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(b))
}

func (h *Handler) ProcessRefund(w http.ResponseWriter, r *http.Request) {
	b, err := h.Refunds.Process(r.Context(), chi.URLParam(r, "bookingID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(b))
}

// =============================================================================
// INVENTORY - public browse
// =============================================================================

func (h *Handler) ListFlights(w http.ResponseWriter, r *http.Request) {
	flights, err := h.Store.ListFlights(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]FlightDTO, 0, len(flights))
	for _, f := range flights {
		dtos = append(dtos, toFlightDTO(f))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ListHotels(w http.ResponseWriter, r *http.Request) {
	hotels, err := h.Store.ListHotels(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]HotelDTO, 0, len(hotels))
	for _, hotel := range hotels {
		dtos = append(dtos, toHotelDTO(hotel))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ListEntertainments(w http.ResponseWriter, r *http.Request) {
	ents, err := h.Store.ListEntertainments(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]EntertainmentDTO, 0, len(ents))
	for _, e := range ents {
		dtos = append(dtos, toEntertainmentDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ListTours(w http.ResponseWriter, r *http.Request) {
	tours, err := h.Store.ListTourPackages(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]TourPackageDTO, 0, len(tours))
	for _, t := range tours {
		dtos = append(dtos, toTourPackageDTO(t))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// INVENTORY - admin create
// =============================================================================

func parsePrice(w http.ResponseWriter, field, raw string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		writeError(w, http.StatusBadRequest, field+" must be a non-negative decimal string")
		return decimal.Zero, false
	}
	return d, true
}

func orNewID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

func (h *Handler) CreateFlight(w http.ResponseWriter, r *http.Request) {
	var req CreateFlightRequest
	if !decodeBody(w, r, &req) {
		return
	}
	eco, ok := parsePrice(w, "economy_price", req.EconomyPrice)
	if !ok {
		return
	}
	bus, ok := parsePrice(w, "business_price", req.BusinessPrice)
	if !ok {
		return
	}
	if req.EconomySeats < 0 || req.BusinessSeats < 0 {
		writeError(w, http.StatusBadRequest, "seat counts must be non-negative")
		return
	}

	f := inventory.Flight{
		ID:            orNewID(req.ID),
		AirlineName:   req.AirlineName,
		From:          req.From,
		To:            req.To,
		Date:          req.Date,
		EconomyPrice:  eco,
		BusinessPrice: bus,
		EconomySeats:  req.EconomySeats,
		BusinessSeats: req.BusinessSeats,
		EconomyTotal:  req.EconomySeats,
		BusinessTotal: req.BusinessSeats,
	}
	if err := h.Store.SaveFlight(r.Context(), f); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFlightDTO(f))
}

func (h *Handler) CreateHotel(w http.ResponseWriter, r *http.Request) {
	var req CreateHotelRequest
	if !decodeBody(w, r, &req) {
		return
	}
	price, ok := parsePrice(w, "price_per_night", req.PricePerNight)
	if !ok {
		return
	}
	if len(req.RoomTypes) == 0 {
		writeError(w, http.StatusBadRequest, "at least one room type is required")
		return
	}

	hotel := inventory.Hotel{
		ID:            orNewID(req.ID),
		Name:          req.Name,
		Location:      req.Location,
		PricePerNight: price,
	}
	for _, rt := range req.RoomTypes {
		roomPrice, ok := parsePrice(w, "room price_per_night", rt.PricePerNight)
		if !ok {
			return
		}
		if rt.Count < 0 {
			writeError(w, http.StatusBadRequest, "room count must be non-negative")
			return
		}
		hotel.RoomTypes = append(hotel.RoomTypes, inventory.RoomType{
			Name:          rt.Name,
			PricePerNight: roomPrice,
			Count:         rt.Count,
			Total:         rt.Count,
		})
		hotel.RoomsAvailable += rt.Count
		hotel.RoomsTotal += rt.Count
	}
	if err := h.Store.SaveHotel(r.Context(), hotel); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toHotelDTO(hotel))
}

func (h *Handler) CreateEntertainment(w http.ResponseWriter, r *http.Request) {
	var req CreateEntertainmentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	price, ok := parsePrice(w, "price", req.Price)
	if !ok {
		return
	}
	if req.Slots < 0 {
		writeError(w, http.StatusBadRequest, "slots must be non-negative")
		return
	}

	e := inventory.Entertainment{
		ID:         orNewID(req.ID),
		Name:       req.Name,
		Location:   req.Location,
		Price:      price,
		Slots:      req.Slots,
		SlotsTotal: req.Slots,
	}
	if err := h.Store.SaveEntertainment(r.Context(), e); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntertainmentDTO(e))
}

func (h *Handler) CreateTourPackage(w http.ResponseWriter, r *http.Request) {
	var req CreateTourPackageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	price, ok := parsePrice(w, "price", req.Price)
	if !ok {
		return
	}
	if req.Availability < 0 {
		writeError(w, http.StatusBadRequest, "availability must be non-negative")
		return
	}

	t := inventory.TourPackage{
		ID:           orNewID(req.ID),
		Title:        req.Title,
		Location:     req.Location,
		Duration:     req.Duration,
		Price:        price,
		Availability: req.Availability,
		MaxCapacity:  req.Availability,
	}
	if err := h.Store.SaveTourPackage(r.Context(), t); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTourPackageDTO(t))
}
