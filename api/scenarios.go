/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built scenarios that populate the database with realistic
  inventory for testing and demos. Each scenario resets the database and
  seeds the items that demonstrate a specific flow.

AVAILABLE SCENARIOS:

	city-break:     One flight, one hotel, one show - simple bookings
	round-trip:     Chained flights with hotels at the final destination
	package-tour:   Tour packages with limited availability

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Seed the scenario's inventory

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "round-trip"}

NOTE:
  Scenarios reset the database. Only use in development/demo
  environments; the routes sit behind the admin gate.

SEE ALSO:
  - server.go: route registration under /api/admin/scenarios
*/
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/voyago/travel-engine/inventory"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// ScenarioDTO describes one loadable demo dataset.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "city-break",
		Name:        "City Break",
		Description: "One flight, one hotel, one show - simple single-item bookings",
	},
	{
		ID:          "round-trip",
		Name:        "Round Trip",
		Description: "Chained flights with hotels and shows at the final destination",
	},
	{
		ID:          "package-tour",
		Name:        "Package Tour",
		Description: "Tour packages with limited availability for capacity demos",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario resets the database and seeds the requested scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var load func(context.Context, *Handler) error
	switch req.ScenarioID {
	case "city-break":
		load = loadCityBreakScenario
	case "round-trip":
		load = loadRoundTripScenario
	case "package-tour":
		load = loadPackageTourScenario
	default:
		writeError(w, http.StatusBadRequest, "unknown scenario "+req.ScenarioID)
		return
	}

	if err := h.Store.Reset(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := load(r.Context(), h); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"loaded": req.ScenarioID})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func loadCityBreakScenario(ctx context.Context, h *Handler) error {
	departure := time.Now().AddDate(0, 1, 0)

	if err := h.Store.SaveFlight(ctx, inventory.Flight{
		ID: "fl-city-1", AirlineName: "Aurora Air", From: "Berlin", To: "Lisbon",
		Date:         departure,
		EconomyPrice: price("129.00"), BusinessPrice: price("389.00"),
		EconomySeats: 120, BusinessSeats: 12,
		EconomyTotal: 120, BusinessTotal: 12,
	}); err != nil {
		return err
	}

	if err := h.Store.SaveHotel(ctx, inventory.Hotel{
		ID: "ho-city-1", Name: "Alfama Terrace", Location: "Lisbon",
		PricePerNight:  price("95.00"),
		RoomsAvailable: 18, RoomsTotal: 18,
		RoomTypes: []inventory.RoomType{
			{Name: "standard", PricePerNight: price("95.00"), Count: 12, Total: 12},
			{Name: "suite", PricePerNight: price("210.00"), Count: 6, Total: 6},
		},
	}); err != nil {
		return err
	}

	return h.Store.SaveEntertainment(ctx, inventory.Entertainment{
		ID: "en-city-1", Name: "Fado Night", Location: "Lisbon",
		Price: price("35.00"), Slots: 40, SlotsTotal: 40,
	})
}

func loadRoundTripScenario(ctx context.Context, h *Handler) error {
	base := time.Now().AddDate(0, 1, 0)

	legs := []inventory.Flight{
		{
			ID: "fl-leg-1", AirlineName: "Aurora Air", From: "Berlin", To: "Rome",
			Date:         base,
			EconomyPrice: price("110.00"), BusinessPrice: price("320.00"),
			EconomySeats: 100, BusinessSeats: 10, EconomyTotal: 100, BusinessTotal: 10,
		},
		{
			ID: "fl-leg-2", AirlineName: "Aurora Air", From: "Rome", To: "Athens",
			Date:         base.AddDate(0, 0, 4),
			EconomyPrice: price("95.00"), BusinessPrice: price("280.00"),
			EconomySeats: 80, BusinessSeats: 8, EconomyTotal: 80, BusinessTotal: 8,
		},
	}
	for _, f := range legs {
		if err := h.Store.SaveFlight(ctx, f); err != nil {
			return err
		}
	}

	if err := h.Store.SaveHotel(ctx, inventory.Hotel{
		ID: "ho-trip-1", Name: "Plaka View", Location: "Athens",
		PricePerNight:  price("120.00"),
		RoomsAvailable: 10, RoomsTotal: 10,
		RoomTypes: []inventory.RoomType{
			{Name: "double", PricePerNight: price("120.00"), Count: 10, Total: 10},
		},
	}); err != nil {
		return err
	}

	return h.Store.SaveEntertainment(ctx, inventory.Entertainment{
		ID: "en-trip-1", Name: "Acropolis Tour", Location: "Athens",
		Price: price("28.00"), Slots: 25, SlotsTotal: 25,
	})
}

func loadPackageTourScenario(ctx context.Context, h *Handler) error {
	tours := []inventory.TourPackage{
		{
			ID: "tp-1", Title: "Andes Trek", Location: "Cusco", Duration: "7 days",
			Price: price("1450.00"), Availability: 8, MaxCapacity: 8,
		},
		{
			ID: "tp-2", Title: "Sahara Caravan", Location: "Merzouga", Duration: "4 days",
			Price: price("780.00"), Availability: 2, MaxCapacity: 2,
		},
	}
	for _, t := range tours {
		if err := h.Store.SaveTourPackage(ctx, t); err != nil {
			return err
		}
	}
	return nil
}
