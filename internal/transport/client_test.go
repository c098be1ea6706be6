package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nauticalflow/vessel-manager/internal/models"
)

func TestListFuelTypes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fuel-types" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token123" {
			t.Errorf("authorization = %q", got)
		}
		json.NewEncoder(w).Encode([]models.FuelType{{ID: 1, Name: "MGO"}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "token123")
	fuelTypes, err := c.ListFuelTypes(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(fuelTypes) != 1 || fuelTypes[0].Name != "MGO" {
		t.Errorf("fuel types = %+v", fuelTypes)
	}
}

func TestCreateCruiseShipSendsCurve(t *testing.T) {
	var received models.ShipPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/cruise-ships" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Error(err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	payload := &models.ShipPayload{
		Name:                 "Baltic Star",
		GrossTonnage:         15690,
		FuelConsumptionCurve: models.Curve{{Speed: 0, Consumption: 0.707}},
	}
	if err := c.CreateCruiseShip(context.Background(), payload); err != nil {
		t.Fatal(err)
	}
	if received.Name != "Baltic Star" || len(received.FuelConsumptionCurve) != 1 {
		t.Errorf("received payload = %+v", received)
	}
}

func TestErrorBodySurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"name already exists"}`, http.StatusConflict)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	err := c.CreateCruiseShip(context.Background(), &models.ShipPayload{Name: "Dup"})
	if err == nil {
		t.Fatal("expected error")
	}
}
