// Package httpapi exposes the shopping consolidation engine to the web UI.
package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"chalet-planner/internal/app"
	"chalet-planner/internal/quantity"
	"chalet-planner/internal/shopping"

	"github.com/gorilla/mux"
)

// Router holds the handlers' shared dependencies.
type Router struct {
	app *app.App
}

// NewRouter builds the API routes.
func NewRouter(a *app.App) *mux.Router {
	rt := &Router{app: a}

	r := mux.NewRouter()
	r.HandleFunc("/api/shopping-list", rt.getShoppingList).Methods("GET")
	r.HandleFunc("/api/shopping-list/refresh", rt.refreshGrouping).Methods("POST")
	r.HandleFunc("/api/shopping-list/{groupKey}/toggle", rt.toggleGroup).Methods("POST")
	r.HandleFunc("/api/meals/{date}/items", rt.addItem).Methods("POST")
	r.HandleFunc("/api/meals/{date}/items/{itemID}", rt.removeItem).Methods("DELETE")
	r.HandleFunc("/api/meals/{date}/estimate", rt.estimateMeal).Methods("POST")
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return r
}

func (rt *Router) getShoppingList(w http.ResponseWriter, req *http.Request) {
	groups, err := rt.app.ConsolidatedList(req.Context())
	if err != nil {
		log.Printf("Failed to consolidate shopping list: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to build shopping list")
		return
	}
	respondJSON(w, http.StatusOK, groups)
}

func (rt *Router) refreshGrouping(w http.ResponseWriter, req *http.Request) {
	if err := rt.app.RefreshGrouping(req.Context()); err != nil {
		log.Printf("Grouping refresh failed: %v", err)
		// The previous grouping stays in use; clients may retry.
		respondError(w, http.StatusBadGateway, "Grouping refresh failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

func (rt *Router) toggleGroup(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)
	report, err := rt.app.ToggleGroup(req.Context(), vars["groupKey"])
	if err != nil {
		if report.Attempted == 0 {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("Partial toggle of group %s: %v", vars["groupKey"], err)
		// Partially applied; the next read reflects actual state.
		respondJSON(w, http.StatusMultiStatus, report)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

type addItemRequest struct {
	MealLabel string        `json:"mealLabel"`
	Text      string        `json:"text"`
	Quantity  *float64      `json:"quantity,omitempty"`
	Unit      quantity.Unit `json:"unit,omitempty"`
}

func (rt *Router) addItem(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)

	var body addItemRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	item, err := rt.app.AddItem(req.Context(), shopping.SourceItem{
		Date:      vars["date"],
		MealLabel: body.MealLabel,
		Text:      body.Text,
		Quantity:  body.Quantity,
		Unit:      body.Unit,
	})
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, item)
}

func (rt *Router) removeItem(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)
	if err := rt.app.RemoveItem(req.Context(), vars["date"], vars["itemID"]); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

type estimateRequest struct {
	MealLabel string `json:"mealLabel"`
	Headcount int    `json:"headcount"`
}

func (rt *Router) estimateMeal(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)

	var body estimateRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	if body.Headcount <= 0 {
		respondError(w, http.StatusBadRequest, "headcount must be positive, got "+strconv.Itoa(body.Headcount))
		return
	}

	updated, err := rt.app.EstimateMeal(req.Context(), vars["date"], body.MealLabel, body.Headcount)
	if err != nil {
		log.Printf("Quantity estimation failed: %v", err)
		respondError(w, http.StatusBadGateway, "Quantity estimation failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"updated": updated})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
