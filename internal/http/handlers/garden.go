package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"plantscan/internal/domain"
)

type gardenItemDTO struct {
	ID          string `json:"id"`
	SpeciesName string `json:"species_name"`
	Nickname    string `json:"nickname,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func newGardenItemDTO(item domain.GardenItem) gardenItemDTO {
	return gardenItemDTO{
		ID:          item.ID,
		SpeciesName: item.SpeciesName,
		Nickname:    item.Nickname,
		CreatedAt:   item.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (a *App) GardenList(w http.ResponseWriter, r *http.Request) {
	subject, ok := a.subject(w, r)
	if !ok {
		return
	}
	items, err := a.Gate.Garden(r.Context(), subject)
	if err != nil {
		a.fail(w, r, "garden.list", err)
		return
	}
	out := make([]gardenItemDTO, 0, len(items))
	for _, item := range items {
		out = append(out, newGardenItemDTO(item))
	}
	allowance, err := a.Gate.GardenCapacity(r.Context(), subject, len(items))
	if err != nil {
		a.fail(w, r, "garden.list", err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"items":     out,
		"capacity":  allowance.Capacity,
		"remaining": allowance.Remaining,
	})
}

type gardenAddRequest struct {
	SpeciesName string `json:"species_name"`
	Nickname    string `json:"nickname"`
}

func (a *App) GardenAdd(w http.ResponseWriter, r *http.Request) {
	subject, ok := a.subject(w, r)
	if !ok {
		return
	}
	var req gardenAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", msgInvalidPayload)
		return
	}
	if strings.TrimSpace(req.SpeciesName) == "" {
		a.error(w, r, http.StatusBadRequest, "bad_request", msgSpeciesRequired)
		return
	}
	item, err := a.Gate.AddToGarden(r.Context(), subject, domain.GardenItem{
		SpeciesName: req.SpeciesName,
		Nickname:    strings.TrimSpace(req.Nickname),
	})
	if err != nil {
		a.fail(w, r, "garden.add", err)
		return
	}
	a.json(w, http.StatusCreated, newGardenItemDTO(*item))
}

func (a *App) GardenDelete(w http.ResponseWriter, r *http.Request) {
	subject, ok := a.subject(w, r)
	if !ok {
		return
	}
	if err := a.Gate.RemoveFromGarden(r.Context(), subject, chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, "garden.delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type capacityRequest struct {
	CurrentSize int `json:"current_size"`
}

// GardenCapacity answers whether one more plant fits, for clients that keep
// their collection on device.
func (a *App) GardenCapacity(w http.ResponseWriter, r *http.Request) {
	subject, ok := a.subject(w, r)
	if !ok {
		return
	}
	var req capacityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CurrentSize < 0 {
		a.error(w, r, http.StatusBadRequest, "bad_request", msgInvalidPayload)
		return
	}
	allowance, err := a.Gate.GardenCapacity(r.Context(), subject, req.CurrentSize)
	if err != nil {
		a.fail(w, r, "garden.capacity", err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"allowed":   allowance.Allowed,
		"remaining": allowance.Remaining,
		"capacity":  allowance.Capacity,
	})
}
