package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"plantscan/internal/domain"
	"plantscan/internal/gate"
	"plantscan/internal/middleware"
)

var acceptedImageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
}

type identifyJSONRequest struct {
	Image     string   `json:"image"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type decisionDTO struct {
	Kind             gate.Kind       `json:"kind"`
	Tier             domain.PlanTier `json:"tier"`
	Remaining        int             `json:"remaining"`
	Limit            int             `json:"limit"`
	Used             int             `json:"used"`
	DayKey           string          `json:"day_key"`
	ResetsAt         *time.Time      `json:"resets_at,omitempty"`
	CanEarnBonus     bool            `json:"can_earn_bonus"`
	StaleEntitlement bool            `json:"stale_entitlement,omitempty"`
}

func newDecisionDTO(d gate.Decision) decisionDTO {
	out := decisionDTO{
		Kind:             d.Kind,
		Tier:             d.Tier,
		Remaining:        d.Remaining,
		Limit:            d.Limit,
		Used:             d.Used,
		DayKey:           d.DayKey,
		CanEarnBonus:     d.CanEarnBonus,
		StaleEntitlement: d.StaleEntitlement,
	}
	if !d.ResetsAt.IsZero() {
		at := d.ResetsAt
		out.ResetsAt = &at
	}
	return out
}

type identifyResponse struct {
	Identification *domain.Identification `json:"identification"`
	Counted        bool                   `json:"counted"`
	Decision       decisionDTO            `json:"decision"`
	RemainingAfter int                    `json:"remaining_after"`
}

// Identify runs one gated identification. The image is sent either as a
// multipart "image" file or as base64 in a JSON body.
func (a *App) Identify(w http.ResponseWriter, r *http.Request) {
	subject, ok := a.subject(w, r)
	if !ok {
		return
	}
	if a.Identifier == nil {
		a.fail(w, r, "identify", domain.ErrConfiguration)
		return
	}
	img, status, msg, args := a.readImage(w, r)
	if msg != "" {
		a.error(w, r, status, "bad_request", msg, args...)
		return
	}

	out, err := a.Gate.Identify(r.Context(), subject, gate.Request{
		Image:     img,
		RequestID: middleware.RequestIDFromContext(r.Context()),
	}, a.Identifier)
	if err != nil {
		a.fail(w, r, "identify", err)
		return
	}

	d := out.Decision
	switch d.Kind {
	case gate.KindDeniedFreeExhausted:
		key := msgQuotaExhausted
		if d.CanEarnBonus {
			key = msgQuotaExhaustedBonus
		}
		a.json(w, http.StatusTooManyRequests, map[string]any{
			"error":    errorBody{Code: "quota_exhausted", Message: localize(r.Context(), key, d.Limit)},
			"decision": newDecisionDTO(d),
		})
		return
	case gate.KindDeniedSubscriptionExhausted:
		if wait := time.Until(d.ResetsAt); wait > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		}
		a.json(w, http.StatusTooManyRequests, map[string]any{
			"error":    errorBody{Code: "subscription_exhausted", Message: localize(r.Context(), msgSubscriptionExhausted, d.Limit)},
			"decision": newDecisionDTO(d),
		})
		return
	}

	remaining := d.Remaining
	if out.Counted && remaining > 0 {
		remaining--
	}
	a.json(w, http.StatusOK, identifyResponse{
		Identification: out.Identification,
		Counted:        out.Counted,
		Decision:       newDecisionDTO(d),
		RemainingAfter: remaining,
	})
}

// readImage extracts the image from the request. A non-empty msg is a client
// error to report with status.
func (a *App) readImage(w http.ResponseWriter, r *http.Request) (domain.ImageHandle, int, string, []any) {
	limit := a.maxImageBytes()
	// base64 inflates by 4/3; leave room for the envelope.
	r.Body = http.MaxBytesReader(w, r.Body, limit*4/3+64<<10)

	var (
		data     []byte
		lat, lng *float64
		err      error
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case strings.HasPrefix(mediaType, "multipart/"):
		if err = r.ParseMultipartForm(limit); err != nil {
			break
		}
		file, _, ferr := r.FormFile("image")
		if ferr != nil {
			return domain.ImageHandle{}, http.StatusBadRequest, msgImageRequired, nil
		}
		defer file.Close()
		data, err = io.ReadAll(io.LimitReader(file, limit+1))
		lat = parseCoordinate(r.FormValue("latitude"))
		lng = parseCoordinate(r.FormValue("longitude"))
	default:
		var req identifyJSONRequest
		if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
			break
		}
		raw := req.Image
		if i := strings.Index(raw, ";base64,"); strings.HasPrefix(raw, "data:") && i > 0 {
			raw = raw[i+len(";base64,"):]
		}
		data, err = base64.StdEncoding.DecodeString(raw)
		lat, lng = req.Latitude, req.Longitude
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.ImageHandle{}, http.StatusRequestEntityTooLarge, msgImageTooLarge, []any{limit}
		}
		return domain.ImageHandle{}, http.StatusBadRequest, msgInvalidPayload, nil
	}
	if len(data) == 0 {
		return domain.ImageHandle{}, http.StatusBadRequest, msgImageRequired, nil
	}
	if int64(len(data)) > limit {
		return domain.ImageHandle{}, http.StatusRequestEntityTooLarge, msgImageTooLarge, []any{limit}
	}
	contentType := http.DetectContentType(data)
	if _, ok := acceptedImageTypes[contentType]; !ok {
		return domain.ImageHandle{}, http.StatusUnsupportedMediaType, msgUnsupportedImage, []any{contentType}
	}
	return domain.ImageHandle{Data: data, MIMEType: contentType, Latitude: lat, Longitude: lng}, 0, "", nil
}

func parseCoordinate(v string) *float64 {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
