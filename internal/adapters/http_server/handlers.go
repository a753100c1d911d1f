package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"hotel_inventory/internal/app"
	"hotel_inventory/internal/domain"
)

type Handlers struct {
	E *app.Engine
	Q *app.QueryService
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Route("/v1/rooms", func(r chi.Router) {
		r.Get("/", h.listRooms)
		r.Post("/", h.provisionRoom)
		r.Get("/{id}", h.getRoom)
		r.Get("/{id}/availability", h.checkAvailability)
		r.Get("/{id}/intervals", h.roomIntervals)
		r.Post("/{id}/block", h.blockRoom)
		r.Post("/{id}/override", h.overrideRoom)
		r.Post("/{id}/unblock", h.unblockRoom)
		r.Post("/{id}/refresh", h.refreshRoom)
	})
	s.mux.Get("/v1/availability", h.availableRooms)

	s.mux.Route("/v1/bookings", func(r chi.Router) {
		r.Get("/", h.listBookings)
		r.Post("/", h.createBooking)
		r.Get("/{id}", h.getBooking)
		r.Post("/{id}/confirm", h.bookingAction(h.E.ConfirmBooking))
		r.Post("/{id}/reject", h.rejectBooking)
		r.Post("/{id}/check-in", h.bookingAction(h.E.CheckIn))
		r.Post("/{id}/check-out", h.bookingAction(h.E.CheckOut))
		r.Post("/{id}/no-show", h.bookingAction(h.E.MarkNoShow))
		r.Post("/{id}/cancel", h.cancelBooking)
		r.Post("/{id}/extend", h.extendBooking)
		r.Post("/{id}/transfer", h.transferBooking)
		r.Post("/{id}/payments", h.recordPayment)
	})
}

// ---- responses ----

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	writeProblemBody(w, problem{Type: "about:blank", Title: title, Status: status, Detail: detail})
}

func writeProblemBody(w http.ResponseWriter, p problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps engine errors: rejections become 4xx carrying the reason
// code, lock timeouts 503, anything else 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if rej, ok := domain.AsRejection(err); ok {
		status := http.StatusConflict
		switch rej.Reason.Class() {
		case domain.ClassValidation:
			status = http.StatusUnprocessableEntity
		case domain.ClassNotFound:
			status = http.StatusNotFound
		}
		writeProblemBody(w, problem{
			Type:   "urn:hotel:reason:" + strings.ToLower(string(rej.Reason)),
			Title:  string(rej.Reason),
			Status: status,
			Detail: rej.Detail,
			Reason: string(rej.Reason),
		})
		return
	}
	if errors.Is(err, domain.ErrLockTimeout) || errors.Is(err, context.DeadlineExceeded) {
		w.Header().Set("Retry-After", "1")
		writeProblemBody(w, problem{Type: "about:blank", Title: "Try Again Later", Status: http.StatusServiceUnavailable,
			Detail: "room is busy", Reason: "LOCK_TIMEOUT"})
		return
	}
	log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeProblem(w, http.StatusBadRequest, "Invalid body", err.Error())
		return false
	}
	return true
}

func parseDate(w http.ResponseWriter, name, v string) (time.Time, bool) {
	t, err := time.Parse(domain.DateLayout, v)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid "+name, name+" must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return t, true
}

func parseStay(w http.ResponseWriter, checkIn, checkOut string) (domain.Interval, bool) {
	in, ok := parseDate(w, "check_in", checkIn)
	if !ok {
		return domain.Interval{}, false
	}
	out, ok := parseDate(w, "check_out", checkOut)
	if !ok {
		return domain.Interval{}, false
	}
	return domain.NewInterval(in, out), true
}

func parseGuests(w http.ResponseWriter, v string) (int, bool) {
	if v == "" {
		return 1, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid guests", "guests must be an integer")
		return 0, false
	}
	return n, true
}

// ---- rooms ----

func (h *Handlers) listRooms(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := domain.RoomsQuery{
		Building: q.Get("building"),
		Type:     domain.RoomType(q.Get("type")),
		Status:   domain.RoomStatus(q.Get("status")),
	}
	if fs := q.Get("floor"); fs != "" {
		n, err := strconv.Atoi(fs)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid floor", "floor must be an integer")
			return
		}
		f.Floor = n
	}
	rooms, err := h.Q.ListRooms(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": rooms})
}

type roomRequest struct {
	ID          string          `json:"id"`
	Number      string          `json:"number"`
	Building    string          `json:"building"`
	Floor       int             `json:"floor"`
	Capacity    int             `json:"capacity"`
	Type        domain.RoomType `json:"type"`
	NightlyRate float64         `json:"nightly_rate"`
	Description string          `json:"description"`
	Amenities   []string        `json:"amenities"`
}

func (h *Handlers) provisionRoom(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if !decode(w, r, &req) {
		return
	}
	room, err := h.E.ProvisionRoom(r.Context(), domain.Room{
		ID: req.ID, Number: req.Number, Building: req.Building, Floor: req.Floor, Capacity: req.Capacity,
		Type: req.Type, NightlyRate: req.NightlyRate, Description: req.Description, Amenities: req.Amenities,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

func (h *Handlers) getRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.Q.GetRoom(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	etag, body := calcETagAndBody(room)
	// If client already has this version, short-circuit.
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write getRoom body")
	}
}

func (h *Handlers) checkAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s, ok := parseStay(w, q.Get("check_in"), q.Get("check_out"))
	if !ok {
		return
	}
	guests, ok := parseGuests(w, q.Get("guests"))
	if !ok {
		return
	}
	a, err := h.E.CheckAvailability(r.Context(), chi.URLParam(r, "id"), s, guests)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handlers) availableRooms(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s, ok := parseStay(w, q.Get("check_in"), q.Get("check_out"))
	if !ok {
		return
	}
	guests, ok := parseGuests(w, q.Get("guests"))
	if !ok {
		return
	}
	rooms, err := h.Q.AvailableRooms(r.Context(), s, guests)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": rooms})
}

func (h *Handlers) roomIntervals(w http.ResponseWriter, r *http.Request) {
	seq, err := h.E.RoomIntervals(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	items := slices.Collect(seq)
	if items == nil {
		items = []app.Claim{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type overrideRequest struct {
	Status domain.RoomStatus `json:"status"`
	Reason string            `json:"reason"`
}

func (h *Handlers) blockRoom(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if !decode(w, r, &req) {
		return
	}
	room, err := h.E.BlockRoom(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (h *Handlers) overrideRoom(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if !decode(w, r, &req) {
		return
	}
	room, err := h.E.SetRoomOverride(r.Context(), chi.URLParam(r, "id"), req.Status, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (h *Handlers) unblockRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.E.UnblockRoom(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (h *Handlers) refreshRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.E.RefreshRoom(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// ---- bookings ----

type bookingRequest struct {
	RoomID              string  `json:"room_id"`
	GuestID             string  `json:"guest_id"`
	SecondGuestID       string  `json:"second_guest_id"`
	CheckIn             string  `json:"check_in"`
	CheckOut            string  `json:"check_out"`
	Guests              *int    `json:"guests"` // defaults to 1
	TotalAmount         float64 `json:"total_amount"`
	Notes               string  `json:"notes"`
	RequireConfirmation bool    `json:"require_confirmation"`
}

func (h *Handlers) createBooking(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if !decode(w, r, &req) {
		return
	}
	if req.RoomID == "" || req.GuestID == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "room_id and guest_id are required")
		return
	}
	s, ok := parseStay(w, req.CheckIn, req.CheckOut)
	if !ok {
		return
	}
	guests := 1
	if req.Guests != nil {
		guests = *req.Guests
	}
	b, err := h.E.CreateBooking(r.Context(), domain.ReservationRequest{
		RoomID:              req.RoomID,
		GuestID:             req.GuestID,
		SecondGuestID:       req.SecondGuestID,
		Stay:                s,
		Guests:              guests,
		TotalAmount:         req.TotalAmount,
		Notes:               req.Notes,
		Token:               r.Header.Get("Idempotency-Key"),
		RequireConfirmation: req.RequireConfirmation,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/bookings/"+b.ID)
	writeJSON(w, http.StatusCreated, b)
}

func (h *Handlers) listBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := h.E.ListBookings(r.Context(), domain.BookingsQuery{
		RoomID:  q.Get("room_id"),
		GuestID: q.Get("guest_id"),
		Status:  domain.BookingStatus(q.Get("status")),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (h *Handlers) getBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.E.GetBooking(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// bookingAction serves transitions that take only the booking id.
func (h *Handlers) bookingAction(fn func(ctx context.Context, id string) (domain.Booking, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := fn(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

func (h *Handlers) rejectBooking(w http.ResponseWriter, r *http.Request) {
	if err := h.E.RejectBooking(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) cancelBooking(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if !decode(w, r, &req) {
		return
	}
	b, err := h.E.CancelBooking(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handlers) extendBooking(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CheckOut string `json:"check_out"`
	}
	if !decode(w, r, &req) {
		return
	}
	out, ok := parseDate(w, "check_out", req.CheckOut)
	if !ok {
		return
	}
	b, err := h.E.ExtendBooking(r.Context(), chi.URLParam(r, "id"), out)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handlers) transferBooking(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RoomID string `json:"room_id"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.RoomID == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "room_id is required")
		return
	}
	b, err := h.E.TransferBooking(r.Context(), chi.URLParam(r, "id"), req.RoomID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handlers) recordPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount float64 `json:"amount"`
	}
	if !decode(w, r, &req) {
		return
	}
	b, err := h.E.RecordPayment(r.Context(), chi.URLParam(r, "id"), req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}
