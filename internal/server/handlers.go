package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/combiapp/combiapp/internal/domain"
	"github.com/combiapp/combiapp/internal/service"
)

// API response types
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type DayResponse struct {
	Name string `json:"name"`
	Date string `json:"date"`
	Key  string `json:"key"`
}

type ScheduleResponse struct {
	Email  string                         `json:"email"`
	Nombre string                         `json:"nombre,omitempty"`
	Dias   map[string]*domain.DaySchedule `json:"dias"`
}

type SaveScheduleRequest struct {
	Nombre string                         `json:"nombre"`
	Dias   map[string]*domain.DaySchedule `json:"dias"`
}

type StopGroup struct {
	Parada    string   `json:"parada"`
	Pasajeros []string `json:"pasajeros"`
}

type LegRosterResponse struct {
	ByStop       []StopGroup `json:"byStop"`
	NotTraveling []string    `json:"notTraveling"`
	Unanswered   []string    `json:"unanswered"`
	Malformed    []string    `json:"malformed,omitempty"`

	ConfirmedReturn []string `json:"confirmedReturn,omitempty"`
	NoReturn        []string `json:"noReturn,omitempty"`
	ReturnPending   []string `json:"returnPending,omitempty"`
}

type RosterResponse struct {
	Day    string            `json:"day"`
	Date   string            `json:"date"`
	Ida    LegRosterResponse `json:"ida"`
	Vuelta LegRosterResponse `json:"vuelta"`
}

type ChatMessageRequest struct {
	Text string `json:"text"`
}

type ChatMessageResponse struct {
	ID         int64  `json:"id"`
	SenderName string `json:"senderName"`
	Text       string `json:"text"`
	CreatedAt  string `json:"createdAt"`
}

type BroadcastRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type TokenRequest struct {
	Token string `json:"token"`
}

type StopsResponse struct {
	Ida    []domain.Stop `json:"ida"`
	Vuelta []domain.Stop `json:"vuelta"`
}

func writeJSON(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("api: encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{Success: false, Error: msg})
}

// userEmail returns the verified identity forwarded by the auth layer.
func userEmail(r *http.Request) string {
	return strings.ToLower(strings.TrimSpace(r.Header.Get("X-User-Email")))
}

func userName(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-User-Name"))
}

func (s *Server) window() []domain.DayWindow {
	return domain.WeekWindow(s.now().In(s.cfg.Timezone))
}

func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	var days []DayResponse
	for _, d := range s.window() {
		days = append(days, DayResponse{Name: d.Name(), Date: d.Date, Key: d.Name()})
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: days})
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	email := userEmail(r)
	if email == "" {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	sched, err := s.schedules.Get(email)
	if err != nil {
		log.Printf("api: loading schedule for %s: %v", email, err)
		writeError(w, http.StatusInternalServerError, "could not load schedule")
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: scheduleToWire(sched)})
}

func (s *Server) handleSaveSchedule(w http.ResponseWriter, r *http.Request) {
	email := userEmail(r)
	if email == "" {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	var req SaveScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	dias, err := daysFromWire(req.Dias)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	name := req.Nombre
	if name == "" {
		name = userName(r)
	}

	sched, err := s.schedules.Save(email, name, dias)
	if err != nil {
		// The rider must see their save failed.
		log.Printf("api: saving schedule for %s: %v", email, err)
		writeError(w, http.StatusInternalServerError, "could not save schedule")
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: scheduleToWire(sched)})
}

func (s *Server) handleSetToken(w http.ResponseWriter, r *http.Request) {
	email := userEmail(r)
	if email == "" {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	if name := userName(r); name != "" {
		if err := s.storage.UpsertUser(email, name); err != nil {
			log.Printf("api: upserting user %s: %v", email, err)
		}
	}
	if err := s.storage.SetPushToken(email, req.Token); err != nil {
		log.Printf("api: setting token for %s: %v", email, err)
		writeError(w, http.StatusInternalServerError, "could not register token")
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Success: true})
}

func (s *Server) handleRoster(w http.ResponseWriter, r *http.Request) {
	dayName := chi.URLParam(r, "day")
	day, ok := domain.ParseWeekday(dayName)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown day: "+dayName)
		return
	}

	var target domain.DayWindow
	for _, d := range s.window() {
		if d.Day == day {
			target = d
			break
		}
	}

	ida, vuelta, err := s.rosters.ForDay(target)
	if err != nil {
		log.Printf("api: aggregating roster for %s: %v", target.Name(), err)
		writeError(w, http.StatusInternalServerError, "could not compute roster")
		return
	}

	resp := RosterResponse{
		Day:    target.Name(),
		Date:   target.Date,
		Ida:    legRosterToWire(ida),
		Vuelta: legRosterToWire(vuelta),
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: resp})
}

func (s *Server) handleListChat(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	msgs, err := s.storage.ListChatMessages(limit)
	if err != nil {
		log.Printf("api: listing chat messages: %v", err)
		writeError(w, http.StatusInternalServerError, "could not load messages")
		return
	}

	out := make([]ChatMessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ChatMessageResponse{
			ID:         m.ID,
			SenderName: m.SenderName,
			Text:       m.Text,
			CreatedAt:  m.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: out})
}

func (s *Server) handlePostChat(w http.ResponseWriter, r *http.Request) {
	email := userEmail(r)
	if email == "" {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	var req ChatMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	msg := &domain.ChatMessage{
		SenderEmail: email,
		SenderName:  userName(r),
		Text:        strings.TrimSpace(req.Text),
	}
	if err := s.storage.CreateChatMessage(msg); err != nil {
		log.Printf("api: storing chat message: %v", err)
		writeError(w, http.StatusInternalServerError, "could not store message")
		return
	}

	// Fan-out is best-effort; the message is already stored.
	s.notify.OnChatMessageCreated(msg)

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: ChatMessageResponse{
		ID:         msg.ID,
		SenderName: msg.SenderName,
		Text:       msg.Text,
		CreatedAt:  msg.CreatedAt.Format("2006-01-02 15:04:05"),
	}})
}

func (s *Server) handleGetStops(w http.ResponseWriter, r *http.Request) {
	ida, err := s.stops.List(domain.LegIda)
	if err != nil {
		log.Printf("api: loading ida stops: %v", err)
		writeError(w, http.StatusInternalServerError, "could not load stops")
		return
	}
	vuelta, err := s.stops.List(domain.LegVuelta)
	if err != nil {
		log.Printf("api: loading vuelta stops: %v", err)
		writeError(w, http.StatusInternalServerError, "could not load stops")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: StopsResponse{Ida: ida, Vuelta: vuelta}})
}

func (s *Server) handlePutStops(w http.ResponseWriter, r *http.Request) {
	email := userEmail(r)
	if email == "" {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}
	admin, err := s.notify.IsAdmin(email)
	if err != nil {
		log.Printf("api: checking admin for %s: %v", email, err)
		writeError(w, http.StatusInternalServerError, "could not check permissions")
		return
	}
	if !admin {
		writeError(w, http.StatusForbidden, "admins only")
		return
	}

	var req StopsResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.stops.Replace(domain.LegIda, req.Ida); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.stops.Replace(domain.LegVuelta, req.Vuelta); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Success: true})
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	email := userEmail(r)
	if email == "" {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	var req BroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := s.notify.Broadcast(r.Context(), email, req.Title, req.Body)
	switch {
	case errors.Is(err, service.ErrMissingTitleBody):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, service.ErrNotAuthorized):
		writeError(w, http.StatusForbidden, err.Error())
		return
	case err != nil:
		log.Printf("api: broadcast from %s: %v", email, err)
		writeError(w, http.StatusInternalServerError, "could not send broadcast")
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: res})
}

// --- wire conversion ---

func scheduleToWire(sched *domain.RiderSchedule) ScheduleResponse {
	dias := make(map[string]*domain.DaySchedule, len(sched.Dias))
	for day, ds := range sched.Dias {
		dias[day.Name()] = ds
	}
	return ScheduleResponse{Email: sched.Email, Nombre: sched.Nombre, Dias: dias}
}

func daysFromWire(wire map[string]*domain.DaySchedule) (map[domain.Weekday]*domain.DaySchedule, error) {
	dias := make(map[domain.Weekday]*domain.DaySchedule, len(wire))
	for name, ds := range wire {
		day, ok := domain.ParseWeekday(name)
		if !ok {
			return nil, errors.New("unknown day: " + name)
		}
		if ds != nil {
			dias[day] = ds
		}
	}
	return dias, nil
}

func legRosterToWire(ros *domain.Roster) LegRosterResponse {
	out := LegRosterResponse{
		ByStop:       make([]StopGroup, 0, len(ros.Stops)),
		NotTraveling: riderNames(ros.NotTraveling),
		Unanswered:   riderNames(ros.Unanswered),
		Malformed:    riderNames(ros.Malformed),
	}
	for _, stop := range ros.Stops {
		out.ByStop = append(out.ByStop, StopGroup{
			Parada:    stop,
			Pasajeros: riderNames(ros.ByStop[stop]),
		})
	}
	if ros.Leg == domain.LegVuelta {
		out.ConfirmedReturn = riderNames(ros.ConfirmedReturn)
		out.NoReturn = riderNames(ros.NoReturn)
		out.ReturnPending = riderNames(ros.ReturnPending)
	}
	return out
}

func riderNames(riders []domain.RiderRef) []string {
	names := make([]string, 0, len(riders))
	for _, r := range riders {
		names = append(names, r.Name)
	}
	return names
}
