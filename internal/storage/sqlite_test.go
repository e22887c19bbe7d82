package storage

import (
	"path/filepath"
	"testing"

	"github.com/combiapp/combiapp/internal/domain"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func boolPtr(v bool) *bool { return &v }

func TestUserDirectory(t *testing.T) {
	s := newTestStorage(t)

	u, err := s.GetUser("ana@x")
	if err != nil {
		t.Fatalf("get unknown user: %v", err)
	}
	if u != nil {
		t.Fatalf("unknown user = %+v, want nil", u)
	}

	if err := s.UpsertUser("ana@x", "Ana"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.SetPushToken("ana@x", "tok-a"); err != nil {
		t.Fatalf("set token: %v", err)
	}
	if err := s.SetAdmin("ana@x", true); err != nil {
		t.Fatalf("set admin: %v", err)
	}

	// re-upserting the name must not disturb token or admin flag
	if err := s.UpsertUser("ana@x", "Ana María"); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	u, err = s.GetUser("ana@x")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if u.Name != "Ana María" || u.PushToken != "tok-a" || !u.IsAdmin {
		t.Errorf("user = %+v", u)
	}

	if err := s.ClearPushToken("ana@x"); err != nil {
		t.Fatalf("clear token: %v", err)
	}
	u, _ = s.GetUser("ana@x")
	if u.PushToken != "" {
		t.Errorf("token not cleared: %q", u.PushToken)
	}
}

func TestSetPushTokenCreatesDirectoryRow(t *testing.T) {
	s := newTestStorage(t)

	if err := s.SetPushToken("nuevo@x", "tok-n"); err != nil {
		t.Fatalf("set token: %v", err)
	}
	u, err := s.GetUser("nuevo@x")
	if err != nil || u == nil {
		t.Fatalf("get: %v, %v", u, err)
	}
	if u.PushToken != "tok-n" {
		t.Errorf("token = %q", u.PushToken)
	}
}

func TestGetScheduleUnknownRider(t *testing.T) {
	s := newTestStorage(t)

	sched, err := s.GetSchedule("nadie@x")
	if err != nil {
		t.Fatalf("get schedule: %v", err)
	}
	if sched.Email != "nadie@x" || len(sched.Dias) != 0 {
		t.Errorf("schedule = %+v", sched)
	}
}

func TestSaveScheduleRoundTrip(t *testing.T) {
	s := newTestStorage(t)

	in := &domain.RiderSchedule{
		Email:  "ana@x",
		Nombre: "Ana",
		Dias: map[domain.Weekday]*domain.DaySchedule{
			domain.Lunes: {
				Ida:    &domain.LegEntry{Usar: boolPtr(true), Parada: "Congreso", Recurrente: true},
				Vuelta: &domain.LegEntry{Usar: boolPtr(false), Fecha: "13/01/2025"},
			},
			domain.Martes: {
				Ida: &domain.LegEntry{Parada: "Cabildo"}, // no answer yet
			},
		},
	}
	if err := s.SaveSchedule(in); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.GetSchedule("ana@x")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Nombre != "Ana" {
		t.Errorf("nombre = %q", got.Nombre)
	}

	ida := got.Entry(domain.Lunes, domain.LegIda)
	if ida == nil || !ida.Going() || ida.Parada != "Congreso" || !ida.Recurrente {
		t.Errorf("lunes ida = %+v", ida)
	}
	vuelta := got.Entry(domain.Lunes, domain.LegVuelta)
	if vuelta == nil || !vuelta.Declined() || vuelta.Fecha != "13/01/2025" {
		t.Errorf("lunes vuelta = %+v", vuelta)
	}

	// tri-state survives the round trip: no answer stays no answer
	martes := got.Entry(domain.Martes, domain.LegIda)
	if martes == nil || martes.Usar != nil || martes.Parada != "Cabildo" {
		t.Errorf("martes ida = %+v", martes)
	}
}

func TestSaveScheduleReplacesWholeDeclaration(t *testing.T) {
	s := newTestStorage(t)

	first := &domain.RiderSchedule{
		Email: "ana@x",
		Dias: map[domain.Weekday]*domain.DaySchedule{
			domain.Lunes:  {Ida: &domain.LegEntry{Usar: boolPtr(true), Parada: "Congreso", Recurrente: true}},
			domain.Martes: {Ida: &domain.LegEntry{Usar: boolPtr(true), Parada: "Congreso", Recurrente: true}},
		},
	}
	if err := s.SaveSchedule(first); err != nil {
		t.Fatalf("first save: %v", err)
	}

	second := &domain.RiderSchedule{
		Email: "ana@x",
		Dias: map[domain.Weekday]*domain.DaySchedule{
			domain.Lunes: {Ida: &domain.LegEntry{Usar: boolPtr(false), Fecha: "13/01/2025"}},
		},
	}
	if err := s.SaveSchedule(second); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err := s.GetSchedule("ana@x")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Entry(domain.Martes, domain.LegIda) != nil {
		t.Error("martes survived a full replace")
	}
	if e := got.Entry(domain.Lunes, domain.LegIda); e == nil || !e.Declined() {
		t.Errorf("lunes ida = %+v", e)
	}
}

func TestListSchedulesIncludesSilentRiders(t *testing.T) {
	s := newTestStorage(t)

	if err := s.UpsertUser("callado@x", "Callado"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.SaveSchedule(&domain.RiderSchedule{
		Email:  "ana@x",
		Nombre: "Ana",
		Dias: map[domain.Weekday]*domain.DaySchedule{
			domain.Lunes: {Ida: &domain.LegEntry{Usar: boolPtr(true), Parada: "Congreso", Recurrente: true}},
		},
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	scheds, err := s.ListSchedules()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(scheds) != 2 {
		t.Fatalf("got %d schedules, want 2", len(scheds))
	}
	// ordered by email
	if scheds[0].Email != "ana@x" || scheds[1].Email != "callado@x" {
		t.Errorf("order = %s, %s", scheds[0].Email, scheds[1].Email)
	}
	if len(scheds[1].Dias) != 0 {
		t.Errorf("silent rider has entries: %+v", scheds[1].Dias)
	}
}

func TestChatMessages(t *testing.T) {
	s := newTestStorage(t)

	for _, text := range []string{"primero", "segundo", "tercero"} {
		msg := &domain.ChatMessage{SenderEmail: "ana@x", SenderName: "Ana", Text: text}
		if err := s.CreateChatMessage(msg); err != nil {
			t.Fatalf("create: %v", err)
		}
		if msg.ID == 0 {
			t.Error("message did not get an id")
		}
	}

	msgs, err := s.ListChatMessages(2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	// newest first
	if msgs[0].Text != "tercero" || msgs[1].Text != "segundo" {
		t.Errorf("order = %q, %q", msgs[0].Text, msgs[1].Text)
	}
}

func TestReplaceStops(t *testing.T) {
	s := newTestStorage(t)

	ida := []domain.Stop{
		{Name: "Congreso", Time: "07:10"},
		{Name: "Cabildo", Time: "07:25"},
	}
	if err := s.ReplaceStops(domain.LegIda, ida); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := s.ReplaceStops(domain.LegVuelta, []domain.Stop{{Name: "Terminal", Time: "17:30"}}); err != nil {
		t.Fatalf("replace vuelta: %v", err)
	}

	got, err := s.GetStops(domain.LegIda)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 2 || got[0].Name != "Congreso" || got[1].Name != "Cabildo" {
		t.Errorf("ida stops = %+v", got)
	}

	// replacing again swaps the whole table
	if err := s.ReplaceStops(domain.LegIda, []domain.Stop{{Name: "Obelisco", Time: "07:00"}}); err != nil {
		t.Fatalf("second replace: %v", err)
	}
	got, _ = s.GetStops(domain.LegIda)
	if len(got) != 1 || got[0].Name != "Obelisco" {
		t.Errorf("ida stops after replace = %+v", got)
	}

	vuelta, _ := s.GetStops(domain.LegVuelta)
	if len(vuelta) != 1 || vuelta[0].Name != "Terminal" {
		t.Errorf("vuelta stops = %+v", vuelta)
	}
}
