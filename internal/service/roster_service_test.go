package service

import (
	"reflect"
	"testing"

	"github.com/combiapp/combiapp/internal/domain"
)

const testDate = "13/01/2025" // a Lunes

var testDay = domain.DayWindow{Day: domain.Lunes, Date: testDate}

func boolPtr(v bool) *bool { return &v }

func rider(email, name string, ida, vuelta *domain.LegEntry) *domain.RiderSchedule {
	return &domain.RiderSchedule{
		Email:  email,
		Nombre: name,
		Dias: map[domain.Weekday]*domain.DaySchedule{
			domain.Lunes: {Ida: ida, Vuelta: vuelta},
		},
	}
}

func emails(riders []domain.RiderRef) []string {
	var out []string
	for _, r := range riders {
		out = append(out, r.Email)
	}
	return out
}

func TestAggregateStopGroups(t *testing.T) {
	svc := NewRosterService(nil)
	schedules := []*domain.RiderSchedule{
		rider("ana@x", "Ana", &domain.LegEntry{Usar: boolPtr(true), Parada: "Congreso", Fecha: testDate}, nil),
		rider("beto@x", "Beto", &domain.LegEntry{Usar: boolPtr(true), Parada: "Congreso", Recurrente: true}, nil),
		rider("caro@x", "Caro", &domain.LegEntry{Usar: boolPtr(true), Parada: "Cabildo", Fecha: testDate}, nil),
	}

	ros := svc.Aggregate(schedules, testDay, domain.LegIda)

	if got := emails(ros.ByStop["Congreso"]); !reflect.DeepEqual(got, []string{"ana@x", "beto@x"}) {
		t.Errorf("Congreso group = %v", got)
	}
	if got := emails(ros.ByStop["Cabildo"]); !reflect.DeepEqual(got, []string{"caro@x"}) {
		t.Errorf("Cabildo group = %v", got)
	}
	if !reflect.DeepEqual(ros.Stops, []string{"Congreso", "Cabildo"}) {
		t.Errorf("stop order = %v", ros.Stops)
	}
	if len(ros.Unanswered) != 0 || len(ros.NotTraveling) != 0 {
		t.Errorf("unexpected extra buckets: unanswered=%v notTraveling=%v", ros.Unanswered, ros.NotTraveling)
	}
}

func TestAggregateStaleEntryIsUnanswered(t *testing.T) {
	svc := NewRosterService(nil)
	// said yes last week, not this week
	schedules := []*domain.RiderSchedule{
		rider("ana@x", "Ana", &domain.LegEntry{Usar: boolPtr(true), Parada: "Congreso", Fecha: "06/01/2025"}, nil),
	}

	ros := svc.Aggregate(schedules, testDay, domain.LegIda)

	if len(ros.ByStop) != 0 {
		t.Errorf("stale entry must not reach a stop group: %v", ros.ByStop)
	}
	if got := emails(ros.Unanswered); !reflect.DeepEqual(got, []string{"ana@x"}) {
		t.Errorf("unanswered = %v", got)
	}
}

func TestAggregateNotTravelingNeedsBothLegs(t *testing.T) {
	svc := NewRosterService(nil)
	no := func() *domain.LegEntry { return &domain.LegEntry{Usar: boolPtr(false), Fecha: testDate} }
	schedules := []*domain.RiderSchedule{
		rider("full@x", "Full", no(), no()),
		rider("partial@x", "Partial", no(), nil), // no on ida, silent on vuelta
	}

	ros := svc.Aggregate(schedules, testDay, domain.LegIda)

	if got := emails(ros.NotTraveling); !reflect.DeepEqual(got, []string{"full@x"}) {
		t.Errorf("notTraveling = %v", got)
	}
	// partial information must not read as a full opt-out
	if got := emails(ros.Unanswered); !reflect.DeepEqual(got, []string{"partial@x"}) {
		t.Errorf("unanswered = %v", got)
	}
}

func TestAggregateGoingWithoutStop(t *testing.T) {
	svc := NewRosterService(nil)
	schedules := []*domain.RiderSchedule{
		rider("ana@x", "Ana", &domain.LegEntry{Usar: boolPtr(true), Fecha: testDate}, nil),
	}

	ros := svc.Aggregate(schedules, testDay, domain.LegIda)

	if len(ros.ByStop) != 0 {
		t.Errorf("stopless entry must not reach a stop group: %v", ros.ByStop)
	}
	if got := emails(ros.Unanswered); !reflect.DeepEqual(got, []string{"ana@x"}) {
		t.Errorf("unanswered = %v", got)
	}
	if got := emails(ros.Malformed); !reflect.DeepEqual(got, []string{"ana@x"}) {
		t.Errorf("malformed = %v", got)
	}
}

func TestAggregateReturnBuckets(t *testing.T) {
	svc := NewRosterService(nil)
	yes := func(parada string) *domain.LegEntry {
		return &domain.LegEntry{Usar: boolPtr(true), Parada: parada, Fecha: testDate}
	}
	schedules := []*domain.RiderSchedule{
		rider("conf@x", "Conf", yes("Congreso"), yes("Retiro")),
		rider("noret@x", "NoRet", yes("Congreso"), &domain.LegEntry{Usar: boolPtr(false), Fecha: testDate}),
		rider("pend@x", "Pend", yes("Congreso"), nil),
		rider("stale@x", "Stale", yes("Congreso"), &domain.LegEntry{Usar: boolPtr(true), Parada: "Retiro", Fecha: "06/01/2025"}),
		rider("home@x", "Home", &domain.LegEntry{Usar: boolPtr(false), Fecha: testDate}, nil),
	}

	ros := svc.Aggregate(schedules, testDay, domain.LegVuelta)

	if got := emails(ros.ConfirmedReturn); !reflect.DeepEqual(got, []string{"conf@x"}) {
		t.Errorf("confirmedReturn = %v", got)
	}
	if got := emails(ros.NoReturn); !reflect.DeepEqual(got, []string{"noret@x"}) {
		t.Errorf("noReturn = %v", got)
	}
	// a stale vuelta "yes" counts as no answer
	if got := emails(ros.ReturnPending); !reflect.DeepEqual(got, []string{"pend@x", "stale@x"}) {
		t.Errorf("returnPending = %v", got)
	}
	// home@x never went ida, so the return buckets ignore them
	for _, bucket := range [][]domain.RiderRef{ros.ConfirmedReturn, ros.NoReturn, ros.ReturnPending} {
		for _, r := range bucket {
			if r.Email == "home@x" {
				t.Error("rider who never went ida landed in a return bucket")
			}
		}
	}
}

func TestAggregateIdaBucketsIgnoreReturnSplit(t *testing.T) {
	svc := NewRosterService(nil)
	schedules := []*domain.RiderSchedule{
		rider("ana@x", "Ana", &domain.LegEntry{Usar: boolPtr(true), Parada: "Congreso", Fecha: testDate}, nil),
	}

	ros := svc.Aggregate(schedules, testDay, domain.LegIda)
	if len(ros.ConfirmedReturn)+len(ros.NoReturn)+len(ros.ReturnPending) != 0 {
		t.Error("ida roster must not fill return buckets")
	}
}

func TestAggregateCompleteness(t *testing.T) {
	svc := NewRosterService(nil)
	schedules := []*domain.RiderSchedule{
		rider("a@x", "A", &domain.LegEntry{Usar: boolPtr(true), Parada: "Congreso", Fecha: testDate}, nil),
		rider("b@x", "B", &domain.LegEntry{Usar: boolPtr(false), Fecha: testDate}, &domain.LegEntry{Usar: boolPtr(false), Fecha: testDate}),
		rider("c@x", "C", nil, nil),
		rider("d@x", "D", &domain.LegEntry{Usar: boolPtr(true), Fecha: testDate}, nil),
		rider("e@x", "E", &domain.LegEntry{Usar: boolPtr(true), Parada: "Cabildo", Fecha: "06/01/2025"}, nil),
	}

	for _, leg := range []domain.Leg{domain.LegIda, domain.LegVuelta} {
		ros := svc.Aggregate(schedules, testDay, leg)

		count := make(map[string]int)
		for _, stop := range ros.Stops {
			for _, r := range ros.ByStop[stop] {
				count[r.Email]++
			}
		}
		for _, r := range ros.NotTraveling {
			count[r.Email]++
		}
		for _, r := range ros.Unanswered {
			count[r.Email]++
		}

		for _, sched := range schedules {
			if count[sched.Email] != 1 {
				t.Errorf("leg %s: rider %s appears %d times, want exactly 1", leg, sched.Email, count[sched.Email])
			}
		}
	}
}

func TestAggregateIdempotent(t *testing.T) {
	svc := NewRosterService(nil)
	schedules := []*domain.RiderSchedule{
		rider("a@x", "A", &domain.LegEntry{Usar: boolPtr(true), Parada: "Congreso", Fecha: testDate}, &domain.LegEntry{Usar: boolPtr(true), Parada: "Retiro", Recurrente: true}),
		rider("b@x", "B", &domain.LegEntry{Usar: boolPtr(false), Fecha: testDate}, &domain.LegEntry{Usar: boolPtr(false), Fecha: testDate}),
		rider("c@x", "C", nil, nil),
	}

	for _, leg := range []domain.Leg{domain.LegIda, domain.LegVuelta} {
		first := svc.Aggregate(schedules, testDay, leg)
		second := svc.Aggregate(schedules, testDay, leg)
		if !reflect.DeepEqual(first, second) {
			t.Errorf("leg %s: repeated aggregation differs", leg)
		}
	}
}
