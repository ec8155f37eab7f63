package transport

import (
	"errors"
	"os"
	"reflect"
	"testing"
)

func loadFixture(t *testing.T) []Record {
	t.Helper()
	data, err := os.ReadFile("testdata/transports_lhr.json")
	if err != nil {
		t.Fatalf("failed to load test fixture: %v", err)
	}
	records, err := DecodeRecords(data)
	if err != nil {
		t.Fatalf("failed to decode fixture: %v", err)
	}
	return records
}

func mustRecord(t *testing.T, raw string) Record {
	t.Helper()
	rec, err := DecodeRecord([]byte(raw))
	if err != nil {
		t.Fatalf("DecodeRecord(%s): %v", raw, err)
	}
	return rec
}

func TestNormalize_TubeScenario(t *testing.T) {
	n := NewNormalizer(NormalizerConfig{})
	opt := n.Normalize(mustRecord(t, `{"mode":"tube","duration":"45 mins","price":6}`), "lhr", 0)

	if opt.Mode != ModeUnderground {
		t.Errorf("expected mode underground, got %s", opt.Mode)
	}
	if opt.Duration != 45 {
		t.Errorf("expected duration 45, got %d", opt.Duration)
	}
	if opt.Price != 6 {
		t.Errorf("expected price 6, got %v", opt.Price)
	}
	if opt.Airport != "LHR" {
		t.Errorf("expected airport LHR, got %s", opt.Airport)
	}
	if opt.ID != "LHR-1" {
		t.Errorf("expected fallback id LHR-1, got %s", opt.ID)
	}
	if opt.SourceMode != "tube" || opt.ModeInferred {
		t.Errorf("unexpected source mode bookkeeping: %q inferred=%v", opt.SourceMode, opt.ModeInferred)
	}
	if opt.CO2.Known() {
		t.Error("expected unknown emissions when co2 is absent")
	}
}

func TestNormalize_Fixture(t *testing.T) {
	n := NewNormalizer(NormalizerConfig{})
	batch := n.NormalizeAll(loadFixture(t), "LHR")

	if len(batch.Options) != 4 {
		t.Fatalf("expected 4 options, got %d", len(batch.Options))
	}

	express := batch.Options[0]
	if express.Mode != ModeTrain || express.Duration != 15 || express.Price != 25 {
		t.Errorf("unexpected express option: %+v", express)
	}
	if express.Route != "Heathrow Express" {
		t.Errorf("expected route to fall back to name, got %q", express.Route)
	}
	if express.AirportName != "London Heathrow" {
		t.Errorf("expected airport name, got %q", express.AirportName)
	}
	if !express.Sponsored || !express.HasFirstClass || !express.FlexibleTicket {
		t.Error("expected pass-through flags on express option")
	}
	if express.ServiceHours == nil || express.ServiceHours.First != "05:10" {
		t.Errorf("expected service hours, got %+v", express.ServiceHours)
	}
	if kg, ok := express.CO2.Scalar(); !ok || kg != 2.1 {
		t.Errorf("expected scalar co2 2.1, got %v %v", kg, ok)
	}

	tube := batch.Options[1]
	if tube.Mode != ModeUnderground || tube.Airport != "LHR" {
		t.Errorf("unexpected tube option: mode=%s airport=%s", tube.Mode, tube.Airport)
	}
	if tube.Price != 3.8 {
		t.Errorf("expected central stop fare 3.8, got %v", tube.Price)
	}
	if tube.Route != "Piccadilly Line → Cockfosters" {
		t.Errorf("expected synthesized route, got %q", tube.Route)
	}
	if !tube.Stops.IsSequence() || tube.Stops.Count() != 5 {
		t.Fatalf("expected 5 stop sequence, got %+v", tube.Stops)
	}
	if seq := tube.Stops.Sequence(); seq[0].BranchID != "t5" || !seq[1].IsTrunk() {
		t.Error("expected branch ids to survive normalization")
	}
	if tube.CO2.Kind() != EmissionsBreakdown {
		t.Fatalf("expected breakdown co2, got %s", tube.CO2.Kind())
	}
	fc, ok := tube.CO2.Method(MethodFuelCombustion)
	if !ok || fc.Total != 1.2 || fc.Gases["co2"] != 1.17 {
		t.Errorf("unexpected fuel combustion entry: %+v", fc)
	}
	if _, ok := fc.Gases["co2e_total"]; ok {
		t.Error("aggregate co2e keys must not be listed as gases")
	}
	if tube.DistanceKm == nil || *tube.DistanceKm <= 0 {
		t.Error("expected distance between first and last stop")
	}

	coach := batch.Options[2]
	if coach.Mode != ModeCoach || coach.Duration != 60 || coach.Price != 8 {
		t.Errorf("unexpected coach option: %+v", coach)
	}
	if !coach.Stops.HasStops() || coach.Stops.Count() != 3 {
		t.Errorf("expected 3 stops label, got %q", coach.Stops.Display())
	}

	taxi := batch.Options[3]
	if taxi.ID != "LHR-4" {
		t.Errorf("expected fallback id LHR-4, got %s", taxi.ID)
	}
	if taxi.IsEco {
		t.Error("taxi must not be eco")
	}
	if taxi.CO2.Known() {
		t.Error("expected co2 null to stay unknown")
	}
	if taxi.Stops.HasStops() {
		t.Error("expected Direct to have no stops")
	}
}

func TestStops_LabelHasStops(t *testing.T) {
	tests := map[string]bool{
		"Direct":          false,
		"0 stops":         false,
		"Non-stop":        false,
		"nonstop":         false,
		"Non stop":        false,
		"1 stop":          true,
		"3 stops":         true,
		"Stops vary":      true,
		"":                false,
		"Express shuttle": false,
	}
	for label, want := range tests {
		if got := LabelStops(label).HasStops(); got != want {
			t.Errorf("LabelStops(%q).HasStops() = %v, want %v", label, got, want)
		}
	}
	if n := LabelStops("Non-stop").Count(); n != 0 {
		t.Errorf("expected non-stop count 0, got %d", n)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	n := NewNormalizer(NormalizerConfig{})
	records := loadFixture(t)

	for i, rec := range records {
		a := n.Normalize(rec, "LHR", i)
		b := n.Normalize(rec, "LHR", i)
		if !reflect.DeepEqual(a, b) {
			t.Errorf("record %d normalized differently:\n%+v\n%+v", i, a, b)
		}
	}
}

func TestNormalize_NonNegativeInvariants(t *testing.T) {
	n := NewNormalizer(NormalizerConfig{})
	raws := []string{
		`{}`,
		`{"duration": -30, "price": -4}`,
		`{"duration": "n/a", "price": "call for price"}`,
		`{"duration": null, "stops": []}`,
		`{"price": {"amount": 5}, "duration": {"mins": 5}}`,
		`{"id": 17, "mode": 4, "stops": 2}`,
	}

	for _, raw := range raws {
		opt := n.Normalize(mustRecord(t, raw), "stn", 3)
		if opt.Price < 0 || opt.Duration < 0 {
			t.Errorf("%s: negative price or duration: %+v", raw, opt)
		}
		if opt.Airport != "STN" {
			t.Errorf("%s: expected upper-cased airport, got %s", raw, opt.Airport)
		}
	}
}

func TestNormalize_MissingPriceSignalsIsZero(t *testing.T) {
	n := NewNormalizer(NormalizerConfig{})
	opt := n.Normalize(mustRecord(t, `{"mode":"bus","name":"Local"}`), "LGW", 0)
	if opt.Price != 0 {
		t.Errorf("expected price 0, got %v", opt.Price)
	}
	if opt.PriceDisplay() != "FREE" {
		t.Errorf("expected FREE display, got %q", opt.PriceDisplay())
	}
}

func TestNormalize_EstimatesDurationFromStops(t *testing.T) {
	n := NewNormalizer(NormalizerConfig{})
	rec := mustRecord(t, `{"mode":"bus","stops":[
		{"name":"A","lat":51.1,"lon":-0.1},
		{"name":"B","lat":51.2,"lon":-0.2},
		{"name":"C","lat":51.3,"lon":-0.3},
		{"name":"D","lat":51.4,"lon":-0.4},
		{"name":"E","lat":51.5,"lon":-0.5},
		{"name":"F","lat":51.6,"lon":-0.6}
	]}`)

	if got := n.Normalize(rec, "LGW", 0).Duration; got != 12 {
		t.Errorf("expected estimated duration 12, got %d", got)
	}
}

func TestNormalize_DropsStopsWithoutCoordinates(t *testing.T) {
	n := NewNormalizer(NormalizerConfig{})
	rec := mustRecord(t, `{"mode":"coach","stops":[
		{"name":"Good","lat":51.1,"lon":-0.1},
		{"name":"No lon","lat":51.2},
		{"name":"Out of range","lat":123,"lon":0},
		{"name":"String coords","lat":"51.3","lon":"-0.3"},
		"not an object"
	]}`)

	batch := n.NormalizeAll([]Record{rec}, "LGW")
	opt := batch.Options[0]
	if opt.Stops.Count() != 2 {
		t.Errorf("expected 2 valid stops, got %d", opt.Stops.Count())
	}
	if batch.DroppedStops != 3 {
		t.Errorf("expected 3 dropped stops, got %d", batch.DroppedStops)
	}
}

func TestNormalize_UnknownModeDefaultsToTrain(t *testing.T) {
	n := NewNormalizer(NormalizerConfig{})
	batch := n.NormalizeAll([]Record{mustRecord(t, `{"mode":"hovercraft"}`)}, "LCY")

	opt := batch.Options[0]
	if opt.Mode != ModeTrain || !opt.ModeInferred || opt.SourceMode != "hovercraft" {
		t.Errorf("unexpected inferred mode handling: %+v", opt)
	}
	if batch.InferredModes != 1 {
		t.Errorf("expected 1 inferred mode, got %d", batch.InferredModes)
	}
}

func TestParseMode(t *testing.T) {
	tests := map[string]Mode{
		"Rail":           ModeTrain,
		"TRAIN":          ModeTrain,
		"national  rail": ModeTrain,
		"Underground":    ModeUnderground,
		"subway":         ModeUnderground,
		"metro":          ModeUnderground,
		"bus":            ModeBus,
		"Coach":          ModeCoach,
		"minicab":        ModeTaxi,
	}
	for raw, want := range tests {
		got, ok := ParseMode(raw)
		if !ok || got != want {
			t.Errorf("ParseMode(%q) = %s, %v; want %s", raw, got, ok, want)
		}
	}
}

func TestNormalizeAll_UniqueIDs(t *testing.T) {
	n := NewNormalizer(NormalizerConfig{})
	records := []Record{
		mustRecord(t, `{"id":"dup","mode":"bus"}`),
		mustRecord(t, `{"id":"dup","mode":"coach"}`),
	}

	batch := n.NormalizeAll(records, "LTN")
	if batch.Options[0].ID == batch.Options[1].ID {
		t.Errorf("expected unique ids, got %s twice", batch.Options[0].ID)
	}
}

func TestDecodeRecords_FailsFastOnStructuralErrors(t *testing.T) {
	if _, err := DecodeRecords([]byte(`{"transports": []}`)); !errors.Is(err, ErrMalformedPayload) {
		t.Errorf("expected ErrMalformedPayload, got %v", err)
	}
	if _, err := DecodeRecords([]byte(`[{"mode":"bus"}, 42]`)); !errors.Is(err, ErrMalformedRecord) {
		t.Errorf("expected ErrMalformedRecord, got %v", err)
	}
	records, err := DecodeRecords([]byte(`[]`))
	if err != nil || len(records) != 0 {
		t.Errorf("expected empty result, got %v %v", records, err)
	}
}
