package ranking

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/groundscanner/groundscanner/internal/transport"
)

func option(id string, price float64, duration int, co2 transport.Emissions) transport.Option {
	return transport.Option{ID: id, Name: id, Price: price, Duration: duration, CO2: co2, Currency: "GBP"}
}

func sampleOptions() []transport.Option {
	return []transport.Option{
		option("express", 25, 15, transport.ScalarEmissions(2.1)),
		option("tube", 6, 45, transport.ScalarEmissions(1.2)),
		option("coach", 8, 60, transport.ScalarEmissions(1.8)),
	}
}

func idsOf(opts []transport.Option) []string {
	return ids(opts)
}

func TestCheapest(t *testing.T) {
	got := idsOf(Cheapest(sampleOptions()))
	want := []string{"tube", "coach", "express"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Cheapest() = %v, want %v", got, want)
	}
}

func TestFastest(t *testing.T) {
	got := idsOf(Fastest(sampleOptions()))
	want := []string{"express", "tube", "coach"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Fastest() = %v, want %v", got, want)
	}
}

func TestEco_UnknownSortsLast(t *testing.T) {
	opts := []transport.Option{
		option("taxi", 45, 35, transport.UnknownEmissions()),
		option("express", 25, 15, transport.ScalarEmissions(2.1)),
		option("tube", 6, 45, transport.BreakdownEmissions(map[transport.EmissionMethod]transport.MethodEmission{
			transport.MethodFuelCombustion: {Total: 1.2},
			transport.MethodWellToTank:     {Total: 0.31},
		})),
	}

	got := idsOf(Eco(opts, transport.MethodFuelCombustion))
	want := []string{"tube", "express", "taxi"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Eco() = %v, want %v", got, want)
	}
}

func TestEco_MissingMethodIsUnknown(t *testing.T) {
	opts := []transport.Option{
		option("wtt-only", 1, 1, transport.BreakdownEmissions(map[transport.EmissionMethod]transport.MethodEmission{
			transport.MethodWellToTank: {Total: 0.1},
		})),
		option("scalar", 1, 1, transport.ScalarEmissions(5)),
	}

	got := idsOf(Eco(opts, transport.MethodFuelCombustion))
	if got[0] != "scalar" {
		t.Errorf("expected scalar first, got %v", got)
	}
}

func TestMostEco_NeverPicksUnknown(t *testing.T) {
	opts := []transport.Option{
		option("a", 1, 1, transport.UnknownEmissions()),
		option("b", 2, 2, transport.UnknownEmissions()),
	}
	if _, ok := MostEco(opts, transport.MethodFuelCombustion); ok {
		t.Error("expected no most eco option when all emissions are unknown")
	}

	opts = append(opts, option("c", 3, 3, transport.ScalarEmissions(0)))
	eco, ok := MostEco(opts, transport.MethodFuelCombustion)
	if !ok || eco.ID != "c" {
		t.Errorf("expected c, got %v %v", eco.ID, ok)
	}
}

func TestOrderings_AreStable(t *testing.T) {
	opts := []transport.Option{
		option("a", 5, 30, transport.ScalarEmissions(1)),
		option("b", 5, 30, transport.ScalarEmissions(1)),
		option("c", 2, 10, transport.ScalarEmissions(0.5)),
		option("d", 5, 30, transport.ScalarEmissions(1)),
	}
	want := []string{"c", "a", "b", "d"}

	for _, tab := range []Tab{TabCheapest, TabFastest, TabEco} {
		if got := idsOf(Order(opts, tab, transport.DefaultMethod)); !reflect.DeepEqual(got, want) {
			t.Errorf("%s: got %v, want %v", tab, got, want)
		}
	}
	if got := idsOf(Order(opts, TabBest, transport.DefaultMethod)); !reflect.DeepEqual(got, []string{"a", "b", "c", "d"}) {
		t.Errorf("best must keep input order, got %v", got)
	}
}

func TestOrderings_StableUnderPermutation(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for trial := 0; trial < 20; trial++ {
		opts := make([]transport.Option, 12)
		for i := range opts {
			opts[i] = option(string(rune('a'+i)), float64(r.Intn(4)), r.Intn(4), transport.ScalarEmissions(float64(r.Intn(3))))
		}

		sorted := Cheapest(opts)
		pos := make(map[string]int, len(opts))
		for i, o := range opts {
			pos[o.ID] = i
		}
		for i := 1; i < len(sorted); i++ {
			prev, cur := sorted[i-1], sorted[i]
			if prev.Price > cur.Price {
				t.Fatalf("trial %d: not sorted at %d", trial, i)
			}
			if prev.Price == cur.Price && pos[prev.ID] > pos[cur.ID] {
				t.Fatalf("trial %d: tie order changed for %s and %s", trial, prev.ID, cur.ID)
			}
		}
	}
}

func TestOrderings_DoNotMutateInput(t *testing.T) {
	opts := sampleOptions()
	before := idsOf(opts)

	_ = Cheapest(opts)
	_ = Fastest(opts)
	_ = Eco(opts, transport.DefaultMethod)
	_ = Classify(opts)

	if !reflect.DeepEqual(idsOf(opts), before) {
		t.Error("input order was mutated")
	}
	for _, o := range opts {
		if o.IsCheapest || o.IsFastest || o.IsBest {
			t.Error("input flags were mutated")
		}
	}
}

func TestClassify_FlagsAllTies(t *testing.T) {
	opts := []transport.Option{
		option("a", 6, 40, transport.UnknownEmissions()),
		option("b", 6, 20, transport.UnknownEmissions()),
		option("c", 9, 20, transport.UnknownEmissions()),
	}
	got := Classify(opts)

	wantCheapest := []bool{true, true, false}
	wantFastest := []bool{false, true, true}
	for i, o := range got {
		if o.IsCheapest != wantCheapest[i] {
			t.Errorf("%s: IsCheapest = %v", o.ID, o.IsCheapest)
		}
		if o.IsFastest != wantFastest[i] {
			t.Errorf("%s: IsFastest = %v", o.ID, o.IsFastest)
		}
		if o.IsBest != (i == 0) {
			t.Errorf("%s: IsBest = %v", o.ID, o.IsBest)
		}
	}
}

func TestClassify_RecomputesStaleFlags(t *testing.T) {
	stale := option("x", 10, 10, transport.UnknownEmissions())
	stale.IsBest = true
	stale.IsCheapest = true
	opts := []transport.Option{option("y", 1, 1, transport.UnknownEmissions()), stale}

	got := Classify(opts)
	if got[1].IsBest || got[1].IsCheapest {
		t.Error("expected stale flags to be cleared")
	}
}

func TestClassify_Singleton(t *testing.T) {
	got := Classify([]transport.Option{option("only", 3, 3, transport.UnknownEmissions())})
	if !got[0].IsBest || !got[0].IsCheapest || !got[0].IsFastest {
		t.Errorf("singleton should carry every flag: %+v", got[0])
	}
}

func TestEmptySet(t *testing.T) {
	if got := Classify(nil); len(got) != 0 {
		t.Errorf("expected empty, got %v", got)
	}
	tabs := Tabs(nil, transport.DefaultMethod)
	if len(tabs.Best) != 0 || len(tabs.Cheapest) != 0 || len(tabs.Fastest) != 0 || len(tabs.Eco) != 0 {
		t.Errorf("expected empty tabs, got %+v", tabs)
	}
}

func TestTabs(t *testing.T) {
	tabs := Tabs(sampleOptions(), transport.DefaultMethod)
	if !reflect.DeepEqual(tabs.Cheapest, []string{"tube", "coach", "express"}) {
		t.Errorf("unexpected cheapest tab %v", tabs.Cheapest)
	}
	if !reflect.DeepEqual(tabs.Eco, []string{"tube", "coach", "express"}) {
		t.Errorf("unexpected eco tab %v", tabs.Eco)
	}
}

func TestParseTab(t *testing.T) {
	for _, tab := range AllTabs() {
		if got, ok := ParseTab(string(tab)); !ok || got != tab {
			t.Errorf("ParseTab(%q) = %q, %v", tab, got, ok)
		}
	}
	if _, ok := ParseTab("rating"); ok {
		t.Error("expected unknown tab to be rejected")
	}
}
