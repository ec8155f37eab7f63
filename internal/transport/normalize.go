package transport

import (
	"fmt"
	"strings"

	"github.com/groundscanner/groundscanner/pkg/geo"
)

// DefaultCurrency is assumed when neither the record nor its stops declare one.
const DefaultCurrency = "GBP"

var modeAliases = map[string]Mode{
	"train":         ModeTrain,
	"rail":          ModeTrain,
	"national rail": ModeTrain,
	"express":       ModeTrain,
	"tube":          ModeUnderground,
	"underground":   ModeUnderground,
	"subway":        ModeUnderground,
	"metro":         ModeUnderground,
	"bus":           ModeBus,
	"coach":         ModeCoach,
	"taxi":          ModeTaxi,
	"cab":           ModeTaxi,
	"minicab":       ModeTaxi,
	"car":           ModeTaxi,
}

// ParseMode maps a provider mode string to a Mode. Unrecognized values map to
// train and report ok=false.
func ParseMode(raw string) (Mode, bool) {
	key := strings.Join(strings.Fields(strings.ToLower(raw)), " ")
	if m, ok := modeAliases[key]; ok {
		return m, true
	}
	return ModeTrain, false
}

// NormalizerConfig configures a Normalizer.
type NormalizerConfig struct {
	// CentralStops is the interchange allow-list used for fare ladders.
	// If empty, DefaultCentralStops is used.
	CentralStops CentralStops
}

// Normalizer maps raw provider records onto Options. It holds no mutable
// state and is safe for concurrent use.
type Normalizer struct {
	central CentralStops
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(cfg NormalizerConfig) *Normalizer {
	central := cfg.CentralStops
	if central.Len() == 0 {
		central = DefaultCentralStops()
	}
	return &Normalizer{central: central}
}

// Batch is the result of normalizing one upstream result set.
type Batch struct {
	Options []Option
	// DroppedStops counts stops discarded for missing or invalid coordinates.
	DroppedStops int
	// InferredModes counts records whose mode was not recognized.
	InferredModes int
}

// NormalizeAll normalizes a result set for the airport under query. Ids are
// made unique within the set.
func (n *Normalizer) NormalizeAll(records []Record, airport string) Batch {
	batch := Batch{Options: make([]Option, 0, len(records))}
	seen := make(map[string]struct{}, len(records))

	for i, rec := range records {
		opt, dropped := n.normalize(rec, airport, i)
		batch.DroppedStops += dropped
		if opt.ModeInferred {
			batch.InferredModes++
		}
		if _, dup := seen[opt.ID]; dup {
			opt.ID = fmt.Sprintf("%s-%d", opt.ID, i+1)
		}
		seen[opt.ID] = struct{}{}
		batch.Options = append(batch.Options, opt)
	}
	return batch
}

// Normalize maps one record. The index is only used for the id fallback.
func (n *Normalizer) Normalize(rec Record, airport string, index int) Option {
	opt, _ := n.normalize(rec, airport, index)
	return opt
}

func (n *Normalizer) normalize(rec Record, airport string, index int) (Option, int) {
	code, airportName := resolveAirport(rec, airport)
	stops, dropped := parseStops(rec.Value("stops"))
	seq := stops.Sequence()

	sourceMode := rec.String("mode", "type")
	mode, known := ParseMode(sourceMode)

	opt := Option{
		ID:             rec.String("id"),
		Mode:           mode,
		ModeInferred:   !known,
		Name:           rec.String("name", "title"),
		Airport:        code,
		AirportName:    airportName,
		Stops:          stops,
		CO2:            parseEmissions(rec.Value("co2", "co2e", "emissions")),
		IsEco:          mode != ModeTaxi,
		Sponsored:      rec.Bool("sponsored"),
		HasFirstClass:  rec.Bool("hasFirstClass", "has_first_class", "first_class"),
		FlexibleTicket: rec.Bool("flexibleTicket", "flexible_ticket", "flexible"),
		URL:            rec.String("url", "booking_url", "bookingUrl"),
	}
	if !known || !strings.EqualFold(sourceMode, string(mode)) {
		opt.SourceMode = sourceMode
	}
	if opt.ID == "" {
		opt.ID = fmt.Sprintf("%s-%d", code, index+1)
	}

	opt.Route = resolveRoute(rec.String("route"), opt.Name, seq)
	opt.Duration = resolveDuration(rec, stops)
	opt.Price = ResolvePrice(ParseAmount(rec.Value("price", "cost", "fare")), seq, n.central)
	opt.Currency = resolveCurrency(rec, seq)

	if len(seq) >= 2 {
		first, last := seq[0], seq[len(seq)-1]
		d := geo.DistanceKm(geo.Point{Lat: first.Lat, Lon: first.Lon}, geo.Point{Lat: last.Lat, Lon: last.Lon})
		opt.DistanceKm = &d
	}

	first := rec.String("first_departure", "firstDeparture")
	last := rec.String("last_departure", "lastDeparture")
	if IsValidClock(first) && IsValidClock(last) {
		opt.ServiceHours = &ServiceHours{First: first, Last: last}
	}

	return opt, dropped
}

// resolveAirport prefers the record's own IATA code, then a 3-letter airport
// field, then the code under query.
func resolveAirport(rec Record, query string) (code, name string) {
	name = rec.String("airport", "airport_name")
	switch {
	case isIATA(rec.String("iata")):
		code = rec.String("iata")
	case isIATA(name):
		code, name = name, ""
	default:
		code = strings.TrimSpace(query)
	}
	return strings.ToUpper(code), name
}

func isIATA(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}

// resolveRoute uses the explicit route, then "<name> → <last stop>", then the
// name alone.
func resolveRoute(route, name string, seq []Stop) string {
	if route != "" {
		return route
	}
	if name != "" && len(seq) > 0 && seq[len(seq)-1].Name != "" {
		return name + " → " + seq[len(seq)-1].Name
	}
	return name
}

func resolveDuration(rec Record, stops Stops) int {
	if v := rec.Value("duration", "duration_minutes", "time"); v != nil {
		return ParseDurationMinutes(v)
	}
	if stops.IsSequence() {
		return EstimateDuration(stops.Count())
	}
	return 0
}

func resolveCurrency(rec Record, seq []Stop) string {
	for _, s := range seq {
		if s.Currency != "" {
			return strings.ToUpper(s.Currency)
		}
	}
	if c := rec.String("currency"); c != "" {
		return strings.ToUpper(c)
	}
	return DefaultCurrency
}

// parseStops accepts a display label or an array of stop objects. Stops
// without valid coordinates are dropped and counted.
func parseStops(v any) (Stops, int) {
	switch s := v.(type) {
	case string:
		return LabelStops(s), 0
	case float64:
		n := int(s)
		if n <= 0 {
			return LabelStops("Direct"), 0
		}
		return LabelStops(plural(n, "stop")), 0
	case []any:
		seq := make([]Stop, 0, len(s))
		dropped := 0
		for _, elem := range s {
			stop, ok := parseStop(objectValue(elem))
			if !ok {
				dropped++
				continue
			}
			seq = append(seq, stop)
		}
		return SequenceStops(seq), dropped
	default:
		return LabelStops(""), 0
	}
}

func parseStop(m map[string]any) (Stop, bool) {
	if m == nil {
		return Stop{}, false
	}
	lat, okLat := floatValue(firstOf(m, "lat", "latitude"))
	lon, okLon := floatValue(firstOf(m, "lon", "lng", "longitude"))
	if !okLat || !okLon || !geo.ValidCoordinate(lat, lon) {
		return Stop{}, false
	}

	stop := Stop{
		Name:     stringValue(firstOf(m, "stop_name", "name")),
		Lat:      lat,
		Lon:      lon,
		Currency: strings.ToUpper(stringValue(m["currency"])),
		BranchID: stringValue(firstOf(m, "branch_id", "branchId")),
	}
	if prices, ok := m["prices"].([]any); ok {
		for _, p := range prices {
			pm := objectValue(p)
			if pm == nil {
				continue
			}
			stop.Prices = append(stop.Prices, Price{
				Type:   stringValue(pm["type"]),
				Amount: ParseAmount(pm["amount"]),
			})
		}
	}
	return stop, true
}

// parseEmissions accepts a number, a numeric string or an object keyed by
// emission method.
func parseEmissions(v any) Emissions {
	switch e := v.(type) {
	case float64:
		return ScalarEmissions(e)
	case string:
		if f, ok := floatValue(e); ok {
			return ScalarEmissions(f)
		}
		return UnknownEmissions()
	case map[string]any:
		methods := make(map[EmissionMethod]MethodEmission)
		for key, raw := range e {
			entry := objectValue(raw)
			if entry == nil {
				continue
			}
			total, ok := floatValue(firstOf(entry, "co2e", "total"))
			if !ok || total < 0 {
				continue
			}
			me := MethodEmission{
				Total:  total,
				Unit:   stringValue(entry["co2e_unit"]),
				Gases:  parseGases(objectValue(entry["constituent_gases"])),
				Source: stringValue(entry["source"]),
				Factor: stringValue(entry["emission_factor_name"]),
			}
			if y, ok := floatValue(entry["year"]); ok {
				me.Year = int(y)
			}
			methods[EmissionMethod(key)] = me
		}
		return BreakdownEmissions(methods)
	default:
		return UnknownEmissions()
	}
}

// parseGases keeps individual species, skipping the aggregate co2e_* keys.
func parseGases(m map[string]any) map[string]float64 {
	if len(m) == 0 {
		return nil
	}
	gases := make(map[string]float64, len(m))
	for gas, raw := range m {
		if strings.HasPrefix(gas, "co2e") {
			continue
		}
		if f, ok := floatValue(raw); ok && f >= 0 {
			gases[gas] = f
		}
	}
	if len(gases) == 0 {
		return nil
	}
	return gases
}
