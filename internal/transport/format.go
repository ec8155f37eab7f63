package transport

import (
	"fmt"
	"strconv"
	"strings"
)

// NotAvailable is displayed in place of unknown figures.
const NotAvailable = "N/A"

// FormatDuration renders minutes as "1 hour 10 minutes", "45 minutes" or "2 hours".
func FormatDuration(minutes int) string {
	if minutes <= 0 {
		return "0 minutes"
	}
	hours, mins := minutes/60, minutes%60
	parts := make([]string, 0, 2)
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if mins > 0 {
		parts = append(parts, plural(mins, "minute"))
	}
	return strings.Join(parts, " ")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}

var currencySymbols = map[string]string{
	"GBP": "£",
	"EUR": "€",
	"USD": "$",
}

// FormatPrice renders an amount with its currency symbol, "FREE" for zero.
func FormatPrice(amount float64, currency string) string {
	if amount <= 0 {
		return "FREE"
	}
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		code = DefaultCurrency
	}
	if sym, ok := currencySymbols[code]; ok {
		return fmt.Sprintf("%s%.2f", sym, amount)
	}
	return fmt.Sprintf("%s %.2f", code, amount)
}

// Co2Display renders an emissions figure under the selected method. Scalar
// values print as given, breakdown totals with two decimals, and unknown
// values as "N/A".
func Co2Display(e Emissions, method EmissionMethod) string {
	switch e.Kind() {
	case EmissionsScalar:
		kg, _ := e.Scalar()
		return strconv.FormatFloat(kg, 'f', -1, 64) + " kg CO₂"
	case EmissionsBreakdown:
		me, ok := e.Method(method)
		if !ok {
			return NotAvailable
		}
		return fmt.Sprintf("%.2f kg CO₂e", me.Total)
	default:
		return NotAvailable
	}
}
