package market

import (
	"strconv"

	"github.com/dustin/go-humanize"

	"stockdesk/internal/domain"
)

// Direction markers shown on index cards.
const (
	arrowUp   = "▲"
	arrowDown = "▼"
)

// FormatPrice formats a price with thousands separators, e.g. "5,431.6".
func FormatPrice(p float64) string {
	return humanize.Commaf(p)
}

// FormatNumber formats v with the shortest representation, as the backend
// already rounds to two decimals.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatChange renders the signed change/percent pair with its direction
// marker, e.g. "▲ 20.1 (0.37%)".
func FormatChange(s domain.IndexSnapshot) string {
	arrow := arrowDown
	if s.Up() {
		arrow = arrowUp
	}
	return arrow + " " + FormatNumber(s.Change) + " (" + FormatNumber(s.Percent) + "%)"
}

// Direction returns "up" or "down" for the card's style class.
func Direction(s domain.IndexSnapshot) string {
	if s.Up() {
		return "up"
	}
	return "down"
}
