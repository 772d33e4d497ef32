// Package insurer provides a simulated payer for development. It builds a
// canned adjudication response from a masked record, echoing the placeholder
// tokens it received the way a real payer echoes member details, so the full
// mask, submit, remap loop can be exercised without an external clearinghouse.
package insurer

import (
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/astrahealth/deid/internal/domain/deid"
)

// Simulate returns a payer response for a masked record. The note field
// repeats every placeholder token found in the record; after remapping, the
// note reads as if the payer had written out the member's details.
func Simulate(masked deid.Record) deid.Record {
	tokens := collectTokens(masked)
	note := "Coverage active."
	if len(tokens) > 0 {
		note = "Coverage verified for " + strings.Join(tokens, ", ") + "."
	}
	return deid.Record{
		"billing_code":   "B1234",
		"coverage_limit": "$10,000",
		"co_payment":     "$100",
		"note":           note,
	}
}

// collectTokens gathers the distinct placeholder tokens in a record, sorted
// for a stable response.
func collectTokens(v interface{}) []string {
	seen := make(map[string]bool)
	walkTokens(v, seen)
	tokens := make([]string, 0, len(seen))
	for tok := range seen {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)
	return tokens
}

func walkTokens(v interface{}, seen map[string]bool) {
	switch val := v.(type) {
	case string:
		for _, tok := range deid.PlaceholderPattern.FindAllString(val, -1) {
			seen[tok] = true
		}
	case map[string]interface{}:
		for _, item := range val {
			walkTokens(item, seen)
		}
	case deid.Record:
		for _, item := range val {
			walkTokens(item, seen)
		}
	case []interface{}:
		for _, item := range val {
			walkTokens(item, seen)
		}
	}
}

type Handler struct{}

func NewHandler() *Handler { return &Handler{} }

// RegisterRoutes mounts the simulator. Only wired in development.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/simulate", h.Simulate)
}

func (h *Handler) Simulate(c echo.Context) error {
	var masked deid.Record
	if err := c.Bind(&masked); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(masked) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "masked record must have at least one field")
	}
	return c.JSON(http.StatusOK, Simulate(masked))
}
