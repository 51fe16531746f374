package internal

import (
	"net/http"
	"strconv"
	"strings"

	"pmo-dashboard/internal/report"
)

// groupAliases maps the short names accepted in ?by= to Project JSON keys.
var groupAliases = map[string]string{
	"status":      report.KeyStatus,
	"prioridade":  report.KeyPriority,
	"priority":    report.KeyPriority,
	"responsavel": report.KeyOwner,
	"owner":       report.KeyOwner,
	"area":        report.KeyArea,
}

// parseFilters reads the dashboard's q and status query parameters.
func parseFilters(r *http.Request) report.Filters {
	values := r.URL.Query()
	return report.Filters{
		Search: strings.TrimSpace(values.Get("q")),
		Status: strings.TrimSpace(values.Get("status")),
	}
}

// parseGroupKeys splits a comma-separated ?by= value into Project JSON keys.
// Aliases are resolved; other names pass through unchanged, since any
// Project field can be grouped. Duplicates are dropped.
func parseGroupKeys(by string) []string {
	parts := strings.Split(by, ",")
	keys := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, raw := range parts {
		s := strings.ToLower(strings.TrimSpace(raw))
		if s == "" {
			continue
		}
		if key, ok := groupAliases[s]; ok {
			s = key
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		keys = append(keys, s)
	}
	return keys
}

// parseID reads a positive integer URL parameter value.
func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
