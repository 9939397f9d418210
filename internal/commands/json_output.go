package commands

import "encoding/json"

// marshalJSONOrFallback renders a value for --json output. Every tdk listing
// promises valid, newline-terminated JSON on stdout, so marshaling failures
// degrade to a JSON error object instead of breaking piped consumers.
func marshalJSONOrFallback(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err == nil {
		return string(data) + "\n"
	}

	// Best-effort fallback: always return valid JSON for --json callers.
	fallback, fallbackErr := json.Marshal(map[string]string{
		"error": "failed to marshal JSON output",
	})
	if fallbackErr != nil {
		return "{}\n"
	}
	return string(fallback) + "\n"
}
