package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"companion-bot/internal/store"
)

const (
	// Export limit bounds; callers clamp whatever the user asked for.
	MinExportLimit     = 1
	MaxExportLimit     = 200
	DefaultExportLimit = 20

	// Telegram rejects messages over 4096 chars; leave headroom.
	maxExportChars  = 3500
	truncatedMarker = "\n... (truncated)"
)

// ClampLimit bounds a requested export limit to [1, 200].
func ClampLimit(n int) int {
	if n < MinExportLimit {
		return MinExportLimit
	}
	if n > MaxExportLimit {
		return MaxExportLimit
	}
	return n
}

// FormatExport renders history rows as "[created_at] role: content"
// lines, truncating oversized output with a marker. The budget counts
// characters, not bytes: cutting mid-rune would hand Telegram invalid
// UTF-8.
func FormatExport(rows []store.ExportedMessage) string {
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, fmt.Sprintf("[%s] %s: %s", row.CreatedAt, row.Role, row.Content))
	}
	text := strings.Join(lines, "\n")
	if utf8.RuneCountInString(text) > maxExportChars {
		runes := []rune(text)
		text = string(runes[:maxExportChars]) + truncatedMarker
	}
	return text
}

// FormatHealth renders the health snapshot as indented JSON.
func FormatHealth(h store.Health) string {
	payload := struct {
		DB string `json:"db"`
		store.Health
	}{DB: "ok", Health: h}

	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Sprintf("health marshal error: %v", err)
	}
	return string(b)
}
