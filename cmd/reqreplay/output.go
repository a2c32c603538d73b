package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"reqreplay/pkg/model"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

// parseKinds 解析逗号分隔的资源类别
func parseKinds(s string) ([]model.Kind, error) {
	var out []model.Kind
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		k := model.Kind(part)
		if !k.Valid() {
			return nil, fmt.Errorf("unknown resource kind: %s", part)
		}
		out = append(out, k)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("at least one resource kind required")
	}
	return out, nil
}

func joinKinds(kinds []model.Kind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, ",")
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Format(time.DateTime)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func printEvent(w io.Writer, e model.Event) {
	switch e.Type {
	case model.EventReplayed:
		fmt.Fprintf(w, "replayed  %-6s %s\n", e.Method, e.URL)
	case model.EventCaptured:
		fmt.Fprintf(w, "captured  %-6s %s\n", e.Method, e.URL)
	}
}
