// Package parser turns the text docker compose streams while it works into
// lifecycle events and error lines.
package parser

import (
	"regexp"
	"strings"
)

// Event is one member status announcement, e.g. "Container web-1  Started".
type Event struct {
	Member string `json:"member"`
	Status string `json:"status"` // lowercased
	Raw    string `json:"raw"`
}

// Result is everything Parse extracts from a chunk of output.
type Result struct {
	Events []Event
	Errors []string
	Lines  []string
}

var lineSplit = regexp.MustCompile(`\r?\n`)

var eventPattern = regexp.MustCompile(`(?i)\bContainer\s+(?P<name>[\w\-.]+)\s+(?P<status>Started|Starting|Stopped|Stopping|Healthy|Unhealthy|Created|Creating|Recreated|Recreate|Running|Removed|Removing|Restarting|Waiting)\b`)

// Parse splits content into trimmed non-empty lines, collects every line
// mentioning "error" (case-insensitive) and every container status event.
//
// Parse is a pure function: the drain loop calls it with the whole log on
// every tick and deduplicates on its side.
func Parse(content string) Result {
	var res Result
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return res
	}

	for _, line := range lineSplit.Split(trimmed, -1) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		res.Lines = append(res.Lines, line)

		// Coarse on purpose: "0 errors found" is flagged too.
		if strings.Contains(strings.ToLower(line), "error") {
			res.Errors = append(res.Errors, line)
		}

		if m := eventPattern.FindStringSubmatch(line); m != nil {
			res.Events = append(res.Events, Event{
				Member: m[1],
				Status: strings.ToLower(m[2]),
				Raw:    line,
			})
		}
	}
	return res
}
