package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// journalUnit is the systemd unit whose journal the log endpoints read.
const journalUnit = "qboost"

// maxJournalLines caps how much journal output one request can pull.
const maxJournalLines = 10000

// LogHandlers handles log access via journalctl
type LogHandlers struct {
	log zerolog.Logger
}

// NewLogHandlers creates a new log handlers instance
func NewLogHandlers(log zerolog.Logger) *LogHandlers {
	return &LogHandlers{
		log: log.With().Str("component", "log_handlers").Logger(),
	}
}

// LogSourceInfo represents an available log source
type LogSourceInfo struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

// LogListResponse represents the list of available log sources
type LogListResponse struct {
	Sources []LogSourceInfo `json:"sources"`
	Total   int             `json:"total"`
}

// LogContentResponse represents log content
type LogContentResponse struct {
	Lines  []string `json:"lines"`
	Total  int      `json:"total"`
	Status string   `json:"status"`
}

// HandleListLogs returns available log sources
func (h *LogHandlers) HandleListLogs(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Listing log sources")

	response := LogListResponse{
		Sources: []LogSourceInfo{
			{
				Name:   journalUnit,
				Source: "systemd journal",
			},
		},
		Total: 1,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// HandleGetLogs retrieves log content from journalctl with filtering
func (h *LogHandlers) HandleGetLogs(w http.ResponseWriter, r *http.Request) {
	level := strings.ToUpper(r.URL.Query().Get("level"))
	search := r.URL.Query().Get("search")
	lines := parseLineCount(r.URL.Query().Get("lines"), 100)

	h.log.Debug().
		Int("lines", lines).
		Str("level", level).
		Str("search", search).
		Msg("Getting log content from journalctl")

	logLines, err := h.readJournal(lines)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read journalctl logs")
		http.Error(w, "Failed to read logs", http.StatusInternalServerError)
		return
	}

	response := LogContentResponse{
		Lines:  h.filterLogs(logLines, level, search),
		Total:  len(logLines),
		Status: "ok",
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// HandleGetErrors retrieves only error logs from journalctl
func (h *LogHandlers) HandleGetErrors(w http.ResponseWriter, r *http.Request) {
	// Wider default window, errors are sparse
	lines := parseLineCount(r.URL.Query().Get("lines"), 500)

	h.log.Debug().Int("lines", lines).Msg("Getting error logs from journalctl")

	logLines, err := h.readJournal(lines)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read journalctl logs")
		http.Error(w, "Failed to read logs", http.StatusInternalServerError)
		return
	}

	response := LogContentResponse{
		Lines:  h.filterLogs(logLines, "ERROR", ""),
		Total:  len(logLines),
		Status: "ok",
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// readJournal pulls the last n lines of the unit's journal.
func (h *LogHandlers) readJournal(lines int) ([]string, error) {
	cmd := exec.Command("journalctl", "-u", journalUnit,
		fmt.Sprintf("--lines=%d", lines),
		"--output=short",
		"--no-pager")

	output, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	logLines := strings.Split(strings.TrimSpace(string(output)), "\n")
	if len(logLines) == 1 && logLines[0] == "" {
		logLines = []string{}
	}
	return logLines, nil
}

// parseLineCount parses the lines query parameter, clamped to the cap.
func parseLineCount(raw string, fallback int) int {
	lines := fallback
	if raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			lines = parsed
		}
	}
	if lines > maxJournalLines {
		lines = maxJournalLines
	}
	return lines
}

// filterLogs filters log lines by level and search term
func (h *LogHandlers) filterLogs(lines []string, level string, search string) []string {
	if level == "" && search == "" {
		return lines
	}

	filtered := make([]string, 0)

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}

		if level != "" && !h.lineMatchesLevel(line, level) {
			continue
		}

		if search != "" && !strings.Contains(strings.ToLower(line), strings.ToLower(search)) {
			continue
		}

		filtered = append(filtered, line)
	}

	return filtered
}

// lineMatchesLevel checks if a log line matches the specified level.
// Supports both zerolog JSON format and plain text format.
func (h *LogHandlers) lineMatchesLevel(line string, level string) bool {
	// JSON format: {"level":"error",...}
	if strings.Contains(line, `"level"`) {
		return strings.Contains(strings.ToLower(line), `"level":"`+strings.ToLower(level)+`"`)
	}

	// Plain text format: ERROR: message or [ERROR] message
	upperLine := strings.ToUpper(line)
	upperLevel := strings.ToUpper(level)

	return strings.Contains(upperLine, upperLevel+":") ||
		strings.Contains(upperLine, "["+upperLevel+"]") ||
		strings.Contains(upperLine, " "+upperLevel+" ")
}
