// package formatter renders shows, episodes, and run history for CLI output (plain text, CSV, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/desertthunder/podkeep/internal/models"
	"github.com/desertthunder/podkeep/internal/services"
	"github.com/desertthunder/podkeep/internal/tasks"
	"github.com/dustin/go-humanize"
)

// FormatDurationMS renders an episode duration in h/m/s form, e.g. "1h2m" or "38m".
func FormatDurationMS(ms int) string {
	if ms <= 0 {
		return "0s"
	}

	d := time.Duration(ms) * time.Millisecond
	d = d.Round(time.Minute)

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh%dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm", minutes)
	default:
		return fmt.Sprintf("%ds", int((time.Duration(ms) * time.Millisecond).Seconds()))
	}
}

// ShowsToText renders followed shows as a numbered list.
func ShowsToText(shows []services.Show) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Followed shows: %d\n\n", len(shows)))
	for i, show := range shows {
		buf.WriteString(fmt.Sprintf("%d. %s - %s (%d episodes)\n", i+1, show.Name, show.Publisher, show.TotalEpisodes))
		if show.ID != "" {
			buf.WriteString(fmt.Sprintf("   ID: %s\n", show.ID))
		}
	}

	return buf.Bytes()
}

// ShowsToCSV renders followed shows with columns: ID, Name, Publisher, Episodes
func ShowsToCSV(shows []services.Show) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Name", "Publisher", "Episodes"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, show := range shows {
		record := []string{
			show.ID,
			show.Name,
			show.Publisher,
			strconv.Itoa(show.TotalEpisodes),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// EpisodesToText renders episodes as a numbered list with release dates,
// durations, and playback state markers.
func EpisodesToText(episodes []services.Episode) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Episodes: %d\n\n", len(episodes)))
	for i, ep := range episodes {
		marker := " "
		if ep.FullyPlayed {
			marker = "✓"
		}

		buf.WriteString(fmt.Sprintf("%d. [%s] %s (%s, %s)\n", i+1, marker, ep.Name, ep.ReleaseDate, FormatDurationMS(ep.DurationMS)))
		if ep.ShowName != "" {
			buf.WriteString(fmt.Sprintf("   %s\n", ep.ShowName))
		}
	}

	return buf.Bytes()
}

// EpisodesToCSV renders episodes with columns: ID, Name, Show, ReleaseDate, Duration, FullyPlayed
func EpisodesToCSV(episodes []services.Episode) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Name", "Show", "ReleaseDate", "Duration", "FullyPlayed"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, ep := range episodes {
		record := []string{
			ep.ID,
			ep.Name,
			ep.ShowName,
			ep.ReleaseDate,
			FormatDurationMS(ep.DurationMS),
			strconv.FormatBool(ep.FullyPlayed),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// RunResultToText renders an engine result: per-episode outcomes followed by
// a summary line.
func RunResultToText(result *tasks.RunResult) []byte {
	var buf bytes.Buffer

	verb := "Saved"
	if result.Kind != tasks.KindSave {
		verb = "Removed"
	}
	if result.DryRun {
		verb = "Would have " + lower(verb)
	}

	for _, action := range result.Actions {
		if action.Err != nil {
			name := action.Episode.Name
			if name == "" {
				name = action.Episode.ShowName
			}
			buf.WriteString(fmt.Sprintf("✗ %s: %v\n", name, action.Err))
			continue
		}

		line := action.Episode.Name
		if action.Episode.ShowName != "" {
			line = fmt.Sprintf("%s - %s", action.Episode.ShowName, action.Episode.Name)
		}
		if action.Episode.ReleaseDate != "" {
			line += fmt.Sprintf(" (%s)", action.Episode.ReleaseDate)
		}
		buf.WriteString(fmt.Sprintf("✓ %s\n", line))
	}

	if len(result.Actions) > 0 {
		buf.WriteString("\n")
	}

	buf.WriteString(fmt.Sprintf("%s %d episodes", verb, result.Succeeded))
	if result.Skipped > 0 {
		buf.WriteString(fmt.Sprintf(", %d shows skipped", result.Skipped))
	}
	if result.Failed > 0 {
		buf.WriteString(fmt.Sprintf(", %d failures", result.Failed))
	}
	buf.WriteString("\n")

	return buf.Bytes()
}

func lower(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]|0x20) + s[1:]
}

// HistoryToText renders past runs, newest first, with relative timestamps.
func HistoryToText(runs []*models.Run) []byte {
	var buf bytes.Buffer

	if len(runs) == 0 {
		buf.WriteString("No runs recorded.\n")
		return buf.Bytes()
	}

	for _, run := range runs {
		status := "in progress"
		if !run.FinishedAt().IsZero() {
			status = fmt.Sprintf("%d ok / %d failed", run.Succeeded(), run.Failed())
		}

		buf.WriteString(fmt.Sprintf("%-6s %s  %s  (%s)\n",
			run.Kind(), run.ID(), humanize.Time(run.StartedAt()), status))
	}

	return buf.Bytes()
}

// RunDetailToText renders a single run with its episode records.
func RunDetailToText(run *models.Run, episodes []*models.RunEpisode) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Run %s (%s)\n", run.ID(), run.Kind()))
	buf.WriteString(fmt.Sprintf("Started: %s\n", run.StartedAt().Format(time.RFC3339)))
	if !run.FinishedAt().IsZero() {
		buf.WriteString(fmt.Sprintf("Finished: %s\n", run.FinishedAt().Format(time.RFC3339)))
	}
	buf.WriteString(fmt.Sprintf("Processed: %d, Succeeded: %d, Failed: %d\n", run.Processed(), run.Succeeded(), run.Failed()))

	if len(episodes) > 0 {
		buf.WriteString("\n")
	}

	for _, ep := range episodes {
		if ep.Failed() {
			name := ep.EpisodeName()
			if name == "" {
				name = ep.ShowName()
			}
			buf.WriteString(fmt.Sprintf("✗ %s: %s\n", name, ep.ErrMsg()))
			continue
		}

		buf.WriteString(fmt.Sprintf("✓ %s - %s (%s)\n", ep.ShowName(), ep.EpisodeName(), ep.ReleaseDate()))
	}

	return buf.Bytes()
}

// ToJSON marshals any value as indented JSON for CLI output.
func ToJSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return data, nil
}
