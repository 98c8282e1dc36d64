// package formatter renders job snapshots for CLI output (table, CSV, Markdown)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/desertthunder/vidmark/internal/models"
)

// SortJobs flattens a snapshot map into a slice ordered by observation time,
// oldest first, with job id as the tiebreaker so output is stable.
func SortJobs(snapshot map[string]models.ProgressEvent) []models.ProgressEvent {
	jobs := make([]models.ProgressEvent, 0, len(snapshot))
	for _, ev := range snapshot {
		jobs = append(jobs, ev)
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].ObservedAt.Equal(jobs[j].ObservedAt) {
			return jobs[i].JobID < jobs[j].JobID
		}
		return jobs[i].ObservedAt.Before(jobs[j].ObservedAt)
	})
	return jobs
}

// JobsToTable renders jobs as an aligned text table.
func JobsToTable(jobs []models.ProgressEvent) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "JOB\tSTATUS\tPROGRESS\tVIDEOS\tOBSERVED\tMESSAGE")
	for _, ev := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%d%%\t%d/%d\t%s\t%s\n",
			ev.JobID, ev.Status, ev.Progress, ev.CurrentVideo, ev.TotalVideos,
			ev.ObservedAt.Format(time.RFC3339), ev.Message)
	}
	w.Flush()

	return buf.String()
}

// JobsToCSV converts jobs to CSV with columns: JobID, Status, Progress, CurrentVideo, TotalVideos, ObservedAt, Message
func JobsToCSV(jobs []models.ProgressEvent) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"JobID", "Status", "Progress", "CurrentVideo", "TotalVideos", "ObservedAt", "Message"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, ev := range jobs {
		record := []string{
			ev.JobID,
			string(ev.Status),
			strconv.Itoa(ev.Progress),
			strconv.Itoa(ev.CurrentVideo),
			strconv.Itoa(ev.TotalVideos),
			ev.ObservedAt.Format(time.RFC3339),
			ev.Message,
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

// JobsToMarkdown converts jobs to a Markdown table
func JobsToMarkdown(jobs []models.ProgressEvent) []byte {
	var buf bytes.Buffer

	buf.WriteString("# Jobs\n\n")
	buf.WriteString(fmt.Sprintf("**Watched**: %d\n\n", len(jobs)))
	buf.WriteString("| Job | Status | Progress | Videos | Message |\n")
	buf.WriteString("| --- | --- | --- | --- | --- |\n")
	for _, ev := range jobs {
		buf.WriteString(fmt.Sprintf("| %s | %s | %d%% | %d/%d | %s |\n",
			ev.JobID, ev.Status, ev.Progress, ev.CurrentVideo, ev.TotalVideos, ev.Message))
	}

	return buf.Bytes()
}
