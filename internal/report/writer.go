// Package report renders search results into shareable artifacts.
package report

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/mbazhenov/scoutbot/internal/scout"
)

// timeLayout renders timestamps in the report header. Reports always use UTC
// so two renders of the same job are byte-identical regardless of host zone.
const timeLayout = "2006-01-02 15:04:05 UTC"

// Artifacts holds the stored report locations for one job.
type Artifacts struct {
	TextURI string
	HTMLURI string
}

// Writer renders a terminal job into text and HTML reports. Rendering is a
// pure function of the job snapshot: same job, same bytes.
type Writer struct {
	htmlTmpl *template.Template
}

// NewWriter constructs a Writer.
func NewWriter() *Writer {
	return &Writer{
		htmlTmpl: template.Must(template.New("report").Parse(htmlTemplate)),
	}
}

// RenderText produces the plain-text report.
func (w *Writer) RenderText(job scout.Job) []byte {
	var b strings.Builder
	b.WriteString("Username Search Report\n")
	b.WriteString("======================\n\n")
	fmt.Fprintf(&b, "Username:       %s\n", job.Parameters.Username)
	fmt.Fprintf(&b, "Date/Time:      %s\n", finishedAt(job).Format(timeLayout))
	fmt.Fprintf(&b, "Status:         %s\n", job.Status)
	fmt.Fprintf(&b, "Sites Checked:  %d\n", job.SitesChecked)
	fmt.Fprintf(&b, "Accounts Found: %d\n", len(job.Found))
	fmt.Fprintf(&b, "Duration:       %s\n", formatDuration(job.Duration(finishedAt(job))))
	b.WriteString("\n")

	if len(job.Found) == 0 {
		b.WriteString("No accounts found.\n")
		return []byte(b.String())
	}

	b.WriteString("Found Accounts\n")
	b.WriteString("--------------\n")
	for i, acct := range job.Found {
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, acct.Site, acct.URL)
		if len(acct.Tags) > 0 {
			fmt.Fprintf(&b, "   tags: %s\n", strings.Join(acct.Tags, ", "))
		}
	}
	return []byte(b.String())
}

// RenderHTML produces the HTML report. All job-derived values pass through
// html/template so hostile usernames or site metadata cannot inject markup.
func (w *Writer) RenderHTML(job scout.Job) ([]byte, error) {
	data := htmlData{
		Username:      job.Parameters.Username,
		FinishedAt:    finishedAt(job).Format(timeLayout),
		Status:        string(job.Status),
		SitesChecked:  job.SitesChecked,
		AccountsFound: len(job.Found),
		Duration:      formatDuration(job.Duration(finishedAt(job))),
	}
	for i, acct := range job.Found {
		data.Accounts = append(data.Accounts, htmlAccount{
			Index: i + 1,
			Site:  acct.Site,
			URL:   acct.URL,
			Tags:  strings.Join(acct.Tags, ", "),
		})
	}
	var buf bytes.Buffer
	if err := w.htmlTmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render html report: %w", err)
	}
	return buf.Bytes(), nil
}

// Store renders both formats and writes them to the blob store under
// reports/<username>/<job-id>.{txt,html}.
func (w *Writer) Store(ctx context.Context, blobs scout.BlobStore, job scout.Job) (Artifacts, error) {
	if !job.Status.IsTerminal() {
		return Artifacts{}, fmt.Errorf("job %s is not terminal", job.ID)
	}
	base := fmt.Sprintf("reports/%s/%s", job.Parameters.Username, job.ID)

	textURI, err := blobs.Put(ctx, base+".txt", "text/plain; charset=utf-8", w.RenderText(job))
	if err != nil {
		return Artifacts{}, fmt.Errorf("store text report: %w", err)
	}
	html, err := w.RenderHTML(job)
	if err != nil {
		return Artifacts{}, err
	}
	htmlURI, err := blobs.Put(ctx, base+".html", "text/html; charset=utf-8", html)
	if err != nil {
		return Artifacts{}, fmt.Errorf("store html report: %w", err)
	}
	return Artifacts{TextURI: textURI, HTMLURI: htmlURI}, nil
}

func finishedAt(job scout.Job) time.Time {
	if job.Finished != nil {
		return job.Finished.UTC()
	}
	return job.Submitted.UTC()
}

// formatDuration renders whole seconds; sub-second noise would break the
// byte-for-byte determinism of repeated renders.
func formatDuration(d time.Duration) string {
	return d.Round(time.Second).String()
}

type htmlAccount struct {
	Index int
	Site  string
	URL   string
	Tags  string
}

type htmlData struct {
	Username      string
	FinishedAt    string
	Status        string
	SitesChecked  int
	AccountsFound int
	Duration      string
	Accounts      []htmlAccount
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Search Report: {{.Username}}</title>
<style>
body { font-family: sans-serif; margin: 2rem; color: #222; }
table { border-collapse: collapse; margin-top: 1rem; }
th, td { border: 1px solid #ccc; padding: 0.4rem 0.8rem; text-align: left; }
th { background: #f0f0f0; }
.summary dt { font-weight: bold; }
</style>
</head>
<body>
<h1>Username Search Report</h1>
<dl class="summary">
<dt>Username</dt><dd>{{.Username}}</dd>
<dt>Date/Time</dt><dd>{{.FinishedAt}}</dd>
<dt>Status</dt><dd>{{.Status}}</dd>
<dt>Sites Checked</dt><dd>{{.SitesChecked}}</dd>
<dt>Accounts Found</dt><dd>{{.AccountsFound}}</dd>
<dt>Duration</dt><dd>{{.Duration}}</dd>
</dl>
{{if .Accounts}}
<table>
<tr><th>#</th><th>Site</th><th>URL</th><th>Tags</th></tr>
{{range .Accounts}}<tr><td>{{.Index}}</td><td>{{.Site}}</td><td><a href="{{.URL}}">{{.URL}}</a></td><td>{{.Tags}}</td></tr>
{{end}}</table>
{{else}}
<p>No accounts found.</p>
{{end}}
</body>
</html>
`
