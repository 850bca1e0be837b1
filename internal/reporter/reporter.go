// Package reporter generates bill reports
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/lvonguyen/bill-insights/internal/engine"
	"github.com/lvonguyen/bill-insights/internal/rules"
)

// ReportData contains all data for report generation
type ReportData struct {
	Explanation *engine.Explanation `json:"explanation"`
	Flags       []rules.Flag        `json:"flags"`
	GeneratedAt time.Time           `json:"generated_at"`
	RunID       string              `json:"run_id,omitempty"`
}

// Title names the report in file names and headings
func (d ReportData) Title() string {
	return fmt.Sprintf("bill-report-%d-%s", d.Explanation.Summary.UserID, d.Explanation.Summary.Period)
}

// Reporter generates bill reports
type Reporter struct {
	outputDir string
}

// New creates a new Reporter writing under outputDir
func New(outputDir string) *Reporter {
	return &Reporter{outputDir: outputDir}
}

func (r *Reporter) create(data ReportData, ext string) (*os.File, string, error) {
	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return nil, "", fmt.Errorf("failed to create output directory: %w", err)
	}

	filename := fmt.Sprintf("%s-%s.%s", data.Title(), data.GeneratedAt.Format("20060102-150405"), ext)
	outputPath := filepath.Join(r.outputDir, filename)

	f, err := os.Create(outputPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create file: %w", err)
	}
	return f, outputPath, nil
}

// GenerateHTML generates an HTML report
func (r *Reporter) GenerateHTML(data ReportData) (string, error) {
	f, outputPath, err := r.create(data, "html")
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := reportTemplate.Execute(f, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return outputPath, nil
}

// GenerateCSV writes one row per bill category with its baseline comparison
// and tax allocation
func (r *Reporter) GenerateCSV(data ReportData) (string, error) {
	f, outputPath, err := r.create(data, "csv")
	if err != nil {
		return "", err
	}
	defer f.Close()

	writer := csv.NewWriter(f)

	if err := writer.Write([]string{"Category", "Amount", "Baseline Mean", "Delta", "Allocated Tax", "Net", "Anomaly", "Severity", "Reason"}); err != nil {
		return "", err
	}

	x := data.Explanation
	tax := make(map[string][2]float64)
	for _, c := range x.TaxAllocation.ByCategory {
		tax[string(c.Category)] = [2]float64{c.AllocatedTax, c.Net}
	}
	flagged := make(map[string][2]string)
	for _, a := range x.Anomalies {
		flagged[string(a.Category)] = [2]string{a.Severity, a.Reason}
	}

	for _, c := range x.Contributors {
		cat := string(c.Category)
		t := tax[cat]
		a, isAnomaly := flagged[cat]
		row := []string{
			cat,
			fmt.Sprintf("%.2f", c.Current),
			fmt.Sprintf("%.2f", c.BaselineMean),
			fmt.Sprintf("%+.2f", c.Delta),
			fmt.Sprintf("%.2f", t[0]),
			fmt.Sprintf("%.2f", t[1]),
			fmt.Sprintf("%t", isAnomaly),
			a[0],
			a[1],
		}
		if err := writer.Write(row); err != nil {
			return "", err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", fmt.Errorf("failed to write CSV: %w", err)
	}
	return outputPath, nil
}

// GenerateJSON generates a JSON report
func (r *Reporter) GenerateJSON(data ReportData) (string, error) {
	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	filename := fmt.Sprintf("%s-%s.json", data.Title(), data.GeneratedAt.Format("20060102-150405"))
	outputPath := filepath.Join(r.outputDir, filename)

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(outputPath, jsonData, 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return outputPath, nil
}

// Generate writes the report in the given format: html, csv or json
func (r *Reporter) Generate(format string, data ReportData) (string, error) {
	switch format {
	case "html":
		return r.GenerateHTML(data)
	case "csv":
		return r.GenerateCSV(data)
	case "json":
		return r.GenerateJSON(data)
	default:
		return "", fmt.Errorf("unknown report format %q", format)
	}
}

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"money": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"deref": func(v *float64) string {
		if v == nil {
			return "n/a"
		}
		return fmt.Sprintf("%.2f", *v)
	},
}).Parse(htmlTemplate))

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Bill Report - {{.Explanation.Summary.Period}}</title>
    <style>
        :root {
            --bg-dark: #0f172a;
            --bg-card: #1e293b;
            --text-primary: #f1f5f9;
            --text-secondary: #94a3b8;
            --accent-blue: #3b82f6;
            --accent-green: #22c55e;
            --accent-yellow: #eab308;
            --accent-red: #ef4444;
            --border: #334155;
        }
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body {
            font-family: 'Inter', -apple-system, BlinkMacSystemFont, sans-serif;
            background: var(--bg-dark);
            color: var(--text-primary);
            line-height: 1.6;
            padding: 2rem;
        }
        .container { max-width: 1100px; margin: 0 auto; }
        h1 { font-size: 2rem; margin-bottom: 0.5rem; }
        .subtitle { color: var(--text-secondary); margin-bottom: 2rem; }
        .narrative { margin-bottom: 2rem; font-size: 1.1rem; }
        .stats-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(200px, 1fr));
            gap: 1rem;
            margin-bottom: 2rem;
        }
        .stat-card {
            background: var(--bg-card);
            border: 1px solid var(--border);
            border-radius: 12px;
            padding: 1.5rem;
        }
        .stat-label { color: var(--text-secondary); font-size: 0.875rem; }
        .stat-value { font-size: 1.75rem; font-weight: 700; }
        .stat-value.green { color: var(--accent-green); }
        .stat-value.red { color: var(--accent-red); }
        .section { margin-bottom: 2rem; }
        .section-title {
            font-size: 1.25rem;
            margin-bottom: 1rem;
            padding-bottom: 0.5rem;
            border-bottom: 1px solid var(--border);
        }
        table {
            width: 100%;
            border-collapse: collapse;
            background: var(--bg-card);
            border-radius: 12px;
            overflow: hidden;
        }
        th, td { padding: 0.75rem 1rem; text-align: left; }
        th { background: rgba(59, 130, 246, 0.1); color: var(--accent-blue); }
        tr:not(:last-child) { border-bottom: 1px solid var(--border); }
        .badge {
            display: inline-block;
            padding: 0.25rem 0.75rem;
            border-radius: 9999px;
            font-size: 0.75rem;
            font-weight: 600;
        }
        .badge.medium { background: rgba(234, 179, 8, 0.2); color: var(--accent-yellow); }
        .badge.high { background: rgba(239, 68, 68, 0.2); color: var(--accent-red); }
        .footer {
            margin-top: 3rem;
            padding-top: 1rem;
            border-top: 1px solid var(--border);
            color: var(--text-secondary);
            font-size: 0.875rem;
        }
    </style>
</head>
<body>
    {{$x := .Explanation}}{{$cur := $x.Summary.Currency}}
    <div class="container">
        <h1>Bill Report</h1>
        <p class="subtitle">Subscriber {{$x.Summary.UserID}} | {{$x.Summary.Period}} | Generated: {{.GeneratedAt.Format "2006-01-02 15:04:05 MST"}}</p>

        <p class="narrative">{{$x.Narrative}}</p>

        <div class="stats-grid">
            <div class="stat-card">
                <div class="stat-label">Bill Total</div>
                <div class="stat-value">{{money $x.Summary.Total}} {{$cur}}</div>
            </div>
            <div class="stat-card">
                <div class="stat-label">Baseline Mean</div>
                <div class="stat-value">{{deref $x.Summary.BaselineTotalMean}}</div>
            </div>
            <div class="stat-card">
                <div class="stat-label">Taxes</div>
                <div class="stat-value">{{money $x.Summary.Taxes}}</div>
            </div>
            <div class="stat-card">
                <div class="stat-label">Anomalies</div>
                <div class="stat-value {{if $x.Anomalies}}red{{else}}green{{end}}">{{len $x.Anomalies}}</div>
            </div>
        </div>

        {{if $x.Anomalies}}
        <div class="section">
            <h2 class="section-title">Anomalies</h2>
            <table>
                <thead>
                    <tr><th>Category</th><th>Amount</th><th>Baseline</th><th>Reason</th><th>Severity</th><th>Action</th></tr>
                </thead>
                <tbody>
                    {{range $x.Anomalies}}
                    <tr>
                        <td>{{.Category}}</td>
                        <td>{{money .Amount}}</td>
                        <td>{{money .BaselineMean}}</td>
                        <td>{{.Reason}}</td>
                        <td><span class="badge {{.Severity}}">{{.Severity}}</span></td>
                        <td>{{.SuggestedAction}}</td>
                    </tr>
                    {{end}}
                </tbody>
            </table>
        </div>
        {{end}}

        {{if .Flags}}
        <div class="section">
            <h2 class="section-title">Rule Flags</h2>
            <table>
                <thead><tr><th>Rule</th><th>Message</th><th>Severity</th></tr></thead>
                <tbody>
                    {{range .Flags}}
                    <tr>
                        <td>{{.Type}}</td>
                        <td>{{.Message}}</td>
                        <td><span class="badge {{.Severity}}">{{.Severity}}</span></td>
                    </tr>
                    {{end}}
                </tbody>
            </table>
        </div>
        {{end}}

        <div class="section">
            <h2 class="section-title">Tax Allocation</h2>
            <table>
                <thead>
                    <tr><th>Category</th><th>Gross</th><th>Allocated Tax</th><th>Net</th></tr>
                </thead>
                <tbody>
                    {{range $x.TaxAllocation.ByCategory}}
                    <tr>
                        <td>{{.Category}}</td>
                        <td>{{money .Gross}}</td>
                        <td>{{money .AllocatedTax}}</td>
                        <td>{{money .Net}}</td>
                    </tr>
                    {{end}}
                </tbody>
            </table>
        </div>

        {{if $x.Services}}
        <div class="section">
            <h2 class="section-title">Third-Party Services</h2>
            <table>
                <thead><tr><th>Service</th><th>Provider</th><th>List Price</th><th>Billed</th></tr></thead>
                <tbody>
                    {{range $x.Services}}
                    <tr>
                        <td>{{.Service}}</td>
                        <td>{{.Provider}}</td>
                        <td>{{money .ListPrice}}</td>
                        <td>{{money .Amount}}</td>
                    </tr>
                    {{end}}
                </tbody>
            </table>
        </div>
        {{end}}

        <div class="footer">
            <p>Generated by billcheck{{if .RunID}} | run {{.RunID}}{{end}}</p>
        </div>
    </div>
</body>
</html>`
