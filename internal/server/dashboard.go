package server

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"github.com/imperius/imperius/internal/scoring"
	"github.com/imperius/imperius/internal/stats"
)

const dashboardLayout = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}} — Imperius</title>
<style>
body{font-family:-apple-system,sans-serif;max-width:960px;margin:2rem auto;padding:0 1rem;color:#1a1a2e}
h1{font-size:1.4rem}
table{border-collapse:collapse;width:100%;margin:1rem 0}
th,td{text-align:left;padding:.4rem .6rem;border-bottom:1px solid #ddd}
th{font-size:.75rem;text-transform:uppercase;color:#666}
.badge{display:inline-block;padding:.1rem .5rem;border-radius:.6rem;font-size:.75rem}
.badge.running{background:#d2f8d2}.badge.paused{background:#fff3cd}.badge.completed{background:#e2e3e5}
.badge.hot{background:#f8d7da}.badge.warm{background:#fff3cd}.badge.cold{background:#d1ecf1}
.winner{font-weight:600;color:#0a7d32}
.muted{color:#888;font-size:.85rem}
a{color:#3851a3}
</style>
</head>
<body>
<p><a href="/dashboard">Imperius dashboard</a> · <a href="/dashboard?logout=1">logout</a></p>
{{.Content}}
</body>
</html>`

const dashboardOverview = `<h1>Overview</h1>
<p class="muted">{{.SignupCount}} waitlist signups · {{.HotLeads}} hot / {{.WarmLeads}} warm / {{.ColdLeads}} cold leads</p>
<h2>A/B tests</h2>
{{if .Tests}}
<table>
<tr><th>Test</th><th>State</th><th>Variants</th><th>Visitors</th><th>Conversions</th><th>Leading</th></tr>
{{range .Tests}}
<tr>
<td><a href="/dashboard/test/{{.Name}}">{{.Name}}</a></td>
<td><span class="badge {{.State}}">{{.State}}</span></td>
<td>{{.VariantCount}}</td>
<td>{{.Visitors}}</td>
<td>{{.Conversions}}</td>
<td>{{.Leading}}</td>
</tr>
{{end}}
</table>
{{else}}<p>No tests yet. Create one with <code>imperius create-test</code>.</p>{{end}}
<h2>Top leads</h2>
{{if .Leads}}
<table>
<tr><th>Session</th><th>Total</th><th>Engagement</th><th>Intent</th><th>Quality</th><th>Band</th></tr>
{{range .Leads}}
<tr><td>{{.SessionID}}</td><td>{{.Total}}</td><td>{{.Engagement}}</td><td>{{.Intent}}</td><td>{{.Quality}}</td>
<td><span class="badge {{.Band}}">{{.Band}}</span></td></tr>
{{end}}
</table>
{{else}}<p class="muted">No scored sessions yet.</p>{{end}}`

const dashboardDetail = `<h1>{{.Name}} <span class="badge {{.State}}">{{.State}}</span></h1>
{{if .Winner}}<p class="winner">Winner: {{.Winner}}</p>{{end}}
<table>
<tr><th>Variant</th><th>Visitors</th><th>Conversions</th><th>Rate</th><th>95% CI</th><th>p-value</th><th>Verdict</th></tr>
{{range .Variants}}
<tr>
<td>{{.Name}}{{if .IsControl}} <span class="muted">(control)</span>{{end}}</td>
<td>{{.Visitors}}</td>
<td>{{.Conversions}}</td>
<td>{{.Rate}}</td>
<td>{{.CI}}</td>
<td>{{.PValue}}</td>
<td>{{.Verdict}}</td>
</tr>
{{end}}
</table>
<p class="muted">Leading variant: {{.Leading}}</p>`

var (
	layoutTmpl   = template.Must(template.New("layout").Parse(dashboardLayout))
	overviewTmpl = template.Must(template.New("overview").Parse(dashboardOverview))
	detailTmpl   = template.Must(template.New("detail").Parse(dashboardDetail))
)

type layoutData struct {
	Title   string
	Content template.HTML
}

type overviewData struct {
	SignupCount int
	HotLeads    int
	WarmLeads   int
	ColdLeads   int
	Tests       []overviewTest
	Leads       []overviewLead
}

type overviewTest struct {
	Name         string
	State        string
	VariantCount int
	Visitors     int
	Conversions  int
	Leading      string
}

type overviewLead struct {
	SessionID  string
	Total      int
	Engagement int
	Intent     int
	Quality    int
	Band       string
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tests, err := s.store.ListTests(ctx)
	if err != nil {
		http.Error(w, "Failed to load tests", http.StatusInternalServerError)
		return
	}

	data := overviewData{}

	for _, t := range tests {
		samples, _ := s.store.GetVariantSamples(ctx, t.Name)
		result := stats.AnalyzeTest(t, samples)

		visitors, conversions := 0, 0
		for _, vs := range samples {
			visitors += vs.Visitors
			conversions += vs.Conversions
		}

		data.Tests = append(data.Tests, overviewTest{
			Name:         t.Name,
			State:        string(t.State),
			VariantCount: len(t.Variants),
			Visitors:     visitors,
			Conversions:  conversions,
			Leading:      result.LeadingVariant,
		})
	}

	data.SignupCount, _ = s.store.CountSignups(ctx)

	leads, err := s.store.ListLeadScores(ctx, 25)
	if err != nil {
		s.logger.Warn("failed to list lead scores", zap.Error(err))
	}
	for _, l := range leads {
		band := scoring.Qualify(l.TotalScore)
		switch band {
		case "hot":
			data.HotLeads++
		case "warm":
			data.WarmLeads++
		default:
			data.ColdLeads++
		}
		data.Leads = append(data.Leads, overviewLead{
			SessionID:  l.SessionID,
			Total:      l.TotalScore,
			Engagement: l.EngagementScore,
			Intent:     l.IntentScore,
			Quality:    l.QualityScore,
			Band:       band,
		})
	}

	s.renderDashboard(w, "Overview", overviewTmpl, data)
}

type detailData struct {
	Name     string
	State    string
	Winner   string
	Leading  string
	Variants []detailVariant
}

type detailVariant struct {
	Name        string
	IsControl   bool
	Visitors    int
	Conversions int
	Rate        string
	CI          string
	PValue      string
	Verdict     string
}

func (s *Server) handleDashboardTest(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Path[len("/dashboard/test/"):]
	if name == "" {
		http.NotFound(w, r)
		return
	}

	ctx := r.Context()

	test, err := s.store.GetTest(ctx, name)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	samples, err := s.store.GetVariantSamples(ctx, name)
	if err != nil {
		http.Error(w, "Failed to load stats", http.StatusInternalServerError)
		return
	}

	result := stats.AnalyzeTest(test, samples)

	data := detailData{
		Name:    test.Name,
		State:   string(test.State),
		Winner:  test.WinnerVariant,
		Leading: result.LeadingVariant,
	}

	for _, v := range result.Variants {
		dv := detailVariant{
			Name:        v.Name,
			IsControl:   v.IsControl,
			Visitors:    v.Visitors,
			Conversions: v.Conversions,
			Rate:        fmt.Sprintf("%.2f%%", v.Rate*100),
			CI:          fmt.Sprintf("[%.1f%%, %.1f%%]", v.CILower*100, v.CIUpper*100),
			PValue:      "—",
			Verdict:     "—",
		}
		if v.Visitors == 0 {
			dv.CI = "N/A"
		}
		if v.Significance != nil {
			dv.PValue = fmt.Sprintf("%.4f", v.Significance.PValue)
			if v.Significance.IsSignificant {
				dv.Verdict = fmt.Sprintf("significant (%.1f%%)", v.Significance.Confidence)
			} else {
				dv.Verdict = "not significant"
			}
		}
		data.Variants = append(data.Variants, dv)
	}

	s.renderDashboard(w, test.Name, detailTmpl, data)
}

func (s *Server) handleDashboardAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	tests, err := s.store.ListTests(ctx)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to load tests")
		return
	}

	results := make([]*stats.TestResult, 0, len(tests))
	for _, t := range tests {
		samples, err := s.store.GetVariantSamples(ctx, t.Name)
		if err != nil {
			s.logger.Warn("failed to load samples", zap.String("test", t.Name), zap.Error(err))
			continue
		}
		results = append(results, stats.AnalyzeTest(t, samples))
	}

	signups, _ := s.store.CountSignups(ctx)

	s.respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"tests":   results,
		"signups": signups,
	})
}

func (s *Server) renderDashboard(w http.ResponseWriter, title string, tmpl *template.Template, data any) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		s.logger.Error("dashboard render failed", zap.Error(err))
		http.Error(w, "Render failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := layoutTmpl.Execute(w, layoutData{Title: title, Content: template.HTML(buf.String())}); err != nil {
		s.logger.Error("dashboard render failed", zap.Error(err))
	}
}
