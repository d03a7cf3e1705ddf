package statushttp

import (
	"html/template"
	"strings"

	"github.com/altiscale/transferaccelerator/internal/proxycore"
)

// statsPageTemplate is an auto-refreshing HTML page: a healthy-upstream
// count followed by a table with one row of counters per upstream. It has
// no aggregate (all-upstream) byte-rate or connection totals. No
// templating library exists in this codebase's dependency set for
// anything beyond html/template, and this page is explicitly out of
// scope for anything fancier than read-only counter rendering.
var statsPageTemplate = template.Must(template.New("stats").Parse(`<html>
<head>
<meta http-equiv="refresh" content="5">
<title>transferaccelerator status</title>
</head>
<body>
<h1>transferaccelerator</h1>
<p>{{.HealthyCount}} / {{.TotalCount}} upstreams healthy</p>
<table border="1" cellpadding="4">
<tr>
<th>Upstream</th><th>Healthy</th><th>Open</th><th>Opened</th><th>Closed</th><th>Failed</th>
<th>Bytes/s</th><th>Bytes/min</th><th>Bytes/hr</th><th>Bytes total</th>
</tr>
{{range .Rows}}<tr>
<td>{{.Endpoint}}</td>
<td>{{if .Healthy}}yes{{else}}no{{end}}</td>
<td>{{.Open}}</td>
<td>{{.OpenedTotal}}</td>
<td>{{.ClosedTotal}}</td>
<td>{{.FailedTotal}}</td>
<td>{{.ByteRateLastSecond}}</td>
<td>{{.ByteRateLastMinute}}</td>
<td>{{.ByteRateLastHour}}</td>
<td>{{.ByteRateTotal}}</td>
</tr>
{{end}}
</table>
</body>
</html>
`))

type statsRow struct {
	proxycore.UpstreamStats
	Open uint64
}

type statsPageData struct {
	HealthyCount int
	TotalCount   int
	Rows         []statsRow
}

// renderStatsPage renders the full /stats HTML document for proxy.
func renderStatsPage(proxy *proxycore.Proxy) string {
	upstreams := proxy.Upstreams()
	data := statsPageData{
		TotalCount: len(upstreams),
		Rows:       make([]statsRow, 0, len(upstreams)),
	}
	for _, u := range upstreams {
		st := u.Stats()
		if st.Healthy {
			data.HealthyCount++
		}
		open := st.OpenedTotal - st.ClosedTotal
		data.Rows = append(data.Rows, statsRow{UpstreamStats: st, Open: open})
	}

	var sb strings.Builder
	if err := statsPageTemplate.Execute(&sb, data); err != nil {
		return "<html><body>error rendering status page</body></html>"
	}
	return sb.String()
}
