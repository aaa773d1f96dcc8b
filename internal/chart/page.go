package chart

import (
	"html/template"
	"io"
)

// PageData feeds the selection page.
type PageData struct {
	Periods  []string
	Selected string
	BuiltAt  string
}

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
	<title>Sector ETF Adjusted Close</title>
	<meta charset="utf-8">
	<meta name="viewport" content="width=device-width, initial-scale=1">
	<script src="https://cdn.jsdelivr.net/npm/chart.js"></script>
	<style>
		body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; margin: 0; padding: 20px; background-color: #f8f9fa; color: #333; }
		.container { max-width: 1200px; margin: 0 auto; background-color: #fff; padding: 20px; border-radius: 8px; box-shadow: 0 2px 10px rgba(0,0,0,0.05); }
		.chart-container { position: relative; height: 65vh; width: 100%; }
		.metadata { margin-top: 20px; font-size: 0.9em; color: #666; }
	</style>
</head>
<body>
	<div class="container">
		<label for="period">Economic Time Period</label>
		<select id="period">
		{{- range .Periods}}
			<option value="{{.}}"{{if eq . $.Selected}} selected{{end}}>{{.}}</option>
		{{- end}}
		</select>
		<div class="chart-container">
			<canvas id="sectorChart"></canvas>
		</div>
		<div class="metadata">
			<p>Data built: {{.BuiltAt}} · <a id="csv" href="#">CSV</a> · <a id="parquet" href="#">Parquet</a></p>
		</div>
	</div>
	<script>
		const ctx = document.getElementById('sectorChart').getContext('2d');
		let chart = null;

		async function render(period) {
			const resp = await fetch('/api/chart/' + encodeURIComponent(period));
			if (!resp.ok) {
				return;
			}
			const spec = await resp.json();
			const datasets = spec.traces.map(t => ({ label: t.name, data: t.y, fill: false, spanGaps: true, pointRadius: 0, borderWidth: 1.5 }));
			if (chart) {
				chart.destroy();
			}
			chart = new Chart(ctx, {
				type: 'line',
				data: { labels: spec.x, datasets: datasets },
				options: {
					responsive: true,
					maintainAspectRatio: false,
					scales: {
						x: { title: { display: true, text: spec.x_label }, ticks: { maxTicksLimit: 12, maxRotation: 0 } },
						y: { title: { display: true, text: spec.y_label } }
					},
					plugins: { title: { display: true, text: spec.title } }
				}
			});
			document.getElementById('csv').href = '/api/table/' + encodeURIComponent(period) + '?format=csv';
			document.getElementById('parquet').href = '/api/table/' + encodeURIComponent(period) + '?format=parquet';
		}

		const select = document.getElementById('period');
		select.addEventListener('change', () => render(select.value));
		render(select.value);
	</script>
</body>
</html>
`))

// WritePage renders the selection page.
func WritePage(w io.Writer, data PageData) error {
	return pageTmpl.Execute(w, data)
}
