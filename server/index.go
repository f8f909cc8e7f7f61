package server

import (
	"html/template"
	"net/http"

	"github.com/TFMV/matchgraph/graph"
	"go.uber.org/zap"
)

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>MatchGraph - Team Influence</title>
  <style>
    body {
      font-family: 'Helvetica Neue', Arial, sans-serif;
      margin: 0;
      padding: 20px;
      background: #f5f5f5;
      color: #333;
    }
    .container {
      max-width: 1280px;
      margin: 0 auto;
      background: white;
      padding: 30px;
      border-radius: 8px;
      box-shadow: 0 2px 10px rgba(0,0,0,0.1);
    }
    h1 {
      color: #2a2a2a;
      margin-top: 0;
      border-bottom: 2px solid #eee;
      padding-bottom: 10px;
    }
    .controls {
      margin: 20px 0;
      padding: 20px;
      background: #f9f9f9;
      border-radius: 4px;
    }
    .kpis span {
      display: inline-block;
      margin-right: 24px;
    }
    .btn {
      background: #4285f4;
      color: white;
      border: none;
      padding: 10px 20px;
      border-radius: 4px;
      cursor: pointer;
      font-size: 16px;
    }
    select, input {
      padding: 8px;
      font-size: 16px;
      border: 1px solid #ddd;
      border-radius: 4px;
      margin-right: 10px;
    }
    img { max-width: 100%; }
    table {
      width: 100%;
      border-collapse: collapse;
      margin-top: 20px;
    }
    th, td {
      text-align: left;
      padding: 6px 10px;
      border-bottom: 1px solid #eee;
    }
  </style>
</head>
<body>
  <div class="container">
    <h1>MatchGraph: Team Influence</h1>

    <form class="controls" id="controls">
      <select name="mode">
        {{range .Modes}}<option value="{{.}}">{{.}}</option>{{end}}
      </select>
      <input type="number" name="threshold" min="1" value="{{.Threshold}}">
      <input type="date" name="from">
      <input type="date" name="to">
      <select name="competition"><option value="">All competitions</option></select>
      <select name="team"><option value="">All teams</option></select>
      <button type="submit" class="btn">Update</button>
    </form>

    <div class="kpis" id="kpis"></div>
    <img id="graph" alt="Team influence graph" src="/graph.svg">
    <table id="matches">
      <thead>
        <tr><th>Date</th><th>Competition</th><th>Home</th><th>Score</th><th>Away</th></tr>
      </thead>
      <tbody></tbody>
    </table>
  </div>
  <script>
    const form = document.getElementById('controls');
    async function fill(name, url) {
      const select = form.elements[name];
      for (const v of await (await fetch(url)).json()) {
        select.add(new Option(v, v));
      }
    }
    async function update(ev) {
      if (ev) ev.preventDefault();
      const q = new URLSearchParams(new FormData(form)).toString();
      document.getElementById('graph').src = '/graph.svg?' + q;
      const k = await (await fetch('/api/kpis?' + q)).json();
      document.getElementById('kpis').innerHTML =
        '<span>Matches: ' + (k.matches ?? 0) + '</span>' +
        '<span>Goals per match: ' + (k.goals_per_match ?? 0) + '</span>' +
        '<span>Home wins: ' + (k.home_win_rate ?? 0) + '%</span>' +
        '<span>Away wins: ' + (k.away_win_rate ?? 0) + '%</span>' +
        '<span>Draws: ' + (k.draw_rate ?? 0) + '%</span>';
      const body = document.querySelector('#matches tbody');
      body.replaceChildren();
      const res = await fetch('/api/matches?' + q);
      if (!res.ok) return;
      for (const m of await res.json()) {
        const row = body.insertRow();
        for (const v of [(m.match_date || '').slice(0, 10), m.competition,
                         m.home_team, m.home_score + ' - ' + m.away_score, m.away_team]) {
          row.insertCell().textContent = v ?? '';
        }
      }
    }
    form.addEventListener('submit', update);
    fill('competition', '/api/competitions');
    fill('team', '/api/teams');
    update();
  </script>
</body>
</html>
`))

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct {
		Modes     []graph.Mode
		Threshold int
	}{graph.Modes, graph.DefaultThreshold}
	if err := indexTemplate.Execute(w, data); err != nil {
		s.logger.Warn("rendering index", zap.Error(err))
	}
}
