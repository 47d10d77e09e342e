package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/brew-monitor/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": formatUptime,
	"stamp": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return t.UTC().Format("2006-01-02T15:04:05Z")
	},
	"css": func(color string) template.CSS {
		return template.CSS("color: " + color)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Brew Monitor</title>
<style>
body { font-family: monospace; max-width: 640px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.connected { color: green; }
.disconnected { color: red; }
.idle { color: #888; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Brew Monitor{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>Sensor Lock</h2>
<table>
<tr><th>Holder</th><td>{{if .LockHolder}}{{.LockHolder}}{{else}}<span class="idle">free</span>{{end}}</td></tr>
<tr><th>Rig readings stored</th><td>{{.Rig.Stored}}</td></tr>
<tr><th>Rig readings dropped</th><td>{{.Rig.Dropped}}</td></tr>
</table>

<h2>Sessions</h2>
{{range .Sessions}}{{$s := .}}
<table id="session-{{.RecipeID}}">
<tr><th>Recipe</th><td>{{.RecipeID}} ({{.UserID}})</td></tr>
<tr><th>Since</th><td>{{stamp .Since}}</td></tr>
<tr><th>Temperature</th><td class="temp">{{with .Temperature}}<span style="{{css .Color}}">{{.Title}}</span> {{printf "%.1f°F" $s.TempF}}{{else}}<span class="idle">no reading</span>{{end}}</td></tr>
<tr><th>Stage</th><td class="stage">{{with .Stage}}<span style="{{css .Color}}">{{.Title}}</span> pH {{printf "%.2f" $s.PH}}{{else}}<span class="idle">no reading</span>{{end}}</td></tr>
<tr><th>Last reading</th><td>{{stamp .LastReadingAt}}</td></tr>
<tr><th>Alerts</th><td>{{.Counts.Transient}} toast, {{.Counts.Severe}} severe, {{.Counts.CriticalPush}} critical push</td></tr>
<tr><th>Harvest notified</th><td>{{if .HarvestNotified}}yes{{else}}no{{end}}</td></tr>
</table>
{{else}}
<p class="idle">Nothing is brewing.</p>
{{end}}

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Store</th><td class="{{if .StoreConnected}}connected{{else}}disconnected{{end}}">{{.Config.RedisAddr}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{stamp .StartTime}}</td></tr>
<tr><th>Severe cooldown</th><td>{{.Config.SevereCooldownMs}}ms</td></tr>
<tr><th>Critical push cooldown</th><td>{{.Config.CriticalPushCooldownMs}}ms</td></tr>
<tr><th>Harvest at</th><td>pH {{printf "%.2f" .Config.HarvestTargetPH}} ± {{printf "%.2f" .Config.HarvestTolerance}}</td></tr>
<tr><th>Notifications</th><td>{{if .Config.NotificationsEnabled}}enabled{{else}}disabled{{end}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> · <a href="/metrics">metrics</a></p>
{{if .Config.WSBroker}}
<script src="/mqtt.min.js"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var topic = "kombucha/monitor/alerts";
  var dot = document.getElementById("live-dot");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  var client = mqtt.connect(broker, { reconnectPeriod: 5000 });

  client.on("connect", function() {
    setDot("ok", "live");
    client.subscribe(topic);
  });

  client.on("reconnect", function() {
    setDot("pending", "reconnecting");
  });

  client.on("offline", function() {
    setDot("err", "offline");
  });

  client.on("error", function() {
    setDot("err", "error");
  });

  client.on("message", function(t, payload) {
    try {
      var msg = JSON.parse(payload.toString());
      var a = msg.alert;
      if (!a) return;
      var table = document.getElementById("session-" + a.recipe_id);
      if (!table) return;
      if (a.temperature) {
        table.querySelector(".temp").textContent = a.temperature.title + " " + a.temperature.value_f.toFixed(1);
      }
      if (a.stage) {
        table.querySelector(".stage").textContent = a.stage.title;
      }
    } catch (e) {}
  });
})();
</script>
{{end}}
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	return indexTmpl.Execute(w, snap)
}

// formatUptime renders d as "1d 2h 3m 4s", dropping leading zero units.
func formatUptime(d time.Duration) string {
	total := int(d / time.Second)
	parts := []struct {
		n    int
		unit string
	}{
		{total / 86400, "d"},
		{total / 3600 % 24, "h"},
		{total / 60 % 60, "m"},
		{total % 60, "s"},
	}
	out := ""
	for i, p := range parts {
		if out == "" && p.n == 0 && i < len(parts)-1 {
			continue
		}
		out += fmt.Sprintf("%d%s ", p.n, p.unit)
	}
	return out[:len(out)-1]
}
