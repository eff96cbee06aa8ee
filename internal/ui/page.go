package ui

import (
	"html/template"
	"io"
	"os/exec"
	"runtime"
)

// PageData is rendered into the control page
type PageData struct {
	View  View
	Token string
}

// WritePage renders the control page
func WritePage(w io.Writer, data PageData) error {
	return tmpl.Execute(w, data)
}

// OpenBrowser opens url in the default browser
func OpenBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}

var tmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Autoclicker</title>
    <style>
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: linear-gradient(135deg, #1a1a2e 0%, #16213e 100%);
            color: #e2e8f0;
            min-height: 100vh;
            padding: 2rem;
        }
        .container { max-width: 480px; margin: 0 auto; }
        h1 {
            font-size: 2rem;
            font-weight: 700;
            margin-bottom: 2rem;
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            -webkit-background-clip: text;
            -webkit-text-fill-color: transparent;
        }
        .card {
            background: rgba(255,255,255,0.05);
            border: 1px solid rgba(255,255,255,0.1);
            border-radius: 16px;
            padding: 1.5rem;
            margin-bottom: 1.5rem;
        }
        .row { display: flex; align-items: center; gap: 0.75rem; margin-bottom: 1rem; }
        label { width: 6rem; color: #a5b4fc; }
        input, select {
            flex: 1;
            background: rgba(0,0,0,0.3);
            border: 1px solid rgba(255,255,255,0.1);
            border-radius: 8px;
            padding: 0.5rem 0.75rem;
            color: #e2e8f0;
        }
        button {
            flex: 1;
            border: none;
            border-radius: 8px;
            padding: 0.75rem;
            font-weight: 600;
            cursor: pointer;
            color: white;
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
        }
        button.armed { background: linear-gradient(135deg, #f5576c 0%, #c53030 100%); }
        #notice { color: #fc8181; min-height: 1.5rem; }
        #state { color: #68d391; }
    </style>
</head>
<body>
<div class="container">
    <h1>Autoclicker</h1>
    <div class="card">
        <div class="row"><label>State</label><span id="state">{{if .View.Armed}}Clicking{{else}}Stopped{{end}}</span></div>
        <div class="row">
            <label>Hotkey</label>
            <button id="rebind">{{if .View.Capturing}}Press a key...{{else}}{{.View.Hotkey}}{{end}}</button>
        </div>
        <div class="row">
            <label>Delay (ms)</label>
            <input id="delay" type="number" min="0" value="{{.View.DelayMillis}}">
        </div>
        <div class="row">
            <label>Button</label>
            <select id="button">
                <option value="left" {{if eq .View.Button "left"}}selected{{end}}>Left</option>
                <option value="right" {{if eq .View.Button "right"}}selected{{end}}>Right</option>
                <option value="middle" {{if eq .View.Button "middle"}}selected{{end}}>Middle</option>
            </select>
        </div>
        <div class="row">
            <button id="toggle" class="{{if .View.Armed}}armed{{end}}">{{if .View.Armed}}Stop{{else}}Start{{end}}</button>
        </div>
        <div id="notice">{{.View.Notice}}</div>
    </div>
</div>
<script>
    const token = {{.Token}};
    const $ = (id) => document.getElementById(id);
    let ws = null;

    function send(type, payload) {
        if (ws && ws.readyState === WebSocket.OPEN) {
            ws.send(JSON.stringify({type: type, payload: payload}));
        }
    }

    function render(s) {
        $('state').textContent = s.armed ? 'Clicking' : 'Stopped';
        $('toggle').textContent = s.armed ? 'Stop' : 'Start';
        $('toggle').className = s.armed ? 'armed' : '';
        $('rebind').textContent = s.awaiting_rebind ? 'Press a key...' : s.hotkey;
        if (document.activeElement !== $('delay')) {
            $('delay').value = s.delay_ms;
        }
        $('button').value = s.button;
    }

    function connect() {
        const proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
        const q = token ? '?token=' + encodeURIComponent(token) : '';
        ws = new WebSocket(proto + '//' + location.host + '/ws' + q);
        ws.onmessage = (ev) => {
            const msg = JSON.parse(ev.data);
            switch (msg.type) {
            case 'status':
                render(msg.payload);
                break;
            case 'notice':
                $('notice').textContent = msg.payload.message;
                break;
            }
        };
        ws.onclose = () => setTimeout(connect, 2000);
    }

    $('toggle').onclick = () => send('toggle');
    $('rebind').onclick = () => {
        $('rebind').textContent = 'Press a key...';
        send('rebind');
    };
    $('delay').onchange = () => send('settings', {delay: $('delay').value});
    $('button').onchange = () => send('settings', {button: $('button').value});

    connect();
</script>
</body>
</html>
`))
