package server

import (
	"io"
	"net/http"
)

// TestPageHandler serves an HTML page for exercising the relay by hand: it
// logs in or registers, opens the WebSocket with the returned session key and
// shows every frame received.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = io.WriteString(w, testPageHTML)
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>relaychat test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #frames {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
            font-family: monospace;
        }
        input[type="text"], input[type="password"] { width: 200px; padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; background-color: #007cba; color: white; border: none; cursor: pointer; }
        button:hover { background-color: #005a87; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>relaychat test</h1>

    <div>
        <input type="text" id="username" placeholder="username">
        <input type="password" id="password" placeholder="password">
        <button onclick="auth('/register')">Register</button>
        <button onclick="auth('/login')">Login</button>
    </div>

    <div id="status" class="status disconnected">Disconnected</div>

    <div>
        <input type="text" id="toUserId" placeholder="recipient user id">
        <input type="text" id="message" placeholder="message">
        <button onclick="send()">Send</button>
    </div>

    <div id="frames"></div>

    <script>
        let ws = null;
        const frames = document.getElementById('frames');
        const statusDiv = document.getElementById('status');

        function show(text) {
            const line = document.createElement('div');
            line.textContent = text;
            frames.appendChild(line);
            frames.scrollTop = frames.scrollHeight;
        }

        function setConnected(connected, who) {
            statusDiv.textContent = connected ? 'Connected as ' + who : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
        }

        async function auth(path) {
            const res = await fetch(path, {
                method: 'POST',
                headers: { 'Content-Type': 'application/json' },
                body: JSON.stringify({
                    username: document.getElementById('username').value,
                    password: document.getElementById('password').value,
                }),
            });
            const body = await res.json();
            show(path + ' -> ' + res.status + ' ' + JSON.stringify(body));
            if (res.ok) {
                connect(body.sessionCredential, body.username);
            }
        }

        function connect(sessionKey, who) {
            if (ws) {
                ws.close();
            }
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws?sessionKey=' + encodeURIComponent(sessionKey));
            ws.onopen = () => setConnected(true, who);
            ws.onmessage = (event) => show(event.data);
            ws.onclose = () => { setConnected(false); ws = null; };
        }

        function send() {
            if (!ws || ws.readyState !== WebSocket.OPEN) {
                return;
            }
            ws.send(JSON.stringify({
                type: 'chatMessage',
                toUserId: document.getElementById('toUserId').value,
                message: document.getElementById('message').value,
            }));
            document.getElementById('message').value = '';
        }
    </script>
</body>
</html>`
