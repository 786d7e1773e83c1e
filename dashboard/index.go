package dashboard

// indexHTML is the single-page operator UI: chat on the left, the live
// actor tree on the right, with a detail modal per actor.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8" />
<title>v-axion dashboard</title>
<style>
body { margin:0; font-family: 'Inter', system-ui, -apple-system, sans-serif; background:#0e1011; color:#f3f4f6; display:flex; height:100vh; }
#left { flex:2; display:flex; flex-direction:column; padding:1.5rem; gap:1rem; border-right:1px solid #1f2937; }
#right { width:32%; max-width:420px; padding:1.5rem; background:#111827; overflow-y:auto; }
#chat-log { flex:1; background:#111827; border:1px solid #1f2937; border-radius:12px; padding:1rem; overflow-y:auto; }
.chat-entry { margin-bottom:0.75rem; }
.chat-entry .meta { font-size:0.75rem; color:#9ca3af; }
.chat-entry .content { margin-top:0.25rem; white-space:pre-wrap; word-break:break-word; }
form { display:flex; gap:0.75rem; }
input[type=text] { flex:1; padding:0.75rem; border-radius:10px; border:1px solid #374151; background:#0f172a; color:#f9fafb; }
button { padding:0.75rem 1.25rem; border-radius:10px; border:none; background:#3b82f6; color:white; font-weight:600; cursor:pointer; }
button:hover { background:#2563eb; }
#monologues { display:flex; flex-direction:column; gap:0.75rem; }
.monologue { padding:0.75rem 1rem; border-radius:10px; border:1px solid #1f2937; background:#0f172a; cursor:pointer; }
.monologue:hover { border-color:#3b82f6; }
.monologue.running { border-color:#10b981; }
.monologue .id { font-size:0.75rem; color:#9ca3af; }
.monologue .role { font-weight:600; }
#modal { position:fixed; inset:0; background:rgba(15,23,42,0.8); display:none; align-items:center; justify-content:center; padding:2rem; }
#modal.active { display:flex; }
#modal .card { background:#0f172a; border-radius:12px; padding:1.5rem; width:min(720px,90%); max-height:80vh; overflow-y:auto; border:1px solid #1f2937; }
#modal pre { background:#111827; padding:0.75rem; border-radius:8px; border:1px solid #1f2937; max-height:320px; overflow:auto; }
#modalClose { background:transparent; border:none; color:#9ca3af; cursor:pointer; float:right; }
@media (max-width:960px) {
  body { flex-direction:column; }
  #left, #right { width:100%; max-width:none; }
}
</style>
</head>
<body>
<div id="left">
  <div id="chat-log"></div>
  <form id="chat-form">
    <input type="text" id="chat-input" placeholder="Message the main actor..." autocomplete="off" />
    <button type="submit">Send</button>
  </form>
</div>
<div id="right">
  <h3>Monologues</h3>
  <div id="monologues"></div>
</div>
<div id="modal">
  <div class="card">
    <button id="modalClose">close</button>
    <h3 id="modalTitle"></h3>
    <pre id="modalBody"></pre>
  </div>
</div>
<script>
const chatLog = document.getElementById('chat-log');
const monologues = document.getElementById('monologues');
const modal = document.getElementById('modal');

function addChat(entry) {
  const div = document.createElement('div');
  div.className = 'chat-entry';
  div.innerHTML = '<div class="meta">' + entry.source + ' &middot; ' + entry.timestamp + '</div>' +
    '<div class="content"></div>';
  div.querySelector('.content').textContent = entry.content;
  chatLog.appendChild(div);
  chatLog.scrollTop = chatLog.scrollHeight;
}

function renderTree(payload) {
  monologues.innerHTML = '';
  for (const actor of payload.actors || []) {
    const div = document.createElement('div');
    div.className = 'monologue' + (actor.state === 'running' ? ' running' : '');
    div.innerHTML = '<div class="role"></div><div class="id"></div>';
    div.querySelector('.role').textContent = actor.role + ' [' + actor.state + '] step ' + actor.step + '/' + actor.max_steps;
    div.querySelector('.id').textContent = actor.id + (actor.parent_id ? ' &larr; ' + actor.parent_id : '');
    div.onclick = () => showDetail(actor.id);
    monologues.appendChild(div);
  }
}

async function showDetail(id) {
  const resp = await fetch('/api/monologue/' + id);
  if (!resp.ok) return;
  const detail = await resp.json();
  document.getElementById('modalTitle').textContent = detail.actor.role + ' ' + id;
  document.getElementById('modalBody').textContent = JSON.stringify(detail, null, 2);
  modal.classList.add('active');
}
document.getElementById('modalClose').onclick = () => modal.classList.remove('active');

const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
ws.onmessage = (ev) => {
  const frame = JSON.parse(ev.data);
  if (frame.type === 'snapshot') renderTree(frame.payload);
  if (frame.type === 'chat') addChat(frame.payload);
};

fetch('/api/chat').then(r => r.json()).then(data => {
  for (const entry of data.entries || []) addChat(entry);
});

document.getElementById('chat-form').onsubmit = (ev) => {
  ev.preventDefault();
  const input = document.getElementById('chat-input');
  const content = input.value.trim();
  if (!content) return;
  ws.send(JSON.stringify({type: 'user_message', content}));
  input.value = '';
};
</script>
</body>
</html>`
