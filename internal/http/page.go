package http

import (
	"html/template"

	"pdf-chat-rag/internal/models"
)

type pageData struct {
	Messages    []models.Message
	HasDocument bool
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Chat with PDF</title>
<style>
body { font-family: sans-serif; max-width: 48rem; margin: 2rem auto; padding: 0 1rem; }
.msg { padding: .5rem .75rem; margin: .5rem 0; border-radius: .5rem; white-space: pre-wrap; }
.user { background: #eef3ff; }
.assistant { background: #f4f4f4; }
#status { color: #666; min-height: 1.5em; }
</style>
</head>
<body>
<h1>Chat with PDF</h1>

<form id="upload">
  <input type="file" name="file" accept="application/pdf,.pdf">
  <button type="submit">Upload PDF</button>
</form>
<p id="status">{{if .HasDocument}}A document is indexed for this session.{{else}}Upload a PDF to ask about it.{{end}}</p>

<div id="messages">
{{range .Messages}}<div class="msg {{.Role}}">{{.Content}}</div>
{{end}}
</div>

<form id="ask">
  <input type="text" name="question" size="60" autocomplete="off" placeholder="Ask a question">
  <button type="submit">Send</button>
</form>

<script>
const status = document.getElementById("status");

document.getElementById("upload").addEventListener("submit", async (e) => {
  e.preventDefault();
  status.textContent = "Indexing...";
  const res = await fetch("/api/upload", { method: "POST", body: new FormData(e.target) });
  const body = await res.json().catch(() => ({}));
  status.textContent = res.ok ? body.message : (body.error || body.message || res.statusText);
});

document.getElementById("ask").addEventListener("submit", async (e) => {
  e.preventDefault();
  const question = e.target.question.value;
  status.textContent = "Thinking...";
  const res = await fetch("/api/messages", {
    method: "POST",
    headers: { "Content-Type": "application/json" },
    body: JSON.stringify({ question }),
  });
  if (res.ok) {
    location.reload();
  } else {
    const body = await res.json().catch(() => ({}));
    status.textContent = body.error || body.message || res.statusText;
  }
});
</script>
</body>
</html>
`))
