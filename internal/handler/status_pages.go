package handler

import "net/http"

const expiredPage = `<!DOCTYPE html>
<html>
<head><title>Link expired</title></head>
<body>
<h1>This link has expired</h1>
<p>The short link you followed is no longer active.</p>
</body>
</html>
`

const notFoundPage = `<!DOCTYPE html>
<html>
<head><title>Link not found</title></head>
<body>
<h1>Link not found</h1>
<p>The short link you followed does not exist.</p>
</body>
</html>
`

// ExpiredPage serves the landing page for expired links.
func ExpiredPage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusGone)
	_, _ = w.Write([]byte(expiredPage))
}

// NotFoundPage serves the landing page for unknown slugs.
func NotFoundPage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte(notFoundPage))
}

// Health reports liveness.
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
