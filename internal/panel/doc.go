// Package panel serves the traffic light web UI.
//
// The UI (index.html, app.js, style.css) is embedded into the binary with
// go:embed. Setting http.static_dir serves files from that directory
// instead, with the same rules: index.html is the default document and
// unknown paths return 404. There is no SPA fallback.
//
// Cache-Control is set to no-cache so edited assets show up on reload.
package panel
