package dashboard

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammad-safakhou/footprint/internal/workspace"
)

// Server exposes the live workspace snapshot over HTTP. The page polls the
// snapshot endpoint, so publishing is just swapping the current snapshot.
type Server struct {
	mu       sync.RWMutex
	snapshot workspace.Snapshot

	e      *echo.Echo
	logger *log.Logger
}

func New(logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	}
	s := &Server{logger: logger}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		s.logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/api/snapshot", s.handleSnapshot)
	e.GET("/", s.handleIndex)

	s.e = e
	return s
}

// Publish replaces the served snapshot.
func (s *Server) Publish(snap workspace.Snapshot) {
	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()
}

// Snapshot returns the currently served snapshot.
func (s *Server) Snapshot() workspace.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

func (s *Server) handleSnapshot(c echo.Context) error {
	snap := s.Snapshot()
	if snap.Links == nil {
		snap.Links = []workspace.LinkRecord{}
	}
	if snap.Messages == nil {
		snap.Messages = []string{}
	}
	return c.JSON(http.StatusOK, snap)
}

func (s *Server) handleIndex(c echo.Context) error {
	return c.HTML(http.StatusOK, indexHTML)
}

// Start serves until the context is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.e.Start(addr) }()
	s.logger.Printf("dashboard listening on %s", addr)
	select {
	case <-ctx.Done():
		return s.e.Shutdown(context.Background())
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// Handler exposes the underlying HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.e }

const indexHTML = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>Footprint Dashboard</title>
<style>
  body { font-family: system-ui, sans-serif; margin: 2rem; background: #fafafa; }
  h1 { font-size: 1.3rem; }
  table { border-collapse: collapse; width: 100%; background: #fff; }
  th, td { border: 1px solid #ddd; padding: 6px 10px; text-align: left; font-size: 0.9rem; }
  th { background: #f0f0f0; }
  .dot { display: inline-block; width: 10px; height: 10px; border-radius: 50%; }
  .yes { background: #2e7d32; }
  .no { background: #c62828; }
  .wait { background: #f9a825; }
  #messages li { margin: 4px 0; }
</style>
</head>
<body>
<h1>Footprint Dashboard</h1>
<table>
  <thead>
    <tr><th>Link</th><th>Platform</th><th>Confirmed</th><th>In KB</th><th>Notes</th></tr>
  </thead>
  <tbody id="links"></tbody>
</table>
<h2>Messages</h2>
<ul id="messages"></ul>
<script>
function dot(cls) { return '<span class="dot ' + cls + '"></span>'; }
function dbDot(v) {
  if (v === true) return dot('yes');
  if (v === 'waiting_for_confirm') return dot('wait');
  return dot('no');
}
async function refresh() {
  try {
    const res = await fetch('/api/snapshot');
    const data = await res.json();
    const rows = data.links.map(l =>
      '<tr><td><a href="' + l.link + '">' + l.link + '</a></td>' +
      '<td>' + (l.platform || '') + '</td>' +
      '<td>' + dot(l.is_confirmed ? 'yes' : 'no') + '</td>' +
      '<td>' + dbDot(l.add_to_db) + '</td>' +
      '<td>' + (l.agent_notes || '') + '</td></tr>');
    document.getElementById('links').innerHTML = rows.join('');
    document.getElementById('messages').innerHTML =
      data.messages.map(m => '<li>' + m + '</li>').join('');
  } catch (e) { /* keep last view on transient errors */ }
}
refresh();
setInterval(refresh, 2000);
</script>
</body>
</html>`
