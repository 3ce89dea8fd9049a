package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"assetsearch/internal/catalog"
	"assetsearch/internal/pricing"
	"assetsearch/internal/search"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RunInteractive reads session commands from in until EOF or :quit and
// renders controller callbacks to out.
func RunInteractive(ctx context.Context, app *App, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if interval := app.Cfg.Cache.RefreshInterval; interval > 0 {
		r := catalog.NewRefresher(app.Cache, interval, app.Log)
		r.Start(ctx)
		defer r.Stop()
	}

	if addr := app.Cfg.Metrics.Addr; addr != "" {
		stop := serveMetrics(addr, app.Log)
		defer stop()
	}

	s := newSession(app, out)
	defer s.ctrl.Close()

	s.ctrl.Mount(ctx)
	s.ctrl.Focus()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if !s.handle(ctx, scanner.Text()) {
			break
		}
	}
	s.ctrl.Flush()
	return scanner.Err()
}

// session renders one controller to a terminal.
type session struct {
	app  *App
	ctrl *search.Controller
	out  *syncWriter

	// only touched from callbacks, which run one at a time
	lastList string
}

func newSession(app *App, out io.Writer) *session {
	s := &session{app: app, out: &syncWriter{w: out}}
	s.ctrl = search.New(app.Cache, app.Prices, app.SearchOptions(), search.Callbacks{
		OnSelect:      s.onSelect,
		OnPriceUpdate: s.onPrice,
		OnSuggestions: s.onSuggestions,
	}, app.Log)
	return s
}

// handle applies one input line. It returns false when the session should end.
func (s *session) handle(ctx context.Context, line string) bool {
	line = strings.TrimRight(line, "\r")
	if !strings.HasPrefix(line, ":") {
		s.ctrl.Input(line)
		return true
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case ":quit", ":q":
		return false
	case ":clear":
		s.ctrl.Input("")
	case ":up":
		s.ctrl.Key(search.KeyUp)
	case ":down":
		s.ctrl.Key(search.KeyDown)
	case ":enter":
		s.ctrl.Key(search.KeyEnter)
	case ":esc":
		s.ctrl.Key(search.KeyEscape)
	case ":pick":
		if len(fields) != 2 {
			s.out.printf("usage: :pick <n>\n")
			break
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || !s.ctrl.Click(n-1) {
			s.out.printf("no suggestion %s\n", fields[1])
		}
	case ":focus":
		s.ctrl.Focus()
	case ":blur":
		s.ctrl.Blur()
	case ":refresh":
		if err := s.app.Cache.Refresh(ctx); err != nil {
			s.out.printf("refresh failed: %v\n", err)
			break
		}
		s.out.printf("catalog refreshed: %d assets\n", s.app.Cache.Stats().Size)
	case ":stats":
		st := s.app.Cache.Stats()
		s.out.printf("assets=%d malformed=%d loading=%t stale=%t age=%s\n",
			st.Size, st.Malformed, st.Loading, st.Stale, st.Age.Truncate(time.Second))
	default:
		s.out.printf("unknown command %s\n", fields[0])
	}
	return true
}

func (s *session) onSuggestions(v search.View) {
	if !v.Open() {
		s.lastList = ""
		return
	}

	var b strings.Builder
	switch {
	case v.NoResults() && v.Loading:
		b.WriteString("  loading catalog...\n")
	case v.NoResults():
		b.WriteString("  (no results)\n")
	default:
		for i, a := range v.Suggestions {
			marker := " "
			if i == v.Highlight {
				marker = ">"
			}
			fmt.Fprintf(&b, "%s %2d. %-8s %s\n", marker, i+1, a.Symbol, a.Name)
		}
	}

	list := b.String()
	if list == s.lastList {
		return
	}
	s.lastList = list
	s.out.printf("%s", list)
}

func (s *session) onSelect(a catalog.AssetRecord) {
	s.lastList = ""
	s.out.printf("selected %s (%s)\n", a.Symbol, a.Name)
}

func (s *session) onPrice(u pricing.Update) {
	switch {
	case u.Fetching:
		s.out.printf("fetching price for %s...\n", u.Symbol)
	case u.Available():
		s.out.printf("%s %s\n", u.Symbol, u.Quote.Display())
	default:
		s.out.printf("%s price unavailable\n", u.Symbol)
	}
}

// syncWriter serializes writes from the input loop and the callback goroutine.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, format, args...)
}

// String returns what was written so far when the target is a bytes.Buffer.
func (s *syncWriter) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.w.(*bytes.Buffer); ok {
		return b.String()
	}
	return ""
}

func serveMetrics(addr string, log *zap.Logger) (stop func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("metrics listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
