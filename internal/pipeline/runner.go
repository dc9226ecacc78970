package pipeline

import (
	"net/http"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yoshiniks/nodeAppShop/internal/otelx"
	"github.com/yoshiniks/nodeAppShop/internal/xerrors"
)

// Stage is one step of the pipeline. Run returns an error to abort the
// request, or calls c.Done after writing a response itself.
type Stage struct {
	Name string
	Run  func(w http.ResponseWriter, r *http.Request, c *Context) error
}

// Runner executes its stages in order, then the route handlers.
type Runner struct {
	stages   []Stage
	routes   http.Handler
	terminal *Terminal
	tracer   trace.Tracer
}

func New(routes http.Handler, terminal *Terminal, stages ...Stage) (*Runner, error) {
	if routes == nil {
		return nil, xerrors.New("pipeline: routes handler is nil")
	}
	if terminal == nil {
		return nil, xerrors.New("pipeline: terminal is nil")
	}
	for i, st := range stages {
		if st.Run == nil {
			return nil, xerrors.Newf("pipeline: stage %d (%s) has no Run func", i, st.Name)
		}
	}
	return &Runner{
		stages:   stages,
		routes:   routes,
		terminal: terminal,
		tracer:   otelx.Tracer(),
	}, nil
}

func (p *Runner) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c := newContext()
	r = r.WithContext(WithContext(r.Context(), c))
	cw := &commitWriter{ResponseWriter: w, req: r, c: c, terminal: p.terminal}
	defer cw.commit()

	for _, st := range p.stages {
		ctx, span := p.tracer.Start(r.Context(), "pipeline."+st.Name)
		err := st.Run(cw, r.WithContext(ctx), c)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, st.Name+" failed")
		}
		span.End()

		if err != nil {
			p.terminal.Error(cw, r, err)
			return
		}
		if c.done {
			return
		}
	}
	p.routes.ServeHTTP(cw, r)
}

// commitWriter commits the session right before the header is written. A
// failed commit replaces the response with the error page.
type commitWriter struct {
	http.ResponseWriter
	req      *http.Request
	c        *Context
	terminal *Terminal

	committed bool
	failed    bool
}

func (w *commitWriter) commit() {
	if w.committed {
		return
	}
	w.committed = true
	if w.c.commit == nil {
		return
	}
	if err := w.c.commit(w.req.Context(), w.ResponseWriter); err != nil {
		w.failed = true
		w.ResponseWriter.Header().Del("Location")
		w.terminal.Error(w.ResponseWriter, w.req, err)
	}
}

func (w *commitWriter) WriteHeader(code int) {
	w.commit()
	if w.failed {
		return
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *commitWriter) Write(p []byte) (int, error) {
	w.commit()
	if w.failed {
		return len(p), nil
	}
	return w.ResponseWriter.Write(p)
}

func (w *commitWriter) Flush() {
	w.commit()
	if w.failed {
		return
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *commitWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
