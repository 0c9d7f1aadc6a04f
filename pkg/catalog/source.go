package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/polisai/shelf/pkg/domain"
)

const defaultHTTPTimeout = 10 * time.Second

// Source is a data source reference: a URL, a file, or an embedded resource.
// Open issues exactly one read request; it never retries.
type Source interface {
	Name() string
	Open(ctx context.Context) (io.ReadCloser, error)
}

// HTTPSource reads records with a single HTTP GET.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

// NewHTTPSource creates an HTTPSource whose client is instrumented with OpenTelemetry.
func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &HTTPSource{
		URL: url,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Name returns the URL.
func (s *HTTPSource) Name() string { return s.URL }

// Open performs the GET and returns the body for 2xx responses.
func (s *HTTPSource) Open(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, &domain.FetchError{Source: s.URL, Stage: domain.StageTransport, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &domain.FetchError{Source: s.URL, Stage: domain.StageTransport, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &domain.FetchError{Source: s.URL, Stage: domain.StageStatus, StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}

// FileSource reads records from a local JSON file.
type FileSource struct {
	Path string
}

// Name returns the file path.
func (s FileSource) Name() string { return s.Path }

// Open opens the file.
func (s FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.FetchError{Source: s.Path, Stage: domain.StageTransport, Err: err}
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, &domain.FetchError{Source: s.Path, Stage: domain.StageTransport, Err: err}
	}
	return f, nil
}

// FSSource reads records from a file inside an fs.FS, typically an embedded bundle.
type FSSource struct {
	FS   fs.FS
	Path string
}

// Name returns a descriptive name for the resource.
func (s FSSource) Name() string { return "fs:" + s.Path }

// Open opens the resource.
func (s FSSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.FetchError{Source: s.Name(), Stage: domain.StageTransport, Err: err}
	}
	if s.FS == nil {
		return nil, &domain.FetchError{Source: s.Name(), Stage: domain.StageTransport, Err: errors.New("no filesystem configured")}
	}
	f, err := s.FS.Open(s.Path)
	if err != nil {
		return nil, &domain.FetchError{Source: s.Name(), Stage: domain.StageTransport, Err: err}
	}
	return f, nil
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc struct {
	Label string
	Fn    func(ctx context.Context) (io.ReadCloser, error)
}

// Name returns the label.
func (s SourceFunc) Name() string { return s.Label }

// Open calls Fn.
func (s SourceFunc) Open(ctx context.Context) (io.ReadCloser, error) {
	if s.Fn == nil {
		return nil, &domain.FetchError{Source: s.Label, Stage: domain.StageTransport, Err: fmt.Errorf("source %q has no reader", s.Label)}
	}
	return s.Fn(ctx)
}
