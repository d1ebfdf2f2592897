package decoder

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gogpu/tileview/internal/cache"
)

// Source errors.
var (
	// ErrEmptyURI is returned when Resolve is given an empty URI.
	ErrEmptyURI = errors.New("decoder: empty uri")

	// ErrUnsupportedScheme is returned for URI schemes with no data source.
	ErrUnsupportedScheme = errors.New("decoder: unsupported uri scheme")
)

// MaxRemoteBytes caps how much a remote source may deliver.
const MaxRemoteBytes = 1 << 30

// DefaultRemoteCacheBytes is the budget of the fetched-bytes cache.
const DefaultRemoteCacheBytes = 256 << 20

// remoteBytes keeps fetched remote images so that the probe, metadata and
// decode passes share one download.
var remoteBytes = cache.New[string, []byte](DefaultRemoteCacheBytes, cache.ByteLen)

// Source is a re-openable stream of encoded image bytes.
type Source interface {
	// Open returns a fresh reader positioned at the start of the data.
	Open(ctx context.Context) (io.ReadCloser, error)

	// String returns the URI the source was resolved from.
	String() string
}

// Resolve maps a URI to a Source. Supported forms are plain file paths,
// file://, http://, https://, s3://bucket/key and data: URIs.
func Resolve(uri string) (Source, error) {
	if uri == "" {
		return nil, ErrEmptyURI
	}
	if strings.HasPrefix(uri, "data:") {
		data, err := parseDataURI(uri)
		if err != nil {
			return nil, err
		}
		return &bytesSource{uri: uri, data: data}, nil
	}

	u, err := url.Parse(uri)
	if err != nil || len(u.Scheme) <= 1 {
		// Plain paths, including Windows drive letters.
		return &fileSource{path: filepath.Clean(uri)}, nil
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		return &fileSource{path: filepath.Clean(filepath.FromSlash(u.Path))}, nil
	case "http", "https":
		return &remoteSource{uri: uri, fetch: func(ctx context.Context) ([]byte, error) {
			return fetchHTTP(ctx, uri)
		}}, nil
	case "s3":
		bucket, key := u.Host, strings.TrimPrefix(u.Path, "/")
		if bucket == "" || key == "" {
			return nil, fmt.Errorf("decoder: s3 uri %q needs bucket and key", uri)
		}
		return &remoteSource{uri: uri, fetch: func(ctx context.Context) ([]byte, error) {
			return fetchS3(ctx, bucket, key)
		}}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
}

// PurgeRemote drops the cached bytes of a remote URI.
func PurgeRemote(uri string) {
	remoteBytes.Delete(uri)
}

type fileSource struct {
	path string
}

func (s *fileSource) Open(context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("decoder: open file: %w", err)
	}
	return f, nil
}

func (s *fileSource) String() string { return s.path }

type bytesSource struct {
	uri  string
	data []byte
}

func (s *bytesSource) Open(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.data)), nil
}

func (s *bytesSource) String() string {
	if len(s.uri) > 32 {
		return s.uri[:32] + "..."
	}
	return s.uri
}

type remoteSource struct {
	uri   string
	fetch func(ctx context.Context) ([]byte, error)
}

func (s *remoteSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if data, ok := remoteBytes.Get(s.uri); ok {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	data, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	if !remoteBytes.Set(s.uri, data) {
		slogger().Debug("remote source exceeds cache budget", "uri", s.uri, "bytes", len(data))
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *remoteSource) String() string { return s.uri }

func fetchHTTP(ctx context.Context, uri string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("decoder: http request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("decoder: http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("decoder: http get %s: %s", uri, resp.Status)
	}
	return readLimited(resp.Body)
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxRemoteBytes+1))
	if err != nil {
		return nil, fmt.Errorf("decoder: read body: %w", err)
	}
	if len(data) > MaxRemoteBytes {
		return nil, fmt.Errorf("decoder: remote source larger than %d bytes", MaxRemoteBytes)
	}
	return data, nil
}

// parseDataURI decodes data:[<mediatype>][;base64],<data>.
func parseDataURI(uri string) ([]byte, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, errors.New("decoder: malformed data uri")
	}
	if strings.HasSuffix(header, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("decoder: data uri: %w", err)
		}
		return data, nil
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("decoder: data uri: %w", err)
	}
	return []byte(s), nil
}
