// Package geo fetches the GeoJSON boundary layers (departamentos, municipios,
// linguistic families) from disk, HTTP or S3, with an optional redis cache.
package geo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
)

// ErrSourceUnavailable wraps every failure to obtain a layer's bytes.
var ErrSourceUnavailable = errors.New("geo source unavailable")

// Source returns a decoded boundary layer by file name.
type Source interface {
	Fetch(ctx context.Context, name string) (*geojson.FeatureCollection, error)
}

// RawSource returns the undecoded bytes of a layer.
type RawSource interface {
	FetchRaw(ctx context.Context, name string) ([]byte, error)
}

// Decoded adapts a RawSource into a Source.
type Decoded struct {
	Raw RawSource
}

func (d Decoded) Fetch(ctx context.Context, name string) (*geojson.FeatureCollection, error) {
	b, err := d.Raw.FetchRaw(ctx, name)
	if err != nil {
		return nil, err
	}
	return Decode(b)
}

// Decode parses a FeatureCollection.
func Decode(b []byte) (*geojson.FeatureCollection, error) {
	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err != nil {
		return nil, fmt.Errorf("parsing geojson: %w", err)
	}
	return fc, nil
}

// FileSource reads layers from a directory.
type FileSource struct {
	Dir string
}

func (s FileSource) FetchRaw(_ context.Context, name string) ([]byte, error) {
	b, err := os.ReadFile(filepath.Join(s.Dir, filepath.Clean("/"+name)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return b, nil
}

func (s FileSource) Fetch(ctx context.Context, name string) (*geojson.FeatureCollection, error) {
	return Decoded{Raw: s}.Fetch(ctx, name)
}

// HTTPSource fetches layers below a base URL.
type HTTPSource struct {
	BaseURL string
	Client  *http.Client
}

func (s HTTPSource) FetchRaw(ctx context.Context, name string) ([]byte, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	url := strings.TrimRight(s.BaseURL, "/") + "/" + strings.TrimLeft(name, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GET %s: status %d", ErrSourceUnavailable, url, resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrSourceUnavailable, url, err)
	}
	return b, nil
}

func (s HTTPSource) Fetch(ctx context.Context, name string) (*geojson.FeatureCollection, error) {
	return Decoded{Raw: s}.Fetch(ctx, name)
}
