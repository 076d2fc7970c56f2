package geo

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const deptosJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"DPTO_CNMBR":"META"},"geometry":{"type":"Polygon","coordinates":[[[-74,3],[-72,3],[-72,5],[-74,5],[-74,3]]]}},
 {"type":"Feature","properties":{"DPTO":"CHOCÓ"},"geometry":{"type":"Polygon","coordinates":[[[-78,5],[-76,5],[-76,8],[-78,8],[-78,5]]]}}
]}`

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "deptos.geojson"), []byte(deptosJSON), 0o644))

	fc, err := FileSource{Dir: dir}.Fetch(context.Background(), "deptos.geojson")
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, "META", FeatureName(fc.Features[0], DepartmentKeys...))
	assert.Equal(t, "CHOCÓ", FeatureName(fc.Features[1], DepartmentKeys...))

	_, err = FileSource{Dir: dir}.Fetch(context.Background(), "missing.geojson")
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/layers/deptos.geojson":
			w.Write([]byte(deptosJSON))
		case "/layers/broken.geojson":
			w.Write([]byte(`{"type":`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	src := HTTPSource{BaseURL: srv.URL + "/layers/"}
	fc, err := src.Fetch(context.Background(), "deptos.geojson")
	require.NoError(t, err)
	assert.Len(t, fc.Features, 2)

	_, err = src.Fetch(context.Background(), "nope.geojson")
	assert.ErrorIs(t, err, ErrSourceUnavailable)

	_, err = src.Fetch(context.Background(), "broken.geojson")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrSourceUnavailable)
}

type fakeS3 struct {
	objects map[string]string
	calls   int
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.calls++
	body, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader([]byte(body)))}, nil
}

func TestS3Source(t *testing.T) {
	client := &fakeS3{objects: map[string]string{"gis/Layers/deptos.geojson": deptosJSON}}
	src := S3Source{Client: client, Bucket: "gis", Prefix: "Layers"}

	fc, err := src.Fetch(context.Background(), "deptos.geojson")
	require.NoError(t, err)
	assert.Len(t, fc.Features, 2)

	_, err = src.Fetch(context.Background(), "otro.geojson")
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

type mapCache struct {
	data map[string][]byte
	ttl  time.Duration
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, error) {
	b, ok := c.data[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return b, nil
}

func (c *mapCache) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	c.data[key] = val
	c.ttl = ttl
	return nil
}

func TestCachedSource(t *testing.T) {
	client := &fakeS3{objects: map[string]string{
		"gis/deptos.geojson": deptosJSON,
		"gis/bad.geojson":    "not json",
	}}
	cache := &mapCache{data: map[string][]byte{}}
	src := CachedSource{
		Inner:  S3Source{Client: client, Bucket: "gis"},
		Cache:  cache,
		TTL:    time.Hour,
		Prefix: "geo:",
	}

	for i := 0; i < 3; i++ {
		fc, err := src.Fetch(context.Background(), "deptos.geojson")
		require.NoError(t, err)
		assert.Len(t, fc.Features, 2)
	}
	assert.Equal(t, 1, client.calls)
	assert.Contains(t, cache.data, "geo:deptos.geojson")
	assert.Equal(t, time.Hour, cache.ttl)

	_, err := src.Fetch(context.Background(), "bad.geojson")
	assert.Error(t, err)
	assert.NotContains(t, cache.data, "geo:bad.geojson")
}

func TestCachedSourceParsesOnce(t *testing.T) {
	parses := 0
	defer func(orig func([]byte) (*geojson.FeatureCollection, error)) { decode = orig }(decode)
	decode = func(b []byte) (*geojson.FeatureCollection, error) {
		parses++
		return Decode(b)
	}

	client := &fakeS3{objects: map[string]string{
		"gis/deptos.geojson": deptosJSON,
		"gis/bad.geojson":    "not json",
	}}
	cache := &mapCache{data: map[string][]byte{}}
	src := CachedSource{Inner: S3Source{Client: client, Bucket: "gis"}, Cache: cache, TTL: time.Minute}

	fc, err := src.Fetch(context.Background(), "deptos.geojson")
	require.NoError(t, err)
	assert.Len(t, fc.Features, 2)
	assert.Equal(t, 1, parses, "miss")

	_, err = src.Fetch(context.Background(), "deptos.geojson")
	require.NoError(t, err)
	assert.Equal(t, 2, parses, "hit")
	assert.Equal(t, 1, client.calls)

	_, err = src.Fetch(context.Background(), "bad.geojson")
	assert.Error(t, err)
	assert.Equal(t, 3, parses, "undecodable miss")
	assert.NotContains(t, cache.data, "bad.geojson")

	raw, err := src.FetchRaw(context.Background(), "bad.geojson")
	require.NoError(t, err)
	assert.Equal(t, "not json", string(raw))
}

func TestFeatureNameFallbacks(t *testing.T) {
	f := geojson.NewFeature(orb.Point{0, 0})
	f.Properties["MPIO_CNMBR"] = "  "
	f.Properties["MPIO"] = "Quibdó"
	f.Properties["DEPTO"] = "Chocó"
	assert.Equal(t, "Quibdó", FeatureName(f, MunicipioKeys...))
	assert.Equal(t, "Chocó", ParentName(f))
	assert.Equal(t, "", FeatureName(nil, MunicipioKeys...))

	g := geojson.NewFeature(orb.Point{0, 0})
	g.Properties["MPIO_CNMBR"] = 5001
	assert.Equal(t, "5001", FeatureName(g, MunicipioKeys...))
}

func TestBounds(t *testing.T) {
	fc, err := Decode([]byte(deptosJSON))
	require.NoError(t, err)
	b, ok := Bounds(fc)
	require.True(t, ok)
	assert.Equal(t, orb.Point{-78, 3}, b.Min)
	assert.Equal(t, orb.Point{-72, 8}, b.Max)

	_, ok = Bounds(geojson.NewFeatureCollection())
	assert.False(t, ok)
}
