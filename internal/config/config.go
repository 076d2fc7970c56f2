package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var (
	ErrGeoSource    = errors.New("GEO_SOURCE must be file, http or s3")
	ErrS3Incomplete = errors.New("GEO_SOURCE=s3 needs S3_URL, S3_REGION, S3_KEY, S3_SECRET and S3_BUCKET")
)

// Config holds every setting read from the environment.
type Config struct {
	Port        string `envconfig:"PORT" default:"5050"`
	DatabaseURL string `envconfig:"DATABASE_URL"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	GestionTable     string `envconfig:"GESTION_TABLE" default:"gestion"`
	CatalogTable     string `envconfig:"CATALOG_TABLE" default:"municipios"`
	DepartmentsTable string `envconfig:"DEPARTMENTS_TABLE" default:"departamentos"`
	FieldMap         string `envconfig:"FIELD_MAP"`

	// Deployment scope: only gestion rows whose department column mentions
	// one of these names are read. Empty reads every row.
	GestionDepartmentColumn string   `envconfig:"GESTION_DEPARTMENT_COLUMN" default:"Departamentos"`
	GestionDepartments      []string `envconfig:"GESTION_DEPARTMENTS"`

	GeoSource      string `envconfig:"GEO_SOURCE" default:"file"`
	GeoBase        string `envconfig:"GEO_BASE" default:"GIS/Layers"`
	GeoDepartments string `envconfig:"GEO_DEPARTMENTS" default:"003departamentos.geojson"`
	GeoMunicipios  string `envconfig:"GEO_MUNICIPIOS" default:"004municipios.geojson"`
	GeoFamilies    string `envconfig:"GEO_FAMILIES" default:"Familias.geojson"`
	GeoBoard       string `envconfig:"GEO_TABLERO" default:"001tablero.geojson"`
	GeoBasemap     string `envconfig:"GEO_BASEMAP" default:"002basemap.geojson"`

	S3URL    string `envconfig:"S3_URL"`
	S3Region string `envconfig:"S3_REGION"`
	S3Key    string `envconfig:"S3_KEY"`
	S3Secret string `envconfig:"S3_SECRET"`
	S3Bucket string `envconfig:"S3_BUCKET"`

	// Geo cache, off when RedisAddr is empty.
	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	GeoCacheTTL   time.Duration `envconfig:"GEO_CACHE_TTL" default:"6h"`

	RefreshSchedule string  `envconfig:"REFRESH_SCHEDULE" default:"*/15 * * * *"`
	AllowedOrigins  string  `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173"`
	RateLimitQPS    float64 `envconfig:"RATE_LIMIT_QPS" default:"0"`
	RateLimitBurst  int     `envconfig:"RATE_LIMIT_BURST" default:"20"`
}

// Load reads .env.local when present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env.local")
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	c.GeoSource = strings.ToLower(strings.TrimSpace(c.GeoSource))
	switch c.GeoSource {
	case "file", "http":
	case "s3":
		if c.S3URL == "" || c.S3Region == "" || c.S3Key == "" || c.S3Secret == "" || c.S3Bucket == "" {
			return ErrS3Incomplete
		}
	default:
		return fmt.Errorf("%w, got %q", ErrGeoSource, c.GeoSource)
	}
	return nil
}

// Origins splits AllowedOrigins on commas.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return "0.0.0.0:" + c.Port
}
