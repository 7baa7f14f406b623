package config

import (
	"context"

	"github.com/sethvargo/go-envconfig"
)

// Config holds runtime configuration shared by the fetch binaries.
type Config struct {
	HubEndpoint string `env:"HF_ENDPOINT,default=https://huggingface.co"`
	HubToken    string `env:"HF_TOKEN"`
	HubRevision string `env:"HF_REVISION,default=main"`
	CacheDir    string `env:"HUBFETCH_CACHE_DIR"`
	Author      string `env:"HUBFETCH_AUTHOR,default=polymathic-ai"`

	LogFormat    string `env:"LOG_FORMAT,default=console"`
	LogLevel     string `env:"LOG_LEVEL,default=info"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	PushgatewayURL string `env:"PUSHGATEWAY_URL"`
	NATSURL        string `env:"NATS_URL"`
	EventSubject   string `env:"HUBFETCH_EVENT_SUBJECT,default=hubfetch.outcomes"`
	LedgerDSN      string `env:"LEDGER_DSN"`

	S3 S3
}

// S3 configures the artifact mirror. The mirror is disabled while Bucket is empty.
type S3 struct {
	Bucket         string `env:"S3_BUCKET"`
	Prefix         string `env:"S3_PREFIX"`
	Endpoint       string `env:"S3_ENDPOINT"`
	AccessKey      string `env:"S3_ACCESS_KEY"`
	SecretKey      string `env:"S3_SECRET_KEY"`
	Region         string `env:"S3_REGION,default=us-east-1"`
	DisableTLS     bool   `env:"S3_DISABLE_TLS,default=false"`
	ForcePathStyle bool   `env:"S3_FORCE_PATH_STYLE,default=true"`
}

// Load returns a Config populated from environment variables.
func Load(ctx context.Context) (Config, error) {
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom returns a Config populated from l.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
