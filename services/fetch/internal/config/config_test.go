package config

import (
	"context"
	"reflect"
	"testing"

	"github.com/sethvargo/go-envconfig"
)

func TestLoadFrom(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want Config
	}{
		{
			name: "defaults",
			env:  map[string]string{},
			want: Config{
				HubEndpoint:  "https://huggingface.co",
				HubRevision:  "main",
				Author:       "polymathic-ai",
				LogFormat:    "console",
				LogLevel:     "info",
				EventSubject: "hubfetch.outcomes",
				S3:           S3{Region: "us-east-1", ForcePathStyle: true},
			},
		},
		{
			name: "overrides",
			env: map[string]string{
				"HF_ENDPOINT":         "http://mirror.local:8080",
				"HF_TOKEN":            "hf_abc",
				"HUBFETCH_AUTHOR":     "someone",
				"LOG_FORMAT":          "json",
				"NATS_URL":            "nats://nats:4222",
				"S3_BUCKET":           "bench",
				"S3_PREFIX":           "runs",
				"S3_DISABLE_TLS":      "true",
				"S3_FORCE_PATH_STYLE": "false",
			},
			want: Config{
				HubEndpoint:  "http://mirror.local:8080",
				HubToken:     "hf_abc",
				HubRevision:  "main",
				Author:       "someone",
				LogFormat:    "json",
				LogLevel:     "info",
				NATSURL:      "nats://nats:4222",
				EventSubject: "hubfetch.outcomes",
				S3: S3{
					Bucket:     "bench",
					Prefix:     "runs",
					Region:     "us-east-1",
					DisableTLS: true,
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadFrom(context.Background(), envconfig.MapLookuper(tt.env))
			if err != nil {
				t.Fatalf("LoadFrom() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("LoadFrom() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestLoadFromRejectsBadBool(t *testing.T) {
	_, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{"S3_DISABLE_TLS": "maybe"}))
	if err == nil {
		t.Fatalf("expected error for invalid bool")
	}
}
