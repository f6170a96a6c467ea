package minio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		secureFlag string
		wantHost   string
		wantSecure bool
	}{
		{"plain http", "http://localhost:9407", "false", "localhost:9407", false},
		{"https implies tls", "https://objects.example.org", "", "objects.example.org", true},
		{"flag overrides scheme", "https://objects.example.org", "false", "objects.example.org", false},
		{"bare host", "minio:9000", "true", "minio:9000", true},
		{"invalid flag keeps scheme", "http://minio:9000", "maybe", "minio:9000", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, secure := endpoint(tt.url, tt.secureFlag)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantSecure, secure)
		})
	}
}
