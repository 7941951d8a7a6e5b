package ingest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/summitroofing/beacon/internal/domain"
	"github.com/summitroofing/beacon/internal/ingest"
)

func TestClassifyDevice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		userAgent string
		want      domain.DeviceType
	}{
		{
			name:      "desktop mac",
			userAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36",
			want:      domain.DeviceDesktop,
		},
		{
			name:      "desktop windows",
			userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
			want:      domain.DeviceDesktop,
		},
		{
			name:      "iphone",
			userAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile/15E148",
			want:      domain.DeviceMobile,
		},
		{
			name:      "android phone",
			userAgent: "Mozilla/5.0 (Linux; Android 14; Pixel 8) Mobile Safari/537.36",
			want:      domain.DeviceMobile,
		},
		{
			name:      "ipad classified before mobile",
			userAgent: "Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) Mobile/15E148",
			want:      domain.DeviceTablet,
		},
		{
			name:      "android tablet",
			userAgent: "Mozilla/5.0 (Linux; Android 14; SM-X710 Tablet) Safari/537.36",
			want:      domain.DeviceTablet,
		},
		{
			name:      "kindle silk",
			userAgent: "Mozilla/5.0 (Linux; Android 9; KFTRWI) Silk/117.2.5",
			want:      domain.DeviceTablet,
		},
		{
			name:      "empty user agent",
			userAgent: "",
			want:      domain.DeviceDesktop,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ingest.ClassifyDevice(tt.userAgent))
		})
	}
}
