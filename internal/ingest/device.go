package ingest

import (
	"strings"

	"github.com/summitroofing/beacon/internal/domain"
)

// ClassifyDevice buckets a user-agent string into desktop, tablet or mobile
// by substring match. Tablet patterns are checked first: Android tablets also
// carry "Android", and iPads identify as tablets, so the order matters.
func ClassifyDevice(userAgent string) domain.DeviceType {
	ua := strings.ToLower(userAgent)

	for _, pattern := range []string{"ipad", "tablet", "kindle", "silk"} {
		if strings.Contains(ua, pattern) {
			return domain.DeviceTablet
		}
	}

	for _, pattern := range []string{"mobile", "iphone", "android", "ipod", "blackberry", "windows phone"} {
		if strings.Contains(ua, pattern) {
			return domain.DeviceMobile
		}
	}

	return domain.DeviceDesktop
}
