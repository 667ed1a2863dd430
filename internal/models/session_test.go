package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeviceInfoFromUserAgent(t *testing.T) {
	cases := []struct {
		name       string
		userAgent  string
		deviceName string
		deviceType string
	}{
		{
			name:       "desktop chrome",
			userAgent:  "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 Chrome/120.0 Safari/537.36",
			deviceName: "Chrome on Linux",
			deviceType: "desktop",
		},
		{
			name:       "iphone safari",
			userAgent:  "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Version/17.0 Mobile/15E148 Safari/604.1",
			deviceName: "Safari on iOS",
			deviceType: "mobile",
		},
		{
			name:       "windows firefox",
			userAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
			deviceName: "Firefox on Windows",
			deviceType: "desktop",
		},
		{
			name:       "empty",
			userAgent:  "",
			deviceName: "Unknown on Unknown",
			deviceType: "desktop",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			info := DeviceInfoFromUserAgent(tc.userAgent, "10.0.0.1")
			assert.Equal(t, tc.deviceName, info.Name)
			assert.Equal(t, tc.deviceType, info.DeviceType)
			assert.Equal(t, "10.0.0.1", info.IPAddress)
			assert.Equal(t, tc.userAgent, info.UserAgent)
		})
	}
}

func TestParseAuthProvider(t *testing.T) {
	provider, err := ParseAuthProvider("Google")
	assert.NoError(t, err)
	assert.Equal(t, ProviderGoogle, provider)
	assert.True(t, provider.IsOAuth())

	provider, err = ParseAuthProvider("password")
	assert.NoError(t, err)
	assert.False(t, provider.IsOAuth())

	_, err = ParseAuthProvider("facebook")
	assert.Error(t, err)
}
