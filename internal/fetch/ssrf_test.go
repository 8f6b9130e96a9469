package fetch

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsBlockedIP(t *testing.T) {
	blocked := []string{
		"10.0.0.1", "172.16.5.1", "192.168.1.1", "127.0.0.1", "169.254.1.1", "::1",
	}
	for _, ip := range blocked {
		assert.True(t, isBlockedIP(net.ParseIP(ip)), "expected %s to be blocked", ip)
	}

	allowed := []string{
		"8.8.8.8", "140.82.112.3", "1.1.1.1",
	}
	for _, ip := range allowed {
		assert.False(t, isBlockedIP(net.ParseIP(ip)), "expected %s to be allowed", ip)
	}
}

func TestGuardDialContextRejectsLiteralBlockedIP(t *testing.T) {
	dial := guardDialContext(&net.Dialer{})
	_, err := dial(context.Background(), "tcp", "127.0.0.1:443")
	assert.Error(t, err)
}
