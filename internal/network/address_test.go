package network

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func busy(ports ...int) func(int) bool {
	taken := make(map[int]bool)
	for _, p := range ports {
		taken[p] = true
	}
	return func(port int) bool { return !taken[port] }
}

func TestResolve_PreferredPortBusyFallsBack(t *testing.T) {
	r := &Resolver{Available: busy(3000)}

	addr, err := r.Resolve(Request{
		PreferredHost: "10.0.0.5",
		PreferredPort: 3000,
		FallbackPorts: []int{3000, 3001, 3002},
	})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", addr.Host)
	assert.Equal(t, 3001, addr.Port)
	assert.Equal(t, "http://10.0.0.5:3001", addr.URL())
}

func TestResolve_PreferredPortWins(t *testing.T) {
	r := &Resolver{Available: busy()}

	addr, err := r.Resolve(Request{PreferredHost: "h", PreferredPort: 4321, FallbackPorts: WebPorts})
	require.NoError(t, err)
	assert.Equal(t, 4321, addr.Port)
}

func TestResolve_PrivilegedPreferredPortIsSkipped(t *testing.T) {
	r := &Resolver{Available: busy()}

	addr, err := r.Resolve(Request{PreferredHost: "h", PreferredPort: 80, FallbackPorts: []int{3000}})
	require.NoError(t, err)
	assert.Equal(t, 3000, addr.Port)
}

func TestResolve_NoAvailablePort(t *testing.T) {
	r := &Resolver{Available: busy(8081, 8082)}

	_, err := r.Resolve(Request{PreferredHost: "h", FallbackPorts: []int{8081, 8082}})
	var portErr *NoAvailablePortError
	require.True(t, errors.As(err, &portErr))
	assert.Equal(t, []int{8081, 8082}, portErr.Ports)
	assert.Contains(t, err.Error(), "8081, 8082")
}

func TestResolve_SequentialResolutionsNeverCollide(t *testing.T) {
	r := &Resolver{Available: busy()}

	web, err := r.Resolve(Request{PreferredHost: "h", PreferredPort: 8081, FallbackPorts: WebPorts})
	require.NoError(t, err)
	app, err := r.Resolve(Request{PreferredHost: "h", FallbackPorts: AppPorts, Exclude: []int{web.Port}})
	require.NoError(t, err)

	assert.Equal(t, 8081, web.Port)
	assert.Equal(t, 8082, app.Port)
}

func TestResolve_HostDetection(t *testing.T) {
	tests := []struct {
		name  string
		addrs []net.Addr
		err   error
		want  string
	}{
		{
			name: "first external ipv4",
			addrs: []net.Addr{
				&net.IPNet{IP: net.ParseIP("127.0.0.1"), Mask: net.CIDRMask(8, 32)},
				&net.IPNet{IP: net.ParseIP("fe80::1"), Mask: net.CIDRMask(64, 128)},
				&net.IPNet{IP: net.ParseIP("192.168.1.20"), Mask: net.CIDRMask(24, 32)},
				&net.IPNet{IP: net.ParseIP("10.0.0.3"), Mask: net.CIDRMask(8, 32)},
			},
			want: "192.168.1.20",
		},
		{
			name:  "loopback only",
			addrs: []net.Addr{&net.IPNet{IP: net.ParseIP("127.0.0.1"), Mask: net.CIDRMask(8, 32)}},
			want:  FallbackHost,
		},
		{
			name: "interface error",
			err:  errors.New("boom"),
			want: FallbackHost,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Resolver{
				Available:  busy(),
				Interfaces: func() ([]net.Addr, error) { return tt.addrs, tt.err },
			}
			addr, err := r.Resolve(Request{FallbackPorts: []int{3000}})
			require.NoError(t, err)
			assert.Equal(t, tt.want, addr.Host)
		})
	}
}

func TestIsPortFree(t *testing.T) {
	l, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port

	assert.False(t, IsPortFree(port))
	require.NoError(t, l.Close())
	assert.True(t, IsPortFree(port))
}

func TestValidatePort(t *testing.T) {
	var privileged *PrivilegedPortError
	assert.True(t, errors.As(ValidatePort(443), &privileged))
	assert.Error(t, ValidatePort(70000))
	assert.NoError(t, ValidatePort(1024))
	assert.NoError(t, ValidatePort(8081))
}

func TestServerAddress(t *testing.T) {
	addr := ServerAddress{Host: "192.168.0.2", Port: 8081}
	assert.Equal(t, "192.168.0.2:8081", addr.String())
	assert.Equal(t, "http://192.168.0.2:8081", addr.URL())
	assert.Equal(t, "exp://192.168.0.2:8081", addr.WithScheme("exp").URL())
	assert.True(t, ServerAddress{}.IsZero())
}
