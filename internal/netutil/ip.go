// Package netutil provides network helpers for gpumon.
package netutil

import (
	"net"
	"strconv"
)

// LocalIP returns a non-loopback IPv4 address of this host, preferring the
// address of the default route. It returns "127.0.0.1" if none is found.
func LocalIP() string {
	// UDP dial sends no packets; it only selects the outbound interface.
	if conn, err := net.Dial("udp", "8.8.8.8:80"); err == nil {
		defer conn.Close()
		if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok && !addr.IP.IsLoopback() {
			return addr.IP.String()
		}
	}

	interfaces, _ := net.Interfaces()
	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, _ := iface.Addrs()
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && ipnet.IP.To4() != nil && !ipnet.IP.IsLoopback() {
				return ipnet.IP.String()
			}
		}
	}

	return "127.0.0.1"
}

// IsWildcard reports whether host binds every interface.
func IsWildcard(host string) bool {
	switch host {
	case "", "0.0.0.0", "::", "[::]":
		return true
	}
	return false
}

// BaseURL returns the http URL clients should use to reach a server bound
// to host:port. Wildcard hosts are replaced by resolve().
func BaseURL(host string, port int, resolve func() string) string {
	if IsWildcard(host) {
		if resolve == nil {
			resolve = LocalIP
		}
		host = resolve()
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port))
}
