//go:build windows
// +build windows

package console

import (
	"fmt"
	"net"
	"time"
)

// consoleTCPPort is the localhost fallback transport on Windows, where
// Unix domain sockets are not reliably available.
const consoleTCPPort = "127.0.0.1:9912"

func createPlatformListener(socketPath string) (net.Listener, error) {
	listener, err := net.Listen("tcp", consoleTCPPort)
	if err != nil {
		return nil, fmt.Errorf("console: listen tcp %s: %w", consoleTCPPort, err)
	}
	return listener, nil
}

func connectPlatform(socketPath string) (net.Conn, error) {
	return net.DialTimeout("tcp", consoleTCPPort, time.Second)
}

func platformAddress(socketPath string) string {
	return consoleTCPPort + " (TCP localhost)"
}

func cleanupSocket(socketPath string) error { return nil }
