// Package domain contains core concepts of the relay.
// This file defines how a participant is labelled on the wire.
package domain

import (
	"net"
	"strings"
)

// EndpointLabel renders addr as "host:port" without IPv6 brackets.
// A nil address gives UnknownEndpoint.
func EndpointLabel(addr net.Addr) string {
	if addr == nil {
		return UnknownEndpoint
	}
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		if s := strings.TrimSpace(addr.String()); s != "" {
			return s
		}
		return UnknownEndpoint
	}
	return host + ":" + port
}
