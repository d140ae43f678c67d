// Package domain contains core concepts of the relay.
// This file defines the exact lines the relay emits.
// No runtime, network, or UI logic should be added here.
package domain

import "fmt"

const (
	Delimiter       = '\n'
	UnknownEndpoint = "unknown"
	ShutdownNotice  = "Server is shutting down. Goodbye!\n"
)

func Welcome(endpoint string) string {
	return fmt.Sprintf("Welcome! You are connected from %s\n", endpoint)
}

func Joined(endpoint string) string {
	return fmt.Sprintf("Client %s has joined the chat.\n", endpoint)
}

// Said labels a line received from endpoint. body must not carry the delimiter.
func Said(endpoint, body string) string {
	return fmt.Sprintf("Client %s: %s\n", endpoint, body)
}

func Left(endpoint string) string {
	return fmt.Sprintf("Client %s has left the chat.\n", endpoint)
}
