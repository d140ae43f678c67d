// Package client speaks the relay line protocol from the other side of the
// socket. It backs the interactive client and the end-to-end scenarios.
package client

import (
	"bufio"
	"chat-relay/domain"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"
)

type Client struct {
	conn   net.Conn
	reader *bufio.Reader
	mu     sync.Mutex
}

// Dial connects to the relay at addr.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("could not connect to relay at %s: %w", addr, err)
	}
	return New(conn), nil
}

func New(conn net.Conn) *Client {
	return &Client{conn: conn, reader: bufio.NewReader(conn)}
}

// Endpoint is the label the relay uses for this client.
func (c *Client) Endpoint() string {
	return domain.EndpointLabel(c.conn.LocalAddr())
}

// Send writes line terminated by a single delimiter. Safe for concurrent use.
func (c *Client) Send(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := io.WriteString(c.conn, strings.TrimSuffix(line, string(domain.Delimiter))+string(domain.Delimiter))
	return err
}

// ReadLine returns the next line without its delimiter. A trailing partial
// line is dropped and reported as io.EOF.
func (c *Client) ReadLine() (string, error) {
	line, err := c.reader.ReadString(domain.Delimiter)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(line, string(domain.Delimiter)), nil
}

// ReadLineWithin is ReadLine bounded by timeout.
func (c *Client) ReadLineWithin(timeout time.Duration) (string, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return "", err
	}
	defer func() { _ = c.conn.SetReadDeadline(time.Time{}) }()
	return c.ReadLine()
}

// CloseWrite half-closes the connection when the transport allows it,
// so the relay sees end of input while replies can still be read.
func (c *Client) CloseWrite() error {
	if tcp, ok := c.conn.(*net.TCPConn); ok {
		return tcp.CloseWrite()
	}
	return c.conn.Close()
}

func (c *Client) Close() error {
	return c.conn.Close()
}
