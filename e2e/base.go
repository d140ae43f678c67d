package e2e

import (
	"chat-relay/client"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

const readTimeout = 5 * time.Second

type BaseRelaySuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running scenarios
func (s *BaseRelaySuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.RelayAddr == "" {
		s.T().Skip("RELAY_ADDR is not set")
	}
}

func (s *BaseRelaySuite) header(t *testing.T, name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)
}

// Connect opens a client and consumes its welcome line.
func (s *BaseRelaySuite) Connect(name string) *client.Client {
	s.header(s.T(), name)
	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	defer cancel()

	c, err := client.Dial(ctx, s.Config.RelayAddr)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = c.Close() })

	welcome, err := c.ReadLineWithin(readTimeout)
	s.Require().NoError(err)
	s.Require().Equal(client.KindWelcome, client.Classify(welcome), welcome)
	s.T().Log(client.Render(welcome, s.Config.Colours))
	return c
}

// Expect reads the next line of c and checks it.
func (s *BaseRelaySuite) Expect(c *client.Client, want string) {
	line, err := c.ReadLineWithin(readTimeout)
	s.Require().NoError(err)
	s.T().Log(client.Render(line, s.Config.Colours))
	s.Require().Equal(want, line)
}

// WithHealth provides a health client for the relay gRPC health endpoint.
func (s *BaseRelaySuite) WithHealth(name string, fn func(ctx context.Context, client grpc_health_v1.HealthClient)) {
	if s.Config.HealthAddr == "" {
		s.T().Skip("RELAY_HEALTH_ADDR is not set")
	}
	s.header(s.T(), name)
	conn, err := grpc.NewClient(s.Config.HealthAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	s.Require().NoError(err, "Failed to connect to gRPC health at "+s.Config.HealthAddr)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	defer cancel()
	fn(ctx, grpc_health_v1.NewHealthClient(conn))
}
