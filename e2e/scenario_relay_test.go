package e2e

import (
	"chat-relay/infrastructure/grpc/server"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

type testRelaySuite struct {
	BaseRelaySuite
}

func TestRelaySuite(t *testing.T) {
	suite.Run(t, &testRelaySuite{})
}

func (s *testRelaySuite) TestJoinTalkLeave() {
	alice := s.Connect("Alice connects")
	bob := s.Connect("Bob connects")

	s.Run("Step 1: Alice is told that Bob joined", func() {
		s.Expect(alice, fmt.Sprintf("Client %s has joined the chat.", bob.Endpoint()))
	})

	s.Run("Step 2: a line reaches everybody but its sender", func() {
		s.Require().NoError(bob.Send("hello"))
		s.Expect(alice, fmt.Sprintf("Client %s: hello", bob.Endpoint()))
	})

	s.Run("Step 3: Bob leaves", func() {
		endpoint := bob.Endpoint()
		s.Require().NoError(bob.Close())
		s.Expect(alice, fmt.Sprintf("Client %s has left the chat.", endpoint))
	})
}

func (s *testRelaySuite) TestHealthServing() {
	s.WithHealth("Relay reports SERVING", func(ctx context.Context, client grpc_health_v1.HealthClient) {
		response, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: server.RelayService})
		s.Require().NoError(err)
		s.Require().Equal(grpc_health_v1.HealthCheckResponse_SERVING, response.GetStatus())
	})
}
