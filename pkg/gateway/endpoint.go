package gateway

import (
	"fmt"
	"strings"
)

// Environment selects the production or sandbox gateway.
type Environment int

const (
	Production Environment = iota
	Sandbox
)

// ParseEnvironment accepts "production" or "sandbox".
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "production", "prod", "":
		return Production, nil
	case "sandbox", "development":
		return Sandbox, nil
	default:
		return 0, fmt.Errorf("gateway: unknown environment %q", s)
	}
}

func (e Environment) String() string {
	if e == Sandbox {
		return "sandbox"
	}
	return "production"
}

// Service selects the notification endpoint or the feedback endpoint.
type Service int

const (
	Dispatch Service = iota
	Feedback
)

func (s Service) String() string {
	if s == Feedback {
		return "feedback"
	}
	return "dispatch"
}

// Endpoint returns the host:port for svc in env.
func Endpoint(env Environment, svc Service) string {
	host, port := "gateway", 2195
	if svc == Feedback {
		host, port = "feedback", 2196
	}
	if env == Sandbox {
		host += ".sandbox"
	}
	return fmt.Sprintf("%s.push.apple.com:%d", host, port)
}
