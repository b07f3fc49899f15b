package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bft-labs/pushgate/pkg/notification"
	"github.com/bft-labs/pushgate/pkg/wire"
)

// message is one line of send input.
type message struct {
	Token      string         `json:"token"`
	Message    string         `json:"message"`
	Sound      *string        `json:"sound,omitempty"`
	Custom     map[string]any `json:"custom,omitempty"`
	Priority   string         `json:"priority,omitempty"`
	Expiration string         `json:"expiration,omitempty"`
}

// toNotification validates m and builds an unsealed notification. A missing
// sound selects the channel default; an empty one disables it.
func (m message) toNotification(now time.Time) (*notification.Notification, error) {
	token, err := notification.ParseToken(m.Token)
	if err != nil {
		return nil, err
	}
	n := notification.New(token)
	n.Message = m.Message
	if m.Sound == nil {
		n.SetDefaultSound()
	} else {
		n.Sound = *m.Sound
	}
	for k, v := range m.Custom {
		if err := n.SetCustom(k, v); err != nil {
			return nil, err
		}
	}

	switch strings.ToLower(m.Priority) {
	case "", "immediate", "10":
		n.Priority = wire.PriorityImmediate
	case "power-saving", "conserve", "5":
		n.Priority = wire.PriorityPowerSaving
	default:
		return nil, fmt.Errorf("unknown priority %q", m.Priority)
	}

	if m.Expiration != "" {
		exp, err := parseExpiration(m.Expiration, now)
		if err != nil {
			return nil, err
		}
		n.Expiration = exp
	}
	return n, nil
}

// parseExpiration accepts an RFC 3339 time or a duration relative to now.
func parseExpiration(s string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("expiration %q is neither RFC 3339 nor a duration", s)
	}
	return now.Add(d), nil
}

// readMessages calls fn for every non-blank line of r decoded as a message.
// Decoding errors are reported with their line number and stop the read.
func readMessages(r io.Reader, fn func(line int, m message) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var m message
		if err := json.Unmarshal([]byte(text), &m); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := fn(line, m); err != nil {
			return err
		}
	}
	return sc.Err()
}
