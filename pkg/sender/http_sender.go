package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/bft-labs/pushgate/pkg/log"
	"github.com/bft-labs/pushgate/pkg/notification"
)

// maxErrorBody caps how much of a failed response is kept for the error.
const maxErrorBody = 4 << 10

// HTTPSender implements Sender with one JSON POST per notification.
type HTTPSender struct {
	client   HTTPClient
	metadata Metadata
	delegate Delegate
	logger   log.Logger
}

// NewHTTPSender creates a new HTTP sender. A nil delegate discards results.
func NewHTTPSender(client HTTPClient, metadata Metadata, delegate Delegate, logger log.Logger) *HTTPSender {
	if metadata.Endpoint == "" {
		metadata.Endpoint = DefaultEndpoint
	}
	if delegate == nil {
		delegate = DelegateFuncs{}
	}
	return &HTTPSender{
		client:   client,
		metadata: metadata,
		delegate: delegate,
		logger:   log.OrNoop(logger),
	}
}

type request struct {
	Data            json.RawMessage `json:"data"`
	RegistrationIDs []string        `json:"registration_ids"`
}

type response struct {
	Results []struct {
		Error          string `json:"error"`
		RegistrationID string `json:"registration_id"`
	} `json:"results"`
}

// Send posts n and reports the device result to the delegate.
func (s *HTTPSender) Send(ctx context.Context, n *notification.Notification) error {
	if n.Channel() != notification.JSONHTTP {
		return notification.ErrWrongChannel
	}
	if !n.Sealed() {
		return notification.ErrNotSealed
	}

	body, err := json.Marshal(request{
		Data:            n.Payload(),
		RegistrationIDs: []string{n.Token.Registration()},
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.metadata.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+s.metadata.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Error("push request failed", log.String("token", n.Token.String()), log.Err(err))
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		s.delegate.DidFail(n, "")
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(respBody))
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		s.delegate.DidFail(n, "")
		return fmt.Errorf("decode response: %w", err)
	}
	if len(out.Results) == 0 {
		s.delegate.DidFail(n, "")
		return errors.New("decode response: no results")
	}

	result := out.Results[0]
	if result.Error != "" {
		s.logger.Warn("push rejected",
			log.String("token", n.Token.String()),
			log.String("reason", result.Error),
		)
		s.delegate.DidFail(n, result.Error)
		return nil
	}

	s.logger.Debug("push delivered", log.String("token", n.Token.String()))
	s.delegate.DidSend(n, result.RegistrationID)
	return nil
}
