// Package sender delivers notifications over the JSON/HTTP channel.
//
// Registration-id tokens are not served by the binary gateway. Their
// notifications are posted one by one as JSON to an HTTP push endpoint, and
// the per-device result is handed to a Delegate.
//
// # Usage
//
//	s := sender.NewHTTPSender(http.DefaultClient, sender.Metadata{
//	    Endpoint: sender.DefaultEndpoint,
//	    APIKey:   "api-key",
//	}, delegate, logger)
//
//	if err := s.Send(ctx, n); err != nil {
//	    return err
//	}
//
// # Custom Senders
//
// Implement the Sender interface to deliver through another transport.
//
// # Version
//
// Current version: 2.0.0
// Minimum compatible version: 2.0.0
//
// See version.go for version constants that can be used programmatically.
package sender
