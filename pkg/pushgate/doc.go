// Package pushgate provides an embeddable push-notification gateway.
//
// A Gateway streams binary notifications to the push service over one
// persistent connection. The service reports a failed notification
// asynchronously, possibly after accepting several later ones; the Gateway
// then reconnects and replays everything sent after the failed
// notification from its redo queue. Notifications addressed to
// registration ids take the JSON/HTTP path instead.
//
// # Basic Usage
//
//	cfg := pushgate.DefaultConfig()
//	cfg.Environment = gateway.Sandbox
//	cfg.CertFile = "/etc/pushgate/push.p12"
//	cfg.CertPassphrase = "secret"
//
//	g, err := pushgate.New(cfg, pushgate.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	if err := g.Start(ctx); err != nil {
//	    return err
//	}
//	defer g.Stop()
//
//	tok, _ := notification.ParseToken("c0ffee...")
//	n := notification.New(tok)
//	n.Message = "hello"
//	n.SetDefaultSound()
//	if err := g.Send(ctx, n); err != nil {
//	    return err
//	}
//
// # Delivery Guarantees
//
// Notifications are written in Send order. A notification the service
// rejects is not written again; the ones after it are replayed, provided
// the error arrives within Config.Retain and Config.QueueSize notifications.
// Otherwise the loss is logged and counted in the
// pushgate_gateway_loss_events_total metric.
//
// # Plugins
//
//	g, err := pushgate.New(cfg,
//	    pushgate.WithTokenStore(store),
//	    feedbackpoller.WithFeedbackPoller(feedbackpoller.DefaultConfig()),
//	    certwatcher.WithCertWatcher(certwatcher.DefaultConfig()),
//	)
//
// # Lifecycle States
//
// A Gateway is in one of [StateStopped], [StateStarting], [StateRunning],
// [StateStopping] or [StateCrashed]; see [Gateway.Status].
package pushgate
