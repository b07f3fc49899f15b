// Package feedback reads the push service's list of inactive device tokens.
//
// The feedback service streams fixed-size records and closes the connection
// when it has nothing more to report:
//
//	c := feedback.NewClient(gateway.NewTLSDialer(addr, source, 0))
//	n, err := c.Fetch(ctx, func(rec wire.FeedbackRecord) error {
//	    return store.MarkInactive(ctx, rec.Token, rec.Time)
//	})
package feedback
