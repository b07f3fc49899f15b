package sender

// DefaultEndpoint is the push endpoint used when none is configured.
const DefaultEndpoint = "https://android.googleapis.com/gcm/send"

// Metadata addresses and authenticates requests to the push endpoint.
type Metadata struct {
	// Endpoint is the URL notifications are posted to.
	Endpoint string

	// APIKey is sent as "Authorization: key=<APIKey>".
	APIKey string
}
