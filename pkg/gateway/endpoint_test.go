package gateway

import "testing"

func TestEndpoint(t *testing.T) {
	tests := []struct {
		env  Environment
		svc  Service
		want string
	}{
		{Production, Dispatch, "gateway.push.apple.com:2195"},
		{Production, Feedback, "feedback.push.apple.com:2196"},
		{Sandbox, Dispatch, "gateway.sandbox.push.apple.com:2195"},
		{Sandbox, Feedback, "feedback.sandbox.push.apple.com:2196"},
	}

	for _, tt := range tests {
		t.Run(tt.env.String()+"/"+tt.svc.String(), func(t *testing.T) {
			if got := Endpoint(tt.env, tt.svc); got != tt.want {
				t.Errorf("Endpoint() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseEnvironment(t *testing.T) {
	tests := []struct {
		in      string
		want    Environment
		wantErr bool
	}{
		{"production", Production, false},
		{"", Production, false},
		{"Sandbox", Sandbox, false},
		{" development ", Sandbox, false},
		{"staging", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseEnvironment(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseEnvironment(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseEnvironment(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
