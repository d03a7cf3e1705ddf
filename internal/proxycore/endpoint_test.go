package proxycore

import "testing"

func TestParseEndpointRequiresPort(t *testing.T) {
	if _, err := ParseEndpoint("localhost", false); err == nil {
		t.Fatal("expected error parsing host with no port")
	}
}

func TestParseEndpointRejectsUnspecifiedPortByDefault(t *testing.T) {
	if _, err := ParseEndpoint("localhost:-1", false); err == nil {
		t.Fatal("expected error: port -1 not allowed here")
	}
}

func TestParseEndpointAllowsUnspecifiedPortWhenRequested(t *testing.T) {
	ep, err := ParseEndpoint("jumphost.example.com:-1", true)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if ep.Host != "jumphost.example.com" || ep.Port != -1 {
		t.Fatalf("got %+v, want host=jumphost.example.com port=-1", ep)
	}
	if ep.HasPort() {
		t.Fatal("HasPort() should be false for port -1")
	}
}

func TestParseEndpointRoundTrip(t *testing.T) {
	ep, err := ParseEndpoint("10.0.0.5:9000", false)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if got, want := ep.Address(), "10.0.0.5:9000"; got != want {
		t.Fatalf("Address() = %q, want %q", got, want)
	}
	if got, want := ep.String(), "10.0.0.5:9000"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}
