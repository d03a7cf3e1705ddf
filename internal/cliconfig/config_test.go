package cliconfig

import "testing"

func TestParseRequiresServersOrNumServers(t *testing.T) {
	if _, _, err := Parse([]string{}); err == nil {
		t.Fatal("expected error when neither --servers nor --num_servers given")
	}
}

func TestParseRejectsBothServersAndNumServers(t *testing.T) {
	args := []string{"--servers", "localhost:1000", "--num_servers", "2"}
	if _, _, err := Parse(args); err == nil {
		t.Fatal("expected error when both --servers and --num_servers given")
	}
}

func TestParseRejectsNumServersOverMax(t *testing.T) {
	args := []string{"--num_servers", "23"}
	if _, _, err := Parse(args); err == nil {
		t.Fatal("expected error when --num_servers exceeds max")
	}
}

func TestParseAcceptsNumServersAtMax(t *testing.T) {
	args := []string{"--num_servers", "22"}
	result, _, err := Parse(args)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(result.Config.Upstreams) != 22 {
		t.Fatalf("got %d upstreams, want 22", len(result.Config.Upstreams))
	}
}

func TestParseRejectsJumphostFlagsWithoutJumphost(t *testing.T) {
	args := []string{"--servers", "localhost:1000", "--jumphost_user", "alice"}
	if _, _, err := Parse(args); err == nil {
		t.Fatal("expected error when jumphost_user given without --jumphost")
	}
}

func TestParseAcceptsBasicServersConfig(t *testing.T) {
	args := []string{"--servers", "localhost:1000 localhost:1001", "-p", "9000"}
	result, _, err := Parse(args)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if result.Config.ListenPort != 9000 {
		t.Fatalf("ListenPort = %d, want 9000", result.Config.ListenPort)
	}
	if len(result.Config.Upstreams) != 2 {
		t.Fatalf("got %d upstreams, want 2", len(result.Config.Upstreams))
	}
	if result.Config.LoadBalancer != "round-robin" {
		t.Fatalf("LoadBalancer = %q, want round-robin", result.Config.LoadBalancer)
	}
}

func TestParseRejectsMalformedServerEntry(t *testing.T) {
	args := []string{"--servers", "localhost"}
	if _, _, err := Parse(args); err == nil {
		t.Fatal("expected error for a server entry with no port")
	}
}

func TestParseNumServersWithJumphostRequiresJumphostServer(t *testing.T) {
	args := []string{"--num_servers", "3", "--jumphost", "jump.example.com"}
	if _, _, err := Parse(args); err == nil {
		t.Fatal("expected error: --num_servers with --jumphost requires --jumphost_server")
	}
}

func TestParseNumServersWithJumphostAndServer(t *testing.T) {
	args := []string{
		"--num_servers", "3",
		"--jumphost", "jump.example.com",
		"--jumphost_server", "backend.internal:9000",
	}
	result, _, err := Parse(args)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(result.Config.Upstreams) != 3 {
		t.Fatalf("got %d upstreams, want 3", len(result.Config.Upstreams))
	}
	for _, u := range result.Config.Upstreams {
		if u.Host != "backend.internal" || u.Port != 9000 {
			t.Fatalf("upstream = %+v, want backend.internal:9000", u)
		}
	}
}

func TestParseVersionAndHelpShortCircuit(t *testing.T) {
	result, _, err := Parse([]string{"--version"})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !result.ShowVersion {
		t.Fatal("ShowVersion should be true")
	}

	result, _, err = Parse([]string{"--help"})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !result.ShowHelp {
		t.Fatal("ShowHelp should be true")
	}
}
