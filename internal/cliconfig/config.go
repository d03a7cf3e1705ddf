// Package cliconfig parses the command line into a validated
// proxycore.ProxyConfiguration.
package cliconfig

import (
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/altiscale/transferaccelerator/internal/proxycore"
)

const (
	defaultListenPort = 48138
	defaultStatusPort = 48139
	maxNumServers     = 22
)

// Result is everything Parse extracts from the command line: a validated
// ProxyConfiguration plus the process-level flags (verbose/version/help)
// that the caller, not proxycore, is responsible for acting on.
type Result struct {
	Config      proxycore.ProxyConfiguration
	Verbose     bool
	ShowVersion bool
	ShowHelp    bool
}

// Parse parses args (typically os.Args[1:]) and returns a validated
// Result, or an error describing the first validation failure. The caller
// can use fs.PrintDefaults to print the flag help, for --help and for
// parse-error output alike.
func Parse(args []string) (*Result, *flag.FlagSet, error) {
	fs := flag.NewFlagSet("transferaccelerator", flag.ContinueOnError)

	port := fs.Int32P("port", "p", defaultListenPort, "Listening port")
	webStatusPort := fs.Int32P("webstatus_port", "w", defaultStatusPort, "Status HTTP port")
	servers := fs.StringP("servers", "s", "", "Space-separated upstream servers, host:port host:port ...")
	numServers := fs.Int32P("num_servers", "n", 0, "Use localhost:48139+i for i in [0,N)")
	loadBalancer := fs.StringP("load_balancer", "b", "RoundRobin", "One of RoundRobin, LeastUsed, UniformRandom")
	jumphost := fs.StringP("jumphost", "j", "", "SSH jump host, host[:port]")
	jumphostServer := fs.StringP("jumphost_server", "y", "", "Target behind jumphost, host:port")
	jumphostUser := fs.StringP("jumphost_user", "u", "", "SSH user")
	jumphostCredentials := fs.StringP("jumphost_credentials", "i", "", "SSH -i credentials file")
	jumphostCompression := fs.BoolP("jumphost_compression", "C", false, "Add SSH -C")
	jumphostCiphers := fs.StringP("jumphost_ciphers", "c", "", "SSH -c cipher spec")
	sshBinary := fs.String("ssh_binary", "", "Alternative to ssh")
	openInterfaces := fs.BoolP("openInterfaces", "o", false, "Bind forward to *:PORT")
	verbose := fs.BoolP("verbose", "v", false, "Debug logging")
	showVersion := fs.BoolP("version", "V", false, "Print version, exit")
	showHelp := fs.BoolP("help", "h", false, "Print help, exit")

	if err := fs.Parse(args); err != nil {
		return nil, fs, err
	}

	result := &Result{
		Verbose:     *verbose,
		ShowVersion: *showVersion,
		ShowHelp:    *showHelp,
	}
	if result.ShowVersion || result.ShowHelp {
		return result, fs, nil
	}

	jumphostFlagsUsed := *jumphostUser != "" || *jumphostCredentials != "" ||
		*jumphostCompression || *jumphostCiphers != "" || *sshBinary != "" || *jumphostServer != ""

	if *jumphost == "" && jumphostFlagsUsed {
		return nil, fs, fmt.Errorf("jumphost_* flags require --jumphost")
	}

	serverList := strings.Fields(*servers)
	haveServers := len(serverList) > 0
	haveNumServers := *numServers > 0
	if haveServers == haveNumServers {
		return nil, fs, fmt.Errorf("exactly one of --servers or --num_servers is required")
	}
	if *numServers > maxNumServers {
		return nil, fs, fmt.Errorf("--num_servers must be <= %d, got %d", maxNumServers, *numServers)
	}

	var jumpHostConfig *proxycore.JumpHostConfig
	if *jumphost != "" {
		sshd, err := proxycore.ParseEndpoint(ensurePort(*jumphost, "-1"), true)
		if err != nil {
			return nil, fs, fmt.Errorf("invalid --jumphost: %w", err)
		}
		var target proxycore.Endpoint
		if *jumphostServer != "" {
			target, err = proxycore.ParseEndpoint(*jumphostServer, false)
			if err != nil {
				return nil, fs, fmt.Errorf("invalid --jumphost_server: %w", err)
			}
		}
		jumpHostConfig = &proxycore.JumpHostConfig{
			Sshd:              sshd,
			TargetServer:      target,
			User:              *jumphostUser,
			CredentialsFile:   *jumphostCredentials,
			Compression:       *jumphostCompression,
			Ciphers:           *jumphostCiphers,
			SSHBinary:         *sshBinary,
			OpenAllInterfaces: *openInterfaces,
		}
	}

	var upstreams []proxycore.Endpoint
	if haveServers {
		for _, s := range serverList {
			ep, err := proxycore.ParseEndpoint(s, false)
			if err != nil {
				return nil, fs, fmt.Errorf("invalid --servers entry %q: %w", s, err)
			}
			upstreams = append(upstreams, ep)
		}
	} else if jumpHostConfig != nil {
		// --num_servers with a jumphost means N parallel tunnels to the
		// same logical backend, each through its own local-forward port;
		// proxycore.NewProxy assigns the distinct local ports, so here each
		// upstream "endpoint" is simply the shared jumphost_server target.
		if jumpHostConfig.TargetServer == (proxycore.Endpoint{}) {
			return nil, fs, fmt.Errorf("--num_servers with --jumphost requires --jumphost_server")
		}
		for i := int32(0); i < *numServers; i++ {
			upstreams = append(upstreams, jumpHostConfig.TargetServer)
		}
	} else {
		for i := int32(0); i < *numServers; i++ {
			upstreams = append(upstreams, proxycore.NewEndpoint("localhost", defaultStatusPort+i))
		}
	}

	lbName, err := normalizeLoadBalancerName(*loadBalancer)
	if err != nil {
		return nil, fs, err
	}

	result.Config = proxycore.ProxyConfiguration{
		ListenPort:   *port,
		StatusPort:   *webStatusPort,
		Upstreams:    upstreams,
		LoadBalancer: lbName,
		JumpHost:     jumpHostConfig,
	}
	return result, fs, nil
}

// normalizeLoadBalancerName maps the CLI's CamelCase policy names onto the
// lowercase, hyphenated names proxycore.NewLoadBalancer expects.
func normalizeLoadBalancerName(name string) (string, error) {
	switch strings.ToLower(name) {
	case "roundrobin":
		return "round-robin", nil
	case "uniformrandom":
		return "uniform-random", nil
	case "leastused":
		return "least-used", nil
	default:
		return "", fmt.Errorf("unknown --load_balancer %q, want one of RoundRobin, LeastUsed, UniformRandom", name)
	}
}

// ensurePort appends ":defaultPort" to s if it has no colon, so that
// proxycore.ParseEndpoint's mandatory net.SplitHostPort succeeds even for
// a jumphost flag given as a bare host name.
func ensurePort(s, defaultPort string) string {
	if strings.Contains(s, ":") {
		return s
	}
	return s + ":" + defaultPort
}
