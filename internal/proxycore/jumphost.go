package proxycore

import (
	"strconv"
)

// JumpHostConfig is shared by every upstream's TunnelSupervisor when a jump
// host is configured: an SSH server (sshd) is used to open a local-forward
// tunnel from a local port to targetServer.
type JumpHostConfig struct {
	Sshd              Endpoint
	TargetServer      Endpoint
	User              string
	CredentialsFile   string
	Compression       bool
	Ciphers           string
	SSHBinary         string
	OpenAllInterfaces bool
}

// sshBinaryOrDefault returns the configured ssh binary, defaulting to "ssh".
func (j *JumpHostConfig) sshBinaryOrDefault() string {
	if j.SSHBinary == "" {
		return "ssh"
	}
	return j.SSHBinary
}

// buildSSHArgs assembles the ssh(1) argument list that establishes a
// local-forward from localPort to TargetServer via Sshd, per spec §4.2:
//
//	-i credentialsFile (if set), -n -N,
//	-L [bind:]localPort:targetServer.host:targetServer.port,
//	-l user (if set), -p sshd.port (if sshd.port != -1),
//	-C if compression, -c ciphers (if set), finally sshd.host.
func (j *JumpHostConfig) buildSSHArgs(localPort int32) []string {
	var args []string
	if j.CredentialsFile != "" {
		args = append(args, "-i", j.CredentialsFile)
	}
	args = append(args, "-n", "-N")

	bind := ""
	if j.OpenAllInterfaces {
		bind = "*:"
	}
	forward := bind + strconv.FormatInt(int64(localPort), 10) + ":" +
		j.TargetServer.Host + ":" + strconv.FormatInt(int64(j.TargetServer.Port), 10)
	args = append(args, "-L", forward)

	if j.User != "" {
		args = append(args, "-l", j.User)
	}
	if j.Sshd.Port != unspecifiedPort {
		args = append(args, "-p", strconv.FormatInt(int64(j.Sshd.Port), 10))
	}
	if j.Compression {
		args = append(args, "-C")
	}
	if j.Ciphers != "" {
		args = append(args, "-c", j.Ciphers)
	}
	args = append(args, j.Sshd.Host)
	return args
}
