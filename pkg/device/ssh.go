package device

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"regexp"
	"time"

	expect "github.com/google/goexpect"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/newtron-network/bgpwatch/pkg/util"
)

// DefaultDialTimeout bounds TCP connect plus SSH handshake.
const DefaultDialTimeout = 30 * time.Second

var loginPrompt = regexp.MustCompile(LoginPrompt)

// SSHDialer opens interactive PTY shells over SSH and drives them with
// goexpect.
type SSHDialer struct {
	DialTimeout time.Duration
}

// NewSSHDialer creates an SSH dialer with default timeouts.
func NewSSHDialer() *SSHDialer {
	return &SSHDialer{DialTimeout: DefaultDialTimeout}
}

// Open dials the endpoint, starts an interactive shell and waits for the first
// prompt. Every failure is returned as *util.ConnectionError.
func (d *SSHDialer) Open(ctx context.Context, ep Endpoint) (Session, error) {
	if !ep.Transport.Valid() {
		return nil, util.NewConnectionError(ep.Host,
			fmt.Errorf("%w: unknown transport %q", util.ErrInvalidConfig, ep.Transport))
	}
	prompt, err := ep.PromptPattern()
	if err != nil {
		return nil, util.NewConnectionError(ep.Host, err)
	}

	config, err := clientConfig(ep, d.dialTimeout())
	if err != nil {
		return nil, util.NewConnectionError(ep.Host, err)
	}

	client, err := d.dial(ctx, ep.Address(), config)
	if err != nil {
		return nil, util.NewConnectionError(ep.Host, err)
	}

	s, err := startShell(ctx, client, ep, prompt)
	if err != nil {
		client.Close()
		return nil, util.NewConnectionError(ep.Host, err)
	}
	util.WithDevice(ep.String()).Debugf("SSH session opened to %s", ep.Address())
	return s, nil
}

func (d *SSHDialer) dialTimeout() time.Duration {
	if d.DialTimeout > 0 {
		return d.DialTimeout
	}
	return DefaultDialTimeout
}

// dial honors ctx for the TCP connect and bounds the handshake with the
// config timeout.
func (d *SSHDialer) dial(ctx context.Context, addr string, config *ssh.ClientConfig) (*ssh.Client, error) {
	dialer := net.Dialer{Timeout: config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("SSH dial %s@%s: %w", config.User, addr, err)
	}

	conn.SetDeadline(time.Now().Add(config.Timeout))
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("SSH handshake %s@%s: %w", config.User, addr, err)
	}
	conn.SetDeadline(time.Time{})
	return ssh.NewClient(c, chans, reqs), nil
}

func clientConfig(ep Endpoint, timeout time.Duration) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod

	if ep.KeyFile != "" {
		signer, err := loadSigner(ep.KeyFile, ep.Password)
		if err != nil {
			return nil, err
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if ep.Password != "" {
		pass := ep.Password
		auth = append(auth,
			ssh.Password(pass),
			// Network OS images often only offer keyboard-interactive.
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = pass
				}
				return answers, nil
			}),
		)
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("no SSH credentials for %s: set password or key_file", ep)
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if ep.KnownHosts != "" {
		cb, err := knownhosts.New(ep.KnownHosts)
		if err != nil {
			return nil, fmt.Errorf("loading known_hosts %s: %w", ep.KnownHosts, err)
		}
		hostKeyCallback = cb
	} else {
		util.WithDevice(ep.String()).Warnf("SSH to %s: host key verification disabled (no known_hosts configured)", ep.Address())
	}

	return &ssh.ClientConfig{
		User:            ep.Username,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}, nil
}

// loadSigner parses a private key file, using passphrase for encrypted keys.
func loadSigner(path, passphrase string) (ssh.Signer, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key %s: %w", path, err)
	}
	signer, err := ssh.ParsePrivateKey(pem)
	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) && passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(pem, []byte(passphrase))
	}
	if err != nil {
		return nil, fmt.Errorf("parsing key %s: %w", path, err)
	}
	return signer, nil
}

// expecter is the part of goexpect's Expecter a session drives.
type expecter interface {
	Expect(*regexp.Regexp, time.Duration) (string, []string, error)
	Send(string) error
	Close() error
}

// sshSession is an interactive shell on one SSH connection.
type sshSession struct {
	host    string
	client  *ssh.Client
	exp     expecter
	prompt  *regexp.Regexp
	timeout time.Duration
}

func startShell(ctx context.Context, client *ssh.Client, ep Endpoint, prompt *regexp.Regexp) (*sshSession, error) {
	exp, _, err := expect.SpawnSSH(client, ep.CommandTimeout(), expect.PartialMatch(true))
	if err != nil {
		return nil, fmt.Errorf("SSH shell: %w", err)
	}

	s := &sshSession{
		host:    ep.Host,
		client:  client,
		exp:     exp,
		prompt:  prompt,
		timeout: ep.CommandTimeout(),
	}

	wait, err := s.budget(ctx)
	if err == nil {
		_, _, err = exp.Expect(loginPrompt, wait)
	}
	if err != nil {
		exp.Close()
		return nil, fmt.Errorf("waiting for login prompt: %w", err)
	}
	return s, nil
}

// budget is the time an expect call may wait: the command timeout, cut short
// by the context deadline.
func (s *sshSession) budget(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	wait := s.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < wait {
			wait = left
		}
	}
	if wait <= 0 {
		return 0, context.DeadlineExceeded
	}
	return wait, nil
}

// Execute sends command followed by a newline and waits for terminator.
func (s *sshSession) Execute(ctx context.Context, command string, terminator *regexp.Regexp) (string, error) {
	if terminator == nil {
		terminator = s.prompt
	}
	wait, err := s.budget(ctx)
	if err != nil {
		return "", util.NewCommandError(s.host, command, "", err)
	}
	if err := s.exp.Send(command + "\n"); err != nil {
		return "", util.NewCommandError(s.host, command, "", err)
	}

	raw, _, err := s.exp.Expect(terminator, wait)
	raw = normalizeNewlines(raw)
	if err != nil {
		return raw, util.NewCommandError(s.host, command, raw, err)
	}
	return cleanOutput(raw, command, terminator), nil
}

// Close tears down the shell and the SSH connection.
func (s *sshSession) Close() error {
	err := s.exp.Close()
	if s.client != nil {
		return s.client.Close()
	}
	return err
}
