// Package endpoint resolves a `[user@host:]dataset` argument into a
// structured Endpoint and, for remote endpoints, manages the persistent
// multiplexed SSH control socket subsequent commands reuse.
//
// Grounded on the parsing conventions of vansante-go-zfsutils/utils.go and
// the connection-object shape of edillmann-go-zfs/sshutils.go, but built on
// top of the real `ssh` binary (via executor.Executor) instead of
// golang.org/x/crypto/ssh, so the OS's own ControlMaster multiplexing does
// the work spec.md assigns it.
package endpoint

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hrefhref/sanoid/executor"
)

// ErrBadEndpoint is returned when the raw endpoint string cannot be parsed.
var ErrBadEndpoint = errors.New("bad endpoint")

// Endpoint is a resolved {host, dataset, user-is-root} triple. A Host of ""
// means the endpoint is local.
type Endpoint struct {
	Host    string
	User    string
	Dataset string

	socket string
}

// Parse splits a raw endpoint string of the form `[user@host:]dataset` into
// an Endpoint. It does not open any connection; call Open to do that.
func Parse(raw string) (Endpoint, error) {
	at := strings.Index(raw, "@")
	if at < 0 {
		if raw == "" {
			return Endpoint{}, fmt.Errorf("%w: empty dataset", ErrBadEndpoint)
		}
		return Endpoint{Dataset: raw}, nil
	}

	colon := strings.Index(raw[at:], ":")
	if colon < 0 {
		return Endpoint{}, fmt.Errorf("%w: %q has @ but no :", ErrBadEndpoint, raw)
	}
	colon += at

	user := raw[:at]
	host := raw[at+1 : colon]
	dataset := raw[colon+1:]

	if dataset == "" {
		return Endpoint{}, fmt.Errorf("%w: %q has an empty dataset", ErrBadEndpoint, raw)
	}
	if host == "" {
		return Endpoint{}, fmt.Errorf("%w: %q has an empty host", ErrBadEndpoint, raw)
	}

	return Endpoint{Host: host, User: user, Dataset: dataset}, nil
}

// String reconstructs the raw endpoint string; reparsing it returns an
// equivalent Endpoint (testable property 1 of spec.md §8).
func (e Endpoint) String() string {
	if e.IsLocal() {
		return e.Dataset
	}
	return fmt.Sprintf("%s@%s:%s", e.User, e.Host, e.Dataset)
}

// IsLocal reports whether this endpoint refers to the local machine.
func (e Endpoint) IsLocal() bool {
	return e.Host == ""
}

// IsUserRoot reports whether the acting user on this endpoint is root: the
// process's effective uid for a local endpoint, or a literal "root" user
// for a remote one.
func (e Endpoint) IsUserRoot() bool {
	if e.IsLocal() {
		return os.Geteuid() == 0
	}
	return e.User == "root"
}

// Target converts the Endpoint into the executor.Target used to run
// commands against it.
func (e Endpoint) Target() executor.Target {
	return executor.Target{
		Host:          e.Host,
		User:          e.User,
		ControlSocket: e.socket,
		IsRoot:        e.IsUserRoot(),
	}
}

// Open establishes the persistent SSH control socket for a remote endpoint.
// It is a no-op for local endpoints. tool is the local binary's name, used
// to namespace the control socket path per spec.md §6.
func Open(ctx context.Context, exec_ executor.Executor, tool string, e Endpoint, now int64) (Endpoint, error) {
	if e.IsLocal() {
		return e, nil
	}

	e.socket = fmt.Sprintf("/tmp/%s-%s-%s-%d", tool, e.User, e.Host, now)

	argv := []string{
		"ssh",
		"-o", "ControlMaster=auto",
		"-o", "ControlPersist=yes",
		"-S", e.socket,
		"-M", "-fN",
		fmt.Sprintf("%s@%s", e.User, e.Host),
	}
	// The control connection itself is dialed directly, not through the
	// not-yet-existing socket: strip -S from buildArgv's remote wrapping by
	// running it as a plain local ssh invocation.
	_, err := exec_.Run(ctx, executor.Target{}, false, argv)
	if err != nil {
		return e, fmt.Errorf("endpoint: error opening control socket to %s@%s: %w", e.User, e.Host, err)
	}
	return e, nil
}

// Close tears down a remote endpoint's SSH control socket. It is a no-op
// for local endpoints or endpoints that were never opened.
func Close(ctx context.Context, exec_ executor.Executor, e Endpoint) error {
	if e.IsLocal() || e.socket == "" {
		return nil
	}

	argv := []string{
		"ssh",
		"-S", e.socket,
		"-O", "exit",
		fmt.Sprintf("%s@%s", e.User, e.Host),
	}
	_, err := exec_.Run(ctx, executor.Target{}, false, argv)
	if err != nil {
		return fmt.Errorf("endpoint: error closing control socket to %s@%s: %w", e.User, e.Host, err)
	}
	return nil
}
