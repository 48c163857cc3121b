/*
Package mocks provides mocks that can be used for testing applications
that use sssnss. The Channel mock implements sssnss.Channel, so it can be
handed to sssnss.NewClientWithChannel in place of the daemon socket.

All mock instances require you to set expectations on them before you
can use them. It will determine how the mock will behave. If an
expectation is not met, it will make your test fail.

The package also has builders for the reply bodies the daemon sends, so
tests can script realistic conversations without spelling out bytes.
*/
package mocks

import (
	"errors"

	"github.com/sssctl/sssnss"
)

// ErrorReporter is a simple interface that includes the testing.T methods we use to report
// expectation violations when using the mock objects.
type ErrorReporter interface {
	Errorf(string, ...interface{})
}

var (
	errOutOfExpectations = errors.New("no more expectations set on mock")
	errCommandMismatch   = errors.New("command does not match expectation")
	errPayloadMismatch   = errors.New("payload does not match expectation")
)

// NewTestConfig returns a config meant to be used by tests: no root owner
// checks and no connection backoff.
func NewTestConfig() *sssnss.Config {
	config := sssnss.NewConfig()
	config.Net.RequireRootOwner = false
	config.Net.Retry.Backoff = 0
	return config
}
