// Package sentry reports backing-tool failures and crashes to Sentry when a
// DSN is configured. Every function is a no-op otherwise.
package sentry

import (
	"runtime"
	"sync/atomic"
	"time"

	gosentry "github.com/getsentry/sentry-go"
)

var enabled atomic.Bool

// Init initializes the SDK. An empty dsn leaves reporting off.
func Init(version, dsn string) error {
	if dsn == "" {
		enabled.Store(false)
		return nil
	}

	err := gosentry.Init(gosentry.ClientOptions{
		Dsn:              dsn,
		Release:          "gitlock@" + version,
		AttachStacktrace: true,
		SampleRate:       1.0,
	})
	if err != nil {
		return err
	}

	gosentry.ConfigureScope(func(scope *gosentry.Scope) {
		scope.SetTag("os", runtime.GOOS)
		scope.SetTag("arch", runtime.GOARCH)
		scope.SetTag("go_version", runtime.Version())
		scope.SetTag("version", version)
	})

	enabled.Store(true)
	return nil
}

// IsEnabled returns whether sentry is active.
func IsEnabled() bool {
	return enabled.Load()
}

// SetRepository tags subsequent events with the repository root and user.
func SetRepository(root, username string) {
	if !enabled.Load() {
		return
	}
	gosentry.ConfigureScope(func(scope *gosentry.Scope) {
		scope.SetTag("repo", root)
		scope.SetUser(gosentry.User{Username: username})
	})
}

// CaptureError reports err.
func CaptureError(err error) {
	if err == nil || !enabled.Load() {
		return
	}
	gosentry.CaptureException(err)
}

// Flush waits up to 2 seconds for buffered events to be sent.
func Flush() {
	if !enabled.Load() {
		return
	}
	gosentry.Flush(2 * time.Second)
}

// RecoverPanic captures a panic to Sentry, flushes, then re-panics.
// Usage: defer sentry.RecoverPanic()
func RecoverPanic() {
	if !enabled.Load() {
		return
	}
	if err := recover(); err != nil {
		gosentry.CurrentHub().Recover(err)
		gosentry.Flush(2 * time.Second)
		panic(err)
	}
}
