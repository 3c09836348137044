// Package systemd wraps socket activation and sd_notify.
package systemd

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/coreos/go-systemd/v22/activation"
	"github.com/coreos/go-systemd/v22/daemon"
)

// Listeners holds the systemd-activated listeners.
type Listeners struct {
	Dashboard net.Listener
	Metrics   net.Listener
	Activated bool
}

// GetListeners retrieves socket-activated file descriptors. The names come
// from FileDescriptorName= in eldflow.socket: "dashboard" and "metrics".
// Returns empty listeners when not running under socket activation.
func GetListeners() (*Listeners, error) {
	listeners := &Listeners{}

	// Probing with activation.Files would wrap the descriptors twice.
	if os.Getenv("LISTEN_FDS") == "" {
		return listeners, nil
	}
	listeners.Activated = true

	named, err := activation.ListenersWithNames()
	if err != nil {
		return nil, fmt.Errorf("failed to get systemd listeners: %w", err)
	}

	if lns, ok := named["dashboard"]; ok && len(lns) > 0 {
		listeners.Dashboard = lns[0]
	}
	if lns, ok := named["metrics"]; ok && len(lns) > 0 {
		listeners.Metrics = lns[0]
	}

	return listeners, nil
}

// NotifyReady sends READY=1.
func NotifyReady() error {
	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		return fmt.Errorf("failed to send sd_notify: %w", err)
	}
	return nil
}

// NotifyStopping sends STOPPING=1.
func NotifyStopping() error {
	if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
		return fmt.Errorf("failed to send sd_notify stopping: %w", err)
	}
	return nil
}

// StartWatchdog pings the watchdog at half the configured interval until
// ctx is done. It does nothing when WatchdogSec= is unset.
func StartWatchdog(ctx context.Context) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		return fmt.Errorf("failed to read watchdog settings: %w", err)
	}
	if interval == 0 {
		return nil
	}

	go func() {
		ticker := time.NewTicker(interval / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			}
		}
	}()
	return nil
}

// IsSystemdService reports whether systemd expects readiness notifications.
func IsSystemdService() bool {
	return os.Getenv("NOTIFY_SOCKET") != ""
}
