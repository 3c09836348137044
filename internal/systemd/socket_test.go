package systemd

import (
	"context"
	"testing"
)

func TestGetListenersWithoutActivation(t *testing.T) {
	t.Setenv("LISTEN_PID", "")
	t.Setenv("LISTEN_FDS", "")

	listeners, err := GetListeners()
	if err != nil {
		t.Fatalf("GetListeners: %v", err)
	}
	if listeners.Activated {
		t.Fatal("expected no activation")
	}
	if listeners.Dashboard != nil || listeners.Metrics != nil {
		t.Fatal("expected nil listeners")
	}
}

func TestNotifyWithoutSocket(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")

	if IsSystemdService() {
		t.Fatal("expected not to run under systemd")
	}
	if err := NotifyReady(); err != nil {
		t.Fatalf("NotifyReady: %v", err)
	}
	if err := NotifyStopping(); err != nil {
		t.Fatalf("NotifyStopping: %v", err)
	}
}

func TestStartWatchdogDisabled(t *testing.T) {
	t.Setenv("WATCHDOG_USEC", "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := StartWatchdog(ctx); err != nil {
		t.Fatalf("StartWatchdog: %v", err)
	}
}
