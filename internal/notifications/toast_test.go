package notifications

import (
	"runtime"
	"testing"
)

func TestNewToastNotifierDefaults(t *testing.T) {
	toast := NewToastNotifier("")
	if toast.appID != "teamctl" {
		t.Errorf("appID = %q, want teamctl", toast.appID)
	}
	if toast.monitorURL == "" {
		t.Error("expected default monitorURL")
	}
}

func TestNewToastNotifierWithURL(t *testing.T) {
	toast := NewToastNotifierWithURL("custom", "http://example.com")
	if toast.appID != "custom" || toast.monitorURL != "http://example.com" {
		t.Errorf("unexpected notifier: %+v", toast)
	}
}

func TestToastIsSupported(t *testing.T) {
	toast := NewToastNotifier("")
	supported := toast.IsSupported()
	if (runtime.GOOS == "windows") != supported {
		t.Errorf("IsSupported = %v on %s", supported, runtime.GOOS)
	}
}

func TestToastShowToastNonWindows(t *testing.T) {
	toast := NewToastNotifier("")
	err := toast.ShowToast("Test Title", "Test Message")
	if runtime.GOOS != "windows" && err == nil {
		t.Error("expected error on non-Windows platform")
	}
}

func TestToastNotifyWorkerStalledNonWindows(t *testing.T) {
	toast := NewToastNotifier("")
	err := toast.NotifyWorkerStalled("demo", "worker-1")
	if runtime.GOOS != "windows" && err == nil {
		t.Error("expected error on non-Windows platform")
	}
}

func TestToastNotifyTeamFinishedNonWindows(t *testing.T) {
	toast := NewToastNotifier("")
	err := toast.NotifyTeamFinished("demo", 3, 1)
	if runtime.GOOS != "windows" && err == nil {
		t.Error("expected error on non-Windows platform")
	}
}
