// Package notifications delivers best-effort desktop alerts for events a
// user running a team headless would otherwise only see by polling the
// monitor snapshot: a worker stalling, or a whole team finishing.
package notifications

import (
	"fmt"
	"runtime"

	"github.com/go-toast/toast"
)

// ToastNotifier handles Windows toast notifications. On other platforms
// ShowToast and the Notify* helpers return an error; callers treat
// notification failures as non-fatal.
type ToastNotifier struct {
	appID      string
	monitorURL string
}

// NewToastNotifier creates a toast notifier with the default monitor URL.
func NewToastNotifier(appID string) *ToastNotifier {
	return NewToastNotifierWithURL(appID, "")
}

// NewToastNotifierWithURL creates a toast notifier whose "view" action
// opens monitorURL (the internal/monitor/httpapi snapshot page).
func NewToastNotifierWithURL(appID, monitorURL string) *ToastNotifier {
	if appID == "" {
		appID = "teamctl"
	}
	if monitorURL == "" {
		monitorURL = "http://localhost:8787"
	}
	return &ToastNotifier{appID: appID, monitorURL: monitorURL}
}

// ShowToast displays a toast with the default notification sound.
func (t *ToastNotifier) ShowToast(title, message string) error {
	if runtime.GOOS != "windows" {
		return fmt.Errorf("toast notifications only supported on Windows")
	}

	notification := toast.Notification{
		AppID:   t.appID,
		Title:   title,
		Message: message,
		Audio:   toast.Default,
		Actions: []toast.Action{
			{Type: "protocol", Label: "Open Monitor", Arguments: t.monitorURL},
		},
	}
	return notification.Push()
}

// NotifyWorkerStalled alerts that workerName has produced no heartbeat for
// longer than the stall threshold (spec §8 phase classifier "stalled").
func (t *ToastNotifier) NotifyWorkerStalled(teamName, workerName string) error {
	if runtime.GOOS != "windows" {
		return fmt.Errorf("toast notifications only supported on Windows")
	}

	notification := toast.Notification{
		AppID:   t.appID,
		Title:   fmt.Sprintf("%s: worker stalled", teamName),
		Message: fmt.Sprintf("%s has not sent a heartbeat recently", workerName),
		Audio:   toast.IM,
		Actions: []toast.Action{
			{Type: "protocol", Label: "View Now", Arguments: t.monitorURL},
		},
	}
	return notification.Push()
}

// NotifyTeamFinished alerts that every task in teamName reached a terminal
// status.
func (t *ToastNotifier) NotifyTeamFinished(teamName string, completed, failed int) error {
	if runtime.GOOS != "windows" {
		return fmt.Errorf("toast notifications only supported on Windows")
	}

	notification := toast.Notification{
		AppID:   t.appID,
		Title:   fmt.Sprintf("%s: finished", teamName),
		Message: fmt.Sprintf("%d completed, %d failed", completed, failed),
		Audio:   toast.Default,
		Actions: []toast.Action{
			{Type: "protocol", Label: "Open Monitor", Arguments: t.monitorURL},
		},
	}
	return notification.Push()
}

// IsSupported returns true if toast notifications are supported on this
// platform.
func (t *ToastNotifier) IsSupported() bool {
	return runtime.GOOS == "windows"
}
