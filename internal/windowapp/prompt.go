package windowapp

import "github.com/easysoft/xuanxuan-host/internal/ipc"

// promptButtons returns the button labels for a dialog, defaulting to a
// single OK button.
func promptButtons(d ipc.DialogData) []string {
	if len(d.Buttons) == 0 {
		return []string{"OK"}
	}
	return d.Buttons
}

// dismissChoice is the answer for a dialog closed without a button press.
func dismissChoice(d ipc.DialogData) int {
	if d.CancelID >= 0 && d.CancelID < len(promptButtons(d)) {
		return d.CancelID
	}
	return -1
}

// promptTitle picks the dialog title, falling back to the window title.
func promptTitle(d ipc.DialogData, fallback string) string {
	if d.Title != "" {
		return d.Title
	}
	return fallback
}
