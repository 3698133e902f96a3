package tray

// MenuItem is one entry of an icon's context menu.
type MenuItem struct {
	Label   string
	Tooltip string
	OnClick func()
}

// IconSpec describes a status-area icon.
type IconSpec struct {
	// Frames are the two PNG images alternated while flashing. Frame 0 is
	// the resting image.
	Frames  [2][]byte
	Tooltip string
	Menu    []MenuItem

	// OnActivate runs on primary activation (click). The menu stays on
	// secondary activation.
	OnActivate func()
}

// Icon is a live status-area icon.
type Icon interface {
	SetFrame(index int)
	SetTooltip(text string)
	SetTitle(text string)
	Destroy()
}

// Backend creates status-area icons.
type Backend interface {
	NewIcon(spec IconSpec) (Icon, error)
}

// NopBackend creates icons that do nothing. Used when the host runs without
// a status area.
type NopBackend struct{}

func (NopBackend) NewIcon(IconSpec) (Icon, error) { return nopIcon{}, nil }

type nopIcon struct{}

func (nopIcon) SetFrame(int)      {}
func (nopIcon) SetTooltip(string) {}
func (nopIcon) SetTitle(string)   {}
func (nopIcon) Destroy()          {}
