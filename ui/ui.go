// Package ui holds the state of the favicon finder page.
//
// The page moves between four states:
//
//	idle ──submit──▶ loading ──usable data──▶ success
//	                    │
//	                    └──no icon / failure──▶ error
//
// A new submission from any state returns to loading and clears the
// previous result. Every submission carries a sequence number; a result
// for anything but the latest submission is dropped, so a slow earlier
// response cannot overwrite a newer one. static/app.js implements the
// same rules in the browser.
package ui

import (
	"sync"

	"github.com/use-agent/favgrab/iconurl"
	"github.com/use-agent/favgrab/models"
)

// State is one of the page states.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateSuccess State = "success"
	StateError   State = "error"
)

// Lookup modes.
const (
	ModeServer = "server" // via GET /api/favicon
	ModeClient = "client" // favicon image service only
)

// ErrorMessage is shown when no icon could be found.
const ErrorMessage = "Could not find an icon for that address. Please check it and try again."

// Machine tracks one page session. It is safe for concurrent use.
type Machine struct {
	mu       sync.Mutex
	mode     string
	iconSize int
	seq      uint64
	view     View
}

// View is the template model for the page.
type View struct {
	State State
	Mode  string
	Input string
	Seq   uint64

	// IconURL is the icon to display; ServiceIconURL is the image-service
	// URL the page swaps in if IconURL fails to load.
	IconURL        string
	ServiceIconURL string
	Result         *models.IconResult
	Fallback       bool
	Error          string
}

// NewMachine returns a machine in the idle state. Unknown modes mean server.
func NewMachine(mode string, iconSize int) *Machine {
	if mode != ModeClient {
		mode = ModeServer
	}
	return &Machine{
		mode:     mode,
		iconSize: iconSize,
		view:     View{State: StateIdle, Mode: mode},
	}
}

// Submit starts a new lookup for input and returns its sequence number.
func (m *Machine) Submit(input string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	m.view = View{
		State: StateLoading,
		Mode:  m.mode,
		Input: input,
		Seq:   m.seq,
	}
	if icon, err := iconurl.ClientIcon(input, m.iconSize); err == nil {
		m.view.ServiceIconURL = icon
	}
	return m.seq
}

// Resolve applies a lookup result. It returns false, changing nothing,
// when seq is stale or the machine is not loading.
func (m *Machine) Resolve(seq uint64, l *models.Lookup) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.current(seq) {
		return false
	}
	icon := ""
	if l != nil {
		icon = l.IconURL()
	}
	if icon == "" {
		m.view.State = StateError
		m.view.Error = ErrorMessage
		return true
	}
	m.view.State = StateSuccess
	m.view.IconURL = icon
	m.view.Result = l.Result
	m.view.Fallback = l.Fallback != nil
	return true
}

// Fail moves the machine to the error state. Stale seq is ignored.
func (m *Machine) Fail(seq uint64, msg string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.current(seq) {
		return false
	}
	if msg == "" {
		msg = ErrorMessage
	}
	m.view.State = StateError
	m.view.Error = msg
	return true
}

// ResolveClient completes seq using the favicon image service only.
// It never touches the network.
func (m *Machine) ResolveClient(seq uint64) bool {
	m.mu.Lock()
	icon := ""
	if m.current(seq) {
		icon = m.view.ServiceIconURL
	}
	m.mu.Unlock()

	if icon == "" {
		return m.Fail(seq, ErrorMessage)
	}
	return m.Resolve(seq, &models.Lookup{Result: &models.IconResult{Favicon: icon}})
}

// View returns a copy of the current view.
func (m *Machine) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view
}

func (m *Machine) current(seq uint64) bool {
	return seq == m.seq && m.view.State == StateLoading
}
