package session

import (
	"fmt"
	"sync"
)

type State int

const (
	Anonymous State = iota
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// GateConfig names the two paths the gate sends people to.
type GateConfig struct {
	LoginPath   string
	LandingPath string
}

// Decision is the result of guarding a protected destination. When Allow is
// false the caller must redirect to To.
type Decision struct {
	Allow          bool
	To             string
	RememberedFrom string
}

// Navigation is a navigation side effect requested by a transition. The zero
// value means "do not navigate".
type Navigation struct {
	To string
}

func (n Navigation) IsZero() bool { return n.To == "" }

// Gate holds the authentication state of one browser session. It is only
// mutated through its transition methods.
type Gate struct {
	cfg GateConfig

	mu         sync.RWMutex
	state      State
	payload    Payload
	remembered string
}

func NewGate(cfg GateConfig) *Gate {
	return &Gate{cfg: cfg, state: Anonymous}
}

func (g *Gate) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

func (g *Gate) IsAuthenticated() bool {
	return g.State() == Authenticated
}

// Payload returns the operator payload while authenticated.
func (g *Gate) Payload() (Payload, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.state != Authenticated {
		return Payload{}, false
	}
	return g.payload, true
}

func (g *Gate) Remembered() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.remembered
}

// Guard decides whether destination may be rendered. Anything short of
// Authenticated redirects to the login path and remembers destination.
func (g *Gate) Guard(destination string) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == Authenticated {
		return Decision{Allow: true}
	}
	g.remembered = destination
	return Decision{To: g.cfg.LoginPath, RememberedFrom: destination}
}

// Check is Guard without remembering anything. It answers requests that
// are not screen navigations, such as API calls and re-checks after a slow
// upstream call.
func (g *Gate) Check() Decision {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.state == Authenticated {
		return Decision{Allow: true}
	}
	return Decision{To: g.cfg.LoginPath}
}

// BeginLogin marks an asynchronous login as started.
func (g *Gate) BeginLogin() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch g.state {
	case Authenticating:
		return ErrLoginInProgress
	case Authenticated:
		return ErrAlreadyAuthenticated
	}
	g.state = Authenticating
	return nil
}

// OnLoginSuccess authenticates the session and returns where to go next:
// the remembered destination if any, the landing path otherwise. Replaying
// the same payload on an authenticated session yields a zero Navigation.
func (g *Gate) OnLoginSuccess(p Payload) (Navigation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == Authenticated {
		if g.payload == p {
			return Navigation{}, nil
		}
		return Navigation{}, ErrAlreadyAuthenticated
	}
	g.state = Authenticated
	g.payload = p
	to := g.cfg.LandingPath
	if g.remembered != "" {
		to = g.remembered
		g.remembered = ""
	}
	return Navigation{To: to}, nil
}

// OnLoginFailure returns a pending login to Anonymous. The remembered
// destination survives so a retry still lands where the user was going.
func (g *Gate) OnLoginFailure() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == Authenticating {
		g.state = Anonymous
	}
}

func (g *Gate) OnLogout() Navigation {
	return g.reset()
}

func (g *Gate) OnUnauthorizedResponse() Navigation {
	return g.reset()
}

func (g *Gate) reset() Navigation {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = Anonymous
	g.payload = Payload{}
	g.remembered = ""
	return Navigation{To: g.cfg.LoginPath}
}
