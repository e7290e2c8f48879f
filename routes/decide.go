package routes

import (
	"salepage/cms/session"
)

type Kind int

const (
	Allow Kind = iota
	Redirect
	NotFound
)

func (k Kind) String() string {
	switch k {
	case Allow:
		return "allow"
	case Redirect:
		return "redirect"
	case NotFound:
		return "not_found"
	}
	return "unknown"
}

type Outcome struct {
	Kind           Kind
	To             string
	RememberedFrom string
	Route          Route
}

// Decide resolves a navigation to path. Unknown paths are NotFound whatever
// the session state; only protected routes consult the gate, which
// remembers path when it redirects.
func Decide(table *Table, gate *session.Gate, path string) Outcome {
	return decide(table, gate, path, true)
}

// Peek is Decide for requests that are not navigations: the outcome is the
// same but the gate remembers nothing.
func Peek(table *Table, gate *session.Gate, path string) Outcome {
	return decide(table, gate, path, false)
}

func decide(table *Table, gate *session.Gate, path string, remember bool) Outcome {
	route, ok := table.Match(path)
	if !ok {
		return Outcome{Kind: NotFound}
	}

	switch route.Group {
	case Protected:
		var d session.Decision
		if remember {
			d = gate.Guard(path)
		} else {
			d = gate.Check()
		}
		if d.Allow {
			return Outcome{Kind: Allow, Route: route}
		}
		return Outcome{Kind: Redirect, To: d.To, RememberedFrom: d.RememberedFrom, Route: route}
	case AuthOnly:
		if gate.IsAuthenticated() {
			return Outcome{Kind: Redirect, To: LandingPath, Route: route}
		}
	}
	return Outcome{Kind: Allow, Route: route}
}
