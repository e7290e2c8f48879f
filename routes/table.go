package routes

import (
	"strings"
)

const (
	LoginPath   = "/login"
	LogoutPath  = "/logout"
	LandingPath = "/dashboard"
)

type Group int

const (
	Public Group = iota
	AuthOnly
	Protected
)

func (g Group) String() string {
	switch g {
	case Public:
		return "public"
	case AuthOnly:
		return "auth"
	case Protected:
		return "protected"
	}
	return "unknown"
}

type Route struct {
	Name  string
	Path  string
	Group Group
}

// Table maps URL paths to screens. Paths may contain ":name" segments that
// match exactly one non-empty segment.
type Table struct {
	routes []Route
}

func NewTable(routes ...Route) *Table {
	out := make([]Route, len(routes))
	copy(out, routes)
	return &Table{routes: out}
}

// DefaultTable is the back-office route table.
func DefaultTable() *Table {
	return NewTable(
		Route{Name: "home", Path: "/", Group: Public},
		Route{Name: "about", Path: "/about", Group: Public},
		Route{Name: "health", Path: "/healthz", Group: Public},
		// logging out is never a destination worth returning to
		Route{Name: "logout", Path: LogoutPath, Group: Public},

		Route{Name: "login", Path: LoginPath, Group: AuthOnly},

		Route{Name: "dashboard", Path: LandingPath, Group: Protected},
		Route{Name: "dashboard.series", Path: "/dashboard/series", Group: Protected},
		Route{Name: "dashboard.chart", Path: "/dashboard/chart", Group: Protected},
		Route{Name: "orders", Path: "/orders", Group: Protected},
		Route{Name: "orders.detail", Path: "/orders/:id", Group: Protected},
		Route{Name: "products", Path: "/products", Group: Protected},
		Route{Name: "products.detail", Path: "/products/:id", Group: Protected},
		Route{Name: "vouchers", Path: "/vouchers", Group: Protected},
		Route{Name: "vouchers.detail", Path: "/vouchers/:id", Group: Protected},
		Route{Name: "combos", Path: "/combos", Group: Protected},
		Route{Name: "combos.detail", Path: "/combos/:id", Group: Protected},
		Route{Name: "stores", Path: "/stores", Group: Protected},
		Route{Name: "stores.detail", Path: "/stores/:id", Group: Protected},
		Route{Name: "categories", Path: "/categories", Group: Protected},
		Route{Name: "categories.detail", Path: "/categories/:id", Group: Protected},
	)
}

func (t *Table) Routes() []Route {
	out := make([]Route, len(t.routes))
	copy(out, t.routes)
	return out
}

// Match finds the first declared route matching path.
func (t *Table) Match(path string) (Route, bool) {
	segs := segments(path)
	for _, r := range t.routes {
		if matchSegments(segments(r.Path), segs) {
			return r, true
		}
	}
	return Route{}, false
}

func segments(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func matchSegments(pattern, path []string) bool {
	if len(pattern) != len(path) {
		return false
	}
	for i, p := range pattern {
		if strings.HasPrefix(p, ":") {
			if path[i] == "" {
				return false
			}
			continue
		}
		if p != path[i] {
			return false
		}
	}
	return true
}
