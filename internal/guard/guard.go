package guard

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/contrail/internal/models"
)

const maxRedirects = 8

// ErrRedirectLoop is returned when a location keeps redirecting.
var ErrRedirectLoop = errors.New("guard: too many redirects")

// State is the part of the console session the guard consults.
type State interface {
	Token() string
	UserInfo(ctx context.Context) (*models.AdminInfo, error)
	Logout(ctx context.Context) error
}

// Decision is where a navigation ends up.
type Decision struct {
	Requested string
	Path      string
	Match     *Match
}

// Redirected reports whether the guard moved the navigation elsewhere.
func (d Decision) Redirected() bool {
	return d.Path != normalize(d.Requested)
}

// Guard applies the login and role rules to a requested location.
type Guard struct {
	table  *Table
	state  State
	logger *zap.Logger
}

// New constructs a guard over table.
func New(table *Table, state State, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{table: table, state: state, logger: logger}
}

// Table exposes the route table.
func (g *Guard) Table() *Table { return g.table }

// Resolve follows redirects until path settles on an enterable route.
func (g *Guard) Resolve(ctx context.Context, path string) (Decision, error) {
	decision := Decision{Requested: path}
	current := normalize(path)

	for i := 0; i < maxRedirects; i++ {
		next, match, err := g.step(ctx, current)
		if err != nil {
			return decision, err
		}
		if next == "" {
			decision.Path = current
			decision.Match = match
			return decision, nil
		}
		g.logger.Debug("route redirect", zap.String("from", current), zap.String("to", next))
		current = next
	}
	return decision, ErrRedirectLoop
}

// step returns the next location, or "" when current may be entered.
func (g *Guard) step(ctx context.Context, current string) (string, *Match, error) {
	loggedIn := g.state.Token() != ""

	if current == PathLogin {
		if loggedIn {
			return PathHome, nil, nil
		}
		match, _ := g.table.Match(PathLogin)
		return "", match, nil
	}
	if !loggedIn {
		return PathLogin, nil, nil
	}

	match, ok := g.table.Match(current)
	if !ok {
		if current == PathNotFound {
			return "", &Match{Path: PathNotFound, Pattern: PathNotFound}, nil
		}
		return PathNotFound, nil, nil
	}
	if match.Redirect != "" {
		return normalize(match.Redirect), nil, nil
	}
	if len(match.Meta.Roles) == 0 {
		return "", match, nil
	}

	info, err := g.state.UserInfo(ctx)
	if err != nil {
		return "", nil, err
	}
	if info != nil && match.Meta.Allows(info.Role) {
		return "", match, nil
	}
	if info != nil {
		return PathNotFound, nil, nil
	}
	if err := g.state.Logout(ctx); err != nil {
		return "", nil, err
	}
	return PathLogin, nil, nil
}

// Navigator tracks the console's current location.
type Navigator struct {
	mu      sync.Mutex
	guard   *Guard
	current string
	logger  *zap.Logger
}

// NewNavigator starts at the login page.
func NewNavigator(g *Guard, logger *zap.Logger) *Navigator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Navigator{guard: g, current: PathLogin, logger: logger}
}

// Current returns the current location.
func (n *Navigator) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Push navigates to path through the guard.
func (n *Navigator) Push(ctx context.Context, path string) (Decision, error) {
	decision, err := n.guard.Resolve(ctx, path)
	if err != nil {
		return decision, err
	}
	n.mu.Lock()
	n.current = decision.Path
	n.mu.Unlock()
	return decision, nil
}

// RedirectToLogin clears the session and moves to the login page unless the
// navigator is already there. It is installed as the HTTP helper's 401 hook.
func (n *Navigator) RedirectToLogin(ctx context.Context) {
	if err := n.guard.state.Logout(ctx); err != nil {
		n.logger.Warn("clear session on unauthorized", zap.Error(err))
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == PathLogin {
		return
	}
	n.logger.Info("session expired, redirecting to login", zap.String("from", n.current))
	n.current = PathLogin
}
