// Package guard holds the console route table and the navigation guard that
// decides where a requested location actually lands.
package guard

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/contrail/internal/models"
)

// Well known locations.
const (
	PathLogin    = "/login"
	PathHome     = "/"
	PathNotFound = "/404"
)

//go:embed routes.yaml
var defaultRoutes []byte

// Meta is the per-route metadata. Children inherit unset fields from their parent.
type Meta struct {
	Title      string             `yaml:"title"`
	Icon       string             `yaml:"icon"`
	Roles      []models.AdminRole `yaml:"roles"`
	ActiveMenu string             `yaml:"activeMenu"`
}

// Allows reports whether role may enter a route carrying this meta.
func (m Meta) Allows(role models.AdminRole) bool {
	if len(m.Roles) == 0 {
		return true
	}
	for _, r := range m.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (m Meta) inherit(parent Meta) Meta {
	if m.Title == "" {
		m.Title = parent.Title
	}
	if m.Icon == "" {
		m.Icon = parent.Icon
	}
	if len(m.Roles) == 0 {
		m.Roles = parent.Roles
	}
	if m.ActiveMenu == "" {
		m.ActiveMenu = parent.ActiveMenu
	}
	return m
}

// Route is one node of the route document.
type Route struct {
	Path     string  `yaml:"path"`
	Name     string  `yaml:"name"`
	Redirect string  `yaml:"redirect"`
	Hidden   bool    `yaml:"hidden"`
	Meta     Meta    `yaml:"meta"`
	Children []Route `yaml:"children"`
}

// Match is a resolved location.
type Match struct {
	Path     string
	Pattern  string
	Name     string
	Redirect string
	Hidden   bool
	Meta     Meta
	Params   map[string]string
}

// MenuItem is a visible navigation entry.
type MenuItem struct {
	Path     string
	Title    string
	Icon     string
	Children []MenuItem
}

type entry struct {
	pattern  string
	segments []string
	name     string
	redirect string
	hidden   bool
	meta     Meta
}

// Table is a flattened, matchable route table.
type Table struct {
	routes  []Route
	entries []entry
}

// Default returns the embedded console route table.
func Default() (*Table, error) {
	return Parse(defaultRoutes)
}

// MustDefault is Default for package initialisation.
func MustDefault() *Table {
	t, err := Default()
	if err != nil {
		panic(err)
	}
	return t
}

// Parse builds a table from a YAML route document.
func Parse(data []byte) (*Table, error) {
	var routes []Route
	if err := yaml.Unmarshal(data, &routes); err != nil {
		return nil, fmt.Errorf("parse routes: %w", err)
	}
	t := &Table{routes: routes}
	for _, r := range routes {
		if !strings.HasPrefix(r.Path, "/") {
			return nil, fmt.Errorf("route %q must be absolute", r.Path)
		}
		t.flatten(r, "", Meta{}, false)
	}
	return t, nil
}

func (t *Table) flatten(r Route, parent string, parentMeta Meta, parentHidden bool) {
	pattern := joinPath(parent, r.Path)
	meta := r.Meta.inherit(parentMeta)
	hidden := r.Hidden || parentHidden

	hasIndex := false
	for _, child := range r.Children {
		if child.Path == "" {
			hasIndex = true
			break
		}
	}
	if len(r.Children) == 0 || r.Redirect != "" || !hasIndex {
		t.entries = append(t.entries, entry{
			pattern:  pattern,
			segments: split(pattern),
			name:     r.Name,
			redirect: r.Redirect,
			hidden:   hidden,
			meta:     meta,
		})
	}
	for _, child := range r.Children {
		t.flatten(child, pattern, meta, hidden)
	}
}

// Match resolves path against the table. Query strings and fragments are ignored.
func (t *Table) Match(path string) (*Match, bool) {
	clean := normalize(path)
	segments := split(clean)
	for _, e := range t.entries {
		params, ok := matchSegments(e.segments, segments)
		if !ok {
			continue
		}
		return &Match{
			Path:     clean,
			Pattern:  e.pattern,
			Name:     e.name,
			Redirect: e.redirect,
			Hidden:   e.hidden,
			Meta:     e.meta,
			Params:   params,
		}, true
	}
	return nil, false
}

// Lookup finds a route by name.
func (t *Table) Lookup(name string) (*Match, bool) {
	for _, e := range t.entries {
		if e.name == name {
			return &Match{Path: e.pattern, Pattern: e.pattern, Name: e.name, Redirect: e.redirect, Hidden: e.hidden, Meta: e.meta}, true
		}
	}
	return nil, false
}

// Menu lists the visible navigation entries available to role.
func (t *Table) Menu(role models.AdminRole) []MenuItem {
	var items []MenuItem
	for _, r := range t.routes {
		if r.Hidden || !r.Meta.Allows(role) {
			continue
		}
		base := r.Path
		var children []MenuItem
		for _, child := range r.Children {
			meta := child.Meta.inherit(r.Meta)
			if child.Hidden || !meta.Allows(role) {
				continue
			}
			children = append(children, MenuItem{Path: joinPath(base, child.Path), Title: meta.Title, Icon: meta.Icon})
		}
		switch {
		case r.Meta.Title != "":
			items = append(items, MenuItem{Path: base, Title: r.Meta.Title, Icon: r.Meta.Icon, Children: children})
		case len(children) > 0:
			items = append(items, children...)
		}
	}
	return items
}

// Build fills the parameters of pattern, e.g. Build("/students/status/:id", "id", "7").
func Build(pattern string, pairs ...string) string {
	values := make(map[string]string, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		values[pairs[i]] = pairs[i+1]
	}
	segments := split(pattern)
	for i, s := range segments {
		if strings.HasPrefix(s, ":") {
			segments[i] = values[s[1:]]
		}
	}
	return "/" + strings.Join(segments, "/")
}

func matchSegments(pattern, path []string) (map[string]string, bool) {
	if len(pattern) != len(path) {
		return nil, false
	}
	params := map[string]string{}
	for i, s := range pattern {
		if strings.HasPrefix(s, ":") {
			if path[i] == "" {
				return nil, false
			}
			params[s[1:]] = path[i]
			continue
		}
		if s != path[i] {
			return nil, false
		}
	}
	return params, true
}

func joinPath(parent, child string) string {
	switch {
	case strings.HasPrefix(child, "/"):
		return normalize(child)
	case child == "":
		return normalize(parent)
	default:
		return normalize(strings.TrimSuffix(parent, "/") + "/" + child)
	}
}

func normalize(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimSpace(path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path
}

func split(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
