package guard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/contrail/internal/models"
)

type stubState struct {
	token   string
	info    *models.AdminInfo
	logouts int
}

func (s *stubState) Token() string { return s.token }

func (s *stubState) UserInfo(context.Context) (*models.AdminInfo, error) { return s.info, nil }

func (s *stubState) Logout(context.Context) error {
	s.logouts++
	s.token = ""
	s.info = nil
	return nil
}

func TestMatchResolvesParamsAndInheritedMeta(t *testing.T) {
	table, err := Default()
	require.NoError(t, err)

	m, ok := table.Match("/students/status/42?tab=score")
	require.True(t, ok)
	assert.Equal(t, "StudentStatusEdit", m.Name)
	assert.Equal(t, "42", m.Params["id"])
	assert.True(t, m.Hidden)
	assert.Equal(t, "/students", m.Meta.ActiveMenu)

	m, ok = table.Match("/system/admin/")
	require.True(t, ok)
	assert.Equal(t, "管理员管理", m.Meta.Title)
	assert.Equal(t, []models.AdminRole{models.RoleSuper}, m.Meta.Roles)
	assert.Equal(t, "Setting", m.Meta.Icon)

	m, ok = table.Match("/")
	require.True(t, ok)
	assert.Equal(t, "/dashboard", m.Redirect)

	m, ok = table.Match("/certificates")
	require.True(t, ok)
	assert.Equal(t, "Certificates", m.Name)

	_, ok = table.Match("/students/class")
	assert.False(t, ok)
}

func TestResolve(t *testing.T) {
	table := MustDefault()
	super := &models.AdminInfo{ID: 1, Username: "admin", Role: models.RoleSuper}
	normal := &models.AdminInfo{ID: 2, Username: "teacher", Role: models.RoleNormal, DepartmentIDs: []int{101}}

	cases := []struct {
		name    string
		state   stubState
		path    string
		want    string
		logouts int
	}{
		{"login page without token", stubState{}, "/login", "/login", 0},
		{"login page with token", stubState{token: "t", info: super}, "/login", "/dashboard", 0},
		{"protected page without token", stubState{}, "/students", "/login", 0},
		{"root redirects to dashboard", stubState{token: "t", info: normal}, "/", "/dashboard", 0},
		{"class list", stubState{token: "t", info: normal}, "/students/class/101", "/students/class/101", 0},
		{"super enters system", stubState{token: "t", info: super}, "/system", "/system/department", 0},
		{"normal denied system", stubState{token: "t", info: normal}, "/system/admin", "/404", 0},
		{"role route without user info", stubState{token: "t"}, "/system/cert-type", "/login", 1},
		{"unknown path", stubState{token: "t", info: normal}, "/nowhere", "/404", 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state := tc.state
			g := New(table, &state, nil)
			decision, err := g.Resolve(context.Background(), tc.path)
			require.NoError(t, err)
			assert.Equal(t, tc.want, decision.Path)
			assert.Equal(t, tc.logouts, state.logouts)
		})
	}
}

func TestResolveDetectsRedirectLoop(t *testing.T) {
	table, err := Parse([]byte(`
- path: /a
  redirect: /b
- path: /b
  redirect: /a
`))
	require.NoError(t, err)

	g := New(table, &stubState{token: "t"}, nil)
	_, err = g.Resolve(context.Background(), "/a")
	assert.ErrorIs(t, err, ErrRedirectLoop)
}

func TestParseRejectsRelativeRoot(t *testing.T) {
	_, err := Parse([]byte(`- path: dashboard`))
	assert.Error(t, err)
}

func TestMenuHidesRestrictedEntries(t *testing.T) {
	table := MustDefault()

	normal := table.Menu(models.RoleNormal)
	paths := make([]string, 0, len(normal))
	for _, item := range normal {
		paths = append(paths, item.Path)
	}
	assert.Equal(t, []string{"/dashboard", "/certificates", "/students"}, paths)

	super := table.Menu(models.RoleSuper)
	require.Len(t, super, 4)
	system := super[3]
	assert.Equal(t, "系统设置", system.Title)
	require.Len(t, system.Children, 3)
	assert.Equal(t, "/system/cert-type", system.Children[1].Path)
}

func TestBuild(t *testing.T) {
	assert.Equal(t, "/students/status/7", Build("/students/status/:id", "id", "7"))
	assert.Equal(t, "/students/class/101", Build("/students/class/:classId", "classId", "101"))
}

func TestNavigatorRedirectToLogin(t *testing.T) {
	ctx := context.Background()
	state := &stubState{token: "t", info: &models.AdminInfo{Role: models.RoleSuper}}
	nav := NewNavigator(New(MustDefault(), state, nil), nil)
	assert.Equal(t, PathLogin, nav.Current())

	decision, err := nav.Push(ctx, "/students/status/3")
	require.NoError(t, err)
	assert.False(t, decision.Redirected())
	assert.Equal(t, "3", decision.Match.Params["id"])
	assert.Equal(t, "/students/status/3", nav.Current())

	nav.RedirectToLogin(ctx)
	assert.Equal(t, PathLogin, nav.Current())
	assert.Empty(t, state.Token())
	assert.Equal(t, 1, state.logouts)

	nav.RedirectToLogin(ctx)
	assert.Equal(t, PathLogin, nav.Current())
}
