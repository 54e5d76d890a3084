package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praekelt/helpdesk/internal/app"
	"github.com/praekelt/helpdesk/pkg/config"
	"github.com/praekelt/helpdesk/pkg/models"
)

func testApp(t *testing.T, orgs ...config.OrgSeed) func(context.Context) (*app.App, error) {
	dir := t.TempDir()
	return func(ctx context.Context) (*app.App, error) {
		cfg := &config.Config{Orgs: orgs}
		cfg.Gateway.BaseURL = "http://gateway.invalid"
		cfg.Gateway.Token = "secret"
		eff := config.EffectiveConfigResult{Config: cfg, DBPath: dir, Addr: "127.0.0.1:0"}
		if err := config.ValidateConfig(&eff); err != nil {
			return nil, err
		}
		return app.New(ctx, eff, "test")
	}
}

func execute(t *testing.T, open func(context.Context) (*app.App, error), args ...string) (string, error) {
	t.Helper()
	e := &env{version: "test", open: open}
	root := newRoot(e)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func seedCases(t *testing.T, open func(context.Context) (*app.App, error)) {
	a, err := open(context.Background())
	require.NoError(t, err)
	defer a.Close()
	s := a.Deps().Store
	opened := time.Date(2014, 1, 2, 3, 0, 0, 0, time.UTC)
	closed := opened.Add(time.Hour)
	require.NoError(t, s.SaveCase(&models.Case{OrgID: 1, ContactUUID: "C-001", AssigneeID: 1, Summary: "Open case", OpenedOn: opened}))
	require.NoError(t, s.SaveCase(&models.Case{OrgID: 1, ContactUUID: "C-002", AssigneeID: 1, Summary: "Closed case", OpenedOn: opened, ClosedOn: &closed}))
}

func TestCasesList(t *testing.T) {
	open := testApp(t, config.OrgSeed{ID: 1, Name: "UNICEF"})
	seedCases(t, open)

	out, err := execute(t, open, "cases", "list", "--org", "1", "-o", "json")
	require.NoError(t, err)
	var list []models.Case
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "C-001", list[0].ContactUUID)

	out, err = execute(t, open, "cases", "list", "--org", "1", "--view", "all", "-o", "yaml")
	require.NoError(t, err)
	var rows []map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &rows))
	assert.Len(t, rows, 2)

	out, err = execute(t, open, "cases", "list", "--org", "1", "--view", "closed", "-o", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "SUMMARY")
	assert.Contains(t, out, "Closed case")
	assert.NotContains(t, out, "Open case")

	_, err = execute(t, open, "cases", "list", "--org", "1", "--view", "nope")
	assert.Error(t, err)
	_, err = execute(t, open, "cases", "list", "--org", "1", "-o", "xml")
	assert.Error(t, err)
}

func TestCasesTimelineUnknownCase(t *testing.T) {
	open := testApp(t, config.OrgSeed{ID: 1, Name: "UNICEF"})
	_, err := execute(t, open, "cases", "timeline", "42", "--org", "1")
	assert.Error(t, err)
	_, err = execute(t, open, "cases", "timeline", "abc", "--org", "1")
	assert.Error(t, err)
}

func TestLabellerRunWithoutOrgs(t *testing.T) {
	open := testApp(t)
	out, err := execute(t, open, "labeller", "run", "-o", "json")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)

	_, err = execute(t, open, "labeller", "run", "--org", "7")
	assert.Error(t, err)
}

func TestRequiredFlags(t *testing.T) {
	open := testApp(t)
	_, err := execute(t, open, "groups", "sync")
	assert.Error(t, err)
	_, err = execute(t, open, "cases", "list")
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "note: Call back by user 3", describe(&models.CaseAction{Action: models.ActionAddNote, Note: "Call back", CreatedBy: 3}))
	assert.Equal(t, "reassigned to partner 2 by user 1", describe(&models.CaseAction{Action: models.ActionReassign, AssigneeID: 2, CreatedBy: 1}))
}
