package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/workflow-report-cli/internal/config"
	"github.com/sells-group/workflow-report-cli/internal/pipeline"
)

func changedNone(string) bool { return false }

func changedOnly(names ...string) func(string) bool {
	set := map[string]bool{}
	for _, n := range names {
		set[n] = true
	}
	return func(name string) bool { return set[name] }
}

func TestApplyConfigDefaults(t *testing.T) {
	cfg := &config.Config{
		Dify: config.DifyConfig{
			BaseURL:  "https://dify.internal",
			APIToken: "cfg-token",
			AppID:    "cfg-app",
		},
		Output: config.OutputConfig{Format: "csv", Limit: 50},
	}

	p := pipeline.Params{Limit: 20, Format: "markdown"}
	applyConfigDefaults(&p, cfg, changedNone)

	assert.Equal(t, "https://dify.internal", p.BaseURL)
	assert.Equal(t, "cfg-token", p.APIToken)
	assert.Equal(t, "cfg-app", p.AppID)
	assert.Equal(t, 50, p.Limit)
	assert.Equal(t, "csv", p.Format)
}

func TestApplyConfigDefaults_FlagsWin(t *testing.T) {
	cfg := &config.Config{
		Dify:   config.DifyConfig{BaseURL: "https://dify.internal", APIToken: "cfg-token"},
		Output: config.OutputConfig{Format: "csv", Limit: 50},
	}

	p := pipeline.Params{
		BaseURL:  "https://flag.example.com",
		APIToken: "flag-token",
		Limit:    10,
		Format:   "json",
	}
	applyConfigDefaults(&p, cfg, changedOnly("base-url", "api-token", "limit", "format"))

	assert.Equal(t, "https://flag.example.com", p.BaseURL)
	assert.Equal(t, "flag-token", p.APIToken)
	assert.Equal(t, 10, p.Limit)
	assert.Equal(t, "json", p.Format)
}

func TestConsoleCredentialFlags(t *testing.T) {
	f := fetchCmd.Flags()
	for _, name := range []string{"console-token", "console-email", "console-password"} {
		assert.NotNil(t, f.Lookup(name), name)
	}
}

func TestApplyConfigDefaults_ConsoleFlagsWin(t *testing.T) {
	cfg := &config.Config{
		Dify: config.DifyConfig{
			ConsoleEmail:    "cfg@example.com",
			ConsolePassword: "cfg-pass",
			ConsoleToken:    "cfg-console-token",
		},
	}

	p := pipeline.Params{
		ConsoleEmail:    "flag@example.com",
		ConsolePassword: "flag-pass",
		ConsoleToken:    "flag-console-token",
	}
	applyConfigDefaults(&p, cfg, changedOnly("console-email", "console-password", "console-token"))

	assert.Equal(t, "flag@example.com", p.ConsoleEmail)
	assert.Equal(t, "flag-pass", p.ConsolePassword)
	assert.Equal(t, "flag-console-token", p.ConsoleToken)
}

func TestApplyProfile(t *testing.T) {
	prof := config.Profile{
		Status:             "succeeded",
		Keyword:            "refund",
		Limit:              100,
		FetchAll:           true,
		WithDetails:        true,
		WithNodeExecutions: true,
		Format:             "xlsx",
		CreatedAtAfter:     "2026-08-01T00:00:00Z",
	}

	p := pipeline.Params{Limit: 20, Format: "markdown"}
	applyProfile(&p, prof, changedNone)

	assert.Equal(t, "succeeded", p.Status)
	assert.Equal(t, "refund", p.Keyword)
	assert.Equal(t, 100, p.Limit)
	assert.True(t, p.FetchAll)
	assert.True(t, p.WithDetails)
	assert.True(t, p.WithNodeExecutions)
	assert.Equal(t, "xlsx", p.Format)
	assert.Equal(t, "2026-08-01T00:00:00Z", p.CreatedAtAfter)
}

func TestApplyProfile_ExplicitFlagsWin(t *testing.T) {
	prof := config.Profile{Status: "failed", Limit: 100, Format: "xlsx"}

	p := pipeline.Params{Status: "succeeded", Limit: 10, Format: "csv"}
	applyProfile(&p, prof, changedOnly("status", "limit", "format"))

	assert.Equal(t, "succeeded", p.Status)
	assert.Equal(t, 10, p.Limit)
	assert.Equal(t, "csv", p.Format)
}

func TestRootCommandWiring(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["fetch"])
	assert.True(t, names["history"])
	assert.True(t, names["cleanup"])
}
