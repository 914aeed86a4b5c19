package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/boxd/internal/application"
	"github.com/fyrsmithlabs/boxd/internal/dom"
	httpserver "github.com/fyrsmithlabs/boxd/internal/http"
	"github.com/fyrsmithlabs/boxd/internal/modules"
	"github.com/fyrsmithlabs/boxd/internal/nav"
)

const testDocument = `<div id="hello" data-module="announcer">
  <script type="text/x-config">{"greeting": "hi"}</script>
</div>
<ul id="log" data-module="journal"></ul>`

// startServer runs a real application behind the HTTP API.
func startServer(t *testing.T) (*application.Application, string) {
	t.Helper()

	doc, err := dom.ParseString(testDocument)
	require.NoError(t, err)

	app, err := application.New(application.Options{
		Document:  doc,
		Global:    map[string]any{"theme": "dark"},
		Navigator: nav.New(nav.Options{}),
	})
	require.NoError(t, err)
	require.NoError(t, modules.Register(app))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = app.Run(ctx) }()
	require.NoError(t, app.Do(ctx, func() error { return app.Init(ctx) }))

	srv, err := httpserver.NewServer(app, zap.NewNop(), &httpserver.Config{
		Host:     "localhost",
		Port:     9191,
		Gatherer: prometheus.NewRegistry(),
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Echo())
	t.Cleanup(ts.Close)
	return app, ts.URL
}

func run(t *testing.T, server string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"--server", server}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestHealth(t *testing.T) {
	_, server := startServer(t)

	out, err := run(t, server, "health")
	require.NoError(t, err)
	assert.Contains(t, out, "Server Status: ok")
	assert.Contains(t, out, "Modules:       2")
}

func TestHealth_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	ts.Close()

	_, err := run(t, ts.URL, "health")
	assert.Error(t, err)
}

func TestModules(t *testing.T) {
	_, server := startServer(t)

	out, err := run(t, server, "modules")
	require.NoError(t, err)
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "log")
	assert.Contains(t, out, "Types: [announcer journal router]")
}

func TestConfig(t *testing.T) {
	_, server := startServer(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "global value", args: []string{"config", "theme"}, want: "\"dark\"\n"},
		{name: "global absent", args: []string{"config", "missing"}, want: "(absent)\n"},
		{name: "module value", args: []string{"config", "greeting", "--module", "hello"}, want: "\"hi\"\n"},
		{name: "module whole", args: []string{"config", "--module", "hello"}, want: "{\n  \"greeting\": \"hi\"\n}\n"},
		{name: "module without config", args: []string{"config", "--module", "log"}, want: "(absent)\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, server, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestConfig_UnknownModule(t *testing.T) {
	_, server := startServer(t)

	_, err := run(t, server, "config", "--module", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), `no element with id "nope"`)
}

func TestBroadcast(t *testing.T) {
	app, server := startServer(t)

	out, err := run(t, server, "broadcast", "navigate", `{"url": "/x"}`)
	require.NoError(t, err)
	assert.Equal(t, "broadcast: navigate\n", out)

	journal, ok := app.Module("log").(*modules.Journal)
	require.True(t, ok)
	var names []string
	for _, e := range journal.Entries() {
		names = append(names, e.Name)
	}
	assert.Contains(t, names, "navigate")
}

func TestBroadcast_InvalidData(t *testing.T) {
	_, server := startServer(t)

	_, err := run(t, server, "broadcast", "refresh", "{not json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid JSON")
}

func TestNavigate(t *testing.T) {
	_, server := startServer(t)

	out, err := run(t, server, "navigate", "/docs", "--state", `{"tab": 2}`)
	require.NoError(t, err)
	assert.Equal(t, "navigated\n", out)
}

func TestNavigate_Blocked(t *testing.T) {
	_, server := startServer(t)

	_, err := run(t, server, "navigate", "https://elsewhere.example/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestNavigate_InvalidParams(t *testing.T) {
	_, server := startServer(t)

	_, err := run(t, server, "navigate", "--params", "[1,2]")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "--params"))
}
