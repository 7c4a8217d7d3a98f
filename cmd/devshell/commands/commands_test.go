package commands_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/devshell/cmd/devshell/commands"
	"go.trai.ch/devshell/internal/app"
	"go.trai.ch/devshell/internal/build"
)

type mockApp struct {
	calls []string

	provisionOpts app.ProvisionOptions
	envOpts       app.EnvOptions
	argv          []string
	flakeOpts     app.FlakeOptions
	cleanOpts     app.CleanOptions

	err error
}

func (m *mockApp) record(name string) error {
	m.calls = append(m.calls, name)
	return m.err
}

func (m *mockApp) Enter(_ context.Context, opts app.ProvisionOptions) error {
	m.provisionOpts = opts
	return m.record("enter")
}

func (m *mockApp) Env(_ context.Context, opts app.EnvOptions) error {
	m.envOpts = opts
	return m.record("env")
}

func (m *mockApp) Run(_ context.Context, argv []string, opts app.ProvisionOptions) error {
	m.argv = argv
	m.provisionOpts = opts
	return m.record("run")
}

func (m *mockApp) Platforms(_ context.Context) error {
	return m.record("platforms")
}

func (m *mockApp) Check(_ context.Context, opts app.ProvisionOptions) error {
	m.provisionOpts = opts
	return m.record("check")
}

func (m *mockApp) Lock(_ context.Context, opts app.ProvisionOptions) error {
	m.provisionOpts = opts
	return m.record("lock")
}

func (m *mockApp) Flake(_ context.Context, opts app.FlakeOptions) error {
	m.flakeOpts = opts
	return m.record("flake")
}

func (m *mockApp) Watch(_ context.Context, opts app.EnvOptions) error {
	m.envOpts = opts
	return m.record("watch")
}

func (m *mockApp) Clean(_ context.Context, opts app.CleanOptions) error {
	m.cleanOpts = opts
	return m.record("clean")
}

func execute(t *testing.T, m *mockApp, args ...string) (string, error) {
	t.Helper()
	cli := commands.New(m)
	buf := new(bytes.Buffer)
	cli.SetOutput(buf, buf)
	cli.SetArgs(args)
	err := cli.Execute(context.Background())
	return buf.String(), err
}

func TestCommands_Root(t *testing.T) {
	t.Run("enters the shell by default", func(t *testing.T) {
		m := &mockApp{}
		_, err := execute(t, m)
		require.NoError(t, err)
		assert.Equal(t, []string{"enter"}, m.calls)
		assert.Equal(t, "auto", m.provisionOpts.OutputMode)
		assert.False(t, m.provisionOpts.NoCache)
	})

	t.Run("enter subcommand with flags", func(t *testing.T) {
		m := &mockApp{}
		_, err := execute(t, m, "enter", "--no-cache", "--ci")
		require.NoError(t, err)
		assert.Equal(t, []string{"enter"}, m.calls)
		assert.True(t, m.provisionOpts.NoCache)
		assert.Equal(t, "linear", m.provisionOpts.OutputMode)
	})

	t.Run("rejects unknown commands", func(t *testing.T) {
		m := &mockApp{}
		_, err := execute(t, m, "bogus")
		require.Error(t, err)
		assert.Empty(t, m.calls)
	})

	t.Run("returns app errors", func(t *testing.T) {
		m := &mockApp{err: errors.New("simulated error")}
		_, err := execute(t, m)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "simulated error")
	})
}

func TestCommands_Env(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		m := &mockApp{}
		_, err := execute(t, m, "env")
		require.NoError(t, err)
		assert.Equal(t, "export", m.envOpts.Format)
		assert.Empty(t, m.envOpts.Platform)
	})

	t.Run("wires flags correctly", func(t *testing.T) {
		m := &mockApp{}
		_, err := execute(t, m, "env", "--platform", "aarch64-darwin", "-f", "json", "-n", "-o", "quiet")
		require.NoError(t, err)
		assert.Equal(t, "aarch64-darwin", m.envOpts.Platform)
		assert.Equal(t, "json", m.envOpts.Format)
		assert.True(t, m.envOpts.NoCache)
		assert.Equal(t, "quiet", m.envOpts.OutputMode)
	})

	t.Run("watch shares the env flags", func(t *testing.T) {
		m := &mockApp{}
		_, err := execute(t, m, "watch", "--format", "dotenv")
		require.NoError(t, err)
		assert.Equal(t, []string{"watch"}, m.calls)
		assert.Equal(t, "dotenv", m.envOpts.Format)
	})
}

func TestCommands_Run(t *testing.T) {
	t.Run("passes command flags through", func(t *testing.T) {
		m := &mockApp{}
		_, err := execute(t, m, "run", "cargo", "--version")
		require.NoError(t, err)
		assert.Equal(t, []string{"cargo", "--version"}, m.argv)
	})

	t.Run("accepts a separator", func(t *testing.T) {
		m := &mockApp{}
		_, err := execute(t, m, "run", "--no-cache", "--", "rustc", "-V")
		require.NoError(t, err)
		assert.Equal(t, []string{"rustc", "-V"}, m.argv)
		assert.True(t, m.provisionOpts.NoCache)
	})

	t.Run("shows usage when no command provided", func(t *testing.T) {
		m := &mockApp{}
		out, err := execute(t, m, "run")
		require.NoError(t, err)
		assert.Contains(t, out, "Usage:")
		assert.Empty(t, m.calls)
	})
}

func TestCommands_Matrix(t *testing.T) {
	for _, name := range []string{"platforms", "check", "lock"} {
		t.Run(name, func(t *testing.T) {
			m := &mockApp{}
			_, err := execute(t, m, name)
			require.NoError(t, err)
			assert.Equal(t, []string{name}, m.calls)
		})
	}
}

func TestCommands_Flake(t *testing.T) {
	m := &mockApp{}
	_, err := execute(t, m, "flake", "--write")
	require.NoError(t, err)
	assert.True(t, m.flakeOpts.Write)
}

func TestCommands_Clean(t *testing.T) {
	t.Run("cleans everything by default", func(t *testing.T) {
		m := &mockApp{}
		_, err := execute(t, m, "clean")
		require.NoError(t, err)
		assert.Equal(t, app.CleanOptions{NixHub: true, Environments: true}, m.cleanOpts)
	})

	t.Run("environments only", func(t *testing.T) {
		m := &mockApp{}
		_, err := execute(t, m, "clean", "-e")
		require.NoError(t, err)
		assert.Equal(t, app.CleanOptions{Environments: true}, m.cleanOpts)
	})
}

func TestCommands_Version(t *testing.T) {
	out, err := execute(t, &mockApp{}, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "devshell version "+build.Version)

	out, err = execute(t, &mockApp{}, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, build.Version)
}
