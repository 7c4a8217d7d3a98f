// Package app implements the application layer for devshell.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.trai.ch/devshell/internal/adapters/detector"
	"go.trai.ch/devshell/internal/adapters/fs"
	"go.trai.ch/devshell/internal/adapters/linear"
	"go.trai.ch/devshell/internal/adapters/nix"
	"go.trai.ch/devshell/internal/adapters/shell"
	"go.trai.ch/devshell/internal/adapters/telemetry"
	"go.trai.ch/devshell/internal/adapters/tui"
	"go.trai.ch/devshell/internal/core/domain"
	"go.trai.ch/devshell/internal/core/ports"
	"go.trai.ch/devshell/internal/engine/provisioner"
	"go.trai.ch/devshell/internal/ui/style"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// TracerName is the OpenTelemetry instrumentation name.
const TracerName = "devshell"

// App represents the main application logic.
type App struct {
	loader     ports.ManifestLoader
	catalog    ports.Catalog
	resolver   ports.DependencyResolver
	cache      ports.EnvironmentCache
	verifier   ports.StoreVerifier
	lockfiles  ports.LockfileStore
	shell      ports.Shell
	logger     ports.Logger
	walker     *fs.Walker
	hasher     *fs.Hasher
	newWatcher ports.WatcherFactory

	provisioner ports.Provisioner
	teaOptions  []tea.ProgramOption
	host        domain.Platform
	now         func() time.Time

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// New creates a new App instance.
func New(
	loader ports.ManifestLoader,
	catalog ports.Catalog,
	resolver ports.DependencyResolver,
	cache ports.EnvironmentCache,
	verifier ports.StoreVerifier,
	lockfiles ports.LockfileStore,
	sh ports.Shell,
	log ports.Logger,
) *App {
	walker := fs.NewWalker()
	return &App{
		loader:    loader,
		catalog:   catalog,
		resolver:  resolver,
		cache:     cache,
		verifier:  verifier,
		lockfiles: lockfiles,
		shell:     sh,
		logger:    log,
		walker:    walker,
		hasher:    fs.NewHasher(walker),
		host:      domain.CurrentPlatform(),
		now:       time.Now,
		stdin:     os.Stdin,
		stdout:    os.Stdout,
		stderr:    os.Stderr,
	}
}

// WithFS replaces the walker and hasher used by clean and watch.
func (a *App) WithFS(walker *fs.Walker, hasher *fs.Hasher) *App {
	a.walker = walker
	a.hasher = hasher
	return a
}

// WithWatcherFactory sets how watch creates its manifest watcher.
func (a *App) WithWatcherFactory(f ports.WatcherFactory) *App {
	a.newWatcher = f
	return a
}

// WithProvisioner replaces the provisioner built from the catalog.
// This is primarily used for testing.
func (a *App) WithProvisioner(p ports.Provisioner) *App {
	a.provisioner = p
	return a
}

// WithTeaOptions sets additional options for the TUI program.
// This is primarily used for testing.
func (a *App) WithTeaOptions(opts ...tea.ProgramOption) *App {
	a.teaOptions = append(a.teaOptions, opts...)
	return a
}

// WithHostPlatform overrides the detected host platform.
func (a *App) WithHostPlatform(p domain.Platform) *App {
	a.host = p
	return a
}

// WithClock overrides the time source used for lockfiles.
func (a *App) WithClock(now func() time.Time) *App {
	a.now = now
	return a
}

// WithStreams replaces the standard streams.
func (a *App) WithStreams(stdin io.Reader, stdout, stderr io.Writer) *App {
	a.stdin = stdin
	a.stdout = stdout
	a.stderr = stderr
	return a
}

// ProvisionOptions configures a single provisioning run.
type ProvisionOptions struct {
	// Platform overrides the host platform when set.
	Platform   string
	NoCache    bool
	OutputMode string
}

// EnvOptions configuration for the Env and Watch methods.
type EnvOptions struct {
	ProvisionOptions
	Format string
}

// Provision loads the manifest and provisions it for the selected platform.
func (a *App) Provision(ctx context.Context, opts ProvisionOptions) (*domain.ShellEnvironment, error) {
	m, _, err := a.loadManifest()
	if err != nil {
		return nil, err
	}

	platform, err := a.platform(opts.Platform)
	if err != nil {
		return nil, err
	}

	var env *domain.ShellEnvironment
	err = a.withProvisioner(ctx, opts.OutputMode, func(ctx context.Context, p ports.Provisioner) error {
		var provErr error
		env, provErr = p.Provision(ctx, m, platform, ports.ProvisionOptions{NoCache: opts.NoCache})
		return provErr
	})
	if err != nil {
		return nil, err
	}
	return env, nil
}

// Env provisions the environment and writes it to stdout in the requested format.
func (a *App) Env(ctx context.Context, opts EnvOptions) error {
	format, err := shell.ParseFormat(opts.Format)
	if err != nil {
		return err
	}

	env, err := a.Provision(ctx, opts.ProvisionOptions)
	if err != nil {
		return err
	}
	return shell.Render(a.stdout, env, format)
}

// Enter provisions the environment for the host and starts an interactive shell in it.
func (a *App) Enter(ctx context.Context, opts ProvisionOptions) error {
	opts.Platform = ""
	env, err := a.Provision(ctx, opts)
	if err != nil {
		return err
	}
	return a.shell.Enter(ctx, env, a.stdin, a.stdout, a.stderr)
}

// Run provisions the environment for the host and runs argv inside it.
func (a *App) Run(ctx context.Context, argv []string, opts ProvisionOptions) error {
	if len(argv) == 0 {
		return domain.ErrNoCommand
	}

	opts.Platform = ""
	env, err := a.Provision(ctx, opts)
	if err != nil {
		return err
	}
	return a.shell.Run(ctx, env, argv, a.stdout, a.stderr)
}

// Platforms lists the platforms the manifest supports and marks the host.
func (a *App) Platforms(_ context.Context) error {
	m, _, err := a.loadManifest()
	if err != nil {
		return err
	}

	for _, p := range m.Systems.Supported() {
		if p == a.host {
			_, _ = fmt.Fprintf(a.stdout, "%s %s (host)\n", style.Arrow, p)
			continue
		}
		_, _ = fmt.Fprintf(a.stdout, "  %s\n", p)
	}
	return nil
}

// FlakeOptions configuration for the Flake method.
type FlakeOptions struct {
	// Write stores flake.nix next to the manifest instead of printing it.
	Write bool
}

// Flake renders the manifest as the equivalent flake.nix.
func (a *App) Flake(_ context.Context, opts FlakeOptions) error {
	m, path, err := a.loadManifest()
	if err != nil {
		return err
	}

	data := nix.RenderFlake(m)
	if !opts.Write {
		_, err := a.stdout.Write(data)
		return err
	}

	root, err := a.root(path)
	if err != nil {
		return err
	}
	target := filepath.Join(root, domain.FlakeFileName)
	if err := os.WriteFile(target, data, domain.FilePerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to write flake"), "path", target)
	}
	a.logger.Info("wrote " + target)
	return nil
}

// loadManifest returns the manifest for the working directory and its path,
// which is empty for the built-in manifest.
func (a *App) loadManifest() (*domain.Manifest, string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", zerr.Wrap(err, "failed to get working directory")
	}

	m, path, err := a.loader.Load(cwd)
	if err != nil {
		return nil, "", zerr.Wrap(err, "failed to load manifest")
	}
	return m, path, nil
}

// root is the directory holding the manifest, or the working directory without one.
func (a *App) root(manifestPath string) (string, error) {
	if manifestPath != "" {
		return filepath.Dir(manifestPath), nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", zerr.Wrap(err, "failed to get working directory")
	}
	return cwd, nil
}

func (a *App) platform(override string) (domain.Platform, error) {
	if override == "" {
		return a.host, nil
	}
	return domain.ParsePlatform(override)
}

// withProvisioner runs fn with a provisioner whose spans are rendered to stderr.
func (a *App) withProvisioner(
	ctx context.Context,
	outputMode string,
	fn func(ctx context.Context, p ports.Provisioner) error,
) error {
	mode := detector.ResolveMode(detector.DetectEnvironment(), outputMode)
	renderer := a.renderer(ctx, mode)

	bridge := telemetry.NewBridge(renderer)
	tp := setupOTel(bridge)
	defer func() {
		_ = tp.Shutdown(context.WithoutCancel(ctx))
	}()

	tracer := telemetry.NewOTelTracerWithProvider(tp, TracerName).WithRenderer(renderer)

	prov := a.provisioner
	if prov == nil {
		prov = provisioner.New(a.catalog, a.resolver, a.cache, a.verifier, tracer, a.logger)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := renderer.Start(ctx); err != nil {
			return err
		}
		return renderer.Wait()
	})

	g.Go(func() error {
		defer func() {
			_ = tracer.Shutdown(context.WithoutCancel(ctx))
			_ = renderer.Stop()
		}()
		return fn(ctx, prov)
	})

	return g.Wait()
}

// renderer picks the progress renderer for mode. The TUI never reads stdin,
// which belongs to the shell or command started after provisioning.
func (a *App) renderer(ctx context.Context, mode detector.OutputMode) ports.Renderer {
	if mode != detector.ModeTUI {
		return linear.ForMode(mode, a.stderr)
	}

	model := tui.NewModel(a.stderr)
	opts := append([]tea.ProgramOption{
		tea.WithContext(ctx),
		tea.WithInput(nil),
		tea.WithOutput(a.stderr),
		tea.WithoutSignalHandler(),
	}, a.teaOptions...)
	return tui.NewRenderer(&model, opts...)
}

// setupOTel registers a TracerProvider that reports every span to the renderer bridge.
func setupOTel(bridge *telemetry.Bridge) *sdktrace.TracerProvider {
	tp := telemetry.NewTracerProvider(bridge)
	otel.SetTracerProvider(tp)
	return tp
}
