// Package app provides the main application structure and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-voice-mesh/internal/device"
	"github.com/Raikerian/go-voice-mesh/internal/session"
	"github.com/Raikerian/go-voice-mesh/internal/signaling"
)

// Application represents the main application with its lifecycle.
type Application struct {
	app *fx.App
}

// New creates a new Application with the provided modules and options.
func New(modules ...fx.Option) *Application {
	options := append(modules, fx.Invoke(registerLifecycleHooks))

	return &Application{app: fx.New(options...)}
}

// Err reports a construction failure.
func (a *Application) Err() error {
	return a.app.Err()
}

// Run starts the application and blocks until it's stopped.
func (a *Application) Run() {
	a.app.Run()
}

// Start starts the application without blocking.
func (a *Application) Start(ctx context.Context) error {
	return a.app.Start(ctx)
}

// Wait returns a channel that receives when a component requests shutdown.
func (a *Application) Wait() <-chan fx.ShutdownSignal {
	return a.app.Wait()
}

// Stop gracefully stops the application.
func (a *Application) Stop(ctx context.Context) error {
	return a.app.Stop(ctx)
}

// LifecycleParams holds dependencies for registerLifecycleHooks.
type LifecycleParams struct {
	fx.In
	LC         fx.Lifecycle
	Shutdowner fx.Shutdowner
	Logger     *zap.Logger
	Client     *signaling.Client
	Session    *session.Session
	Device     device.Device
}

// registerLifecycleHooks joins the conference before the device clock starts
// and stops the clock before leaving.
func registerLifecycleHooks(p LifecycleParams) {
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	p.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			p.Logger.Info("Starting application: joining signaling session")

			if err := p.Client.Connect(ctx); err != nil {
				return fmt.Errorf("failed to connect to signaling: %w", err)
			}

			runCtx, runCancel := context.WithCancel(context.Background())
			cancel = runCancel
			done = make(chan struct{})
			go func() {
				defer close(done)
				err := p.Client.Run(runCtx, p.Session)
				if err != nil && !errors.Is(err, context.Canceled) {
					p.Logger.Error("Signaling connection lost", zap.Error(err))
					_ = p.Shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()

			if err := p.Device.Start(ctx); err != nil {
				runCancel()
				<-done
				_ = p.Client.Close()
				return fmt.Errorf("failed to start audio device: %w", err)
			}

			p.Logger.Info("Application started successfully",
				zap.String("local_id", p.Client.LocalID()))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			p.Logger.Info("Stopping application")

			var errs []error
			if err := p.Device.Stop(); err != nil {
				errs = append(errs, err)
			}

			cancel()
			select {
			case <-done:
			case <-ctx.Done():
				errs = append(errs, ctx.Err())
			}

			if err := p.Client.Close(); err != nil {
				errs = append(errs, err)
			}
			p.Session.Close()

			if err := errors.Join(errs...); err != nil {
				p.Logger.Error("Failed to stop cleanly", zap.Error(err))
				return err
			}

			p.Logger.Info("Application stopped successfully")
			return nil
		},
	})
}
