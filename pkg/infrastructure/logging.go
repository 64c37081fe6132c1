// Package infrastructure provides reusable infrastructure components for Go applications.
package infrastructure

import (
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FxLoggerAdapter logs Fx lifecycle events as structured zap entries.
// Successful wiring steps are logged at debug, failures at error.
type FxLoggerAdapter struct {
	logger *zap.Logger
}

// NewFxLoggerAdapter returns an fxevent.Logger backed by logger.
func NewFxLoggerAdapter(logger *zap.Logger) fxevent.Logger {
	return &FxLoggerAdapter{logger: logger}
}

// NewFxPrinter returns an fx.Printer backed by logger.
func NewFxPrinter(logger *zap.Logger) fx.Printer {
	return &FxLoggerAdapter{logger: logger}
}

// LogEvent implements fxevent.Logger.
func (p *FxLoggerAdapter) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.OnStartExecuting:
		p.logger.Debug("OnStart hook executing",
			zap.String("callee", e.FunctionName), zap.String("caller", e.CallerName))
	case *fxevent.OnStartExecuted:
		p.hook("OnStart", e.FunctionName, e.CallerName, e.Runtime.String(), e.Err)
	case *fxevent.OnStopExecuting:
		p.logger.Debug("OnStop hook executing",
			zap.String("callee", e.FunctionName), zap.String("caller", e.CallerName))
	case *fxevent.OnStopExecuted:
		p.hook("OnStop", e.FunctionName, e.CallerName, e.Runtime.String(), e.Err)
	case *fxevent.Supplied:
		p.result("supplied", e.Err, zap.String("type", e.TypeName), moduleField(e.ModuleName))
	case *fxevent.Provided:
		p.result("provided", e.Err,
			zap.String("constructor", e.ConstructorName),
			zap.Strings("types", e.OutputTypeNames),
			moduleField(e.ModuleName))
	case *fxevent.Decorated:
		p.result("decorated", e.Err,
			zap.String("decorator", e.DecoratorName),
			zap.Strings("types", e.OutputTypeNames),
			moduleField(e.ModuleName))
	case *fxevent.Invoking:
		p.logger.Debug("invoking", zap.String("function", e.FunctionName), moduleField(e.ModuleName))
	case *fxevent.Invoked:
		p.result("invoked", e.Err, zap.String("function", e.FunctionName), moduleField(e.ModuleName))
	case *fxevent.Stopping:
		p.logger.Info("received signal", zap.String("signal", e.Signal.String()))
	case *fxevent.Stopped:
		p.terminal("stopped", e.Err)
	case *fxevent.RollingBack:
		p.logger.Error("start failed, rolling back", zap.Error(e.StartErr))
	case *fxevent.RolledBack:
		p.terminal("rolled back", e.Err)
	case *fxevent.Started:
		p.terminal("started", e.Err)
	case *fxevent.LoggerInitialized:
		p.result("initialized custom fxevent.Logger", e.Err, zap.String("function", e.ConstructorName))
	default:
		p.logger.Debug("unhandled fx event", zap.String("event", eventName(event)))
	}
}

// Printf implements fx.Printer.
func (p *FxLoggerAdapter) Printf(format string, args ...any) {
	p.logger.Sugar().Infof(format, args...)
}

func (p *FxLoggerAdapter) hook(kind, callee, caller, runtime string, err error) {
	fields := []zap.Field{zap.String("callee", callee), zap.String("caller", caller)}
	if err != nil {
		p.logger.Error(kind+" hook failed", append(fields, zap.Error(err))...)
		return
	}
	p.logger.Debug(kind+" hook executed", append(fields, zap.String("runtime", runtime))...)
}

func (p *FxLoggerAdapter) result(msg string, err error, fields ...zap.Field) {
	level := zapcore.DebugLevel
	if err != nil {
		level = zapcore.ErrorLevel
		fields = append(fields, zap.Error(err))
	}
	p.logger.Log(level, msg, fields...)
}

func (p *FxLoggerAdapter) terminal(msg string, err error) {
	if err != nil {
		p.logger.Error(msg, zap.Error(err))
		return
	}
	p.logger.Info(msg)
}

func moduleField(name string) zap.Field {
	if name == "" {
		return zap.Skip()
	}
	return zap.String("module", name)
}

func eventName(event fxevent.Event) string {
	return fmt.Sprintf("%T", event)
}
