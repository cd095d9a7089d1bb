package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	Logger *zap.Logger
}

var (
	ProductionMode  = "production"
	DevelopmentMode = "development"
)

func New(mode string) *Logger {
	var config zap.Config
	if mode == ProductionMode {
		config = zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapLogger, err := config.Build(zap.AddCallerSkip(1))
	if err != nil {
		panic(err)
	}
	return &Logger{Logger: zapLogger}
}

// NewNop returns a logger that discards everything. Used by tests and CLI paths
// that do not want service output.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

type ctxKey string

var RequestIdKey ctxKey = "request_id"
var AccountIdKey ctxKey = "account_id"
var OrderIdKey ctxKey = "order_id"

// WithOrder tags ctx with the account and order being processed so every log line
// emitted further down the pipeline carries them.
func WithOrder(ctx context.Context, accountID, orderID string) context.Context {
	if accountID != "" {
		ctx = context.WithValue(ctx, AccountIdKey, accountID)
	}
	if orderID != "" {
		ctx = context.WithValue(ctx, OrderIdKey, orderID)
	}
	return ctx
}

func (l *Logger) withContext(ctx context.Context) *zap.Logger {
	var fields []zap.Field
	if ctx != nil {
		for _, key := range []ctxKey{RequestIdKey, AccountIdKey, OrderIdKey} {
			if v, ok := ctx.Value(key).(string); ok {
				fields = append(fields, zap.String(string(key), v))
			}
		}
	}
	return l.Logger.With(fields...)
}

// WithContext returns a child logger carrying the request/account/order fields found on ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	return &Logger{Logger: l.withContext(ctx)}
}

// Named returns a child logger for a component.
func (l *Logger) Named(name string) *Logger {
	return &Logger{Logger: l.Logger.Named(name)}
}

var logger *Logger

func SetGlobalLogger(l *Logger) {
	logger = l
}

func GetGlobalLogger() *Logger {
	return logger
}

func (l *Logger) Sync() {
	_ = l.Logger.Sync()
}

func (l *Logger) Debugf(template string, args ...interface{}) {
	l.Logger.Sugar().Debugf(template, args...)
}

func (l *Logger) Infof(template string, args ...interface{}) {
	l.Logger.Sugar().Infof(template, args...)
}

func (l *Logger) Warnf(template string, args ...interface{}) {
	l.Logger.Sugar().Warnf(template, args...)
}

func (l *Logger) Errorf(template string, args ...interface{}) {
	l.Logger.Sugar().Errorf(template, args...)
}
