package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"taskhub/internal/middleware"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const slowQuery = 200 * time.Millisecond

// gormLogger sends GORM output through slog so queries carry request IDs.
type gormLogger struct {
	level logger.LogLevel
	slow  time.Duration
}

// NewGormLogger logs failed and slow queries; LogMode(logger.Info) adds every query.
func NewGormLogger() logger.Interface {
	return &gormLogger{level: logger.Warn, slow: slowQuery}
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *gormLogger) log(ctx context.Context, at logger.LogLevel, lvl slog.Level, msg string, args []interface{}) {
	if l.level >= at {
		middleware.Logger.Log(ctx, lvl, fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	l.log(ctx, logger.Info, slog.LevelInfo, msg, args)
}

func (l *gormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	l.log(ctx, logger.Warn, slog.LevelWarn, msg, args)
}

func (l *gormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	l.log(ctx, logger.Error, slog.LevelError, msg, args)
}

// Trace reports one statement. Record-not-found is an expected outcome and
// never logged as an error.
func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound)
	slow := l.slow > 0 && elapsed > l.slow

	var lvl slog.Level
	var msg string
	switch {
	case failed && l.level >= logger.Error:
		lvl, msg = slog.LevelError, "query failed"
	case slow && l.level >= logger.Warn:
		lvl, msg = slog.LevelWarn, "slow query"
	case l.level >= logger.Info:
		lvl, msg = slog.LevelDebug, "query"
	default:
		return
	}

	sql, rows := fc()
	attrs := []slog.Attr{
		slog.String("sql", sql),
		slog.Int64("rows", rows),
		slog.Duration("elapsed", elapsed),
	}
	if failed {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	middleware.Logger.LogAttrs(ctx, lvl, msg, attrs...)
}
