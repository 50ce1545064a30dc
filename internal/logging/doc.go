// Package logging provides structured logging for questboard.
//
// Logger wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - Automatic context field injection (trace_id, request.id, user.id, project.id)
//   - Level-aware sampling (errors never sampled)
//
// Create a logger from config and hand its Underlying() *zap.Logger to services:
//
//	logger, err := logging.NewLogger(&cfg.Logging)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//	svc := users.NewService(store, logger.Underlying().Named("users"))
//
// Log with context:
//
//	ctx = logging.WithRequestID(ctx, "7f3c9a")
//	ctx = logging.WithUserID(ctx, callerID)
//	logger.Info(ctx, "project joined", zap.Int("participants", n))
//
// Use TestLogger for test assertions:
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "test message", zap.String("key", "value"))
//	tl.AssertLogged(t, zapcore.InfoLevel, "test message")
//	tl.AssertField(t, "test message", "key", "value")
//
// Logger is safe for concurrent use. Child loggers (With, Named) are
// independent and do not affect parent or siblings.
package logging
