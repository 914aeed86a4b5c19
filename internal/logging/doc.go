// Package logging is boxd's zap-based logger.
//
// Every method takes a context and adds the module, request and trace
// fields found in it. Output goes to stdout, the OpenTelemetry log bridge
// or both. Entries below Error are sampled; errors never are. Trace (-2)
// sits below Debug and is used for message delivery.
//
// Modules get their logger from ForModule, which applies any level set
// for that module under logging.modules:
//
//	logging:
//	  level: info
//	  modules:
//	    router: debug
//
// # Usage
//
// Create logger from config:
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg, otelProvider)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
// Log with module context:
//
//	ctx := logging.WithModule(ctx, logging.Module{Name: "announcer", ID: "mod-announcer-1"})
//	logger.Info(ctx, "module started")
//
// Output includes automatic correlation:
//
//	{
//	  "ts": "2026-10-17T10:15:30Z",
//	  "level": "info",
//	  "msg": "module started",
//	  "module.name": "announcer",
//	  "module.id": "mod-announcer-1"
//	}
//
// # Testing
//
// NewTestLogger records entries in memory for assertions:
//
//	logger := logging.NewTestLogger()
//	doWork(logger.Logger)
//	logger.AssertLogged(t, zapcore.WarnLevel, "module init failed")
package logging
