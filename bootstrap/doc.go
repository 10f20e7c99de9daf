// Package bootstrap runs a cmdproxy program: it validates configuration,
// initializes logging and optional OTLP telemetry, runs one task under
// signal-driven cancellation and flushes everything on the way out.
//
//	cfg, err := config.Load("cmdproxy")
//	app, err := bootstrap.NewApp(cfg)
//	err = app.RunTask(ctx, func(ctx context.Context) error {
//		proxy, err := invoke.Compile(iface, app.InvokeOptions()...)
//		if err != nil {
//			return err
//		}
//		_, err = proxy.Call(ctx, "build", "./...")
//		return err
//	})
package bootstrap
