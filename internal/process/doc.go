// Package process supervises long-running child processes.
//
// The backend uses it to run the ML command parser as a sidecar when
// ml.sidecar.enabled is set, so a single vehicled binary can bring up the
// whole stack on a development machine.
//
// Features:
//   - Start/stop with SIGTERM, then SIGKILL after a grace period
//   - Restart on unexpected exit with exponential backoff
//   - Restart counter reset once the process has run long enough
//   - Optional health polling that kills a hung process
//   - Line-by-line capture of stdout/stderr into the logger
//
// Example usage:
//
//	mgr := process.NewManager(process.SidecarConfig(cfg.ML.Sidecar, cfg.ML.HealthInterval, ml.HealthCheck))
//	mgr.SetLogger(log)
//	if err := mgr.Start(ctx); err != nil {
//	    return err
//	}
//	defer mgr.Stop()
package process
