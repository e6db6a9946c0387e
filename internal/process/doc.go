// Package process supervises a long-running helper program and streams its
// standard output line by line.
//
// It runs BLE scanner helpers (a bleak script, a vendor scanning tool) that
// print one advertisement per line. The manager restarts the helper when it
// exits or falls silent, with a growing back-off.
//
// Example usage:
//
//	mgr := process.NewManager(process.Config{
//	    Name:        "ble-scan",
//	    Binary:      "/usr/local/bin/ble-scan",
//	    Args:        []string{"--json"},
//	    IdleTimeout: time.Minute,
//	    OnLine:      func(line []byte) { ingestor.HandleMessage("command:ble-scan", line) },
//	})
//
//	if err := mgr.Start(ctx); err != nil {
//	    return err
//	}
//	defer mgr.Stop()
package process
