// Package config loads and validates the daemon's YAML configuration.
//
// Two files matter to ctlremapd and only one of them lives here. The
// config file describes the process: listener address, broker, database
// path, credentials. It is read once at startup and a change means a
// restart. The rules file describes the control namespace (renames,
// merges, syncs) and belongs to the remap package, which can reload it
// live.
//
// Precedence is defaults, then file, then environment. Secrets
// (CTLREMAP_JWT_SECRET, CTLREMAP_ADMIN_PASSWORD_HASH, broker and
// InfluxDB credentials) are best injected through the environment so
// the file can be committed without them.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Provider.Name)
package config
