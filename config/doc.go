// Package config loads the appender configuration.
//
// Values are resolved once, in this order:
//
//  1. DefaultConfig
//  2. each file layer added to the Loader (YAML, or JSON since JSON is valid YAML)
//  3. environment overrides:
//     EVENTLATENCY_WINDOW_SIZE, EVENTLATENCY_BASE_DIR,
//     EVENTLATENCY_REPORT_PATH, EVENTLATENCY_NATS_URL
//
// Files are read through the same guards the rest of the platform uses: size
// cap, regular files only, no relative path escaping the working directory.
// Unknown keys are rejected.
//
//	cfg, err := config.Load("eventlatency.yaml")
//	if err != nil {
//	    return err
//	}
//	reportPath := cfg.ReportPath() // <base_dir>/repository/logs/logeventlatency.csv
//
// Example file:
//
//	appender:
//	  name: app
//	  file_name: /var/log/app/app.log
//	  buffered_io: true
//	  buffer_size: 8192
//	latency:
//	  window_size: 100
//	  base_dir: /opt/app
//	  shutdown_timeout: 10s
//	nats:
//	  url: nats://localhost:4222
//	  subject: eventlatency.app
//	metrics:
//	  enabled: true
//	  port: 9090
package config
