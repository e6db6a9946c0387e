// Package config loads the presence service configuration.
//
// Values are resolved in three layers: built-in defaults, the YAML file,
// then PRESENCE_* environment variables. Load validates the result and
// reports every problem it finds in one error, including duplicate or
// malformed tracked-device addresses and an unknown site time zone.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	devices, _ := cfg.DeviceList() // Load has already validated it
//
// Keep the MQTT password and InfluxDB token out of the file and pass them
// as PRESENCE_MQTT_PASSWORD and PRESENCE_INFLUXDB_TOKEN. The file itself
// should be readable by the service user only.
package config
