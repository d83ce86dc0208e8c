package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Key: device ID (same value placed in ctx under CtxDeviceKey)
// Val: raw JSON bytes for that device
// -----------------------------------------------------------------------------

const cfgBench = `{
  "heartbeat": {
      "interval": 2
  },
  "telemetry": {
      "base_topic": "qnos",
      "qos": 1
  }
}`

var embeddedConfigs = map[string][]byte{
	"bench": []byte(cfgBench),
}
