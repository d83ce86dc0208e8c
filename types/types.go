package types

// ---- Controller state (retained on ctl/state) ----

type ControllerState struct {
	Level      string `json:"level"`  // "boot", "ready", "stopped"
	Status     string `json:"status"` // freeform short code
	ConfigDone bool   `json:"config_done"`
	Tick       uint64 `json:"tick"`
}

// ---- Faults (retained on ctl/fault) ----

// Fault is the latched fault status the host can query. Codes are
// errcode.Code strings.
type Fault struct {
	Code   string `json:"code"`
	Detail string `json:"detail,omitempty"`
	Count  int    `json:"count,omitempty"`
	Tick   uint64 `json:"tick"`
}

// ---- Events ----

// CaptureInfo is published on ctl/capture/done.
type CaptureInfo struct {
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Pixels   int    `json:"pixels"`
	Buffer   int    `json:"buffer"` // which ping-pong buffer holds the frame
	Dark     bool   `json:"dark"`
	TimedOut bool   `json:"timed_out,omitempty"`
	Tick     uint64 `json:"tick"`
}

// LaserInfo is published on ctl/laser/fired.
type LaserInfo struct {
	Row        int    `json:"row"`
	Col        int    `json:"col"`
	DurationMS uint32 `json:"duration_ms"`
	Tick       uint64 `json:"tick"`
}

// PulseInfo is published on ctl/pulse/done (locked) or carried in a fault.
type PulseInfo struct {
	Index    uint32 `json:"index"`
	FreqMHz  uint32 `json:"freq_mhz"`
	Amp      uint32 `json:"amp"`
	Duration uint32 `json:"duration_ns"`
	Phase    uint32 `json:"phase"`
	Locked   bool   `json:"locked"`
	Tick     uint64 `json:"tick"`
}

// ---- Configuration replay (ctl/config/done) ----

type ConfigResult struct {
	Entries int `json:"entries"`
	Failed  int `json:"failed"`
}
