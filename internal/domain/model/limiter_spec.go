package model

// LimiterSpec is the wire form of a rate limiter definition, as carried by
// AddRatelimiter. Tagged the same way as every other union on the wire.
type LimiterSpec struct {
	Time  *TimeLimiterSpec  `json:"Time,omitempty"`
	Value *ValueLimiterSpec `json:"Value,omitempty"`
}

// TimeLimiterSpec configures a fixed-interval limiter: at most one message
// per Interval seconds per identity.
type TimeLimiterSpec struct {
	Interval uint64 `json:"interval"`
}

// ValueLimiterSpec configures a point-balance limiter. Each emoji size class
// costs points, the balance regenerates RegenPer10s points every ten seconds
// up to Max.
type ValueLimiterSpec struct {
	Small       uint64 `json:"small"`
	Large       uint64 `json:"large"`
	Huge        uint64 `json:"huge"`
	RegenPer10s uint64 `json:"regen_per_10s"`
	Max         uint64 `json:"max"`
}
