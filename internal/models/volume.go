package models

import "encoding/json"

// VolumeKind discriminates the Volume sum type.
type VolumeKind string

const (
	VolumeKindDb          VolumeKind = "db"
	VolumeKindNumber      VolumeKind = "number"
	VolumeKindIncremental VolumeKind = "incremental"
	VolumeKindFixed       VolumeKind = "fixed"
)

// Volume is a sum type, not a number plus flags: whichever backend reports
// a zone's volume controls which concrete type is constructed, and only that
// type's operations are meaningful. This makes the safety refusal in
// spec §7 (absolute-set against Incremental/Fixed) a type-level impossibility
// to bypass, rather than a runtime flag check someone can forget.
type Volume interface {
	Kind() VolumeKind
	Muted() bool
	volumeMarshal() interface{}
}

// MarshalJSON renders any Volume as {"kind": "...", ...fields}.
func marshalVolume(v Volume) ([]byte, error) {
	payload := v.volumeMarshal()
	return json.Marshal(payload)
}

// DbVolume is absolute dB attenuation with a per-output range. Backends that
// report asymmetric negative ranges (e.g. -64..0) MUST populate Min/Max from
// the device; never hardcode a range here.
type DbVolume struct {
	Value float32
	Min   float32
	Max   float32
	Step  float32
	Mute  bool
}

func (v DbVolume) Kind() VolumeKind { return VolumeKindDb }
func (v DbVolume) Muted() bool      { return v.Mute }
func (v DbVolume) MarshalJSON() ([]byte, error) { return marshalVolume(v) }
func (v DbVolume) volumeMarshal() interface{} {
	return struct {
		Kind  VolumeKind `json:"kind"`
		Value float32    `json:"value"`
		Min   float32    `json:"min"`
		Max   float32    `json:"max"`
		Step  float32    `json:"step"`
		Muted bool       `json:"muted"`
	}{v.Kind(), v.Value, v.Min, v.Max, v.Step, v.Mute}
}

// Clamp returns value clamped into [Min, Max].
func (v DbVolume) Clamp(value float32) float32 {
	return ClampF32(value, v.Min, v.Max)
}

// NumberVolume is a plain 0-100-style integer-ish scale (default range).
type NumberVolume struct {
	Value float32
	Min   float32 // defaults to 0 by convention of the producing adapter
	Max   float32 // defaults to 100
	Step  float32
	Mute  bool
}

func (v NumberVolume) Kind() VolumeKind { return VolumeKindNumber }
func (v NumberVolume) Muted() bool      { return v.Mute }
func (v NumberVolume) MarshalJSON() ([]byte, error) { return marshalVolume(v) }
func (v NumberVolume) volumeMarshal() interface{} {
	return struct {
		Kind  VolumeKind `json:"kind"`
		Value float32    `json:"value"`
		Min   float32    `json:"min"`
		Max   float32    `json:"max"`
		Step  float32    `json:"step"`
		Muted bool       `json:"muted"`
	}{v.Kind(), v.Value, v.Min, v.Max, v.Step, v.Mute}
}

func (v NumberVolume) Clamp(value float32) float32 {
	return ClampF32(value, v.Min, v.Max)
}

// NewNumberVolume fills in the conventional 0-100 default range.
func NewNumberVolume(value, step float32, muted bool) NumberVolume {
	return NumberVolume{Value: value, Min: 0, Max: 100, Step: step, Mute: muted}
}

// IncrementalVolume means only +/- step commands are meaningful; there is no
// absolute value to read or set ("blind" volume control).
type IncrementalVolume struct{}

func (v IncrementalVolume) Kind() VolumeKind { return VolumeKindIncremental }
func (v IncrementalVolume) Muted() bool      { return false }
func (v IncrementalVolume) MarshalJSON() ([]byte, error) { return marshalVolume(v) }
func (v IncrementalVolume) volumeMarshal() interface{} {
	return struct {
		Kind VolumeKind `json:"kind"`
	}{v.Kind()}
}

// FixedVolume means the output has no volume control surface at all.
type FixedVolume struct{}

func (v FixedVolume) Kind() VolumeKind { return VolumeKindFixed }
func (v FixedVolume) Muted() bool      { return false }
func (v FixedVolume) MarshalJSON() ([]byte, error) { return marshalVolume(v) }
func (v FixedVolume) volumeMarshal() interface{} {
	return struct {
		Kind VolumeKind `json:"kind"`
	}{v.Kind()}
}

// ClampF32 clamps value into [lo, hi].
func ClampF32(value, lo, hi float32) float32 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
