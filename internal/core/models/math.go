package models

import "github.com/zeusync/scenesync/internal/core/codec"

type Vector3 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

func (v Vector3) ToBytable() (codec.Bytable, error) {
	return codec.Float32s(v.X, v.Y, v.Z), nil
}

type Quaternion struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
	W float32 `json:"w"`
}

// IdentityRotation is the rotation that leaves a node unchanged.
var IdentityRotation = Quaternion{W: 1}

func (q Quaternion) ToBytable() (codec.Bytable, error) {
	return codec.Float32s(q.X, q.Y, q.Z, q.W), nil
}

type Color struct {
	R float32 `json:"r"`
	G float32 `json:"g"`
	B float32 `json:"b"`
	A float32 `json:"a"`
}

func (c Color) ToBytable() (codec.Bytable, error) {
	return codec.Float32s(c.R, c.G, c.B, c.A), nil
}

// ReadVector3 decodes a Vector3 written by ToBytable.
func ReadVector3(r *codec.Reader) Vector3 {
	return Vector3{X: r.Float32(), Y: r.Float32(), Z: r.Float32()}
}

// ReadQuaternion decodes a Quaternion written by ToBytable.
func ReadQuaternion(r *codec.Reader) Quaternion {
	return Quaternion{X: r.Float32(), Y: r.Float32(), Z: r.Float32(), W: r.Float32()}
}
