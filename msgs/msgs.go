// Package msgs defines the messages published by the simulated sensors.
package msgs

import (
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Message is implemented by every type that can be advertised on a topic.
type Message interface {
	MessageType() string
}

// FrameIDKey is the header data key naming the frame a message was produced in.
const FrameIDKey = "frame_id"

// HeaderData is a key with one or more values attached to a message header.
type HeaderData struct {
	Key   string
	Value []string
}

// Header carries the simulation time stamp and free-form metadata of a message.
type Header struct {
	Stamp *timestamppb.Timestamp
	Data  []HeaderData
}

// NewStamp converts an elapsed simulation time into a header stamp.
func NewStamp(simTime time.Duration) *timestamppb.Timestamp {
	return &timestamppb.Timestamp{
		Seconds: int64(simTime / time.Second),
		Nanos:   int32(simTime % time.Second),
	}
}

// StampDuration converts a header stamp back into an elapsed simulation time.
func StampDuration(stamp *timestamppb.Timestamp) time.Duration {
	if stamp == nil {
		return 0
	}
	return time.Duration(stamp.GetSeconds())*time.Second + time.Duration(stamp.GetNanos())
}

// FrameID returns the first frame_id value, or "" if there is none.
func (h *Header) FrameID() string {
	for _, d := range h.Data {
		if d.Key == FrameIDKey && len(d.Value) > 0 {
			return d.Value[0]
		}
	}
	return ""
}

// SetFrameID replaces the frame_id entry.
func (h *Header) SetFrameID(frameID string) {
	for i, d := range h.Data {
		if d.Key == FrameIDKey {
			h.Data[i].Value = []string{frameID}
			return
		}
	}
	h.Data = append(h.Data, HeaderData{Key: FrameIDKey, Value: []string{frameID}})
}

func (h Header) clone() Header {
	out := Header{Data: make([]HeaderData, 0, len(h.Data))}
	if h.Stamp != nil {
		out.Stamp = proto.Clone(h.Stamp).(*timestamppb.Timestamp)
	}
	for _, d := range h.Data {
		out.Data = append(out.Data, HeaderData{Key: d.Key, Value: append([]string(nil), d.Value...)})
	}
	return out
}

// Image is a single frame of raw pixel data.
type Image struct {
	Header          Header
	Width           uint32
	Height          uint32
	Step            uint32
	PixelFormatType PixelFormatType
	Data            []byte
}

// MessageType implements Message.
func (*Image) MessageType() string {
	return "msgs.Image"
}

// Clone returns a deep copy of the image.
func (m *Image) Clone() *Image {
	out := *m
	out.Header = m.Header.clone()
	out.Data = append([]byte(nil), m.Data...)
	return &out
}

// DistortionModel names the lens distortion model of a camera.
type DistortionModel int32

const (
	// PlumbBob is the five coefficient radial/tangential model (k1, k2, p1, p2, k3).
	PlumbBob DistortionModel = iota
	// RationalPolynomial is the eight coefficient rational model.
	RationalPolynomial
	// Equidistant is the fisheye model.
	Equidistant
)

func (d DistortionModel) String() string {
	switch d {
	case PlumbBob:
		return "PLUMB_BOB"
	case RationalPolynomial:
		return "RATIONAL_POLYNOMIAL"
	case Equidistant:
		return "EQUIDISTANT"
	default:
		return "UNKNOWN"
	}
}

// Distortion holds the distortion model and its coefficients.
type Distortion struct {
	Model DistortionModel
	K     []float64
}

// Intrinsics holds the row-major 3x3 camera matrix.
type Intrinsics struct {
	K [9]float64
}

// Projection holds the row-major 3x4 projection matrix.
type Projection struct {
	P [12]float64
}

// CameraInfo describes the calibration of a camera. It is fixed once the camera is created,
// only the header stamp changes between publications.
type CameraInfo struct {
	Header              Header
	Width               uint32
	Height              uint32
	Distortion          Distortion
	Intrinsics          Intrinsics
	Projection          Projection
	RectificationMatrix [9]float64
}

// MessageType implements Message.
func (*CameraInfo) MessageType() string {
	return "msgs.CameraInfo"
}

// Clone returns a deep copy of the camera info.
func (m *CameraInfo) Clone() *CameraInfo {
	out := *m
	out.Header = m.Header.clone()
	out.Distortion.K = append([]float64(nil), m.Distortion.K...)
	return &out
}
