// Package recognition wraps the external face recognition service behind a
// narrow contract so the pipelines can run against the live AWS client or a
// local fake in tests.
package recognition

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNoFace reports that the service could not find a usable face in the
// submitted image. It is distinct from a search returning zero matches.
var ErrNoFace = errors.New("no usable face in image")

// BoundingBox locates a face within an image. All values are fractions of
// the full image dimensions.
type BoundingBox struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// FaceDetail is one detected face: where it is, how confident the service
// is, and whatever extra attributes it reported. The attributes are kept
// opaque; only the box and confidence drive any decisions here.
type FaceDetail struct {
	BoundingBox BoundingBox     `json:"bounding_box"`
	Confidence  float64         `json:"confidence"`
	Attributes  json.RawMessage `json:"attributes,omitempty"`
}

// FaceRecord is the result of enrolling one face into the collection.
type FaceRecord struct {
	FaceID string
	Detail FaceDetail
}

// FaceMatch is a search candidate. Matches arrive best first.
type FaceMatch struct {
	FaceID     string
	Similarity float64
}

// Recognizer is the capability surface the pipelines need.
type Recognizer interface {
	// CollectionExists reports whether the working collection exists.
	CollectionExists(ctx context.Context) (bool, error)
	// EnsureCollection creates the working collection if it is missing.
	EnsureCollection(ctx context.Context) error
	// DetectFaces returns every face found in the image.
	DetectFaces(ctx context.Context, image []byte) ([]FaceDetail, error)
	// IndexFace enrolls the best face in the image under externalID. Low
	// quality detections are filtered service-side; if nothing indexable
	// remains an error is returned.
	IndexFace(ctx context.Context, image []byte, externalID string) (*FaceRecord, error)
	// SearchFacesByImage matches the face in the image against the
	// collection, capped to the single best candidate. A service-level
	// failure to find a face in the image wraps ErrNoFace.
	SearchFacesByImage(ctx context.Context, image []byte) ([]FaceMatch, error)
}
