package dto

import "encoding/json"

// Detection is one object found in an uploaded image.
type Detection struct {
	Label      string     `json:"label"`
	Confidence float64    `json:"confidence"` // [0,1], three decimals
	BBox       [4]float64 `json:"bbox"`       // x1, y1, x2, y2 in image pixels
}

// DetectionResponse is the body returned by the detection endpoint.
type DetectionResponse struct {
	Detections []Detection `json:"detections"`
}

// MarshalJSON always emits an array, so an image without objects encodes as
// {"detections": []} rather than null.
func (r DetectionResponse) MarshalJSON() ([]byte, error) {
	type Alias DetectionResponse
	if r.Detections == nil {
		r.Detections = []Detection{}
	}
	return json.Marshal(Alias(r))
}
