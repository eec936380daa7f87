package entity

// Frame is one decoded video frame. Pixels holds packed RGB24 data in
// row-major order, so len(Pixels) == Width*Height*3. The same logical frame
// can exist in two resolutions (downsampled for transition scoring,
// full-resolution for feature extraction); both carry the same Index.
type Frame struct {
	Index  int
	Width  int
	Height int
	Pixels []byte
}

// Shot is a half-open range [Start, End) of frame indices between two
// detected transitions. A zero-length shot (Start == End) is legal and is
// skipped during feature extraction.
type Shot struct {
	Start int
	End   int
}

func (s Shot) Len() int {
	return s.End - s.Start
}

// ExtractionResult is the payload returned to callers. On success Message is
// empty and both index lists are non-nil (possibly empty); on error the lists
// are null and Message carries the cause.
type ExtractionResult struct {
	Status         string `json:"status"`
	ShotBoundaries []int  `json:"shot_boundaries"`
	Keyframes      []int  `json:"keyframes"`
	Message        string `json:"message,omitempty"`
}
