package modelclient

import "context"

// Keyframe is one extracted video frame.
type Keyframe struct {
	TimestampSeconds float64 `json:"timestamp_seconds"`
	ImageBytes       []byte  `json:"image_bytes"`
}

// SceneDetector invokes the scene-boundary detection model. Degradable:
// callers may substitute fixed 5-second intervals when this errors.
type SceneDetector struct {
	client *Client
}

// NewSceneDetector wraps client as a SceneDetector.
func NewSceneDetector(client *Client) *SceneDetector { return &SceneDetector{client: client} }

// Invoke returns scene boundary timestamps within the video file bytes.
func (s *SceneDetector) Invoke(ctx context.Context, videoBytes []byte, frameSkip int) ([]float64, error) {
	req := struct {
		VideoBytes []byte `json:"video_bytes"`
		FrameSkip  int    `json:"frame_skip"`
	}{VideoBytes: videoBytes, FrameSkip: frameSkip}

	var resp struct {
		BoundarySeconds []float64 `json:"boundary_seconds"`
	}
	if err := s.client.Invoke(ctx, "/detect-scenes", req, &resp); err != nil {
		return nil, err
	}
	return resp.BoundarySeconds, nil
}

// Keyframer invokes the keyframe-extraction model. Degradable: callers
// may substitute an empty keyframe list when this errors.
type Keyframer struct {
	client *Client
}

// NewKeyframer wraps client as a Keyframer.
func NewKeyframer(client *Client) *Keyframer { return &Keyframer{client: client} }

// Invoke extracts one representative keyframe per scene boundary.
func (k *Keyframer) Invoke(ctx context.Context, videoBytes []byte, boundarySeconds []float64) ([]Keyframe, error) {
	req := struct {
		VideoBytes      []byte    `json:"video_bytes"`
		BoundarySeconds []float64 `json:"boundary_seconds"`
	}{VideoBytes: videoBytes, BoundarySeconds: boundarySeconds}

	var resp struct {
		Keyframes []Keyframe `json:"keyframes"`
	}
	if err := k.client.Invoke(ctx, "/extract-keyframes", req, &resp); err != nil {
		return nil, err
	}
	return resp.Keyframes, nil
}
