package modelclient

import "context"

// TranscriptSegment is one ASR-transcribed span, attributed to a speaker
// when diarization is available.
type TranscriptSegment struct {
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
	SpeakerID    string  `json:"speaker_id,omitempty"`
	Text         string  `json:"text"`
}

// ASRInput carries the waveform and, if available, diarization results
// to improve per-speaker transcript attribution.
type ASRInput struct {
	Waveform   []byte           `json:"waveform"`
	Diarized   []SpeakerSegment `json:"diarized,omitempty"`
	UseFaster  bool             `json:"use_faster_backend"`
}

// ASR invokes the speech-recognition model. Fatal: stage 3b has no
// degraded fallback, per the orchestrator's stage table.
type ASR struct {
	client *Client
}

// NewASR wraps client as an ASR.
func NewASR(client *Client) *ASR { return &ASR{client: client} }

// Invoke transcribes the waveform and returns speaker-attributed segments.
func (a *ASR) Invoke(ctx context.Context, input ASRInput) ([]TranscriptSegment, error) {
	var resp struct {
		Segments []TranscriptSegment `json:"segments"`
	}
	if err := a.client.Invoke(ctx, "/transcribe", input, &resp); err != nil {
		return nil, err
	}
	return resp.Segments, nil
}
