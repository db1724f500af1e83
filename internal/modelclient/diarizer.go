package modelclient

import "context"

// SpeakerSegment is one diarized turn.
type SpeakerSegment struct {
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
	SpeakerID    string  `json:"speaker_id"`
}

// Diarizer invokes the speaker-diarization model. Degradable: callers may
// substitute a single-speaker segment when this returns an error.
type Diarizer struct {
	client *Client
}

// NewDiarizer wraps client as a Diarizer.
func NewDiarizer(client *Client) *Diarizer { return &Diarizer{client: client} }

// Invoke submits the waveform and returns the diarized segments.
func (d *Diarizer) Invoke(ctx context.Context, waveform []byte) ([]SpeakerSegment, error) {
	req := struct {
		WaveformBase64 []byte `json:"waveform"`
	}{WaveformBase64: waveform}

	var resp struct {
		Segments []SpeakerSegment `json:"segments"`
	}
	if err := d.client.Invoke(ctx, "/diarize", req, &resp); err != nil {
		return nil, err
	}
	return resp.Segments, nil
}
