package modelclient

import "context"

// SummarizeInput is one synchronized context passed to the summarizer LLM:
// a speaker-labeled transcript plus whatever visual context was extracted
// for the same time window.
type SummarizeInput struct {
	StartSeconds       float64  `json:"start_seconds"`
	EndSeconds         float64  `json:"end_seconds"`
	TranscriptLines    []string `json:"transcript_lines"` // speaker-labeled
	VisualDescriptions []string `json:"visual_descriptions"`
}

// SummarizeOutput is the structured response requested from the
// summarizer LLM (field names match the summarization contract).
type SummarizeOutput struct {
	Activity           string   `json:"activity"`
	Location           string   `json:"location"`
	Participants       []string `json:"participants"` // raw speaker IDs, resolved by the caller
	TranscriptSummary  string   `json:"transcript_summary"`
	ActionItems        []string `json:"action_items"`
	SourceReliability  string   `json:"source_reliability"`
	ContextType        string   `json:"context_type"`
}

// Summarizer invokes the summarization LLM. Fatal: stage 7 has no
// degraded fallback, per the orchestrator's stage table.
type Summarizer struct {
	client *Client
}

// NewSummarizer wraps client as a Summarizer.
func NewSummarizer(client *Client) *Summarizer { return &Summarizer{client: client} }

// Invoke asks the summarizer LLM to produce a structured block for one context.
func (s *Summarizer) Invoke(ctx context.Context, input SummarizeInput) (SummarizeOutput, error) {
	var resp SummarizeOutput
	if err := s.client.Invoke(ctx, "/summarize", input, &resp); err != nil {
		return SummarizeOutput{}, err
	}
	return resp, nil
}

// MeetingClassifier invokes the meeting-classification model that
// populates context_type ahead of summarization. Degradable: callers may
// fall back to a heuristic classifier when this errors.
type MeetingClassifier struct {
	client *Client
}

// NewMeetingClassifier wraps client as a MeetingClassifier.
func NewMeetingClassifier(client *Client) *MeetingClassifier {
	return &MeetingClassifier{client: client}
}

// Invoke classifies the context type (e.g. "meeting", "solo_work", "call").
func (m *MeetingClassifier) Invoke(ctx context.Context, transcriptLines []string) (string, error) {
	req := struct {
		TranscriptLines []string `json:"transcript_lines"`
	}{TranscriptLines: transcriptLines}

	var resp struct {
		ContextType string `json:"context_type"`
	}
	if err := m.client.Invoke(ctx, "/classify-context", req, &resp); err != nil {
		return "", err
	}
	return resp.ContextType, nil
}
