package modelclient

import "context"

// Synthesizer invokes the answer-synthesis LLM used by the search
// service. Degradable: on error the caller returns raw results without
// an answer rather than failing the query.
type Synthesizer struct {
	client *Client
}

// NewSynthesizer wraps client as a Synthesizer.
func NewSynthesizer(client *Client) *Synthesizer { return &Synthesizer{client: client} }

// Invoke asks the synthesis LLM to answer query using the given context passages.
func (s *Synthesizer) Invoke(ctx context.Context, query string, contextPassages []string) (string, error) {
	req := struct {
		Query    string   `json:"query"`
		Contexts []string `json:"contexts"`
	}{Query: query, Contexts: contextPassages}

	var resp struct {
		Answer string `json:"answer"`
	}
	if err := s.client.Invoke(ctx, "/synthesize", req, &resp); err != nil {
		return "", err
	}
	return resp.Answer, nil
}
