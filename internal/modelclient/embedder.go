package modelclient

import "context"

// Embedder invokes the embedding model shared by the indexer and the
// search service, so a query and its candidate chunks are always
// embedded with the same model.
type Embedder struct {
	client *Client
}

// NewEmbedder wraps client as an Embedder.
func NewEmbedder(client *Client) *Embedder { return &Embedder{client: client} }

// Invoke embeds a batch of texts in one call and returns one vector per
// input text, in order.
func (e *Embedder) Invoke(ctx context.Context, texts []string) ([][]float32, error) {
	req := struct {
		Texts []string `json:"texts"`
	}{Texts: texts}

	var resp struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.Invoke(ctx, "/embed", req, &resp); err != nil {
		return nil, err
	}
	return resp.Embeddings, nil
}
