package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/medical-assistant/internal/core/domain"
	"github.com/clinicore/medical-assistant/internal/core/ports"
)

const (
	denseVectorName   = "dense"
	lexicalVectorName = "lexical"

	payloadDateLayout  = "2006-01-02"
	defaultSearchLimit = 10
)

// Client keeps one Qdrant collection of chunk points. Every point carries a
// dense embedding plus a lexical sparse vector; search runs both arms and
// merges them, so exact clinical tokens (assay names, drug names, document
// ids) still surface when the embedding alone misses them.
type Client struct {
	baseURL    string
	collection string
	embedder   ports.Embedder
	httpClient *http.Client

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string, embedder ports.Embedder) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		embedder:   embedder,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// IndexChunks embeds and upserts a document's chunks, replacing any points
// from an earlier run of the same document.
func (c *Client) IndexChunks(ctx context.Context, doc *domain.Document, chunks []string) error {
	if len(chunks) == 0 {
		return nil
	}

	vectors, err := c.embedder.Embed(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("chunks/embeddings mismatch: %d texts, %d vectors", len(chunks), len(vectors))
	}

	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}
	if err := c.deleteDocumentPoints(ctx, doc.ID); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  map[string]any `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(chunks))
	for i := range chunks {
		payload := map[string]any{
			"document_id":   doc.ID,
			"patient_id":    doc.PatientID,
			"document_type": string(doc.Type),
			"filename":      doc.Filename,
			"chunk_index":   i,
			"text":          chunks[i],
		}
		if !doc.DocumentDate.IsZero() {
			payload["document_date"] = doc.DocumentDate.Format(payloadDateLayout)
		}
		points = append(points, point{
			ID: uuid.NewString(),
			Vector: map[string]any{
				denseVectorName:   vectors[i],
				lexicalVectorName: encodeSparseDocument(chunks[i], doc.Filename),
			},
			Payload: payload,
		})
	}

	path := fmt.Sprintf("/collections/%s/points?wait=true", c.collection)
	return c.callJSON(ctx, http.MethodPut, path, map[string]any{"points": points}, nil, "upsert")
}

// Search embeds the query and runs the dense arm, then the lexical arm when
// the query has indexable tokens. Dense hits keep their cosine score; lexical
// hits not already covered by the dense arm join with a saturated score so
// both rank on the same scale.
func (c *Client) Search(
	ctx context.Context,
	queryText string,
	topN int,
	filter domain.SearchFilter,
) ([]domain.RetrievedPassage, error) {
	queryText = strings.TrimSpace(queryText)
	if queryText == "" {
		return nil, nil
	}
	if topN <= 0 {
		topN = defaultSearchLimit
	}

	queryVector, err := c.embedder.EmbedQuery(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if err := c.ensureCollection(ctx, len(queryVector)); err != nil {
		return nil, err
	}

	filterBody := buildSearchFilter(filter)

	dense, err := c.queryPoints(ctx, queryVector, denseVectorName, topN, filterBody)
	if err != nil {
		return nil, err
	}

	var lexical []scoredPoint
	if sparse := encodeSparseQuery(queryText); len(sparse.Indices) > 0 {
		lexical, err = c.queryPoints(ctx, sparse, lexicalVectorName, topN, filterBody)
		if err != nil {
			return nil, err
		}
	}

	merged := mergeScoredPoints(dense, lexical, topN)

	out := make([]domain.RetrievedPassage, 0, len(merged))
	for _, p := range merged {
		passage := domain.RetrievedPassage{
			DocumentID:   getStringPayload(p.Payload, "document_id"),
			PatientID:    getStringPayload(p.Payload, "patient_id"),
			DocumentType: domain.DocumentType(getStringPayload(p.Payload, "document_type")),
			Filename:     getStringPayload(p.Payload, "filename"),
			ChunkIndex:   getIntPayload(p.Payload, "chunk_index"),
			Text:         getStringPayload(p.Payload, "text"),
			Score:        p.Score,
		}
		if raw := getStringPayload(p.Payload, "document_date"); raw != "" {
			if ts, err := time.Parse(payloadDateLayout, raw); err == nil {
				passage.DocumentDate = ts
			}
		}
		out = append(out, passage)
	}
	return out, nil
}

func (c *Client) queryPoints(
	ctx context.Context,
	query any,
	using string,
	limit int,
	filterBody map[string]any,
) ([]scoredPoint, error) {
	reqBody := map[string]any{
		"query":        query,
		"using":        using,
		"limit":        limit,
		"with_payload": true,
	}
	if filterBody != nil {
		reqBody["filter"] = filterBody
	}

	var resp struct {
		Result struct {
			Points []scoredPoint `json:"points"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/query", c.collection)
	if err := c.callJSON(ctx, http.MethodPost, path, reqBody, &resp, "query "+using); err != nil {
		return nil, err
	}
	return resp.Result.Points, nil
}

type scoredPoint struct {
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// mergeScoredPoints unions the two arms, keyed by document and chunk. A chunk
// present in both keeps its dense cosine score; lexical-only chunks get their
// unbounded dot product squashed into [0,1).
func mergeScoredPoints(dense, lexical []scoredPoint, limit int) []scoredPoint {
	merged := make([]scoredPoint, 0, len(dense)+len(lexical))
	seen := make(map[string]struct{}, len(dense))
	for _, p := range dense {
		seen[chunkKey(p.Payload)] = struct{}{}
		merged = append(merged, p)
	}
	for _, p := range lexical {
		key := chunkKey(p.Payload)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		p.Score = saturateScore(p.Score)
		merged = append(merged, p)
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

func saturateScore(x float64) float64 {
	if x <= 0 {
		return 0
	}
	return x / (1 + x)
}

func chunkKey(payload map[string]any) string {
	return getStringPayload(payload, "document_id") + "#" + strconv.Itoa(getIntPayload(payload, "chunk_index"))
}

func buildSearchFilter(filter domain.SearchFilter) map[string]any {
	must := make([]map[string]any, 0, 2)
	if filter.PatientID != "" {
		must = append(must, map[string]any{
			"key":   "patient_id",
			"match": map[string]any{"value": filter.PatientID},
		})
	}
	if filter.DocumentType != "" {
		must = append(must, map[string]any{
			"key":   "document_type",
			"match": map[string]any{"value": string(filter.DocumentType)},
		})
	}
	if len(must) == 0 {
		return nil
	}
	return map[string]any{"must": must}
}

func (c *Client) deleteDocumentPoints(ctx context.Context, documentID string) error {
	reqBody := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{
					"key":   "document_id",
					"match": map[string]any{"value": documentID},
				},
			},
		},
	}
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", c.collection)
	return c.callJSON(ctx, http.MethodPost, path, reqBody, nil, "delete points")
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			denseVectorName: map[string]any{
				"size":     vectorSize,
				"distance": "Cosine",
			},
		},
		"sparse_vectors": map[string]any{
			lexicalVectorName: map[string]any{},
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal create collection body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create collection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant ensure collection request: %w", err)
	}
	defer resp.Body.Close()

	// 200/201 for create, 409 when the collection already exists.
	if resp.StatusCode == http.StatusConflict {
		c.markCollectionEnsured(vectorSize)
		return nil
	}
	if resp.StatusCode >= 300 {
		return statusErrorWithBody("ensure collection", resp)
	}
	c.markCollectionEnsured(vectorSize)
	return nil
}

func (c *Client) markCollectionEnsured(vectorSize int) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
}

func (c *Client) callJSON(ctx context.Context, method, path string, payload, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusErrorWithBody(operation, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func statusErrorWithBody(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return fmt.Errorf("qdrant %s status: %s: %s", operation, resp.Status, msg)
	}
	return fmt.Errorf("qdrant %s status: %s", operation, resp.Status)
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
