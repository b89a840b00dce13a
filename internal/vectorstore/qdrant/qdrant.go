package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"groundchat/internal/domain"
	"groundchat/internal/vectorstore"
)

// Storage is a minimal REST client to Qdrant.
// The collection uses cosine distance and is created on first insert.
// Chunk ids must be UUIDs, which Qdrant accepts as point ids.
type Storage struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client

	mu        sync.Mutex
	loaded    bool
	dimension int
	count     int
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// tieSlack widens each page of search hits. Search keeps paging while the
// last hit still ties the k-th score, so every tied point reaches the
// client-side re-order by insertion sequence.
const tieSlack = 4

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

type collectionInfo struct {
	Result struct {
		PointsCount int `json:"points_count"`
		Config      struct {
			Params struct {
				Vectors struct {
					Size int `json:"size"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	} `json:"result"`
}

// load reads collection size and dimension once. Callers hold s.mu.
func (s *Storage) load(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	var info collectionInfo
	status, err := s.do(ctx, http.MethodGet, s.collectionPath(), nil, &info)
	if err != nil {
		return err
	}
	if status != http.StatusNotFound {
		s.dimension = info.Result.Config.Params.Vectors.Size
		s.count = info.Result.PointsCount
	}
	s.loaded = true
	return nil
}

func (s *Storage) Insert(ctx context.Context, chunk domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(ctx); err != nil {
		return err
	}
	if len(chunk.Vector) == 0 {
		return fmt.Errorf("%w: chunk %s has no vector", domain.ErrDimensionMismatch, chunk.ID)
	}
	if s.dimension == 0 {
		body := map[string]any{
			"vectors": map[string]any{
				"size":     len(chunk.Vector),
				"distance": "Cosine",
			},
		}
		if _, err := s.do(ctx, http.MethodPut, s.collectionPath(), body, nil); err != nil {
			return err
		}
		s.dimension = len(chunk.Vector)
	} else {
		if len(chunk.Vector) != s.dimension {
			return fmt.Errorf("%w: chunk %s has %d dimensions, index has %d", domain.ErrDimensionMismatch, chunk.ID, len(chunk.Vector), s.dimension)
		}
		status, err := s.do(ctx, http.MethodGet, s.collectionPath()+"/points/"+chunk.ID, nil, nil)
		if err != nil {
			return err
		}
		if status != http.StatusNotFound {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateID, chunk.ID)
		}
	}
	point := map[string]any{
		"id":     chunk.ID,
		"vector": chunk.Vector,
		"payload": map[string]any{
			"document_id": chunk.DocumentID,
			"source":      chunk.Source,
			"index":       chunk.Index,
			"text":        chunk.Text,
			"seq":         s.count,
		},
	}
	body := map[string]any{"points": []any{point}}
	if _, err := s.do(ctx, http.MethodPut, s.collectionPath()+"/points?wait=true", body, nil); err != nil {
		return err
	}
	s.count++
	return nil
}

type searchHit struct {
	ID      string  `json:"id"`
	Score   float64 `json:"score"`
	Payload struct {
		DocumentID string `json:"document_id"`
		Source     string `json:"source"`
		Index      int    `json:"index"`
		Text       string `json:"text"`
		Seq        int    `json:"seq"`
	} `json:"payload"`
}

type searchResponse struct {
	Result []searchHit `json:"result"`
}

// searchTies pages through hits in score order until it has k of them and
// the last page ends below the k-th score, or the collection runs out.
func (s *Storage) searchTies(ctx context.Context, vector []float64, k int) ([]searchHit, error) {
	limit := k + tieSlack
	var hits []searchHit
	for {
		req := map[string]any{
			"vector":       vector,
			"limit":        limit,
			"offset":       len(hits),
			"with_payload": true,
		}
		var resp searchResponse
		if _, err := s.do(ctx, http.MethodPost, s.collectionPath()+"/points/search", req, &resp); err != nil {
			return nil, err
		}
		hits = append(hits, resp.Result...)
		if len(resp.Result) < limit {
			return hits, nil
		}
		if len(hits) >= k && hits[len(hits)-1].Score < hits[k-1].Score {
			return hits, nil
		}
	}
}

func (s *Storage) Search(ctx context.Context, vector []float64, k int) ([]domain.SearchResult, error) {
	s.mu.Lock()
	if err := s.load(ctx); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	count, dim := s.count, s.dimension
	s.mu.Unlock()
	if err := vectorstore.CheckSearch(count, dim, k, vector); err != nil {
		return nil, err
	}

	hits, err := s.searchTies(ctx, vector, k)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Payload.Seq < b.Payload.Seq
	})
	if k < len(hits) {
		hits = hits[:k]
	}
	results := make([]domain.SearchResult, 0, len(hits))
	for _, r := range hits {
		results = append(results, domain.SearchResult{
			Chunk: domain.Chunk{
				ID:         r.ID,
				DocumentID: r.Payload.DocumentID,
				Source:     r.Payload.Source,
				Index:      r.Payload.Index,
				Text:       r.Payload.Text,
			},
			Score: r.Score,
		})
	}
	return results, nil
}

func (s *Storage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Clear drops the collection.
func (s *Storage) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.do(ctx, http.MethodDelete, s.collectionPath(), nil, nil); err != nil {
		return err
	}
	s.loaded, s.dimension, s.count = true, 0, 0
	return nil
}

func (s *Storage) collectionPath() string {
	return fmt.Sprintf("%s/collections/%s", s.url, s.collection)
}

// do sends a JSON request. 404 is returned as a status, not an error.
func (s *Storage) do(ctx context.Context, method, url string, body, out any) (int, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return resp.StatusCode, nil
	}
	if resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("qdrant %s %s: decode: %w", method, url, err)
		}
	}
	return resp.StatusCode, nil
}
