// Package rerank implements the engine's single, deterministic, non-LLM
// cross-source reranker: candidates from vector memory, a knowledge base,
// or proactive L1/L2/L3 search are normalized to a common envelope,
// deduplicated by content fingerprint, scored by four weighted signals,
// floor-filtered, and truncated to top-k.
package rerank

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// Origin names where a Candidate was recalled from.
type Origin string

const (
	OriginSemantic  Origin = "l4_semantic"
	OriginKnowledge Origin = "rag_knowledge"
	OriginMemory    Origin = "memory"
)

// Candidate is the normalized envelope every retrieval path funnels
// through before reranking and injection.
type Candidate struct {
	ID          string
	Content     string
	Origin      Origin
	VectorScore float64

	FinalScore   float64
	SignalScores map[string]float64
	Metadata     map[string]any

	fingerprint string
}

// Fingerprint returns the 12-hex-char MD5 digest of the candidate's
// lowercased, whitespace-normalized content, computing it on first use.
func (c *Candidate) Fingerprint() string {
	if c.fingerprint == "" {
		c.fingerprint = fingerprint(c.Content)
	}
	return c.fingerprint
}

func fingerprint(content string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(content)), " ")
	sum := md5.Sum([]byte(normalized))
	return hex.EncodeToString(sum[:])[:12]
}

// FromMemoryResult builds a Candidate from an L4 semantic-memory hit.
func FromMemoryResult(content string, score float64, id string, metadata map[string]any) *Candidate {
	if id == "" {
		sum := md5.Sum([]byte(content))
		id = "l4_" + hex.EncodeToString(sum[:])[:8]
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &Candidate{ID: id, Content: content, Origin: OriginSemantic, VectorScore: score, Metadata: metadata}
}

// FromKnowledgeItem builds a Candidate from a knowledge-base hit.
func FromKnowledgeItem(itemID, content, source string, relevance float64, metadata map[string]any) *Candidate {
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["knowledge_source"] = source
	return &Candidate{ID: itemID, Content: content, Origin: OriginKnowledge, VectorScore: relevance, Metadata: metadata}
}

// FromProactive builds a Candidate from an L1/L2/L3 proactive search hit.
func FromProactive(id, content string, score float64, metadata map[string]any) *Candidate {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &Candidate{ID: id, Content: content, Origin: OriginMemory, VectorScore: score, Metadata: metadata}
}
