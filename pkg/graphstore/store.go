// Package graphstore holds entities and relations in an adjacency-indexed
// in-memory store, supporting seed lookup by name/substring and bounded
// N-hop traversal for the graph retrieval backend.
package graphstore

import (
	"strings"
	"sync"
)

// Entity is a named node, back-referencing the chunks it appears in.
type Entity struct {
	ID       string
	Name     string
	ChunkIDs []string
}

// Relation is a directed edge between two entities.
type Relation struct {
	ID       string
	SourceID string
	TargetID string
	Type     string
}

// Store holds entities and relations with an adjacency index for
// traversal. Safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	entities  map[string]*Entity
	relations map[string]*Relation
	adjacency map[string][]string // entity id -> relation ids touching it
	order     []string            // entity insertion order, for deterministic substring search
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		entities:  make(map[string]*Entity),
		relations: make(map[string]*Relation),
		adjacency: make(map[string][]string),
	}
}

// AddEntity inserts or replaces an entity.
func (s *Store) AddEntity(e *Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entities[e.ID]; !exists {
		s.order = append(s.order, e.ID)
	}
	s.entities[e.ID] = e
}

// AddRelation inserts a relation and indexes it against both endpoints.
// Self-loops (SourceID == TargetID) are still stored but contribute no
// traversal edge beyond the entity itself, since NHop skips self-loop
// relations.
func (s *Store) AddRelation(r *Relation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relations[r.ID] = r
	s.adjacency[r.SourceID] = append(s.adjacency[r.SourceID], r.ID)
	if r.TargetID != r.SourceID {
		s.adjacency[r.TargetID] = append(s.adjacency[r.TargetID], r.ID)
	}
}

// SearchEntities returns entities whose name contains query as a
// case-insensitive substring, in insertion order, capped at limit.
func (s *Store) SearchEntities(query string, limit int) []*Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(query)
	var out []*Entity
	for _, id := range s.order {
		e := s.entities[id]
		if q == "" || strings.Contains(strings.ToLower(e.Name), q) {
			out = append(out, e)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out
}

// GetEntitiesByIDs returns the entities for the given ids, skipping any
// that aren't present.
func (s *Store) GetEntitiesByIDs(ids []string) []*Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Entity, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.entities[id]; ok {
			out = append(out, e)
		}
	}
	return out
}

// NHop performs a bidirectional breadth-first traversal up to n hops from
// seedIDs, returning every entity id visited (including the seeds) and
// every unique relation touched along the way. Self-loops are ignored;
// a visited-set guard prevents revisiting an entity once reached.
func (s *Store) NHop(seedIDs []string, n int) (visitedIDs []string, relations []*Relation) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	visited := make(map[string]bool, len(seedIDs))
	relSeen := make(map[string]bool)
	frontier := make([]string, 0, len(seedIDs))
	for _, id := range seedIDs {
		if _, ok := s.entities[id]; !ok {
			continue
		}
		if !visited[id] {
			visited[id] = true
			frontier = append(frontier, id)
		}
	}

	for hop := 0; hop < n && len(frontier) > 0; hop++ {
		var next []string
		for _, id := range frontier {
			for _, relID := range s.adjacency[id] {
				rel := s.relations[relID]
				if rel.SourceID == rel.TargetID {
					continue // self-loop: no new traversal edge
				}
				if !relSeen[relID] {
					relSeen[relID] = true
					relations = append(relations, rel)
				}
				other := rel.TargetID
				if other == id {
					other = rel.SourceID
				}
				if !visited[other] {
					visited[other] = true
					next = append(next, other)
				}
			}
		}
		frontier = next
	}

	visitedIDs = make([]string, 0, len(visited))
	for id := range visited {
		visitedIDs = append(visitedIDs, id)
	}
	return visitedIDs, relations
}
