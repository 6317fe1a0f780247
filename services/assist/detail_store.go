// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package assist

import (
	"sync"
	"time"
)

// =============================================================================
// Per-Session Detail Store
// =============================================================================

// DetailRecord is the evidence a diagnosis leaves behind for follow-up
// "show me the details" questions: the process rows that decided the verdict
// and the raw transaction payload.
type DetailRecord struct {
	ProcessRows []map[string]any
	Transaction map[string]any
	StoredAt    time.Time
}

// DetailStore keeps the last diagnosis detail per session.
//
// Description:
//
//	Records are keyed by session ID so concurrent users never see each
//	other's evidence, and expire after the configured TTL. One record per
//	session: a new diagnosis replaces the previous detail.
//
// Thread Safety: Safe for concurrent use.
type DetailStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]DetailRecord
	now     func() time.Time
}

// DefaultDetailTTL is how long diagnosis details stay viewable.
const DefaultDetailTTL = 30 * time.Minute

// NewDetailStore creates a store. A non-positive ttl uses DefaultDetailTTL.
func NewDetailStore(ttl time.Duration) *DetailStore {
	if ttl <= 0 {
		ttl = DefaultDetailTTL
	}
	return &DetailStore{
		ttl:     ttl,
		entries: make(map[string]DetailRecord),
		now:     time.Now,
	}
}

// Put stores the detail record for a session, replacing any previous one,
// and sweeps expired entries.
func (s *DetailStore) Put(sessionID string, rec DetailRecord) {
	if sessionID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec.StoredAt = now
	s.entries[sessionID] = rec

	for id, e := range s.entries {
		if now.Sub(e.StoredAt) > s.ttl {
			delete(s.entries, id)
		}
	}
}

// Get returns the session's detail record, if present and not expired.
func (s *DetailStore) Get(sessionID string) (DetailRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.entries[sessionID]
	if !ok {
		return DetailRecord{}, false
	}
	if s.now().Sub(rec.StoredAt) > s.ttl {
		delete(s.entries, sessionID)
		return DetailRecord{}, false
	}
	return rec, true
}

// Len reports the number of live entries. Used by the readiness endpoint.
func (s *DetailStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
