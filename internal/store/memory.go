package store

import (
	"time"

	"github.com/talgya/gridworld/internal/sim"
)

// AddMemories appends memory rows for an agent.
func (s *Store) AddMemories(memories []sim.Memory) error {
	if len(memories) == 0 {
		return nil
	}
	tx, err := s.conn.Beginx()
	if err != nil {
		return storageErr("memories begin", err)
	}
	defer tx.Rollback()

	for _, m := range memories {
		if _, err := tx.Exec(`INSERT INTO agent_memories
			(agent_id, tick, kind, content, x, y) VALUES (?, ?, ?, ?, ?, ?)`,
			m.AgentID, m.Tick, m.Kind, m.Content, m.X, m.Y); err != nil {
			return storageErr("memories insert", err)
		}
	}
	return storageErr("memories commit", tx.Commit())
}

// GetMemories returns the newest memories for an agent, newest first.
func (s *Store) GetMemories(agentID string, limit int) ([]sim.Memory, error) {
	var out []sim.Memory
	err := s.conn.Select(&out, `SELECT agent_id, tick, kind, content, x, y
		FROM agent_memories WHERE agent_id = ? ORDER BY id DESC LIMIT ?`,
		agentID, limit)
	return out, storageErr("get memories", err)
}

// UpsertKnowledge records or refreshes what an agent believes about another.
// Direct knowledge (referralDepth 0) is never downgraded by hearsay: a
// referral only lands when no direct record exists for the same info type.
func (s *Store) UpsertKnowledge(k sim.Knowledge) error {
	if k.DiscoveryType == sim.DiscoveryReferral {
		var depth int
		err := s.conn.Get(&depth, `SELECT referral_depth FROM agent_knowledge
			WHERE agent_id = ? AND subject_id = ? AND info_type = ?`,
			k.AgentID, k.SubjectID, k.InfoType)
		if err == nil && depth == 0 {
			return nil
		}
	}

	_, err := s.conn.Exec(`INSERT INTO agent_knowledge
		(agent_id, subject_id, info_type, sentiment, discovery_type, referred_by, referral_depth, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(agent_id, subject_id, info_type) DO UPDATE SET
			sentiment = excluded.sentiment,
			discovery_type = excluded.discovery_type,
			referred_by = excluded.referred_by,
			referral_depth = excluded.referral_depth,
			updated_at = excluded.updated_at`,
		k.AgentID, k.SubjectID, k.InfoType, k.Sentiment, k.DiscoveryType,
		k.ReferredBy, k.ReferralDepth, time.Now().UTC())
	return storageErr("upsert knowledge", err)
}

// GetKnowledge returns everything an agent believes about a subject.
func (s *Store) GetKnowledge(agentID, subjectID string) ([]sim.Knowledge, error) {
	var out []sim.Knowledge
	err := s.conn.Select(&out, `SELECT agent_id, subject_id, info_type, sentiment,
		discovery_type, referred_by, referral_depth
		FROM agent_knowledge WHERE agent_id = ? AND subject_id = ?`,
		agentID, subjectID)
	return out, storageErr("get knowledge", err)
}
