package store

import "github.com/talgya/gridworld/internal/sim"

// AddToInventory adjusts one item stack. Negative quantities remove items;
// a stack that reaches zero (or below) is deleted.
func (s *Store) AddToInventory(agentID, itemType string, qty int) error {
	if qty == 0 {
		return nil
	}

	tx, err := s.conn.Beginx()
	if err != nil {
		return storageErr("inventory begin", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO inventories (agent_id, item_type, quantity)
		VALUES (?, ?, ?)
		ON CONFLICT(agent_id, item_type) DO UPDATE SET quantity = quantity + ?`,
		agentID, itemType, qty, qty); err != nil {
		return storageErr("inventory upsert", err)
	}
	if _, err := tx.Exec(`DELETE FROM inventories
		WHERE agent_id = ? AND item_type = ? AND quantity <= 0`,
		agentID, itemType); err != nil {
		return storageErr("inventory prune", err)
	}
	return storageErr("inventory commit", tx.Commit())
}

// GetInventory returns an agent's items as a map. Empty map when the agent
// carries nothing.
func (s *Store) GetInventory(agentID string) (map[string]int, error) {
	var rows []sim.InventoryEntry
	if err := s.conn.Select(&rows,
		`SELECT agent_id, item_type, quantity FROM inventories WHERE agent_id = ?`,
		agentID); err != nil {
		return nil, storageErr("get inventory", err)
	}
	inv := make(map[string]int, len(rows))
	for _, r := range rows {
		inv[r.ItemType] = r.Quantity
	}
	return inv, nil
}

// GetItemQuantity returns how many of one item an agent holds.
func (s *Store) GetItemQuantity(agentID, itemType string) (int, error) {
	var qty int
	err := s.conn.Get(&qty, `SELECT COALESCE(SUM(quantity), 0) FROM inventories
		WHERE agent_id = ? AND item_type = ?`, agentID, itemType)
	return qty, storageErr("get item quantity", err)
}
