package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/talgya/gridworld/internal/sim"
)

// Fingerprint computes a stable hash over the cache-relevant fields of an
// observation: policy type, position, vitals, inventory, and nearby spawns.
// Vitals are rounded to whole points so sub-point decay between ticks does
// not defeat the cache. Field order is fixed; map iteration never leaks in.
func Fingerprint(policyType string, obs sim.Observation) string {
	var b strings.Builder

	fmt.Fprintf(&b, "p=%s;pos=%d,%d;", policyType, obs.Self.X, obs.Self.Y)
	fmt.Fprintf(&b, "h=%d;e=%d;hp=%d;bal=%d;st=%s;",
		int(obs.Self.Hunger+0.5), int(obs.Self.Energy+0.5),
		int(obs.Self.Health+0.5), int(obs.Self.Balance), obs.Self.State)

	items := make([]string, 0, len(obs.Inventory))
	for item, qty := range obs.Inventory {
		items = append(items, fmt.Sprintf("%s=%d", item, qty))
	}
	sort.Strings(items)
	b.WriteString("inv=" + strings.Join(items, ",") + ";")

	spawns := make([]string, 0, len(obs.NearbyResourceSpawns))
	for _, sp := range obs.NearbyResourceSpawns {
		spawns = append(spawns, fmt.Sprintf("%s@%d,%d:%s=%d", sp.ID, sp.X, sp.Y, sp.Kind, sp.CurrentAmount))
	}
	sort.Strings(spawns)
	b.WriteString("spawns=" + strings.Join(spawns, ",") + ";")

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
