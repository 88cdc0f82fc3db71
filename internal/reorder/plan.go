package reorder

import (
	"slices"
	"time"

	"github.com/chxlky/boardsync/internal/models"
	"github.com/chxlky/boardsync/internal/store"
)

// Move asks for a card to end up at Position (1-based) in the Status column.
// ExpectedVersion, when set, must match the card's UpdatedAt.
type Move struct {
	CardID          string
	Status          models.Status
	Position        int
	ExpectedVersion *time.Time
}

// Plan computes the dense ordering that results from applying moves, in
// order, to cards (the project's full ordering). Moved cards are lifted out
// of their columns first, then each is inserted at its requested position,
// clamped to the column bounds. Only cards whose slot changes are returned.
//
// With no moves, Plan compacts the columns.
func Plan(cards []models.Card, moves []Move) []store.Placement {
	moved := make(map[string]bool, len(moves))
	for _, m := range moves {
		moved[m.CardID] = true
	}

	byID := make(map[string]models.Card, len(cards))
	columns := make(map[models.Status][]models.Card, len(models.Statuses))
	for _, c := range cards {
		byID[c.ID] = c
		if !moved[c.ID] {
			columns[c.Status] = append(columns[c.Status], c)
		}
	}

	for _, m := range moves {
		c, ok := byID[m.CardID]
		if !ok {
			continue
		}
		col := columns[m.Status]
		idx := min(max(m.Position-1, 0), len(col))
		columns[m.Status] = slices.Insert(col, idx, c)
	}

	var out []store.Placement
	for _, st := range models.Statuses {
		for i, c := range columns[st] {
			pos := i + 1
			if c.Status != st || c.Position != pos {
				out = append(out, store.Placement{CardID: c.ID, Status: st, Position: pos})
			}
		}
	}
	return out
}
