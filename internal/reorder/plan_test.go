package reorder

import (
	"testing"

	"github.com/chxlky/boardsync/internal/models"
	"github.com/chxlky/boardsync/internal/store"
	"github.com/stretchr/testify/assert"
)

func card(id string, status models.Status, pos int) models.Card {
	return models.Card{ID: id, Status: status, Position: pos}
}

func TestPlan_MoveToOtherColumn(t *testing.T) {
	cards := []models.Card{
		card("A", models.StatusTodo, 1),
		card("B", models.StatusTodo, 2),
		card("C", models.StatusTodo, 3),
	}

	got := Plan(cards, []Move{{CardID: "A", Status: models.StatusDoing, Position: 1}})

	assert.ElementsMatch(t, []store.Placement{
		{CardID: "B", Status: models.StatusTodo, Position: 1},
		{CardID: "C", Status: models.StatusTodo, Position: 2},
		{CardID: "A", Status: models.StatusDoing, Position: 1},
	}, got)
}

func TestPlan_OnlyChangedSlotsAreWritten(t *testing.T) {
	cards := []models.Card{
		card("A", models.StatusTodo, 1),
		card("B", models.StatusTodo, 2),
		card("C", models.StatusTodo, 3),
	}

	got := Plan(cards, []Move{{CardID: "C", Status: models.StatusTodo, Position: 3}})
	assert.Empty(t, got)

	got = Plan(cards, []Move{{CardID: "C", Status: models.StatusTodo, Position: 2}})
	assert.ElementsMatch(t, []store.Placement{
		{CardID: "C", Status: models.StatusTodo, Position: 2},
		{CardID: "B", Status: models.StatusTodo, Position: 3},
	}, got)
}

func TestPlan_ClampsPosition(t *testing.T) {
	cards := []models.Card{
		card("A", models.StatusTodo, 1),
		card("X", models.StatusDone, 1),
		card("Y", models.StatusDone, 2),
	}

	got := Plan(cards, []Move{{CardID: "A", Status: models.StatusDone, Position: 99}})
	assert.Equal(t, []store.Placement{{CardID: "A", Status: models.StatusDone, Position: 3}}, got)
}

func TestPlan_MovesApplyInBatchOrder(t *testing.T) {
	cards := []models.Card{
		card("A", models.StatusTodo, 1),
		card("B", models.StatusTodo, 2),
	}

	// Both target position 1 of DOING: the later insert lands in front.
	got := Plan(cards, []Move{
		{CardID: "A", Status: models.StatusDoing, Position: 1},
		{CardID: "B", Status: models.StatusDoing, Position: 1},
	})
	assert.ElementsMatch(t, []store.Placement{
		{CardID: "B", Status: models.StatusDoing, Position: 1},
		{CardID: "A", Status: models.StatusDoing, Position: 2},
	}, got)
}

func TestPlan_CompactsWithoutMoves(t *testing.T) {
	cards := []models.Card{
		card("A", models.StatusTodo, 1),
		card("B", models.StatusTodo, 3),
		card("C", models.StatusDone, 2),
	}

	got := Plan(cards, nil)
	assert.ElementsMatch(t, []store.Placement{
		{CardID: "B", Status: models.StatusTodo, Position: 2},
		{CardID: "C", Status: models.StatusDone, Position: 1},
	}, got)
}

func TestPlan_IgnoresUnknownCards(t *testing.T) {
	cards := []models.Card{card("A", models.StatusTodo, 1)}
	got := Plan(cards, []Move{{CardID: "ghost", Status: models.StatusTodo, Position: 1}})
	assert.Empty(t, got)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		moves []Move
	}{
		{"empty", nil},
		{"missing id", []Move{{Status: models.StatusTodo, Position: 1}}},
		{"duplicate", []Move{
			{CardID: "A", Status: models.StatusTodo, Position: 1},
			{CardID: "A", Status: models.StatusDone, Position: 1},
		}},
		{"bad status", []Move{{CardID: "A", Status: "LATER", Position: 1}}},
		{"zero position", []Move{{CardID: "A", Status: models.StatusTodo, Position: 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, validate(tt.moves), ErrInvalidMove)
		})
	}

	assert.NoError(t, validate([]Move{{CardID: "A", Status: models.StatusTodo, Position: 1}}))
}
