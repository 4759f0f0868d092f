// Package agents runs the autonomous players. It listens for pending
// decisions, briefs a provider with the table state and feeds the answer
// back to the engine, falling back to the scripted policy whenever the
// provider fails; a match never waits on a dead API longer than the
// decision timeout.
package agents

import (
	"fmt"
	"strings"

	"github.com/MRamiBalles/MagnateArena/server/internal/domain/decision"
	"github.com/MRamiBalles/MagnateArena/server/internal/domain/game"
	"github.com/MRamiBalles/MagnateArena/server/internal/domain/rules"
	"github.com/MRamiBalles/MagnateArena/server/internal/engine"
	"github.com/MRamiBalles/MagnateArena/server/internal/events"
	"github.com/MRamiBalles/MagnateArena/server/internal/infra/agent"
)

// recentEventWindow bounds how much feed history travels in a briefing.
const recentEventWindow = 10

// buildRequest assembles the provider request for one pending decision from
// a table snapshot.
func buildRequest(snap *engine.Snapshot, pending decision.Pending, recent []string) agent.Request {
	var player *game.Player
	for _, p := range snap.Players {
		if p.ID == pending.PlayerID {
			player = p
			break
		}
	}

	req := agent.Request{
		GameID:       snap.Game.ID,
		TurnNumber:   snap.Game.TurnNumber,
		PlayerID:     pending.PlayerID,
		Type:         pending.Type,
		Options:      pending.Options,
		Position:     pending.Position,
		Price:        pending.Price,
		DiceTotal:    pending.DiceTotal,
		ActionsTaken: pending.ActionsTaken,
		Trade:        pending.Trade,
		Recent:       recent,
	}

	if player != nil {
		req.PlayerName = player.Name
		req.Cash = player.Cash
		if pending.Type == decision.TypePreRollActions || pending.Type == decision.TypePostRollActions {
			req.Buildable = rules.Buildable(player, snap.Properties)
			req.Redeemable = rules.Unmortgageable(player, snap.Properties)
		}
	}

	req.Briefing = buildBriefing(snap, player)
	return req
}

// buildBriefing renders the table as the situation report the model reads.
func buildBriefing(snap *engine.Snapshot, player *game.Player) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("=== INFORME DE MESA: TURNO %d ===\n", snap.Game.TurnNumber))
	sb.WriteString(fmt.Sprintf("Fase: %s\n", snap.Game.Phase))

	if player != nil {
		sb.WriteString(fmt.Sprintf("Eres %s (asiento %d). Efectivo: $%d. Posición: %d.\n",
			player.Name, player.TurnOrder, player.Cash, player.Position))
		if player.InJail {
			sb.WriteString(fmt.Sprintf("Estás EN LA CÁRCEL: %d intentos restantes.\n", player.JailTurnsRemaining))
		}
		if player.GetOutOfJailCards > 0 {
			sb.WriteString(fmt.Sprintf("Cartas de salida de la cárcel: %d.\n", player.GetOutOfJailCards))
		}
	}

	sb.WriteString("\n=== RIVALES ===\n")
	rivals := 0
	for _, p := range snap.Players {
		if player != nil && p.ID == player.ID {
			continue
		}
		rivals++
		if p.IsBankrupt {
			sb.WriteString(fmt.Sprintf("- %s: EN QUIEBRA (turno %d)\n", p.Name, p.BankruptedOnTurn))
			continue
		}
		sb.WriteString(fmt.Sprintf("- %s: $%d, posición %d, %d propiedades\n",
			p.Name, p.Cash, p.Position, countDeeds(p.ID, snap.Properties)))
	}
	if rivals == 0 {
		sb.WriteString("- Sin rivales registrados.\n")
	}

	sb.WriteString("\n=== TUS PROPIEDADES ===\n")
	owned := 0
	if player != nil {
		for _, pr := range snap.Properties {
			if pr.OwnerID != player.ID {
				continue
			}
			owned++
			sb.WriteString(fmt.Sprintf("- [%d] %s (grupo %s)%s\n",
				pr.Position, pr.Name, pr.Group, deedState(pr)))
		}
	}
	if owned == 0 {
		sb.WriteString("- Sin propiedades todavía.\n")
	}

	free := 0
	for _, pr := range snap.Properties {
		if !pr.Owned() {
			free++
		}
	}
	sb.WriteString(fmt.Sprintf("\nPropiedades sin dueño en el banco: %d de %d.\n", free, len(snap.Properties)))

	return sb.String()
}

func deedState(pr *game.Property) string {
	switch {
	case pr.IsMortgaged:
		return ": HIPOTECADA"
	case pr.Houses == 5:
		return ": hotel"
	case pr.Houses > 0:
		return fmt.Sprintf(": %d casas", pr.Houses)
	default:
		return ""
	}
}

func countDeeds(ownerID string, properties []*game.Property) int {
	n := 0
	for _, pr := range properties {
		if pr.OwnerID == ownerID {
			n++
		}
	}
	return n
}

// recentLines pulls the newest feed lines for one game, oldest first.
func recentLines(feed *events.EventLog, gameID string) []string {
	if feed == nil {
		return nil
	}
	evs := feed.GetByGame(gameID)
	if len(evs) > recentEventWindow {
		evs = evs[len(evs)-recentEventWindow:]
	}
	lines := make([]string, 0, len(evs))
	for _, e := range evs {
		lines = append(lines, e.Text)
	}
	return lines
}
