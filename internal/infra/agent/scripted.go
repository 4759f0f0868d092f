// Scripted heuristic provider. It is the fallback behind every LLM provider
// and the whole brain of headless simulations: cheap, deterministic and
// always available, so a match can never stall on a dead API.
package agent

import (
	"context"
	"fmt"

	"github.com/MRamiBalles/MagnateArena/server/internal/domain/decision"
)

// Heuristic thresholds. The policy is intentionally simple: keep a cash
// cushion, complete groups, never give anything away in trades.
const (
	scriptedBuyReserve   = 150 // Cash that must survive a purchase
	scriptedBailComfort  = 400 // Pay the fine above this, gamble below
	scriptedBuildFloor   = 300 // Minimum cash before building
	scriptedRedeemFloor  = 500 // Minimum cash before lifting a mortgage
)

// Scripted implements Provider with fixed rules and no external calls.
type Scripted struct{}

// NewScripted creates the rule-based provider.
func NewScripted() *Scripted {
	return &Scripted{}
}

// Name returns the provider name.
func (s *Scripted) Name() string {
	return "scripted"
}

// Available is always true; the rules need nothing from outside.
func (s *Scripted) Available() bool {
	return true
}

// Usage returns empty stats; the scripted policy spends nothing.
func (s *Scripted) Usage() UsageStats {
	return UsageStats{}
}

// Decide applies the heuristic for the pending decision type.
func (s *Scripted) Decide(ctx context.Context, req Request) (*Reply, error) {
	reply := s.evaluate(req)

	// Whatever the rules picked must be on the menu. If a precondition
	// stripped it (no cash for pay, nothing buildable) fall back to the
	// passive default for the type.
	if !offered(req.Options, reply.Action) {
		reply = &Reply{
			Action:    decision.Default(req.Type),
			Rationale: "Sin jugada preferida disponible. Se aplica la opción pasiva.",
		}
	}
	return reply, nil
}

// evaluate holds the per-type rules.
func (s *Scripted) evaluate(req Request) *Reply {
	switch req.Type {
	case decision.TypeBuyProperty:
		if req.Cash >= req.Price+scriptedBuyReserve {
			return &Reply{
				Action:    decision.ActionBuy,
				Rationale: fmt.Sprintf("Compra directa: la casilla %d cuesta $%d y la reserva aguanta.", req.Position, req.Price),
			}
		}
		return &Reply{
			Action:    decision.ActionAuction,
			Rationale: fmt.Sprintf("Efectivo justo para la casilla %d. Mejor verla en subasta.", req.Position),
		}

	case decision.TypeJailStrategy:
		if offered(req.Options, decision.ActionUseCard) {
			return &Reply{
				Action:    decision.ActionUseCard,
				Rationale: "Una carta de salida no cuesta nada. Se usa.",
			}
		}
		if offered(req.Options, decision.ActionPay) && req.Cash >= scriptedBailComfort {
			return &Reply{
				Action:    decision.ActionPay,
				Rationale: fmt.Sprintf("Con $%d la fianza es un trámite. Pagar y seguir girando.", req.Cash),
			}
		}
		return &Reply{
			Action:    decision.ActionRoll,
			Rationale: "La fianza espera. Se intentan dobles.",
		}

	case decision.TypePreRollActions, decision.TypePostRollActions:
		if len(req.Buildable) > 0 && req.Cash >= scriptedBuildFloor {
			return &Reply{
				Action:    decision.ActionBuild,
				Position:  req.Buildable[0],
				Rationale: fmt.Sprintf("Construcción en la posición %d para subir el alquiler del grupo.", req.Buildable[0]),
			}
		}
		if len(req.Redeemable) > 0 && req.Cash >= scriptedRedeemFloor {
			return &Reply{
				Action:    decision.ActionUnmortgage,
				Position:  req.Redeemable[0],
				Rationale: fmt.Sprintf("Se rescata la hipoteca de la posición %d; una propiedad libre vuelve a cobrar.", req.Redeemable[0]),
			}
		}
		return &Reply{
			Action:    decision.ActionDone,
			Rationale: "Sin jugadas rentables esta fase. Se cierra.",
		}

	case decision.TypeTradeResponse:
		return &Reply{
			Action:    decision.ActionReject,
			Rationale: "Intercambio rechazado: sin tasador fino, no se cede patrimonio.",
		}

	default:
		return &Reply{
			Action:    decision.Default(req.Type),
			Rationale: "Decisión pasiva para un tipo desconocido.",
		}
	}
}

func offered(options []decision.Action, action decision.Action) bool {
	for _, opt := range options {
		if opt == action {
			return true
		}
	}
	return false
}

// Ensure Scripted implements Provider
var _ Provider = (*Scripted)(nil)
