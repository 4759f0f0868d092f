// Prompt construction and response parsing for LLM-backed agents.
// The system prompt pins the agent's identity and the exact JSON contract;
// BuildDecisionPrompt assembles the per-decision context.
package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MRamiBalles/MagnateArena/server/internal/domain/decision"
)

// ArenaSystemPrompt is the constitutional prompt for a magnate agent.
// It embeds the table rules the model must respect and the response contract.
const ArenaSystemPrompt = `
# IDENTIDAD: MAGNATE

Eres un magnate inmobiliario compitiendo en "Magnate Arena", una liga automatizada de partidas de mesa. Controlas a UN jugador y tu propósito es terminar la partida con el mayor patrimonio posible.

## REGLAS DE LA MESA (INVIOLABLES)

Estas reglas son absolutas. Violarlas es IMPOSIBLE para ti:

1. **Acciones legales**: Solo puedes elegir una acción de la lista OPCIONES que se te ofrece. Cualquier otra será rechazada.
2. **Dinero limitado**: Nunca puedes gastar más efectivo del que tienes.
3. **Construcción pareja**: Las casas se reparten de forma uniforme dentro de cada grupo de color.
4. **Hipotecas**: Una propiedad hipotecada no cobra alquiler hasta que la rescates pagando un 10% de interés.
5. **Sin respuesta hay defecto**: Si no respondes con el formato exacto, la mesa aplicará la acción pasiva por ti.

## ESTRATEGIA

DEBES equilibrar:
- Agresividad compradora (los grupos de color completos duplican el alquiler)
- Reserva de efectivo (los alquileres y los impuestos llegan sin avisar)
- Presión sobre los rivales (subastas, intercambios y monopolios que les cierren el paso)

## FORMATO DE RESPUESTA

Siempre responde en JSON con este formato EXACTO:

{
  "reasoning": "Explica tu proceso de pensamiento paso a paso",
  "decision": {
    "action": "una acción de la lista OPCIONES",
    "position": 0,
    "trade": {
      "counterparty_id": "id del rival (solo para trade/counter)",
      "offered_ids": ["ids de propiedades que entregas"],
      "requested_ids": ["ids de propiedades que pides"],
      "cash_delta": 0
    },
    "rationale": "Razón breve para el registro de la partida"
  }
}

El campo "position" solo importa para build, mortgage y unmortgage. El campo "trade" solo importa para trade y counter; en el resto de acciones omítelos o déjalos a cero.
`

// BuildDecisionPrompt constructs the dynamic context for one pending decision.
func BuildDecisionPrompt(req Request) string {
	var sb strings.Builder

	sb.WriteString("## TU SITUACIÓN\n\n")
	sb.WriteString(req.Briefing)
	sb.WriteString("\n\n## EVENTOS RECIENTES\n\n")

	if len(req.Recent) == 0 {
		sb.WriteString("- (la partida acaba de empezar)\n")
	}
	for i, event := range req.Recent {
		if i >= 10 {
			sb.WriteString("... (más eventos omitidos por brevedad)\n")
			break
		}
		sb.WriteString(fmt.Sprintf("- %s\n", event))
	}

	sb.WriteString("\n## DECISIÓN REQUERIDA\n\n")
	sb.WriteString(describeDecision(req))
	sb.WriteString(fmt.Sprintf("\nOPCIONES: %s\n", joinActions(req.Options)))

	sb.WriteString("\n## TAREA\n\n")
	sb.WriteString("Analiza la mesa y elige la acción que maximice tu patrimonio a largo plazo. ")
	sb.WriteString("Explica tu razonamiento paso a paso antes de dar tu decisión final, y responde SOLO con el JSON del formato exacto.\n")

	return sb.String()
}

// describeDecision renders the pending decision as a question the model can
// answer without guessing what the engine wants.
func describeDecision(req Request) string {
	switch req.Type {
	case decision.TypeBuyProperty:
		return fmt.Sprintf("Has caído en la casilla %d, que está en venta por $%d. Tienes $%d. ¿Compras (buy) o la mandas a subasta (auction)?",
			req.Position, req.Price, req.Cash)
	case decision.TypeJailStrategy:
		return fmt.Sprintf("Estás en la cárcel con $%d. Puedes intentar sacar dobles (roll), pagar la fianza (pay) o gastar una carta de salida (use_card) si las opciones lo permiten.", req.Cash)
	case decision.TypePreRollActions, decision.TypePostRollActions:
		desc := fmt.Sprintf("Fase de gestión de activos: llevas %d de 4 acciones usadas en esta fase. Puedes construir (build), hipotecar (mortgage), rescatar hipotecas (unmortgage) o cerrar la fase (done).", req.ActionsTaken)
		if req.Type == decision.TypePreRollActions {
			desc += " También puedes proponer un intercambio (trade)."
		}
		if len(req.Buildable) > 0 {
			desc += fmt.Sprintf(" Posiciones donde puedes construir: %v.", req.Buildable)
		}
		if len(req.Redeemable) > 0 {
			desc += fmt.Sprintf(" Hipotecas que puedes rescatar: %v.", req.Redeemable)
		}
		return desc
	case decision.TypeTradeResponse:
		if req.Trade != nil {
			return fmt.Sprintf("Te proponen un intercambio: entregas %v, recibes %v, ajuste de efectivo %d (positivo: el proponente te paga). Puedes aceptar (accept), rechazar (reject) o contraofertar una sola vez (counter).",
				req.Trade.RequestedIDs, req.Trade.OfferedIDs, req.Trade.CashDelta)
		}
		return "Te proponen un intercambio. Puedes aceptar (accept), rechazar (reject) o contraofertar (counter)."
	default:
		return fmt.Sprintf("Decisión pendiente de tipo %s.", req.Type)
	}
}

func joinActions(actions []decision.Action) string {
	parts := make([]string, len(actions))
	for i, a := range actions {
		parts[i] = string(a)
	}
	return strings.Join(parts, " | ")
}

// AgentDecisionResponse is the expected structured response from the LLM.
type AgentDecisionResponse struct {
	Reasoning string `json:"reasoning"`
	Decision  struct {
		Action    string                  `json:"action"`
		Position  int                     `json:"position"`
		Trade     *decision.TradeProposal `json:"trade"`
		Rationale string                  `json:"rationale"`
	} `json:"decision"`
}

// ParseReply extracts and validates the JSON decision from raw model output.
// Models love to wrap JSON in markdown fences or prose, so it takes the
// outermost brace pair instead of demanding a clean document.
func ParseReply(raw string, req Request) (*Reply, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var resp AgentDecisionResponse
	if err := json.Unmarshal([]byte(raw[start:end+1]), &resp); err != nil {
		return nil, fmt.Errorf("malformed decision JSON: %w", err)
	}
	if err := validateResponse(&resp, req); err != nil {
		return nil, err
	}

	return &Reply{
		Action:    decision.Action(resp.Decision.Action),
		Position:  resp.Decision.Position,
		Trade:     resp.Decision.Trade,
		Rationale: resp.Decision.Rationale,
	}, nil
}

// validateResponse checks the decision against the offered options before it
// ever reaches the engine. Anything off-menu falls back to the scripted policy.
func validateResponse(resp *AgentDecisionResponse, req Request) error {
	if resp.Reasoning == "" {
		return fmt.Errorf("missing reasoning")
	}
	if resp.Decision.Rationale == "" {
		return fmt.Errorf("missing rationale")
	}

	action := decision.Action(resp.Decision.Action)
	offered := false
	for _, opt := range req.Options {
		if opt == action {
			offered = true
			break
		}
	}
	if !offered {
		return fmt.Errorf("action %q not among offered options", resp.Decision.Action)
	}

	switch action {
	case decision.ActionBuild, decision.ActionMortgage, decision.ActionUnmortgage:
		if resp.Decision.Position <= 0 {
			return fmt.Errorf("action %s requires a board position", action)
		}
	case decision.ActionTrade, decision.ActionCounter:
		if resp.Decision.Trade == nil {
			return fmt.Errorf("action %s requires trade terms", action)
		}
		if len(resp.Decision.Trade.OfferedIDs) == 0 && len(resp.Decision.Trade.RequestedIDs) == 0 && resp.Decision.Trade.CashDelta == 0 {
			return fmt.Errorf("trade terms are empty")
		}
	}

	return nil
}
