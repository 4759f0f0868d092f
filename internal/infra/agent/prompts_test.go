package agent

import (
	"strings"
	"testing"

	"github.com/MRamiBalles/MagnateArena/server/internal/domain/decision"
)

func buyRequest() Request {
	return Request{
		GameID:     "g1",
		PlayerID:   "p1",
		PlayerName: "Ana",
		Type:       decision.TypeBuyProperty,
		Options:    []decision.Action{decision.ActionBuy, decision.ActionAuction},
		Cash:       1500,
		Position:   3,
		Price:      60,
		Briefing:   "Turno 4. Ana tiene $1500.",
		Recent:     []string{"Ana sacó 1 y 2"},
	}
}

func TestParseReplyReadsFencedJSON(t *testing.T) {
	// Setup: models wrap the JSON in markdown fences and prose
	raw := "Aquí está mi decisión:\n```json\n" +
		`{"reasoning": "La reserva aguanta", "decision": {"action": "buy", "rationale": "Compra segura"}}` +
		"\n```\nEspero que sirva."

	// Act
	reply, err := ParseReply(raw, buyRequest())

	// Assert
	if err != nil {
		t.Fatalf("Expected the fenced JSON to parse, got %v", err)
	}
	if reply.Action != decision.ActionBuy {
		t.Errorf("Expected buy, got %s", reply.Action)
	}
	if reply.Rationale != "Compra segura" {
		t.Errorf("Expected the rationale to survive, got %q", reply.Rationale)
	}
}

func TestParseReplyRejectsOffMenuActions(t *testing.T) {
	// Setup: build is not a legal answer to a buy gate
	raw := `{"reasoning": "quiero casas", "decision": {"action": "build", "position": 3, "rationale": "construir"}}`

	// Act
	_, err := ParseReply(raw, buyRequest())

	// Assert
	if err == nil {
		t.Fatal("Expected an off-menu action to be rejected")
	}
	if !strings.Contains(err.Error(), "not among offered options") {
		t.Errorf("Expected the option check to fire, got %v", err)
	}
}

func TestParseReplyRequiresReasoning(t *testing.T) {
	// Setup
	raw := `{"decision": {"action": "buy", "rationale": "compra"}}`

	// Act
	_, err := ParseReply(raw, buyRequest())

	// Assert
	if err == nil {
		t.Error("Expected missing reasoning to fail validation")
	}
}

func TestParseReplyDemandsAPositionForBuilds(t *testing.T) {
	// Setup
	req := Request{
		Type:      decision.TypePostRollActions,
		Options:   []decision.Action{decision.ActionBuild, decision.ActionDone},
		Buildable: []int{1, 3},
	}
	raw := `{"reasoning": "construyo", "decision": {"action": "build", "rationale": "casas"}}`

	// Act
	_, err := ParseReply(raw, req)

	// Assert
	if err == nil {
		t.Error("Expected a build without position to fail")
	}
}

func TestParseReplyDemandsTradeTerms(t *testing.T) {
	// Setup
	req := Request{
		Type:    decision.TypeTradeResponse,
		Options: []decision.Action{decision.ActionAccept, decision.ActionReject, decision.ActionCounter},
	}
	raw := `{"reasoning": "contraoferta", "decision": {"action": "counter", "rationale": "pido más"}}`

	// Act
	_, err := ParseReply(raw, req)

	// Assert
	if err == nil {
		t.Error("Expected a counter without terms to fail")
	}
}

func TestParseReplyCarriesTradeTermsThrough(t *testing.T) {
	// Setup
	req := Request{
		Type:    decision.TypeTradeResponse,
		Options: []decision.Action{decision.ActionAccept, decision.ActionReject, decision.ActionCounter},
	}
	raw := `{"reasoning": "mejor trato", "decision": {"action": "counter", "rationale": "subo el precio",
		"trade": {"counterparty_id": "p2", "offered_ids": ["prop-6"], "requested_ids": ["prop-39"], "cash_delta": -200}}}`

	// Act
	reply, err := ParseReply(raw, req)

	// Assert
	if err != nil {
		t.Fatalf("Expected the counter to parse, got %v", err)
	}
	if reply.Trade == nil {
		t.Fatal("Expected trade terms on the reply")
	}
	if reply.Trade.CashDelta != -200 {
		t.Errorf("Expected cash delta -200, got %d", reply.Trade.CashDelta)
	}
	if len(reply.Trade.OfferedIDs) != 1 || reply.Trade.OfferedIDs[0] != "prop-6" {
		t.Errorf("Expected offered ids to survive, got %v", reply.Trade.OfferedIDs)
	}
}

func TestParseReplyRejectsProseWithoutJSON(t *testing.T) {
	// Act
	_, err := ParseReply("Lo siento, no puedo decidir ahora mismo.", buyRequest())

	// Assert
	if err == nil {
		t.Error("Expected pure prose to fail")
	}
}

func TestBuildDecisionPromptNamesTheOptions(t *testing.T) {
	// Act
	prompt := BuildDecisionPrompt(buyRequest())

	// Assert
	if !strings.Contains(prompt, "OPCIONES: buy | auction") {
		t.Errorf("Expected the options line, got:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Turno 4. Ana tiene $1500.") {
		t.Error("Expected the briefing embedded in the prompt")
	}
	if !strings.Contains(prompt, "Ana sacó 1 y 2") {
		t.Error("Expected recent events embedded in the prompt")
	}
}

func TestBuildDecisionPromptCapsRecentEvents(t *testing.T) {
	// Setup: 15 events, only 10 should show
	req := buyRequest()
	req.Recent = nil
	for i := 0; i < 15; i++ {
		req.Recent = append(req.Recent, "evento")
	}

	// Act
	prompt := BuildDecisionPrompt(req)

	// Assert
	if got := strings.Count(prompt, "- evento\n"); got != 10 {
		t.Errorf("Expected 10 listed events, got %d", got)
	}
	if !strings.Contains(prompt, "omitidos por brevedad") {
		t.Error("Expected the truncation marker")
	}
}
