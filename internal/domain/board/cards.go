package board

// CardEffect classifies what a drawn card does to the drawing player.
type CardEffect string

const (
	EffectCash        CardEffect = "cash"         // Signed Amount to/from the bank
	EffectMove        CardEffect = "move"         // Teleport to Destination, salary on passing GO
	EffectGoToJail    CardEffect = "go_to_jail"   // Straight to jail, no salary
	EffectJailCard    CardEffect = "jail_card"    // Grants a get-out-of-jail card
	EffectCollectEach CardEffect = "collect_each" // Amount from every rival
	EffectPayEach     CardEffect = "pay_each"     // Amount to every rival
)

// Card is one entry of a deck. Decks are referenced by index from the game
// row, so cards themselves carry no identity beyond their slice position.
type Card struct {
	Text        string     `json:"text"`
	Effect      CardEffect `json:"effect"`
	Amount      int        `json:"amount,omitempty"`
	Destination int        `json:"destination,omitempty"`
}

// ChanceCards is the Suerte deck.
var ChanceCards = []Card{
	{Text: "Avanza hasta la Salida. Cobra 200.", Effect: EffectMove, Destination: GoPosition},
	{Text: "Avanza hasta la Gran Vía.", Effect: EffectMove, Destination: 34},
	{Text: "Avanza hasta el Paseo del Prado.", Effect: EffectMove, Destination: 39},
	{Text: "El banco te paga un dividendo de 50.", Effect: EffectCash, Amount: 50},
	{Text: "Multa por exceso de velocidad. Paga 15.", Effect: EffectCash, Amount: -15},
	{Text: "Ve a la Cárcel directamente, sin pasar por la Salida.", Effect: EffectGoToJail},
	{Text: "Quedas libre de la Cárcel. Conserva esta carta.", Effect: EffectJailCard},
	{Text: "Paga la matrícula del colegio: 150.", Effect: EffectCash, Amount: -150},
	{Text: "Has ganado el concurso de crucigramas. Cobra 100.", Effect: EffectCash, Amount: 100},
	{Text: "Te eligen presidente de la comunidad. Paga 50 a cada jugador.", Effect: EffectPayEach, Amount: 50},
	{Text: "Avanza hasta la Estación de Goya.", Effect: EffectMove, Destination: 5},
	{Text: "Tus acciones suben. Cobra 150.", Effect: EffectCash, Amount: 150},
}

// ChestCards is the Caja de Comunidad deck.
var ChestCards = []Card{
	{Text: "Avanza hasta la Salida. Cobra 200.", Effect: EffectMove, Destination: GoPosition},
	{Text: "Error del banco a tu favor. Cobra 200.", Effect: EffectCash, Amount: 200},
	{Text: "Pago del médico. Paga 50.", Effect: EffectCash, Amount: -50},
	{Text: "Venta de acciones. Cobra 50.", Effect: EffectCash, Amount: 50},
	{Text: "Quedas libre de la Cárcel. Conserva esta carta.", Effect: EffectJailCard},
	{Text: "Ve a la Cárcel directamente.", Effect: EffectGoToJail},
	{Text: "Es tu cumpleaños. Cobra 10 de cada jugador.", Effect: EffectCollectEach, Amount: 10},
	{Text: "Devolución de Hacienda. Cobra 20.", Effect: EffectCash, Amount: 20},
	{Text: "Cobra el seguro de vida: 100.", Effect: EffectCash, Amount: 100},
	{Text: "Gastos de hospital. Paga 100.", Effect: EffectCash, Amount: -100},
	{Text: "Recibes una herencia. Cobra 100.", Effect: EffectCash, Amount: 100},
	{Text: "Segundo premio del concurso de belleza. Cobra 10.", Effect: EffectCash, Amount: 10},
}

// DeckFor returns the card list a draw space uses.
func DeckFor(t SpaceType) []Card {
	if t == SpaceChance {
		return ChanceCards
	}
	return ChestCards
}

// FreshDeck returns the index sequence 0..n-1, ready to be shuffled. Games
// store decks as index sequences and draw from the front.
func FreshDeck(n int) []int {
	deck := make([]int, n)
	for i := range deck {
		deck[i] = i
	}
	return deck
}
