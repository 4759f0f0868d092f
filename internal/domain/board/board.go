// Package board defines the static layout of the 40-space board: space
// metadata, rent schedules, color groups and the two card decks.
// This package is PURE and must NOT import any infrastructure packages.
package board

// SpaceType classifies what happens when a token stops on a space.
type SpaceType string

const (
	SpaceGo          SpaceType = "go"
	SpaceStreet      SpaceType = "street"
	SpaceRailroad    SpaceType = "railroad"
	SpaceUtility     SpaceType = "utility"
	SpaceTax         SpaceType = "tax"
	SpaceChance      SpaceType = "chance"
	SpaceChest       SpaceType = "community_chest"
	SpaceJail        SpaceType = "jail"         // Just visiting
	SpaceGoToJail    SpaceType = "go_to_jail"
	SpaceFreeParking SpaceType = "free_parking"
)

// GroupID identifies a color group (streets) or a transport family.
type GroupID string

const (
	GroupBrown    GroupID = "brown"
	GroupSky      GroupID = "sky"
	GroupPink     GroupID = "pink"
	GroupOrange   GroupID = "orange"
	GroupRed      GroupID = "red"
	GroupYellow   GroupID = "yellow"
	GroupGreen    GroupID = "green"
	GroupNavy     GroupID = "navy"
	GroupRailroad GroupID = "railroad"
	GroupUtility  GroupID = "utility"
)

// Board geometry and fixed amounts.
const (
	Size             = 40
	GoPosition       = 0
	JailPosition     = 10
	GoToJailPosition = 30

	GoSalary  = 200
	JailFine  = 50
	IncomeTax = 200 // Position 4
	LuxuryTax = 100 // Position 38
	MaxHouses = 5   // 5 = hotel
	JailTurns = 3   // Failed escape rolls before the fine is forced
)

// Space describes one position on the board. Rent holds the full street
// schedule indexed by house count (index 5 = hotel); it is empty for
// non-street spaces, whose rent is computed from ownership and dice.
type Space struct {
	Position  int       `json:"position"`
	Name      string    `json:"name"`
	Type      SpaceType `json:"type"`
	Group     GroupID   `json:"group,omitempty"`
	Price     int       `json:"price,omitempty"`
	HouseCost int       `json:"house_cost,omitempty"`
	Rent      [6]int    `json:"rent"`
	Tax       int       `json:"tax,omitempty"`
}

// Purchasable reports whether the space can be owned by a player.
func (s Space) Purchasable() bool {
	switch s.Type {
	case SpaceStreet, SpaceRailroad, SpaceUtility:
		return true
	}
	return false
}

// MortgageValue is half the list price.
func (s Space) MortgageValue() int {
	return s.Price / 2
}

// UnmortgageCost is the mortgage value plus 10% interest, rounded down.
func (s Space) UnmortgageCost() int {
	return s.MortgageValue() * 110 / 100
}

// Catalog is the canonical 40-space layout (Madrid edition street names).
// Index equals board position.
var Catalog = [Size]Space{
	{Position: 0, Name: "Salida", Type: SpaceGo},
	{Position: 1, Name: "Ronda de Valencia", Type: SpaceStreet, Group: GroupBrown, Price: 60, HouseCost: 50, Rent: [6]int{2, 10, 30, 90, 160, 250}},
	{Position: 2, Name: "Caja de Comunidad", Type: SpaceChest},
	{Position: 3, Name: "Plaza Lavapiés", Type: SpaceStreet, Group: GroupBrown, Price: 60, HouseCost: 50, Rent: [6]int{4, 20, 60, 180, 320, 450}},
	{Position: 4, Name: "Impuesto sobre el Capital", Type: SpaceTax, Tax: IncomeTax},
	{Position: 5, Name: "Estación de Goya", Type: SpaceRailroad, Group: GroupRailroad, Price: 200},
	{Position: 6, Name: "Glorieta Cuatro Caminos", Type: SpaceStreet, Group: GroupSky, Price: 100, HouseCost: 50, Rent: [6]int{6, 30, 90, 270, 400, 550}},
	{Position: 7, Name: "Suerte", Type: SpaceChance},
	{Position: 8, Name: "Avenida Reina Victoria", Type: SpaceStreet, Group: GroupSky, Price: 100, HouseCost: 50, Rent: [6]int{6, 30, 90, 270, 400, 550}},
	{Position: 9, Name: "Calle Bravo Murillo", Type: SpaceStreet, Group: GroupSky, Price: 120, HouseCost: 50, Rent: [6]int{8, 40, 100, 300, 450, 600}},
	{Position: 10, Name: "Cárcel", Type: SpaceJail},
	{Position: 11, Name: "Glorieta de Bilbao", Type: SpaceStreet, Group: GroupPink, Price: 140, HouseCost: 100, Rent: [6]int{10, 50, 150, 450, 625, 750}},
	{Position: 12, Name: "Compañía de Electricidad", Type: SpaceUtility, Group: GroupUtility, Price: 150},
	{Position: 13, Name: "Calle Alberto Aguilera", Type: SpaceStreet, Group: GroupPink, Price: 140, HouseCost: 100, Rent: [6]int{10, 50, 150, 450, 625, 750}},
	{Position: 14, Name: "Calle Fuencarral", Type: SpaceStreet, Group: GroupPink, Price: 160, HouseCost: 100, Rent: [6]int{12, 60, 180, 500, 700, 900}},
	{Position: 15, Name: "Estación de las Delicias", Type: SpaceRailroad, Group: GroupRailroad, Price: 200},
	{Position: 16, Name: "Avenida Felipe II", Type: SpaceStreet, Group: GroupOrange, Price: 180, HouseCost: 100, Rent: [6]int{14, 70, 200, 550, 750, 950}},
	{Position: 17, Name: "Caja de Comunidad", Type: SpaceChest},
	{Position: 18, Name: "Calle Velázquez", Type: SpaceStreet, Group: GroupOrange, Price: 180, HouseCost: 100, Rent: [6]int{14, 70, 200, 550, 750, 950}},
	{Position: 19, Name: "Calle Serrano", Type: SpaceStreet, Group: GroupOrange, Price: 200, HouseCost: 100, Rent: [6]int{16, 80, 220, 600, 800, 1000}},
	{Position: 20, Name: "Parking Gratuito", Type: SpaceFreeParking},
	{Position: 21, Name: "Avenida de América", Type: SpaceStreet, Group: GroupRed, Price: 220, HouseCost: 150, Rent: [6]int{18, 90, 250, 700, 875, 1050}},
	{Position: 22, Name: "Suerte", Type: SpaceChance},
	{Position: 23, Name: "Calle María de Molina", Type: SpaceStreet, Group: GroupRed, Price: 220, HouseCost: 150, Rent: [6]int{18, 90, 250, 700, 875, 1050}},
	{Position: 24, Name: "Calle Cea Bermúdez", Type: SpaceStreet, Group: GroupRed, Price: 240, HouseCost: 150, Rent: [6]int{20, 100, 300, 750, 925, 1100}},
	{Position: 25, Name: "Estación del Mediodía", Type: SpaceRailroad, Group: GroupRailroad, Price: 200},
	{Position: 26, Name: "Avenida de los Reyes Católicos", Type: SpaceStreet, Group: GroupYellow, Price: 260, HouseCost: 150, Rent: [6]int{22, 110, 330, 800, 975, 1150}},
	{Position: 27, Name: "Calle Bailén", Type: SpaceStreet, Group: GroupYellow, Price: 260, HouseCost: 150, Rent: [6]int{22, 110, 330, 800, 975, 1150}},
	{Position: 28, Name: "Compañía de Aguas", Type: SpaceUtility, Group: GroupUtility, Price: 150},
	{Position: 29, Name: "Plaza de España", Type: SpaceStreet, Group: GroupYellow, Price: 280, HouseCost: 150, Rent: [6]int{24, 120, 360, 850, 1025, 1200}},
	{Position: 30, Name: "Ve a la Cárcel", Type: SpaceGoToJail},
	{Position: 31, Name: "Puerta del Sol", Type: SpaceStreet, Group: GroupGreen, Price: 300, HouseCost: 200, Rent: [6]int{26, 130, 390, 900, 1100, 1275}},
	{Position: 32, Name: "Calle Alcalá", Type: SpaceStreet, Group: GroupGreen, Price: 300, HouseCost: 200, Rent: [6]int{26, 130, 390, 900, 1100, 1275}},
	{Position: 33, Name: "Caja de Comunidad", Type: SpaceChest},
	{Position: 34, Name: "Gran Vía", Type: SpaceStreet, Group: GroupGreen, Price: 320, HouseCost: 200, Rent: [6]int{28, 150, 450, 1000, 1200, 1400}},
	{Position: 35, Name: "Estación del Norte", Type: SpaceRailroad, Group: GroupRailroad, Price: 200},
	{Position: 36, Name: "Suerte", Type: SpaceChance},
	{Position: 37, Name: "Paseo de la Castellana", Type: SpaceStreet, Group: GroupNavy, Price: 350, HouseCost: 200, Rent: [6]int{35, 175, 500, 1100, 1300, 1500}},
	{Position: 38, Name: "Impuesto de Lujo", Type: SpaceTax, Tax: LuxuryTax},
	{Position: 39, Name: "Paseo del Prado", Type: SpaceStreet, Group: GroupNavy, Price: 400, HouseCost: 200, Rent: [6]int{50, 200, 600, 1400, 1700, 2000}},
}

// At returns the space at a position (mod board size, negatives rejected).
func At(position int) Space {
	return Catalog[((position%Size)+Size)%Size]
}

// GroupMembers returns the positions belonging to a group, in board order.
func GroupMembers(group GroupID) []int {
	var members []int
	for _, s := range Catalog {
		if s.Group == group && s.Group != "" {
			members = append(members, s.Position)
		}
	}
	return members
}

// GroupSize returns how many spaces form a group.
func GroupSize(group GroupID) int {
	return len(GroupMembers(group))
}

// PurchasablePositions returns every ownable position, in board order.
func PurchasablePositions() []int {
	var positions []int
	for _, s := range Catalog {
		if s.Purchasable() {
			positions = append(positions, s.Position)
		}
	}
	return positions
}
