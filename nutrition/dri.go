package nutrition

// AgeBand is one of the eight Dietary Reference Intake life-stage groups.
type AgeBand int

const (
	AgeBand1To3 AgeBand = iota
	AgeBand4To8
	AgeBand9To13
	AgeBand14To18
	AgeBand19To30
	AgeBand31To50
	AgeBand51To70
	AgeBand71Plus
)

var ageBandNames = [...]string{"1-3", "4-8", "9-13", "14-18", "19-30", "31-50", "51-70", "71+"}

func (b AgeBand) String() string {
	if b < AgeBand1To3 || b > AgeBand71Plus {
		return "unknown"
	}
	return ageBandNames[b]
}

// ageBandUpperBounds holds the inclusive upper age of every band but the last.
var ageBandUpperBounds = [...]int{3, 8, 13, 18, 30, 50, 70}

// AgeBandFor maps any age to exactly one band. Ages at or below 3 (including
// zero and negatives) land in 1-3; anything above 70 lands in 71+.
func AgeBandFor(age int) AgeBand {
	for i, upper := range ageBandUpperBounds {
		if age <= upper {
			return AgeBand(i)
		}
	}
	return AgeBand71Plus
}

// intake is one row of a DRI table.
type intake struct {
	male, female float64
}

// driTable is indexed by AgeBand, so a lookup can never miss.
type driTable [8]intake

func (t *driTable) lookup(age int, male bool) float64 {
	row := t[AgeBandFor(age)]
	if male {
		return row.male
	}
	return row.female
}

// Protein RDA, g per kg body weight per day.
var driProtein = driTable{
	{1.05, 1.05}, {0.95, 0.95}, {0.95, 0.95}, {0.85, 0.85},
	{0.8, 0.8}, {0.8, 0.8}, {0.8, 0.8}, {0.8, 0.8},
}

// Calcium RDA, mg/day.
var driCalcium = driTable{
	{700, 700}, {1000, 1000}, {1300, 1300}, {1300, 1300},
	{1000, 1000}, {1000, 1000}, {1000, 1200}, {1200, 1200},
}

// Iron RDA, mg/day.
var driIron = driTable{
	{7, 7}, {10, 10}, {8, 8}, {11, 15},
	{8, 18}, {8, 18}, {8, 8}, {8, 8},
}

// Vitamin C RDA, mg/day.
var driVitaminC = driTable{
	{15, 15}, {25, 25}, {45, 45}, {75, 65},
	{90, 75}, {90, 75}, {90, 75}, {90, 75},
}

// Fiber adequate intake, g/day.
var driFiber = driTable{
	{19, 19}, {25, 25}, {31, 26}, {38, 26},
	{38, 25}, {38, 25}, {30, 21}, {30, 21},
}
