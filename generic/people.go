package generic

import (
	"fmt"
	"strings"
)

// =============================================================================
// PEOPLE & COMPANIES - Small fixed pools drawn through the Sampler
// =============================================================================

var firstNames = []string{
	"Olivia", "Liam", "Emma", "Noah", "Ava", "Elijah", "Sophia", "James", "Mia", "Lucas",
	"Amelia", "Mateo", "Harper", "Ethan", "Isabella", "Kai", "Aria", "Leo", "Zoe", "Omar",
	"Priya", "Hiro", "Fatima", "Diego", "Chloe", "Arjun", "Nora", "Wei", "Grace", "Samuel",
}

var lastNames = []string{
	"Smith", "Johnson", "Garcia", "Brown", "Nguyen", "Martinez", "Patel", "Kim", "Lopez", "Wilson",
	"Anderson", "Thomas", "Taylor", "Moore", "Jackson", "Lee", "Perez", "Harris", "Clark", "Lewis",
	"Walker", "Hall", "Young", "Allen", "Wright", "Scott", "Green", "Baker", "Adams", "Nelson",
}

var emailDomains = []string{"gmail.com", "yahoo.com", "outlook.com", "icloud.com", "proton.me"}

var companyHeads = []string{
	"Blue", "Summit", "North", "Bright", "Iron", "Cedar", "Apex", "Harbor", "Nova", "Silver",
	"Pioneer", "Vertex", "Maple", "Atlas", "Quantum", "Red", "Golden", "Evergreen",
}

var companyTails = []string{
	"Labs", "Systems", "Works", "Analytics", "Partners", "Logistics", "Health", "Digital",
	"Foods", "Studio", "Networks", "Solutions", "Group", "Dynamics",
}

// Person is a generated individual.
type Person struct {
	First string
	Last  string
	Email string
}

// Name returns "First Last".
func (p Person) Name() string { return p.First + " " + p.Last }

// NewPerson draws a name with a consumer email address.
func NewPerson(s *Sampler) Person {
	first, last := Choice(s, firstNames), Choice(s, lastNames)
	return Person{
		First: first,
		Last:  last,
		Email: fmt.Sprintf("%s.%s%d@%s", strings.ToLower(first), strings.ToLower(last),
			s.IntBetween(1, 999), Choice(s, emailDomains)),
	}
}

// NewCompany draws a company name and its domain.
func NewCompany(s *Sampler) (name, domain string) {
	head, tail := Choice(s, companyHeads), Choice(s, companyTails)
	name = head + " " + tail
	return name, strings.ToLower(head+tail) + ".com"
}

// WorkEmail builds first.last@domain.
func WorkEmail(p Person, domain string) string {
	return strings.ToLower(p.First) + "." + strings.ToLower(p.Last) + "@" + domain
}

// Digits returns n random decimal digits, e.g. for last4 or order numbers.
func Digits(s *Sampler, n int) string {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.WriteByte(byte('0' + s.IntN(10)))
	}
	return b.String()
}
