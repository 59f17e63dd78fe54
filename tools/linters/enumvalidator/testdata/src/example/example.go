package example

type DiscoveryMethod string

const (
	DiscoveryMethodCurated         DiscoveryMethod = "curated"
	DiscoveryMethodColdStart       DiscoveryMethod = "cold_start"
	DiscoveryMethodSignalReference DiscoveryMethod = "signal_reference"
)

type SourceRole string

const (
	SourceRoleTension  SourceRole = "tension"
	SourceRoleResponse SourceRole = "response"
)

type Source struct {
	DiscoveryMethod DiscoveryMethod
}

type SourceScheduleEntry struct {
	Role SourceRole
}

func bad() {
	s := &Source{}
	s.DiscoveryMethod = "gap_analysis" // want "enum field DiscoveryMethod assigned string literal"

	e := &SourceScheduleEntry{}
	e.Role = "mixed" // want "enum field Role assigned string literal"
}

func good() {
	s := &Source{}
	s.DiscoveryMethod = DiscoveryMethodCurated // OK: using constant

	e := &SourceScheduleEntry{}
	e.Role = SourceRoleTension // OK: using constant
}

func alsoGood() {
	// OK: Variable, not literal
	method := DiscoveryMethodColdStart
	s := &Source{DiscoveryMethod: method}
	_ = s
}
