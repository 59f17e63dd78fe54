package aggregate

// ScoutStats is the run's accumulated metrics, reduced purely from the
// event log: replaying a run's full event log into a fresh PipelineState
// reproduces the same ScoutStats.
type ScoutStats struct {
	URLsScraped   int
	URLsUnchanged int
	URLsFailed    int

	SignalsExtracted    int
	SignalsStored       int
	SignalsDeduplicated int

	// ByType is indexed by domain.NodeType.TypeIndex(): Gathering, Aid, Need,
	// Notice, Tension.
	ByType [5]int

	SourcesDiscovered int

	ExpansionQueriesCollected     int
	ExpansionSocialTopicsQueued int

	SocialMediaPosts int

	Fresh7d  int
	Fresh30d int
	Fresh90d int
}
