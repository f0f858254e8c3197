package classify

const (
	// DefaultCeiling caps keyword confidence so heuristic results never look
	// authoritative.
	DefaultCeiling = 0.8
	// DefaultSubjectBodyWeight and DefaultAttachmentWeight keep attachment
	// hits at half the weight of subject and body hits.
	DefaultSubjectBodyWeight = 2
	DefaultAttachmentWeight  = 1
)

// Group is a set of synonymous keywords. A group counts once no matter how
// many of its keywords occur.
type Group struct {
	Name     string   `mapstructure:"name"`
	Keywords []string `mapstructure:"keywords"`
}

// Config drives the keyword classifier. It is copied at construction time.
type Config struct {
	Ceiling           float64              `mapstructure:"ceiling"`
	SubjectBodyWeight int                  `mapstructure:"subject-body-weight"`
	AttachmentWeight  int                  `mapstructure:"attachment-weight"`
	Groups            map[Category][]Group `mapstructure:"groups"`
}

// DefaultConfig returns the built-in bilingual keyword set.
func DefaultConfig() Config {
	return Config{
		Ceiling:           DefaultCeiling,
		SubjectBodyWeight: DefaultSubjectBodyWeight,
		AttachmentWeight:  DefaultAttachmentWeight,
		Groups: map[Category][]Group{
			JobAlert: {
				{Name: "alert", Keywords: []string{"job alert", "jobalert", "job-alert", "stellenangebot", "stellenangebote", "jobangebote"}},
				{Name: "new-jobs", Keywords: []string{"new jobs", "neue jobs", "neue stellen", "new positions"}},
				{Name: "hiring", Keywords: []string{"now hiring", "we are hiring", "we're hiring", "wir suchen", "wir stellen ein"}},
				{Name: "opening", Keywords: []string{"position available", "open position", "offene stelle", "offene stellen", "vakanz"}},
				{Name: "call-to-apply", Keywords: []string{"apply now", "jetzt bewerben", "bewerben sie sich"}},
				{Name: "recommendation", Keywords: []string{"jobs for you", "recommended jobs", "jobempfehlung", "jobempfehlungen", "passende jobs"}},
			},
			Rejection: {
				{Name: "unfortunately", Keywords: []string{"leider", "unfortunately"}},
				{Name: "rejection", Keywords: []string{"absage", "rejection", "rejected", "ablehnung"}},
				{Name: "not-selected", Keywords: []string{"nicht berücksichtigen", "nicht weiter berücksichtigen", "not selected", "not moving forward", "nicht in die engere wahl"}},
				{Name: "other-candidates", Keywords: []string{"andere kandidaten", "anderen kandidaten", "andere bewerber", "anderen bewerber", "other candidates"}},
				{Name: "regret", Keywords: []string{"bedauern", "bedauerlicherweise", "regret"}},
				{Name: "inform", Keywords: []string{"müssen wir ihnen mitteilen", "mitteilen zu müssen", "we must inform you", "we have to inform you"}},
			},
			Interview: {
				{Name: "interview", Keywords: []string{"vorstellungsgespräch", "interview", "bewerbungsgespräch"}},
				{Name: "invitation", Keywords: []string{"einladung", "invitation", "invite you", "laden sie"}},
				{Name: "schedule", Keywords: []string{"termin", "terminvorschlag", "schedule", "time slot"}},
				{Name: "call", Keywords: []string{"telefoninterview", "phone screen", "video call", "videocall", "teams-meeting", "zoom"}},
				{Name: "availability", Keywords: []string{"verfügbarkeit", "availability", "when are you available"}},
			},
			Offer: {
				{Name: "offer", Keywords: []string{"zusage", "job offer", "offer letter", "angebot", "pleased to offer"}},
				{Name: "contract", Keywords: []string{"arbeitsvertrag", "vertrag", "contract"}},
				{Name: "congratulations", Keywords: []string{"glückwunsch", "congratulations"}},
				{Name: "welcome", Keywords: []string{"willkommen im team", "welcome aboard", "welcome to the team"}},
				{Name: "hired", Keywords: []string{"einstellung", "hired", "starting date", "eintrittsdatum"}},
			},
		},
	}
}

func (c Config) withDefaults() Config {
	if c.Ceiling <= 0 || c.Ceiling > 1 {
		c.Ceiling = DefaultCeiling
	}
	if c.SubjectBodyWeight <= 0 {
		c.SubjectBodyWeight = DefaultSubjectBodyWeight
	}
	if c.AttachmentWeight <= 0 {
		c.AttachmentWeight = DefaultAttachmentWeight
	}
	if c.AttachmentWeight > c.SubjectBodyWeight {
		c.AttachmentWeight = c.SubjectBodyWeight
	}
	if len(c.Groups) == 0 {
		c.Groups = DefaultConfig().Groups
	}
	return c
}
