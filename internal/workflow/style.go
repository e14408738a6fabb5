package workflow

// Style is a set of CSS colours used to render a badge.
type Style struct {
	Background string `json:"background"`
	Text       string `json:"text"`
	Border     string `json:"border"`
}

// DefaultStyle is returned for any status or service without a dedicated
// style.
var DefaultStyle = Style{Background: "#f3f4f6", Text: "#374151", Border: "#d1d5db"}

var statusStyles = map[Status]Style{
	StatusOpen:       {Background: "#dbeafe", Text: "#1e40af", Border: "#93c5fd"},
	StatusInProgress: {Background: "#fef3c7", Text: "#92400e", Border: "#fcd34d"},
	StatusResolved:   {Background: "#d1fae5", Text: "#065f46", Border: "#6ee7b7"},
	StatusClosed:     {Background: "#e5e7eb", Text: "#1f2937", Border: "#9ca3af"},
}

// keyed by Fold(service name)
var serviceStyles = map[string]Style{
	"informatique": {Background: "#ede9fe", Text: "#5b21b6", Border: "#c4b5fd"},
	"economat":     {Background: "#fce7f3", Text: "#9d174d", Border: "#f9a8d4"},
	"technique":    {Background: "#ffedd5", Text: "#9a3412", Border: "#fdba74"},
	"entretien":    {Background: "#ecfccb", Text: "#3f6212", Border: "#bef264"},
}

// StatusColors returns the badge style for a status name.
func StatusColors(status string) Style {
	s, err := ParseStatus(status)
	if err != nil {
		return DefaultStyle
	}
	if st, ok := statusStyles[s]; ok {
		return st
	}
	return DefaultStyle
}

// ServiceColor returns the badge style for a service intervenant name.
func ServiceColor(name string) Style {
	if st, ok := serviceStyles[Fold(name)]; ok {
		return st
	}
	return DefaultStyle
}
