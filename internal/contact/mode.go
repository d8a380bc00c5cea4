package contact

// Mode is a row of the contact_mode table.
type Mode struct {
	ID   int
	Name string
}

// DefaultModes mirrors the contact_mode rows created by the schema.
var DefaultModes = []Mode{
	{ID: 1, Name: "email"},
	{ID: 2, Name: "sms"},
	{ID: 3, Name: "call"},
	{ID: 4, Name: "slack"},
	{ID: 5, Name: "teams_messenger"},
}

// SeedModeIDs are the modes every user imported by the synology module
// receives an empty contact row for: email, sms and call.
var SeedModeIDs = []int{1, 2, 3}

var displayNames = map[string]string{
	"email":           "Email",
	"sms":             "SMS",
	"call":            "Phone Call",
	"slack":           "Slack",
	"teams_messenger": "Teams Messenger",
}

// DisplayName returns the human readable label for a mode, or the mode name
// itself when no label is known.
func DisplayName(mode string) string {
	if name, ok := displayNames[mode]; ok {
		return name
	}
	return mode
}
