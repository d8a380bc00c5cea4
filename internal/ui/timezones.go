package ui

// SupportedTimezones are offered in the user settings page.
var SupportedTimezones = []string{
	"US/Pacific",
	"US/Eastern",
	"US/Central",
	"US/Mountain",
	"US/Alaska",
	"US/Hawaii",
	"Asia/Kolkata",
	"Asia/Shanghai",
	"Asia/Taipei",
	"Europe/London",
	"UTC",
}
