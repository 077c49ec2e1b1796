// Package routes defines HTTP route constants for the application.
package routes

const (
	RobotsPath = "/robots.txt"
	RootPath   = "/"

	// SSE
	EventsPath = "/events"

	// Sites and theme
	APISites     = "/api/sites"
	APISite      = "/api/sites/{id}"
	APISiteTheme = "/api/sites/{id}/theme.css"
	APIPalettes  = "/api/palettes"
	APITemplates = "/api/templates"

	// Editing sessions
	APIElementSession = "/api/elements/{id}/session"
	APISession        = "/api/sessions/{id}"
	APISessionField   = "/api/sessions/{id}/fields/{field}"
	APISessionUpload  = "/api/sessions/{id}/upload/{field}"
	APISessionChanges = "/api/sessions/{id}/changes"
	APISessionCommit  = "/api/sessions/{id}/commit"
	APISessionDiscard = "/api/sessions/{id}/discard"
)
