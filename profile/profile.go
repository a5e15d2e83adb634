// Package profile supplies the per-user context injected into the first
// message of a conversation: who the user is, their timezone and the current
// local date. Profiles are plain data plus a text template so deployments can
// shape the context wording without code changes.
package profile

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"
)

// Profile describes one user the assistant schedules for.
type Profile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Timezone string `json:"timezone"`

	// Template overrides the default context wording. It may reference
	// .Name, .Email, .Timezone, .Today, .Now and .Weekday.
	Template string `json:"template,omitempty"`
}

// NotFoundError reports an unknown profile id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("profile %s not found", e.ID) }

// Provider resolves profiles by id.
type Provider interface {
	Get(ctx context.Context, id string) (*Profile, error)
}

// templateData is the namespace available to context templates.
type templateData struct {
	Name     string
	Email    string
	Timezone string
	Today    string
	Now      string
	Weekday  string
}

const defaultTemplate = `You are scheduling on behalf of {{.Name}}.
The user's timezone is {{.Timezone}}. Today is {{.Weekday}}, {{.Today}}; the local time is {{.Now}}.
Interpret relative dates like "tomorrow" or "next Tuesday" against that local date.`

// Render produces the context text for the given instant, evaluated in the
// profile's zone. An unset template falls back to the default wording.
func (p *Profile) Render(now time.Time) (string, error) {
	zoneName := p.Timezone
	if zoneName == "" {
		zoneName = "UTC"
	}
	loc, err := time.LoadLocation(zoneName)
	if err != nil {
		return "", fmt.Errorf("profile %s has unknown timezone %q: %w", p.ID, zoneName, err)
	}
	local := now.In(loc)

	text := p.Template
	if text == "" {
		text = defaultTemplate
	}

	tmpl, err := template.New("profile").Parse(text)
	if err != nil {
		return "", fmt.Errorf("profile %s has an invalid template: %w", p.ID, err)
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, templateData{
		Name:     p.Name,
		Email:    p.Email,
		Timezone: zoneName,
		Today:    local.Format("January 2, 2006"),
		Now:      local.Format("15:04"),
		Weekday:  local.Weekday().String(),
	})
	if err != nil {
		return "", fmt.Errorf("profile %s template failed: %w", p.ID, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
