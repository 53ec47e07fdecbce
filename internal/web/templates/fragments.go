// Package templates renders the HTML fragments returned to HTMX callers.
package templates

import (
	"context"
	"fmt"
	"io"

	"github.com/JonMunkholm/stockrecon/internal/core"
	"github.com/a-h/templ"
)

// ErrorAlert renders a dismissible error box with the support code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<div class="alert alert-error" role="alert" data-code="%s"><p class="alert-message">%s</p>`,
			templ.EscapeString(code), templ.EscapeString(message))
		if err != nil {
			return err
		}
		if action != "" {
			if _, err := fmt.Fprintf(w, `<p class="alert-action">%s</p>`, templ.EscapeString(action)); err != nil {
				return err
			}
		}
		_, err = fmt.Fprintf(w, `<p class="alert-code">Code: %s</p></div>`, templ.EscapeString(code))
		return err
	})
}

// ApplySummary renders "Created N, updated M, failed K" with any parse
// warnings listed underneath.
func ApplySummary(out core.ApplyOutcome) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		class := "alert alert-success"
		if out.ErrorCount > 0 {
			class = "alert alert-warning"
		}
		_, err := fmt.Fprintf(w,
			`<div class="%s" role="status"><p class="apply-summary">Created %d, updated %d, failed %d</p>`,
			class, out.CreatedCount, out.UpdatedCount, out.ErrorCount)
		if err != nil {
			return err
		}

		if len(out.Warnings) > 0 {
			if _, err := io.WriteString(w, `<ul class="apply-warnings">`); err != nil {
				return err
			}
			for _, warn := range out.Warnings {
				_, err := fmt.Fprintf(w, `<li>Line %d, %s: %s</li>`,
					warn.Line, templ.EscapeString(warn.Column), templ.EscapeString(warn.Message))
				if err != nil {
					return err
				}
			}
			if _, err := io.WriteString(w, `</ul>`); err != nil {
				return err
			}
		}

		_, err = io.WriteString(w, `</div>`)
		return err
	})
}

// SessionSummary renders the counts of a staged import.
func SessionSummary(view core.SessionView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<div class="import-summary" data-session-id="%s"><p>%s: %d matched, %d new, %d selected</p></div>`,
			view.ID, templ.EscapeString(view.FileName), len(view.Matched), len(view.Unmatched), view.SelectedCount)
		return err
	})
}
