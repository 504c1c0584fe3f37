package portal

import (
	"bytes"
	"net/http"

	"github.com/eb3nezer/mqtt-fan/internal/settings"
)

// Form field names outside the settings record.
const (
	fieldToken      = "form_token"
	fieldSSID       = "ssid"
	fieldPassphrase = "passphrase"
)

type fieldView struct {
	Key   string
	Label string
	Type  string
	Value string
	Limit int
}

type formView struct {
	AccessPoint   string
	Token         string
	Network       Credentials
	MaxSSID       int
	MaxPassphrase int
	Fields        []fieldView
}

type doneView struct {
	AccessPoint string
	Message     string
}

func (p *Portal) handleForm(s *session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view := formView{
			AccessPoint:   s.accessPoint,
			Token:         s.token,
			MaxSSID:       MaxSSIDLength,
			MaxPassphrase: MaxPassphraseLength,
			Fields:        make([]fieldView, 0, len(settings.Layout)),
		}
		for _, entry := range settings.Layout {
			typ := "text"
			if entry.Key == settings.KeyPassword {
				typ = "password"
			}
			view.Fields = append(view.Fields, fieldView{
				Key:   entry.Key,
				Label: entry.Label,
				Type:  typ,
				Value: s.current.Get(entry.Key),
				Limit: entry.Limit,
			})
		}
		p.render(w, "form.html", view)
	}
}

func (p *Portal) handleSave(s *session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		if r.PostForm.Get(fieldToken) != s.token {
			p.logger.Warn("portal submission rejected", "error", ErrInvalidFormToken)
			http.Error(w, ErrInvalidFormToken.Error(), http.StatusBadRequest)
			return
		}

		rec := s.current
		for _, entry := range settings.Layout {
			values, ok := r.PostForm[entry.Key]
			if !ok {
				continue
			}
			truncated, err := rec.Set(entry.Key, firstOrEmpty(values))
			if err != nil {
				p.logger.Warn("portal field ignored", "key", entry.Key, "error", err)
				continue
			}
			if truncated {
				p.logger.Warn("portal field truncated", "key", entry.Key, "limit", entry.Limit)
			}
		}

		ssid, _ := settings.NewField(r.PostForm.Get(fieldSSID), MaxSSIDLength)
		pass, _ := settings.NewField(r.PostForm.Get(fieldPassphrase), MaxPassphraseLength)

		p.render(w, "done.html", doneView{
			AccessPoint: s.accessPoint,
			Message:     "Settings saved. The device is connecting to the network.",
		})
		s.complete(Result{
			Outcome: Completed,
			Record:  rec,
			Network: Credentials{SSID: ssid.String(), Passphrase: pass.String()},
		})
	}
}

func (p *Portal) handleExit(s *session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p.render(w, "done.html", doneView{
			AccessPoint: s.accessPoint,
			Message:     "Configuration portal closed. Nothing was changed.",
		})
		s.complete(Result{Outcome: Aborted})
	}
}

// render executes a page into a buffer so a template error still yields a clean 500.
func (p *Portal) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		p.logger.Error("portal template failed", "template", name, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes()) //nolint:errcheck // Client may have gone away
}

func firstOrEmpty(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
