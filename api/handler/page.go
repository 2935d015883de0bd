package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/favgrab/logging"
	"github.com/use-agent/favgrab/models"
	"github.com/use-agent/favgrab/ui"
)

// PageOptions configures the finder page.
type PageOptions struct {
	Mode     string // default lookup mode, "server" or "client"
	IconSize int
}

// Page returns a handler for GET /.
//
// Without a url query it renders the idle page. With ?url=... it runs the
// lookup on the server and renders the outcome, so the page works with
// scripting disabled. ?mode= overrides the configured mode.
func Page(res Resolver, opts PageOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		m := ui.NewMachine(c.DefaultQuery("mode", opts.Mode), opts.IconSize)

		input := strings.TrimSpace(c.Query("url"))
		if input != "" {
			seq := m.Submit(input)
			if m.View().Mode == ui.ModeClient {
				m.ResolveClient(seq)
			} else {
				lookup, err := res.Resolve(c.Request.Context(), &models.IconRequest{URL: input})
				if err != nil {
					logging.Ctx(c.Request.Context()).Info("page lookup failed", "url", input, "error", err)
					m.Fail(seq, ui.ErrorMessage)
				} else {
					m.Resolve(seq, lookup)
				}
			}
		}

		c.HTML(http.StatusOK, "index.html", m.View())
	}
}
