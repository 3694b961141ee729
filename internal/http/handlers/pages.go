package handlers

import (
	"embed"
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/gitlab-telegram-bot/internal/domain"
	"github.com/tbourn/gitlab-telegram-bot/internal/http/middleware"
	"github.com/tbourn/gitlab-telegram-bot/internal/services"
	"github.com/tbourn/gitlab-telegram-bot/internal/sysutil"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates parses the embedded page templates. The router installs the
// result with gin.Engine.SetHTMLTemplate.
func Templates() *template.Template {
	return template.Must(template.ParseFS(templateFS, "templates/*.html"))
}

type pageData struct {
	Title        string
	BotUsername  string
	Repositories []domain.Repository
	Name         string
	URL          string
	Error        string
	Result       *services.RegisterResult
}

func (h *Handlers) page(title string) pageData {
	return pageData{Title: title, BotUsername: h.opts.BotUsername}
}

// Index lists the registered repositories.
func (h *Handlers) Index(c *gin.Context) {
	repos, err := h.reg.List(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	d := h.page("GitLab notifications for Telegram")
	d.Repositories = repos
	c.HTML(http.StatusOK, "index.html", d)
}

// RegisterForm renders the empty registration form.
func (h *Handlers) RegisterForm(c *gin.Context) {
	c.HTML(http.StatusOK, "register.html", h.page("Register a repository"))
}

// RegisterSubmit validates the form and renders the outcome. Validation
// failures re-render the form with 422; a duplicate shows the existing
// token.
func (h *Handlers) RegisterSubmit(c *gin.Context) {
	name := c.PostForm("name")
	url := c.PostForm("url")

	res, err := h.reg.Register(c.Request.Context(), name, url, BaseURL(c, h.opts.PublicBaseURL))
	if err != nil {
		_ = c.Error(err)
		d := h.page("Register a repository")
		d.Name, d.URL = name, url
		d.Error = "Something went wrong while checking the repository. Please try again later."
		c.HTML(http.StatusInternalServerError, "register.html", d)
		return
	}

	lg := middleware.LoggerFrom(c)
	switch {
	case res.Success:
		lg.Info().Str("name", strings.TrimSpace(name)).Msg("repository registered")
		d := h.page("Repository registered")
		d.Result = &res
		c.HTML(http.StatusOK, "result.html", d)
	case res.Exists:
		d := h.page("Already registered")
		d.Result = &res
		c.HTML(http.StatusOK, "result.html", d)
	default:
		lg.Info().Err(res.Reason).Msg("registration rejected")
		d := h.page("Register a repository")
		d.Name, d.URL = name, url
		if res.Reason != nil {
			d.Error = res.Reason.Error()
		}
		c.HTML(http.StatusUnprocessableEntity, "register.html", d)
	}
}

// BaseURL returns the externally visible origin: configured when set,
// otherwise scheme and host of the request as seen through proxies.
func BaseURL(c *gin.Context, configured string) string {
	if configured != "" {
		return strings.TrimRight(configured, "/")
	}
	scheme := "http"
	if middleware.IsHTTPS(c.Request) {
		scheme = "https"
	}
	fwd, _, _ := strings.Cut(c.GetHeader("X-Forwarded-Host"), ",")
	host := sysutil.FirstNonEmpty(fwd, c.Request.Host)
	return scheme + "://" + strings.TrimSpace(host)
}
