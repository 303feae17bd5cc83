// Package render turns activity records into HTML fragments. About objects
// are resolved through a registry of per-kind resolvers so the feed never
// imports domain packages; targets opt into custom rendering by implementing
// the capability interfaces below.
package render

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"regexp"
	"time"

	"github.com/solvect/activityfeed/internal/models"
)

// Target is the minimum the renderer needs from a resolved about object.
type Target interface {
	DisplayKind() string
	DisplayLabel() string
}

// URLTarget is implemented by targets that have a canonical page; their
// mentions in rendered text become hyperlinks.
type URLTarget interface {
	AbsoluteURL() string
}

// CreatedHTMLRenderer is implemented by targets that supply their own
// fragment for "created" activities about them. viewer is nil for anonymous
// viewers.
type CreatedHTMLRenderer interface {
	ActivityCreatedHTML(a *models.Activity, creator, viewer *models.User) template.HTML
}

// ActionHTMLRenderer is implemented by targets that supply their own header
// action phrase.
type ActionHTMLRenderer interface {
	ActivityActionHTML(a *models.Activity) template.HTML
}

// SharedActionLabeler lets a target re-word the "shared" action, e.g.
// "reposted" instead of "shared".
type SharedActionLabeler interface {
	SharedActionLabel() string
}

// Resolver loads a target of one kind by its ID. Return any error for a
// missing object; the renderer degrades to placeholder text.
type Resolver func(ctx context.Context, id string) (Target, error)

// FormRenderer produces the comment form fragment for an activity. The
// default renders the embedded partial; deployments may plug in their own.
type FormRenderer func(parentID uint, next string) template.HTML

// Options configures a Renderer
type Options struct {
	Timezone    *time.Location // display timezone, default UTC
	URLPrefix   string         // prefix for activity URLs, e.g. /api/v1
	TemplateDir string         // optional directory of partial overrides
	CommentForm FormRenderer   // nil selects the built-in form
}

// Renderer renders activities for a viewer. All methods are pure reads.
type Renderer struct {
	resolvers map[string]Resolver
	tmpl      *template.Template
	timezone  *time.Location
	urlPrefix string
	form      FormRenderer
}

// New creates a Renderer with the embedded template partials
func New(opts Options) (*Renderer, error) {
	tmpl, err := parseTemplates(opts.TemplateDir)
	if err != nil {
		return nil, err
	}

	r := &Renderer{
		resolvers: make(map[string]Resolver),
		tmpl:      tmpl,
		timezone:  opts.Timezone,
		urlPrefix: opts.URLPrefix,
		form:      opts.CommentForm,
	}
	if r.timezone == nil {
		r.timezone = time.UTC
	}
	if r.form == nil {
		r.form = r.defaultCommentForm
	}
	return r, nil
}

// Register adds a resolver for one kind of about object
func (r *Renderer) Register(kind string, resolver Resolver) {
	r.resolvers[kind] = resolver
}

// resolveAbout loads the activity's about object. The second return is false
// when the activity has no about reference; a non-nil error means the
// reference exists but the object is gone or unresolvable.
func (r *Renderer) resolveAbout(ctx context.Context, a *models.Activity) (Target, bool, error) {
	if !a.HasAbout() {
		return nil, false, nil
	}
	resolver, ok := r.resolvers[a.AboutType]
	if !ok {
		return nil, true, fmt.Errorf("no resolver registered for kind %q", a.AboutType)
	}
	target, err := resolver(ctx, a.AboutID)
	if err != nil {
		return nil, true, err
	}
	return target, true, nil
}

// ActivityURL returns the canonical URL for an activity
func (r *Renderer) ActivityURL(a *models.Activity) string {
	if a.IsReply() {
		return fmt.Sprintf("%s/activities/%d/replies/%d", r.urlPrefix, *a.ParentID, a.ID)
	}
	return fmt.Sprintf("%s/activities/%d", r.urlPrefix, a.ID)
}

const removedPlaceholder = template.HTML(`<span class="activity-removed">content removed</span>`)

var urlPattern = regexp.MustCompile(`https?://[^\s<]+`)

// linkify escapes free text and wraps bare URLs in anchors
func linkify(s string) template.HTML {
	escaped := template.HTMLEscapeString(s)
	return template.HTML(urlPattern.ReplaceAllString(escaped, `<a href="$0">$0</a>`))
}

func anchor(href, label string) string {
	return fmt.Sprintf(`<a href="%s">%s</a>`,
		template.HTMLEscapeString(href), template.HTMLEscapeString(label))
}

// userHTML renders the user as a link to their profile
func userHTML(u *models.User) template.HTML {
	if u == nil {
		return `<span class="activity-user">someone</span>`
	}
	return template.HTML(anchor(u.AbsoluteURL(), u.DisplayLabel()))
}

// targetHTML renders a resolved target, hyperlinked when it has a URL
func targetHTML(t Target) template.HTML {
	if ut, ok := t.(URLTarget); ok {
		return template.HTML(anchor(ut.AbsoluteURL(), t.DisplayLabel()))
	}
	return template.HTML(template.HTMLEscapeString(t.DisplayLabel()))
}

// HTML renders the activity body. Stored text wins and is escaped with bare
// URLs linkified. Without text, a target implementing CreatedHTMLRenderer
// supplies the fragment for "created" activities; otherwise the default
// "{user} {action} the {kind} {object}" phrase is built. A dangling about
// reference renders the removed placeholder instead of failing.
func (r *Renderer) HTML(ctx context.Context, a *models.Activity, viewer *models.User, users *UserCache) template.HTML {
	if a.Text != "" {
		return linkify(a.Text)
	}

	creator := users.Get(a.CreatedUserID)
	target, hasAbout, err := r.resolveAbout(ctx, a)

	if hasAbout && err != nil {
		return removedPlaceholder
	}

	if target != nil && a.Action == models.ActionCreated {
		if custom, ok := target.(CreatedHTMLRenderer); ok {
			return custom.ActivityCreatedHTML(a, creator, viewer)
		}
	}

	actionPhrase := "on the"
	if a.Action != models.ActionCommented {
		actionPhrase = "the"
	}

	if target == nil {
		return template.HTML(fmt.Sprintf("%s %s something", userHTML(creator), a.Action))
	}

	return template.HTML(fmt.Sprintf("%s %s %s %s %s",
		userHTML(creator), a.Action, actionPhrase,
		template.HTMLEscapeString(target.DisplayKind()), targetHTML(target)))
}

// actions that carry a header phrase
var headerActions = map[string]bool{
	models.ActionAdded:    true,
	models.ActionCreated:  true,
	models.ActionShared:   true,
	models.ActionUploaded: true,
}

// kinds whose name takes "an" rather than "a"
var anWords = map[string]bool{
	"album": true,
	"audio": true,
	"image": true,
}

// ActionHTML renders the short header phrase: "created a post", "shared an
// album". Empty for actions with no header and for activities without an
// about reference. Targets may override via ActionHTMLRenderer; shared
// wording may be replaced via SharedActionLabeler.
func (r *Renderer) ActionHTML(ctx context.Context, a *models.Activity) template.HTML {
	if !headerActions[a.Action] || !a.HasAbout() {
		return ""
	}

	target, _, _ := r.resolveAbout(ctx, a)
	if target != nil {
		if custom, ok := target.(ActionHTMLRenderer); ok {
			return custom.ActivityActionHTML(a)
		}
	}

	kind := a.AboutType
	if target != nil {
		kind = target.DisplayKind()
	}

	article := "a"
	if anWords[kind] {
		article = "an"
	}

	kindRef := template.HTMLEscapeString(kind)
	if ut, ok := target.(URLTarget); ok {
		kindRef = anchor(ut.AbsoluteURL(), kind)
	}

	action := a.Action
	if a.Action == models.ActionShared {
		label := "shared"
		if sl, ok := target.(SharedActionLabeler); ok {
			label = sl.SharedActionLabel()
		}
		action = `<i class="fa fa-retweet"></i> ` + template.HTMLEscapeString(label)
	}

	return template.HTML(fmt.Sprintf("%s %s %s", action, article, kindRef))
}

// Text renders the activity as plain text, for notifications that leave HTML
// behind (emails, logs). Stored text wins.
func (r *Renderer) Text(ctx context.Context, a *models.Activity, users *UserCache) string {
	if a.Text != "" {
		return a.Text
	}

	who := "someone"
	if creator := users.Get(a.CreatedUserID); creator != nil {
		who = creator.DisplayLabel()
	}

	target, hasAbout, err := r.resolveAbout(ctx, a)
	if hasAbout && err != nil {
		return fmt.Sprintf("%s %s removed content", who, a.Action)
	}
	if target == nil {
		return fmt.Sprintf("%s %s something", who, a.Action)
	}

	phrase := "the"
	if a.Action == models.ActionCommented {
		phrase = "on the"
	}
	return fmt.Sprintf("%s %s %s %s %s", who, a.Action, phrase,
		target.DisplayKind(), target.DisplayLabel())
}

// ItemParams are the named parameters for the activity list-item partial
type ItemParams struct {
	Activity      *models.Activity
	Viewer        *models.User   // nil for anonymous; controls the comment form
	BaseURL       string         // surrounding page URL, used as the form redirect
	Timezone      *time.Location // overrides the renderer default
	ShowReference bool           // emit a link to the about object's page
	ShowReplies   bool
	Replies       []models.Activity
	Users         *UserCache
}

type itemView struct {
	Activity      *models.Activity
	CreatorHTML   template.HTML
	ActionHTML    template.HTML
	BodyHTML      template.HTML
	Timestamp     string
	ActivityURL   string
	ShowReference bool
	ReferenceURL  string
	ShowReplies   bool
	Replies       []itemView
	FormHTML      template.HTML
}

func (r *Renderer) buildItemView(ctx context.Context, p ItemParams) itemView {
	tz := p.Timezone
	if tz == nil {
		tz = r.timezone
	}

	a := p.Activity
	view := itemView{
		Activity:    a,
		CreatorHTML: userHTML(p.Users.Get(a.CreatedUserID)),
		ActionHTML:  r.ActionHTML(ctx, a),
		BodyHTML:    r.HTML(ctx, a, p.Viewer, p.Users),
		Timestamp:   a.CreatedAt.In(tz).Format("Jan 2, 2006 15:04 MST"),
		ActivityURL: r.ActivityURL(a),
	}

	if p.ShowReference {
		if target, hasAbout, err := r.resolveAbout(ctx, a); hasAbout && err == nil {
			if ut, ok := target.(URLTarget); ok {
				view.ShowReference = true
				view.ReferenceURL = ut.AbsoluteURL()
			}
		}
	}

	if p.ShowReplies {
		view.ShowReplies = true
		for i := range p.Replies {
			view.Replies = append(view.Replies, r.buildItemView(ctx, ItemParams{
				Activity: &p.Replies[i],
				Viewer:   p.Viewer,
				Timezone: tz,
				Users:    p.Users,
			}))
		}
	}

	if p.Viewer != nil && !a.IsReply() {
		view.FormHTML = r.form(a.ID, p.BaseURL)
	}

	return view
}

// RenderItem writes the activity list-item partial for one activity,
// including its flat reply list and, for authenticated viewers, the comment
// form.
func (r *Renderer) RenderItem(ctx context.Context, w io.Writer, p ItemParams) error {
	return r.tmpl.ExecuteTemplate(w, "activity", r.buildItemView(ctx, p))
}
