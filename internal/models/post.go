package models

import (
	"fmt"
	"html/template"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Post is a host-application object activities can be about, stored in
// MongoDB. It implements the custom rendering capability for "created"
// activities and carries a denormalized share counter maintained by
// "shared" activities.
type Post struct {
	ID          primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	UserID      uint               `json:"user_id" bson:"user_id"`
	Content     string             `json:"content" bson:"content"`
	SharesCount int                `json:"shares_count" bson:"shares_count"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at" bson:"updated_at"`
}

// DisplayKind returns the kind label used in rendered activity text.
func (p *Post) DisplayKind() string {
	return "post"
}

// DisplayLabel returns a short excerpt of the post content.
func (p *Post) DisplayLabel() string {
	const max = 40
	if len(p.Content) > max {
		return p.Content[:max] + "…"
	}
	return p.Content
}

// AbsoluteURL returns the canonical URL for the post.
func (p *Post) AbsoluteURL() string {
	return fmt.Sprintf("/posts/%s", p.ID.Hex())
}

// ActivityCreatedHTML renders a custom fragment for "created" activities
// about this post, instead of the generic fallback. The creator viewing
// their own post sees "you".
func (p *Post) ActivityCreatedHTML(a *Activity, creator, viewer *User) template.HTML {
	who := "someone"
	if creator != nil {
		label := creator.DisplayLabel()
		if viewer != nil && viewer.ID == creator.ID {
			label = "you"
		}
		who = fmt.Sprintf(`<a href="%s">%s</a>`,
			template.HTMLEscapeString(creator.AbsoluteURL()),
			template.HTMLEscapeString(label))
	}
	return template.HTML(fmt.Sprintf(
		`%s created the post <a href="%s">%s</a>`,
		who,
		template.HTMLEscapeString(p.AbsoluteURL()),
		template.HTMLEscapeString(p.DisplayLabel()),
	))
}
