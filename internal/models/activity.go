package models

import "time"

// Activity sources
const (
	SourceUser   = "user"   // user generated (comments, shares)
	SourceSystem = "system" // system generated (object lifecycle events)
)

// Activity actions
const (
	ActionCreated   = "created"
	ActionAdded     = "added"
	ActionUpdated   = "updated"
	ActionDeleted   = "deleted"
	ActionCommented = "commented"
	ActionShared    = "shared"
	ActionUploaded  = "uploaded"
)

// Activity privacy
const (
	PrivacyPublic  = "public"
	PrivacyPrivate = "private"
)

// Activity represents a single feed record: who did what, to what object,
// when (PostgreSQL). A reply is an activity whose ParentID points at a
// top-level activity; threads are flat, replies never have replies.
type Activity struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	CreatedUserID uint      `json:"created_user_id" gorm:"index"`
	AboutType     string    `json:"about_type,omitempty" gorm:"size:50;index:idx_activities_about"` // post, user, etc.
	AboutID       string    `json:"about_id,omitempty" gorm:"size:64;index:idx_activities_about"`   // Mongo ObjectID hex or numeric ID as string
	Text          string    `json:"text,omitempty"`
	Source        string    `json:"source" gorm:"size:20;index"`
	Action        string    `json:"action" gorm:"size:20;index"`
	Privacy       string    `json:"privacy" gorm:"size:20;default:private"`
	ParentID      *uint     `json:"parent_id,omitempty" gorm:"index"`
	GroupID       *uint     `json:"group_id,omitempty"` // bulk events rendered as one entry
	ReplyCount    int       `json:"reply_count" gorm:"default:0"`
	CreatedAt     time.Time `json:"created_at" gorm:"index"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// IsReply reports whether the activity is a reply to another activity.
func (a *Activity) IsReply() bool {
	return a.ParentID != nil
}

// IsComment reports whether the activity is a user comment.
func (a *Activity) IsComment() bool {
	return a.Action == ActionCommented
}

// IsPublic reports whether the activity is visible to everyone.
func (a *Activity) IsPublic() bool {
	return a.Privacy == PrivacyPublic
}

// HasAbout reports whether the activity references an about object.
func (a *Activity) HasAbout() bool {
	return a.AboutType != "" && a.AboutID != ""
}

// ActivityTarget links an activity to an object whose feed should include it.
// An activity is always targeted at its creator and its about object; callers
// may add more (e.g. users sharing the about object).
type ActivityTarget struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	ActivityID uint   `json:"activity_id" gorm:"index"`
	TargetType string `json:"target_type" gorm:"size:50;index:idx_activity_targets_obj"`
	TargetID   string `json:"target_id" gorm:"size:64;index:idx_activity_targets_obj"`
}

// CreateActivityRequest defines the request body for creating a new activity
type CreateActivityRequest struct {
	Text      string `json:"text" validate:"omitempty,max=500"`
	AboutType string `json:"about_type" validate:"omitempty,max=50"`
	AboutID   string `json:"about_id" validate:"omitempty,max=64"`
	Action    string `json:"action" validate:"required,oneof=created added updated deleted commented shared uploaded"`
	Privacy   string `json:"privacy" validate:"omitempty,oneof=public private"`
}

// UpdateActivityRequest defines the request body for editing activity text
type UpdateActivityRequest struct {
	Text string `json:"text" validate:"required,min=1,max=500"`
}

// CommentForm is the comment submission form post. Field names match the
// HTML form emitted by the comment partial.
type CommentForm struct {
	Next     string `form:"next" json:"next"`
	ParentID uint   `form:"pid" json:"pid" validate:"required"`
	Action   string `form:"action" json:"action" validate:"omitempty,oneof=commented"`
	Text     string `form:"text" json:"text" validate:"required,max=500"`
}
