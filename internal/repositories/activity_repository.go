package repositories

import (
	"errors"
	"strconv"

	"github.com/solvect/activityfeed/internal/models"
	"gorm.io/gorm"
)

// ErrParentIsReply is returned when a reply targets another reply. Threads
// are flat: a reply's parent must be a top-level activity.
var ErrParentIsReply = errors.New("parent activity is itself a reply")

// ErrNotReply is returned when a reply operation targets a top-level activity.
var ErrNotReply = errors.New("activity is not a reply")

// Filter narrows activity queries by source and action. Zero values match
// everything.
type Filter struct {
	Source string
	Action string
}

// ActivityRepository defines the interface for activity feed operations
type ActivityRepository interface {
	Add(activity *models.Activity, extraTargets []models.ActivityTarget) error
	GetByID(id uint) (*models.Activity, error)
	ForUser(userID uint, filter Filter, page, limit int) ([]models.Activity, int64, error)
	ForObject(aboutType, aboutID string, viewerID uint, filter Filter, page, limit int) ([]models.Activity, int64, error)
	UpdateText(id uint, text string) error
	Delete(id uint) error
	AddReply(parentID, userID uint, text string) (*models.Activity, error)
	Replies(parentID uint) ([]models.Activity, error)
	DeleteReply(id uint) error
	VisibleTo(activity *models.Activity, viewerID uint) (bool, error)
}

// PostgresActivityRepository implements ActivityRepository on GORM
type PostgresActivityRepository struct {
	db *gorm.DB
}

// NewPostgresActivityRepository creates a new PostgresActivityRepository
func NewPostgresActivityRepository(db *gorm.DB) *PostgresActivityRepository {
	return &PostgresActivityRepository{db: db}
}

// UserTargetID formats a user ID the way activity targets store it.
func UserTargetID(userID uint) string {
	return strconv.FormatUint(uint64(userID), 10)
}

// Add persists a new activity and seeds its targets with the creator, the
// about object (if any) and any extra targets the caller supplies.
func (r *PostgresActivityRepository) Add(activity *models.Activity, extraTargets []models.ActivityTarget) error {
	if activity.Source == "" {
		activity.Source = models.SourceUser
	}
	if activity.Privacy == "" {
		activity.Privacy = models.PrivacyPrivate
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(activity).Error; err != nil {
			return err
		}

		targets := []models.ActivityTarget{{
			ActivityID: activity.ID,
			TargetType: "user",
			TargetID:   UserTargetID(activity.CreatedUserID),
		}}
		if activity.HasAbout() {
			targets = append(targets, models.ActivityTarget{
				ActivityID: activity.ID,
				TargetType: activity.AboutType,
				TargetID:   activity.AboutID,
			})
		}
		for _, t := range extraTargets {
			t.ActivityID = activity.ID
			targets = append(targets, t)
		}

		seen := make(map[string]bool, len(targets))
		for _, t := range targets {
			key := t.TargetType + ":" + t.TargetID
			if seen[key] {
				continue
			}
			seen[key] = true
			if err := tx.Create(&t).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

// GetByID retrieves an activity by ID
func (r *PostgresActivityRepository) GetByID(id uint) (*models.Activity, error) {
	var activity models.Activity
	if err := r.db.First(&activity, id).Error; err != nil {
		return nil, err
	}
	return &activity, nil
}

// visibleScope limits a query to activities the viewer may see: public
// records, or records the viewer created. viewerID 0 means anonymous.
func visibleScope(q *gorm.DB, viewerID uint) *gorm.DB {
	if viewerID == 0 {
		return q.Where("privacy = ?", models.PrivacyPublic)
	}
	return q.Where("(privacy = ? OR created_user_id = ?)", models.PrivacyPublic, viewerID)
}

func applyFilter(q *gorm.DB, filter Filter) *gorm.DB {
	if filter.Source != "" {
		q = q.Where("source = ?", filter.Source)
	}
	if filter.Action != "" {
		q = q.Where("action = ?", filter.Action)
	}
	return q
}

// ForUser returns the page of top-level activities targeted at the user that
// the user is allowed to see, newest first, plus the total count.
func (r *PostgresActivityRepository) ForUser(userID uint, filter Filter, page, limit int) ([]models.Activity, int64, error) {
	targeted := r.db.Model(&models.ActivityTarget{}).
		Select("activity_id").
		Where("target_type = ? AND target_id = ?", "user", UserTargetID(userID))

	base := func() *gorm.DB {
		q := r.db.Model(&models.Activity{}).
			Where("parent_id IS NULL").
			Where("id IN (?)", targeted)
		return applyFilter(visibleScope(q, userID), filter)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var activities []models.Activity
	offset := (page - 1) * limit
	err := base().
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&activities).Error

	return activities, total, err
}

// ForObject returns the page of top-level activities about the given object
// that the viewer is allowed to see, newest first, plus the total count.
func (r *PostgresActivityRepository) ForObject(aboutType, aboutID string, viewerID uint, filter Filter, page, limit int) ([]models.Activity, int64, error) {
	base := func() *gorm.DB {
		q := r.db.Model(&models.Activity{}).
			Where("parent_id IS NULL").
			Where("about_type = ? AND about_id = ?", aboutType, aboutID)
		return applyFilter(visibleScope(q, viewerID), filter)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var activities []models.Activity
	offset := (page - 1) * limit
	err := base().
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&activities).Error

	return activities, total, err
}

// UpdateText edits the activity's free text
func (r *PostgresActivityRepository) UpdateText(id uint, text string) error {
	return r.db.Model(&models.Activity{}).Where("id = ?", id).Update("text", text).Error
}

// Delete removes an activity, its replies and its targets. Activities
// grouped under it are kept and detached.
func (r *PostgresActivityRepository) Delete(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("parent_id = ?", id).Delete(&models.Activity{}).Error; err != nil {
			return err
		}
		if err := tx.Where("activity_id = ?", id).Delete(&models.ActivityTarget{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Activity{}).Where("group_id = ?", id).
			Update("group_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Activity{}, id).Error
	})
}

// AddReply creates a reply to a top-level activity and bumps the parent's
// reply counter in the same transaction. The counter update is a single
// atomic SQL expression; no application-level locking.
func (r *PostgresActivityRepository) AddReply(parentID, userID uint, text string) (*models.Activity, error) {
	var reply *models.Activity
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var parent models.Activity
		if err := tx.First(&parent, parentID).Error; err != nil {
			return err
		}
		if parent.IsReply() {
			return ErrParentIsReply
		}

		reply = &models.Activity{
			CreatedUserID: userID,
			Text:          text,
			Source:        models.SourceUser,
			Action:        models.ActionCommented,
			Privacy:       parent.Privacy,
			ParentID:      &parent.ID,
		}
		if err := tx.Create(reply).Error; err != nil {
			return err
		}

		return tx.Model(&models.Activity{}).Where("id = ?", parent.ID).
			UpdateColumn("reply_count", gorm.Expr("reply_count + 1")).Error
	})
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// Replies returns the flat reply list for an activity, oldest first
func (r *PostgresActivityRepository) Replies(parentID uint) ([]models.Activity, error) {
	var replies []models.Activity
	if err := r.db.Where("parent_id = ?", parentID).
		Order("created_at ASC").
		Find(&replies).Error; err != nil {
		return nil, err
	}
	return replies, nil
}

// DeleteReply removes a reply and decrements the parent's counter. The
// counter never goes below zero.
func (r *PostgresActivityRepository) DeleteReply(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var reply models.Activity
		if err := tx.First(&reply, id).Error; err != nil {
			return err
		}
		if !reply.IsReply() {
			return ErrNotReply
		}
		if err := tx.Delete(&models.Activity{}, id).Error; err != nil {
			return err
		}
		return tx.Model(&models.Activity{}).
			Where("id = ? AND reply_count > 0", *reply.ParentID).
			UpdateColumn("reply_count", gorm.Expr("reply_count - 1")).Error
	})
}

// VisibleTo reports whether the viewer may see the activity: it is public,
// the viewer created it, or the viewer is one of its targets.
func (r *PostgresActivityRepository) VisibleTo(activity *models.Activity, viewerID uint) (bool, error) {
	if activity.IsPublic() {
		return true, nil
	}
	if viewerID == 0 {
		return false, nil
	}
	if activity.CreatedUserID == viewerID {
		return true, nil
	}

	subject := activity
	if activity.IsReply() {
		parent, err := r.GetByID(*activity.ParentID)
		if err != nil {
			return false, err
		}
		subject = parent
	}

	var count int64
	err := r.db.Model(&models.ActivityTarget{}).
		Where("activity_id = ? AND target_type = ? AND target_id = ?",
			subject.ID, "user", UserTargetID(viewerID)).
		Count(&count).Error
	return count > 0, err
}
