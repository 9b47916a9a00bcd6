package utils

import (
	"edumart/database"
	"edumart/models"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// InitializeReconcileScheduler sets up the daily reconciliation scheduler
func InitializeReconcileScheduler() {
	log.Println("[RECONCILER] Initializing reconciliation scheduler...")

	c := cron.New()

	// Run daily at 3 AM to repair counters and expire lapsed subscriptions
	c.AddFunc("0 3 * * *", func() {
		log.Println("[RECONCILER] Running daily reconciliation...")
		ReconcileEnrollmentCounters()
		ExpireSubscriptions()
	})

	c.Start()
	log.Println("[RECONCILER] Reconciliation scheduler started - runs daily at 3 AM")
}

// ReconcileEnrollmentCounters recomputes students_enrolled from the
// enrollment rows. Fulfillment logs counter-increment failures instead of
// rolling back enrollments; this job repairs any resulting drift.
func ReconcileEnrollmentCounters() {
	db := database.Database.Db

	var courses []models.Course
	if err := db.Where("is_deleted = false").Find(&courses).Error; err != nil {
		log.Printf("[RECONCILER] Error fetching courses: %v", err)
		return
	}

	repaired := 0
	for _, course := range courses {
		var actual int64
		if err := db.Model(&models.Enrollment{}).
			Where("course_id = ? AND is_deleted = false", course.ID).
			Count(&actual).Error; err != nil {
			log.Printf("[RECONCILER] Error counting enrollments for course %d: %v", course.ID, err)
			continue
		}

		if actual != course.StudentsEnrolled {
			log.Printf("[RECONCILER] Course %d counter drift: stored %d, actual %d", course.ID, course.StudentsEnrolled, actual)
			if err := db.Model(&models.Course{}).Where("id = ?", course.ID).
				Update("students_enrolled", actual).Error; err != nil {
				log.Printf("[RECONCILER] Error repairing counter for course %d: %v", course.ID, err)
				continue
			}
			repaired++
		}
	}

	log.Printf("[RECONCILER] Enrollment counter reconciliation done, repaired %d courses", repaired)
}

// ExpireSubscriptions marks lapsed subscriptions as EXPIRED and notifies users
func ExpireSubscriptions() {
	db := database.Database.Db
	now := time.Now()

	var expired []models.User
	if err := db.
		Where("subscription_status = ? AND subscription_ends_at IS NOT NULL AND subscription_ends_at < ?", "ACTIVE", now).
		Find(&expired).Error; err != nil {
		log.Printf("[RECONCILER] Error fetching expired subscriptions: %v", err)
		return
	}

	for _, user := range expired {
		if err := db.Model(&user).Update("subscription_status", "EXPIRED").Error; err != nil {
			log.Printf("[RECONCILER] Error expiring subscription for user %d: %v", user.ID, err)
			continue
		}

		if err := SendSubscriptionExpiredEmail(user.Email, user.Name); err != nil {
			log.Printf("[RECONCILER] Failed to send expiry email to %s: %v", user.Email, err)
		}
		log.Printf("[RECONCILER] Expired subscription %s for user %d", user.SubscriptionID, user.ID)
	}
}
