package boot

import (
	"context"
	"log"
	"time"

	"coachbook/src/booking"
	"coachbook/src/config"
	"coachbook/src/db"
	"coachbook/src/lib"
	"coachbook/src/models"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

func InitDb() *gorm.DB {
	db := db.GetDb()

	err := db.AutoMigrate(
		&models.Coach{},
		&models.Service{},
		&models.Class{},
		&models.Booking{},
	)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	return db
}

// InitScheduler registers the recurring sweep that expires abandoned
// checkouts, then starts the scheduler.
func InitScheduler(m *booking.Machine) {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("An error has occurred. Check logs for info")
		return
	}
	ttl := time.Duration(config.PendingBookingTTLMinutes()) * time.Minute
	j, err := sched.NewJob(
		gocron.DurationJob(10*time.Minute),
		gocron.NewTask(func() {
			if _, err := m.SweepStalePending(context.Background(), ttl); err != nil {
				log.Printf("Error running sweep: %s\n", err.Error())
			}
		}),
	)
	if err != nil {
		log.Printf("Error running job: %s\n", err.Error())
		return
	}
	log.Printf("Job ID: %s %s\n", j.Name(), j.ID().String())
	sched.Start()
}

func StopScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("Error retrieving Scheduler. Check logs for info")
		return
	}
	err = sched.Shutdown()
	if err != nil {
		log.Println("An error has occurred while shutting stopping Scheduler. Check logs for info")
		return
	}
}
