package boot

import (
	"bookpay/src/config"
	"bookpay/src/db"
	"bookpay/src/jobs"
	"bookpay/src/lib"
	"bookpay/src/models"
	"bookpay/src/payments"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func InitDb() *gorm.DB {
	d := db.GetDb()
	if err := Migrate(d); err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}
	return d
}

// Migrate creates the tables, installs the schedule function the front end
// calls on postgres, and seeds the default service fee.
func Migrate(d *gorm.DB) error {
	if err := d.AutoMigrate(models.All()...); err != nil {
		return err
	}
	if db.IsPostgres(d) {
		if err := d.Exec(payments.ScheduleFunctionSQL).Error; err != nil {
			return err
		}
	}
	return d.
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Setting{
			SettingKey:   config.SERVICE_FEE_KEY,
			SettingValue: config.DEFAULT_SERVICE_FEE,
			Group:        config.SERVICE_FEE_GROUP,
		}).
		Error
}

// InitScheduler registers the payment workers and starts the scheduler.
func InitScheduler(w *jobs.Workers, interval time.Duration) {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("An error has occurred. Check logs for info")
		return
	}
	if err := jobs.Register(sched, w, interval); err != nil {
		log.Printf("Error registering workers: %s\n", err.Error())
		return
	}
	log.Println("Jobs in queue:", len(sched.Jobs()))
	sched.Start()
}

func StopScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("Error retrieving Scheduler. Check logs for info")
		return
	}
	if err := sched.Shutdown(); err != nil {
		log.Println("An error has occurred while stopping Scheduler. Check logs for info")
		return
	}
}
