package booking

import (
	"fmt"
	"log"
	"os"

	"coachbook/src/lib"
	"coachbook/src/models"
)

// Notifier receives lifecycle notifications. Delivery is best-effort;
// a failed notification never affects the booking record.
type Notifier interface {
	BookingConfirmed(b *models.Booking)
}

type MailNotifier struct{}

func (MailNotifier) BookingConfirmed(b *models.Booking) {
	if b.StudentEmail == "" {
		return
	}
	from := os.Getenv("MAIL_FROM")
	body := fmt.Sprintf(
		"Hi %s,\n\nYour booking for %q on %s is confirmed.\n",
		b.StudentName, b.Title, b.ScheduledAt.Format("Jan 2, 2006 15:04"),
	)
	input := &lib.SendMailInput{
		From:     from,
		FromName: "CoachBook",
		To:       []string{b.StudentEmail},
		Subject:  "Your booking is confirmed",
		Body:     body,
	}
	if err := lib.SendMail(input); err != nil {
		log.Printf("Error sending confirmation for booking %s: %s\n", b.ID, err.Error())
	}
}
