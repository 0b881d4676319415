package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/whatsapp-clinic-bot/internal/doctors"
)

const promptMessage = "📅 *Book Your Appointment*\n\n" +
	"When would you like to visit? Reply with a date and time.\n\n" +
	"Examples:\n" +
	"• Tomorrow 3pm\n" +
	"• Next Monday 10am\n" +
	"• Feb 15 at 2:30pm\n\n" +
	"We're open 9 AM to 6 PM, Monday to Saturday.\n" +
	"(Type 'cancel' to go back)"

const cancelledMessage = "Booking cancelled. Type 'Hi' to see the menu again."

const resetMessage = "Something went wrong. Type 'Hi' to start over."

const unparsedMessage = "I couldn't understand that date/time. Please try again.\n\n" +
	"Examples:\n" +
	"• Tomorrow 3pm\n" +
	"• Next Monday 10am\n" +
	"• Feb 15 at 2:30pm\n\n" +
	"(Type 'cancel' to go back)"

const outOfHoursMessage = "⏰ Sorry, we're only open from 9 AM to 6 PM.\n\n" +
	"Please choose a time within clinic hours.\n\n" +
	"(Type 'cancel' to go back)"

const sundayMessage = "📅 Sorry, we're closed on Sundays.\n\n" +
	"Please choose a weekday.\n\n" +
	"(Type 'cancel' to go back)"

const confirmationLayout = "Monday, 2 January 2006 at 03:04 pm"

func createFailedMessage(doctor *doctors.Doctor) string {
	phone := "Call clinic"
	if doctor != nil {
		if p := strings.TrimSpace(doctor.ClinicPhone); p != "" {
			phone = p
		} else if p := strings.TrimSpace(doctor.PhoneNumber); p != "" {
			phone = p
		}
	}
	return "Sorry, couldn't book the appointment. Please try again or contact us directly.\n\n📞 " + phone
}

// ConfirmationMessage renders the booked slot with clinic details.
func ConfirmationMessage(at time.Time, doctor *doctors.Doctor) string {
	var b strings.Builder
	b.WriteString("✅ *Appointment Confirmed!*\n\n")
	fmt.Fprintf(&b, "📅 *Date & Time:*\n%s\n\n", at.Format(confirmationLayout))
	fmt.Fprintf(&b, "📍 *Location:*\n%s\n%s\n\n", doctor.DisplayClinicName(), doctor.ClinicAddress)
	b.WriteString("💡 *What's Next:*\n")
	b.WriteString("• We'll send you a reminder 2 hours before\n")
	b.WriteString("• Please arrive 10 minutes early\n")
	b.WriteString("• Bring any previous medical reports\n\n")
	b.WriteString("See you soon! 😊\n\n")
	b.WriteString("Type 'Hi' to see the menu again.")
	return b.String()
}
