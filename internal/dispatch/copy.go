package dispatch

import (
	"fmt"

	"github.com/wolfman30/whatsapp-clinic-bot/internal/whatsapp"
)

// Supported patient languages. Anything else renders in English.
const (
	LangEnglish = "en"
	LangMarathi = "mr"
)

type localized struct {
	en, mr string
}

func pick(lang string, s localized) string {
	if lang == LangMarathi && s.mr != "" {
		return s.mr
	}
	return s.en
}

var (
	welcomeDefault = localized{
		en: "Welcome! 👋\n\nHow can we help you today?",
		mr: "नमस्कार! 👋\n\nआम्ही आपली कशी मदत करू शकतो?",
	}
	aiHelpTip = localized{
		en: "💡 *Tip:* You can ask me health questions directly!\n\nExamples:\n• \"I have a headache\"\n• \"How to reduce fever?\"\n• Send medical report photo 📸\n\nI use AI to help you! 🤖",
		mr: "💡 *टीप:* तुम्ही मला थेट प्रश्न विचारू शकता!\n\nउदाहरण:\n• \"मला डोकेदुखी आहे\"\n• \"ताप कसा कमी करावा?\"\n• मेडिकल रिपोर्टचा फोटो पाठवा 📸\n\nमी तुम्हाला मदत करण्यासाठी AI वापरतो! 🤖",
	}
	closedTemplate = localized{
		en: "🔒 *Clinic is Currently Closed*\n\nWe open at %s.\n\nHowever, you can still book an appointment! 👇",
		mr: "🔒 *क्लिनिक बंद आहे*\n\nआम्ही %s वाजता उघडतो.\n\nतरीही तुम्ही अपॉइंटमेंट बुक करू शकता! 👇",
	}
	reviewLinkMessage = localized{
		en: "🌟 *Thank you so much!*\n\nWe're thrilled you had a great experience! 😊\n\nWould you mind sharing your experience on Google? It helps us serve more patients like you.\n\nLeave a review here:\n%s\n\nThank you for your support! 🙏",
		mr: "🌟 *खूप खूप धन्यवाद!*\n\nआम्हाला खूप आनंद झाला! 😊\n\nकृपया Google वर तुमचा अनुभव शेअर करा. यामुळे आम्हाला अधिक रुग्णांना मदत करता येईल.\n\nयेथे रिव्ह्यू द्या:\n%s\n\nतुमच्या सहकार्याबद्दल धन्यवाद! 🙏",
	}
	thankYouMessage = localized{
		en: "🌟 *Thank you so much!*\n\nWe're thrilled you had a great experience! 😊\n\nThank you for your wonderful feedback! 🙏",
		mr: "🌟 *खूप खूप धन्यवाद!*\n\nआम्हाला खूप आनंद झाला! 😊\n\nतुमचा अनुभव शेअर करण्यासाठी कृपया आमच्याशी संपर्क साधा.\n\nतुमच्या सहकार्याबद्दल धन्यवाद! 🙏",
	}
	feedbackMessage = localized{
		en: "😔 *We're sorry to hear that*\n\nWe truly value your feedback and want to improve.\n\nCould you please tell us what went wrong? Your input helps us serve you better.\n\nPlease reply with your feedback, and we'll make sure to address your concerns. 🙏",
		mr: "😔 *आम्हाला वाईट वाटले*\n\nआम्ही तुमचा अभिप्राय खूप महत्त्वाचा मानतो आणि सुधारणा करू इच्छितो.\n\nकृपया आम्हाला सांगा काय चूक झाली? तुमचा अभिप्राय आम्हाला तुम्हाला चांगली सेवा देण्यास मदत करेल.\n\nकृपया तुमचा अभिप्राय लिहा, आणि आम्ही तुमच्या समस्यांचे निराकरण करू. 🙏",
	}
	noAppointmentMessage = localized{
		en: "You don't have any upcoming appointment.\n\nType *Hi* and choose 📅 Book Appointment to get a token.",
		mr: "तुमची कोणतीही येणारी भेट नाही.\n\nटोकन मिळवण्यासाठी *Hi* टाइप करा आणि 📅 अपॉइंटमेंट बुक करा निवडा.",
	}
	queueMessage = localized{
		en: "🎫 *Your Token Number: #%d*\n\n👥 People ahead of you: %d\n⏱️ Approximate wait time: %d minutes\n\nPlease try to arrive on time. Thank you! 🙏",
		mr: "🎫 *तुमचा टोकन क्रमांक: #%d*\n\n👥 तुमच्या आधी: %d लोक\n⏱️ अंदाजे प्रतीक्षा: %d मिनिटे\n\nकृपया वेळेवर येण्याचा प्रयत्न करा. धन्यवाद! 🙏",
	}
	socialUnavailable = localized{
		en: "Sorry, social media links are not available at the moment.",
		mr: "माफ करा, सध्या सोशल मीडिया लिंक उपलब्ध नाहीत.",
	}
	socialHeader = localized{
		en: "📱 *Stay Connected with Us!*\n\nFollow us on:",
		mr: "📱 *आमच्याशी जुळून रहा!*\n\nआम्हाला फॉलो करा:",
	}
	socialFooter = localized{
		en: "Follow us for health tips and updates! 💚",
		mr: "आम्हाला फॉलो करा आणि आरोग्य टिप्स मिळवा! 💚",
	}
	referralFailed = localized{
		en: "Sorry, couldn't generate referral code. Please try again.",
		mr: "माफ करा, रेफरल कोड तयार करता आला नाही. कृपया पुन्हा प्रयत्न करा.",
	}
	referralMessage = localized{
		en: "🎁 *Your Referral Code*\n\nCode: *%s*\n\nShare this code with your friends and family!\n\nWhen they register using your code, both of you will get special benefits! 🎉\n\nYou've referred %d friends so far. Thank you! 🙏",
		mr: "🎁 *तुमचा रेफरल कोड*\n\nकोड: *%s*\n\nहा कोड तुमच्या मित्रांना शेअर करा!\n\nजेव्हा ते या कोडचा वापर करून नोंदणी करतील, तेव्हा तुम्हाला आणि त्यांना विशेष फायदे मिळतील! 🎉\n\nतुम्ही %d मित्रांना रेफर केले आहे. धन्यवाद! 🙏",
	}
)

const reviewRequestMessage = "⭐ *How was your experience?*\n\nPlease rate your visit on a scale of 1-5:\n\n" +
	"5 - Excellent ⭐⭐⭐⭐⭐\n4 - Good ⭐⭐⭐⭐\n3 - Average ⭐⭐⭐\n2 - Below Average ⭐⭐\n1 - Poor ⭐\n\n" +
	"Just reply with a number (1-5)"

func closedMessage(lang, openingTime string) string {
	return fmt.Sprintf(pick(lang, closedTemplate), openingTime)
}

// Main menu row ids. The router maps interactive replies back onto these.
const (
	MenuBook     = "book"
	MenuAddress  = "address"
	MenuQueue    = "queue"
	MenuSocial   = "social"
	MenuReferral = "referral"
	MenuReview   = "review"

	QuickBook      = "book_appt"
	QuickEmergency = "emergency"
)

func mainMenu(lang string) []whatsapp.Section {
	row := func(id string, title, desc localized) whatsapp.Row {
		return whatsapp.Row{ID: id, Title: pick(lang, title), Description: pick(lang, desc)}
	}
	return []whatsapp.Section{{
		Title: pick(lang, localized{"Main Menu", "मुख्य मेनू"}),
		Rows: []whatsapp.Row{
			row(MenuBook, localized{"📅 Book Appointment", "📅 अपॉइंटमेंट बुक करा"}, localized{"Schedule a visit with the doctor", "डॉक्टरांची भेट घ्या"}),
			row(MenuAddress, localized{"📍 Clinic Address", "📍 क्लिनिक पत्ता"}, localized{"Get clinic location and directions", "क्लिनिकचे स्थान मिळवा"}),
			row(MenuQueue, localized{"📊 Queue Status", "📊 रांग स्थिती"}, localized{"Check your waiting status", "तुमची प्रतीक्षा स्थिती पहा"}),
			row(MenuSocial, localized{"🔗 Social Media", "🔗 सोशल मीडिया"}, localized{"Follow us for health tips", "आम्हाला फॉलो करा"}),
			row(MenuReferral, localized{"🎁 Referral Code", "🎁 रेफरल कोड"}, localized{"Share with friends & earn", "मित्रांना शेअर करा"}),
			row(MenuReview, localized{"⭐ Rate Us", "⭐ रिव्ह्यू द्या"}, localized{"Share your experience", "तुमचा अनुभव शेअर करा"}),
		},
	}}
}

func missedCallMenu() []whatsapp.Section {
	return []whatsapp.Section{{
		Title: "Quick Actions",
		Rows: []whatsapp.Row{
			{ID: QuickBook, Title: "📅 Book Now", Description: "Schedule an appointment"},
			{ID: QuickEmergency, Title: "🚑 Urgent", Description: "Need immediate assistance"},
		},
	}}
}
