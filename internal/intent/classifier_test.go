package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wolfman30/whatsapp-clinic-bot/internal/patients"
)

func TestClassifyPrecedence(t *testing.T) {
	c := NewClassifier(nil)

	tests := []struct {
		name string
		in   Input
		want Intent
	}{
		{"doctor search", Input{Text: "/search raj", FromDoctor: true}, Intent{Kind: AdminSearch, Argument: "raj"}},
		{"doctor search keeps case", Input{Text: "/SEARCH Raj Kumar ", FromDoctor: true}, Intent{Kind: AdminSearch, Argument: "Raj Kumar"}},
		{"doctor search missing arg", Input{Text: "/search", FromDoctor: true}, Intent{Kind: AdminSearch}},
		{"doctor queue", Input{Text: "/queue", FromDoctor: true}, Intent{Kind: AdminQueue}},
		{"doctor report", Input{Text: "/report asha", FromDoctor: true}, Intent{Kind: AdminReport, Argument: "asha"}},
		{"doctor network", Input{Text: "/network", FromDoctor: true}, Intent{Kind: AdminNetwork}},
		{"command glued to word", Input{Text: "/queued", FromDoctor: true}, Intent{Kind: QueueStatus}},
		{"patient cannot use commands", Input{Text: "/queue"}, Intent{Kind: QueueStatus}},
		{"booking beats greeting", Input{Text: "hi", State: patients.StateBookingAppointment}, Intent{Kind: BookingResponse}},
		{"booking beats rating", Input{Text: "3", State: patients.StateBookingAppointment}, Intent{Kind: BookingResponse}},
		{"doctor command beats booking", Input{Text: "/queue", FromDoctor: true, State: patients.StateBookingAppointment}, Intent{Kind: AdminQueue}},
		{"greeting", Input{Text: "Hello doctor"}, Intent{Kind: Greeting}},
		{"marathi greeting", Input{Text: "नमस्कार"}, Intent{Kind: Greeting}},
		{"greeting elongated", Input{Text: "Hii"}, Intent{Kind: Greeting}},
		{"greeting trailing letters", Input{Text: "helloo"}, Intent{Kind: Greeting}},
		{"greeting inside sentence", Input{Text: "Hiii doctor"}, Intent{Kind: Greeting}},
		{"greeting matches inside words", Input{Text: "this chill and fever"}, Intent{Kind: Greeting}},
		{"queue", Input{Text: "how long is the wait?"}, Intent{Kind: QueueStatus}},
		{"queue glued", Input{Text: "my tokenno"}, Intent{Kind: QueueStatus}},
		{"queue marathi", Input{Text: "माझा टोकन किती?"}, Intent{Kind: QueueStatus}},
		{"greeting beats queue", Input{Text: "hi what is my token"}, Intent{Kind: Greeting}},
		{"social", Input{Text: "your instagram?"}, Intent{Kind: SocialLinks}},
		{"referral", Input{Text: "send my referral code"}, Intent{Kind: ReferralRequest}},
		{"rating", Input{Text: " 4 "}, Intent{Kind: Rating, Rating: 4}},
		{"health", Input{Text: "I have a headache"}, Intent{Kind: HealthQuery}},
		{"health prefix", Input{Text: "my knee is painful"}, Intent{Kind: HealthQuery}},
		{"hindi health", Input{Text: "pet me dard"}, Intent{Kind: HealthQuery}},
		{"unclassified", Input{Text: "what are your fees"}, Intent{Kind: Unclassified}},
		{"empty", Input{Text: "   "}, Intent{Kind: Unclassified}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.in))
		})
	}
}

func TestRatingBoundaries(t *testing.T) {
	c := NewClassifier(nil)
	for _, text := range []string{"1", "2", "3", "4", "5"} {
		got := c.Classify(Input{Text: text})
		assert.Equal(t, Rating, got.Kind, text)
	}
	for _, text := range []string{"0", "6", "5.5", "five", "+5", "-1", "10"} {
		got := c.Classify(Input{Text: text})
		assert.NotEqual(t, Rating, got.Kind, text)
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	c := NewClassifier(nil)
	inputs := []Input{
		{Text: "hi"},
		{Text: "fever since yesterday"},
		{Text: "/report x", FromDoctor: true},
		{Text: "tomorrow 3pm", State: patients.StateBookingAppointment},
	}
	for _, in := range inputs {
		first := c.Classify(in)
		for i := 0; i < 20; i++ {
			assert.Equal(t, first, c.Classify(in))
		}
	}
}

func TestBookingStateCapturesEverything(t *testing.T) {
	c := NewClassifier(nil)
	for _, text := range []string{"1", "5", "hello", "menu", "queue", "refer", "fever", "", "cancel"} {
		got := c.Classify(Input{Text: text, State: patients.StateBookingAppointment})
		assert.Equal(t, BookingResponse, got.Kind, text)
	}
}

func TestOrderIsVisible(t *testing.T) {
	c := NewClassifier(nil)
	assert.Equal(t, Kinds, c.Order())
}

func TestCustomTable(t *testing.T) {
	c := NewClassifier(Table{"en": {Greeting: {"namaste"}}})
	assert.Equal(t, Greeting, c.Classify(Input{Text: "Namaste!"}).Kind)
	assert.Equal(t, Unclassified, c.Classify(Input{Text: "hello"}).Kind)
}

func TestIsHealthQuery(t *testing.T) {
	assert.True(t, IsHealthQuery("Feverish since morning"))
	assert.True(t, IsHealthQuery("is it normal to feel this way"))
	assert.False(t, IsHealthQuery("thanks"))
	assert.False(t, IsHealthQuery("see you soon"))
	assert.True(t, IsHealthQuery("will you be there"), "ill matches inside will")
}

func TestKindIsAdmin(t *testing.T) {
	for _, k := range []Kind{AdminSearch, AdminQueue, AdminReport, AdminNetwork} {
		assert.True(t, k.IsAdmin(), k)
	}
	for _, k := range []Kind{BookingResponse, Greeting, QueueStatus, Rating, HealthQuery, Unclassified} {
		assert.False(t, k.IsAdmin(), k)
	}
}
