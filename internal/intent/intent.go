package intent

// Kind is the closed set of classifications for one inbound message.
type Kind string

const (
	AdminSearch     Kind = "admin_search"
	AdminQueue      Kind = "admin_queue"
	AdminReport     Kind = "admin_report"
	AdminNetwork    Kind = "admin_network"
	Greeting        Kind = "greeting"
	QueueStatus     Kind = "queue_status"
	SocialLinks     Kind = "social_links"
	ReferralRequest Kind = "referral_request"
	Rating          Kind = "rating"
	HealthQuery     Kind = "health_query"
	BookingResponse Kind = "booking_response"
	Unclassified    Kind = "unclassified"
)

// Kinds lists every Kind, in classification precedence order.
var Kinds = []Kind{
	AdminSearch, AdminQueue, AdminReport, AdminNetwork,
	BookingResponse,
	Greeting, QueueStatus, SocialLinks, ReferralRequest,
	Rating, HealthQuery, Unclassified,
}

// IsAdmin reports whether k is a doctor slash-command.
func (k Kind) IsAdmin() bool {
	switch k {
	case AdminSearch, AdminQueue, AdminReport, AdminNetwork:
		return true
	}
	return false
}

// Intent is the result of classifying one message.
type Intent struct {
	Kind Kind
	// Argument is the text after an admin command ("/search raj" -> "raj").
	Argument string
	// Rating is set (1-5) only when Kind == Rating.
	Rating int
}

func (i Intent) String() string {
	return string(i.Kind)
}
