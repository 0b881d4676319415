package whatsapp

// Inbound message types the bot reacts to.
const (
	MessageTypeText        = "text"
	MessageTypeImage       = "image"
	MessageTypeInteractive = "interactive"
	MessageTypeButton      = "button"
)

// ObjectBusinessAccount is the only webhook object the bot accepts.
const ObjectBusinessAccount = "whatsapp_business_account"

// WebhookPayload is the body Meta posts to the webhook.
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

type ChangeValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Metadata         Metadata         `json:"metadata"`
	Contacts         []Contact        `json:"contacts,omitempty"`
	Messages         []InboundMessage `json:"messages,omitempty"`
	Statuses         []Status         `json:"statuses,omitempty"`
}

// ContactName returns the first contact's profile name.
func (v ChangeValue) ContactName() string {
	if len(v.Contacts) == 0 {
		return ""
	}
	return v.Contacts[0].Profile.Name
}

type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type Contact struct {
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
	WaID string `json:"wa_id"`
}

type InboundMessage struct {
	From        string            `json:"from"`
	ID          string            `json:"id"`
	Timestamp   string            `json:"timestamp"`
	Type        string            `json:"type"`
	Text        *InboundText      `json:"text,omitempty"`
	Image       *InboundMedia     `json:"image,omitempty"`
	Interactive *InteractiveReply `json:"interactive,omitempty"`
	Button      *QuickReply       `json:"button,omitempty"`
}

type InboundText struct {
	Body string `json:"body"`
}

type InboundMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

type InteractiveReply struct {
	Type        string     `json:"type"`
	ListReply   *ReplyItem `json:"list_reply,omitempty"`
	ButtonReply *ReplyItem `json:"button_reply,omitempty"`
}

// Selection returns the chosen row or button.
func (r *InteractiveReply) Selection() (ReplyItem, bool) {
	switch {
	case r == nil:
		return ReplyItem{}, false
	case r.ListReply != nil && r.ListReply.ID != "":
		return *r.ListReply, true
	case r.ButtonReply != nil && r.ButtonReply.ID != "":
		return *r.ButtonReply, true
	}
	return ReplyItem{}, false
}

type ReplyItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// QuickReply is a template quick-reply button press.
type QuickReply struct {
	Payload string `json:"payload"`
	Text    string `json:"text"`
}

type Status struct {
	ID          string `json:"id"`
	RecipientID string `json:"recipient_id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	Errors      []struct {
		Code    int    `json:"code"`
		Title   string `json:"title"`
		Message string `json:"message"`
	} `json:"errors,omitempty"`
}
