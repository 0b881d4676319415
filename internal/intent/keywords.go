package intent

import "strings"

// Keywords maps an intent to the trigger words for one locale.
type Keywords map[Kind][]string

// Table holds keyword sets per locale code. Matching is locale-agnostic:
// a message triggers an intent when any locale's keyword for it matches.
type Table map[string]Keywords

// DefaultTable is the built-in English, Marathi and Hindi vocabulary.
func DefaultTable() Table {
	return Table{
		"en": {
			Greeting:        {"hi", "hello", "hey", "menu", "start", "help"},
			QueueStatus:     {"queue", "token", "wait", "waiting"},
			SocialLinks:     {"social", "follow", "instagram", "youtube", "website", "facebook"},
			ReferralRequest: {"refer", "referral", "code", "share"},
			HealthQuery: {
				// symptoms
				"pain", "ache", "hurt", "sore", "burning", "itching", "swelling",
				"fever", "temperature", "cold", "cough", "sneeze", "flu",
				"headache", "migraine", "dizzy", "vertigo",
				"stomach", "belly", "abdomen", "nausea", "vomit", "diarrhea", "constipation",
				"chest", "heart", "breathing", "breath", "asthma",
				"throat", "tonsil", "voice", "hoarse",
				"nose", "sinus", "congestion", "runny",
				"ear", "hearing", "tinnitus",
				"eye", "vision", "blurry", "red eyes",
				"skin", "rash", "acne", "pimple", "allergy", "hives",
				"back", "neck", "shoulder", "joint", "muscle", "sprain",
				"leg", "foot", "ankle", "knee", "arm", "hand", "wrist",
				// conditions
				"sick", "ill", "unwell", "disease", "infection", "virus", "bacteria",
				"diabetes", "sugar", "blood pressure", "bp", "hypertension",
				"thyroid", "pcod", "pcos", "hormonal",
				"pregnancy", "pregnant", "conception", "fertility",
				"period", "menstruation", "cramps", "pms",
				"weight", "obesity", "overweight", "underweight",
				"sleep", "insomnia", "tired", "fatigue", "weakness", "energy",
				"stress", "anxiety", "depression", "mental health",
				"injury", "wound", "cut", "bruise", "fracture",
				// medical terms
				"symptom", "medicine", "medication", "treatment", "cure", "remedy",
				"doctor", "health", "medical", "clinic", "hospital",
				"test", "report", "diagnosis", "prescription",
				"vitamin", "supplement", "nutrition", "diet",
				// question patterns
				"what is", "how to", "why do i", "should i", "can i",
				"is it normal", "is it safe", "home remedy", "natural cure",
			},
		},
		"mr": {
			Greeting:        {"नमस्कार", "हॅलो"},
			QueueStatus:     {"रांग", "टोकन", "प्रतीक्षा"},
			ReferralRequest: {"रेफर", "कोड"},
		},
		"hi": {
			HealthQuery: {"dard", "bukhar", "pet", "sir", "khasi", "jukam", "दर्द", "बुखार", "पेट", "सिर", "खांसी", "जुकाम"},
		},
	}
}

// Match reports whether any locale's keyword for kind occurs as a substring
// of text. text must already be lowercased.
func (t Table) Match(kind Kind, text string) bool {
	for _, locale := range t {
		for _, kw := range locale[kind] {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" && strings.Contains(text, kw) {
				return true
			}
		}
	}
	return false
}
