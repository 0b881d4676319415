package doctors

import (
	"strings"
	"unicode"
)

// SocialLinks are the doctor's public profiles.
type SocialLinks struct {
	Instagram string `json:"instagram,omitempty"`
	YouTube   string `json:"youtube,omitempty"`
	Facebook  string `json:"facebook,omitempty"`
	Website   string `json:"website,omitempty"`
	Twitter   string `json:"twitter,omitempty"`
}

// Empty reports whether no link is configured.
func (s SocialLinks) Empty() bool {
	return s.Instagram == "" && s.YouTube == "" && s.Facebook == "" && s.Website == "" && s.Twitter == ""
}

// Doctor is the clinic identity behind one WhatsApp business number.
type Doctor struct {
	ID                     string      `json:"id"`
	Name                   string      `json:"name"`
	PhoneNumber            string      `json:"phone_number"`
	Specialization         string      `json:"specialization,omitempty"`
	ClinicName             string      `json:"clinic_name,omitempty"`
	ClinicAddress          string      `json:"clinic_address,omitempty"`
	ClinicPhone            string      `json:"clinic_phone,omitempty"`
	Latitude               *float64    `json:"clinic_latitude,omitempty"`
	Longitude              *float64    `json:"clinic_longitude,omitempty"`
	WelcomeMessage         string      `json:"welcome_message,omitempty"`
	ConsultationFee        int         `json:"consultation_fee"`
	AvgConsultationMinutes int         `json:"avg_consultation_time"`
	ReviewLink             string      `json:"review_link,omitempty"`
	BookingLink            string      `json:"calendly_link,omitempty"`
	SocialLinks            SocialLinks `json:"social_links"`
	WhatsAppToken          string      `json:"-"`
	WhatsAppPhoneNumberID  string      `json:"-"`
	Active                 bool        `json:"is_active"`
}

// DisplayClinicName falls back to "Dr. <name>'s Clinic".
func (d *Doctor) DisplayClinicName() string {
	if d == nil {
		return ""
	}
	if strings.TrimSpace(d.ClinicName) != "" {
		return d.ClinicName
	}
	return "Dr. " + d.Name + "'s Clinic"
}

// ReferralPartner is an external doctor who sends patients to this clinic.
type ReferralPartner struct {
	Name                 string  `json:"name"`
	Specialization       string  `json:"specialization,omitempty"`
	TotalReferrals       int     `json:"total_referrals"`
	CommissionPercentage float64 `json:"commission_percentage"`
	CommissionDue        float64 `json:"total_commission_due"`
}

// NormalizePhone strips whitespace, dashes, parentheses and the leading plus
// so display numbers from webhook metadata match stored numbers.
func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r), r == '-', r == '(', r == ')', r == '+':
			return -1
		default:
			return r
		}
	}, phone)
}
