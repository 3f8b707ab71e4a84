package notify

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"carealert/internal/models"
)

// maxSMSLength is one GSM-7 segment.
const maxSMSLength = 160

const smsOptOut = " Reply STOP to opt out."

// Messages renders channel-appropriate titles and bodies for notifications.
type Messages struct {
	siteTitle string
	baseURL   string
}

// NewMessages creates a message renderer.
func NewMessages(siteTitle, baseURL string) *Messages {
	return &Messages{siteTitle: siteTitle, baseURL: strings.TrimRight(baseURL, "/")}
}

// Render returns the title and message for a notification type on a channel.
// SMS bodies are short and always end with an opt-out hint.
func (m *Messages) Render(notificationType, channel string, data map[string]any) (title, message string) {
	switch notificationType {
	case models.NotificationCrisisAlert:
		title, message = m.crisisAlert(channel)
	case models.NotificationAppointmentReminder:
		title, message = m.appointmentReminder(channel, data)
	case models.NotificationCheckInReminder:
		title, message = m.checkInReminder(channel)
	default:
		title, message = m.generic(channel, data)
	}

	if channel == models.ChannelSMS {
		message = fitSMS(message)
	}
	return title, message
}

func (m *Messages) crisisAlert(channel string) (string, string) {
	switch channel {
	case models.ChannelSMS:
		return "We're here for you",
			fmt.Sprintf("%s: You're not alone. Call or text 988 any time to talk with someone now.", m.siteTitle)
	case models.ChannelEmail:
		return fmt.Sprintf("[%s] We're here to support you", m.siteTitle),
			"Something you shared recently suggests you may be going through a really hard time. You are not alone, and support is available right now.\n\n" +
				"Next steps:\n" +
				"1. Call or text 988 (Suicide & Crisis Lifeline) any time, day or night.\n" +
				"2. Book a same-day session with a campus counselor: " + m.baseURL + "/support\n" +
				"3. If you are in immediate danger, call 911 or go to the nearest emergency room.\n\n" +
				"A member of our care team may also reach out to check in with you."
	default:
		return "We're here for you",
			"It sounds like things are really hard right now. You are not alone. Talk to a counselor from the Support page, or call or text 988 any time. If you are in immediate danger, call 911."
	}
}

func (m *Messages) appointmentReminder(channel string, data map[string]any) (string, string) {
	when := stringValue(data, "starts_at", "soon")
	with := stringValue(data, "counselor", "your counselor")

	switch channel {
	case models.ChannelSMS:
		return "Appointment reminder",
			fmt.Sprintf("%s: Reminder, your appointment with %s is %s.", m.siteTitle, with, when)
	case models.ChannelEmail:
		return fmt.Sprintf("[%s] Appointment reminder", m.siteTitle),
			fmt.Sprintf("This is a reminder that your counseling appointment with %s is scheduled for %s.\n\n"+
				"Need to reschedule or cancel? Visit %s/appointments at least 24 hours ahead so someone else can use the slot.", with, when, m.baseURL)
	default:
		return "Upcoming appointment",
			fmt.Sprintf("Your appointment with %s is scheduled for %s. You can reschedule from the Appointments page.", with, when)
	}
}

func (m *Messages) checkInReminder(channel string) (string, string) {
	switch channel {
	case models.ChannelSMS:
		return "Check-in reminder", fmt.Sprintf("%s: Time for your wellness check-in. It takes 2 minutes.", m.siteTitle)
	case models.ChannelEmail:
		return fmt.Sprintf("[%s] Time for your wellness check-in", m.siteTitle),
			"Taking two minutes to check in helps you and your care team notice how you are doing over time.\n\n" +
				"Start your check-in: " + m.baseURL + "/check-in"
	default:
		return "Wellness check-in", "Take two minutes to let us know how you're doing today."
	}
}

func (m *Messages) generic(channel string, data map[string]any) (string, string) {
	title := stringValue(data, "title", "New notification")
	body := stringValue(data, "message", "You have a new notification.")
	if channel == models.ChannelEmail {
		title = fmt.Sprintf("[%s] %s", m.siteTitle, title)
		body += "\n\nView it in " + m.siteTitle + ": " + m.baseURL
	}
	if channel == models.ChannelSMS {
		body = m.siteTitle + ": " + body
	}
	return title, body
}

// fitSMS truncates body so that body plus the opt-out hint fits one segment.
func fitSMS(body string) string {
	room := maxSMSLength - utf8.RuneCountInString(smsOptOut)
	if utf8.RuneCountInString(body) > room {
		runes := []rune(body)
		body = strings.TrimSpace(string(runes[:room-3])) + "..."
	}
	return body + smsOptOut
}

func stringValue(data map[string]any, key, fallback string) string {
	if v, ok := data[key].(string); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}
