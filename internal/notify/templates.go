package notify

import "regexp"

// Template is a renderable title/message pair with {{key}} placeholders.
type Template struct {
	Title   string
	Message string
}

var placeholderPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// defaultTemplates maps event types to Arabic notification texts.
var defaultTemplates = map[EventType]Template{
	EventAppointmentCreated: {
		Title:   "موعد جديد",
		Message: "تم حجز موعد للمريض {{patientName}} في {{appointmentDate}}",
	},
	EventAppointmentConfirmed: {
		Title:   "تأكيد الموعد",
		Message: "تم تأكيد موعد {{patientName}}",
	},
	EventAppointmentCancelled: {
		Title:   "إلغاء موعد",
		Message: "تم إلغاء موعد {{patientName}}",
	},
	EventAppointmentReminder: {
		Title:   "تذكير بالموعد",
		Message: "مرحباً {{patientName}}، لديك موعد في عيادة {{clinicName}} الساعة {{appointmentTime}}",
	},
	EventAppointmentCompleted: {
		Title:   "اكتمال الموعد",
		Message: "تم إكمال موعد {{patientName}} بنجاح",
	},
	EventNewPatient: {
		Title:   "مريض جديد",
		Message: "تم تسجيل مريض جديد: {{patientName}}",
	},
	EventPatientSynced: {
		Title:   "مزامنة المرضى",
		Message: "تم مزامنة {{count}} مريض",
	},
	EventNewMessage: {
		Title:   "رسالة جديدة",
		Message: "رسالة جديدة من {{senderName}}",
	},
	EventSystemSuccess: {
		Title:   "نجح",
		Message: "{{action}} بنجاح ✅",
	},
	EventSystemError: {
		Title:   "خطأ",
		Message: "فشل {{action}}. يرجى المحاولة مرة أخرى.",
	},
	EventSystemWarning: {
		Title:   "تحذير",
		Message: "{{message}}",
	},
	EventSystemInfo: {
		Title:   "معلومة",
		Message: "{{message}}",
	},
}

var fallbackTemplate = Template{
	Title:   "إشعار",
	Message: "لديك إشعار جديد",
}

// RenderTemplate fills the event type's template with data. Placeholders
// without a value are left as-is so a broken caller is visible, not silent.
func RenderTemplate(eventType EventType, data map[string]string) Template {
	tmpl, ok := defaultTemplates[eventType]
	if !ok {
		return fallbackTemplate
	}
	return Template{
		Title:   interpolate(tmpl.Title, data),
		Message: interpolate(tmpl.Message, data),
	}
}

func interpolate(text string, data map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		key := placeholderPattern.FindStringSubmatch(match)[1]
		if value, ok := data[key]; ok && value != "" {
			return value
		}
		return match
	})
}
